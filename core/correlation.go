package core

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const symmetryTolerance = 1e-12

// CorrelationStructure holds the covariance of the systematic risk factors and its lower
// cholesky factor L, so that L*n is a correlated factor vector when n is iid standard normal.
// Built once per portfolio and read only afterwards.
type CorrelationStructure struct {
	cov   *mat.SymDense
	lower *mat.TriDense
}

func NewCorrelationStructure(cov mat.Matrix) (*CorrelationStructure, error) {
	sym, err := GetSymmetricMatrix(cov)
	if err != nil {
		return nil, err
	}

	lower, err := GetCholeskyDecomposition(sym)
	if err != nil {
		return nil, err
	}

	return &CorrelationStructure{cov: sym, lower: lower}, nil
}

// GetSymmetricMatrix checks the matrix is square and symmetric and copies it into a SymDense
func GetSymmetricMatrix(m mat.Matrix) (*mat.SymDense, error) {
	r, c := m.Dims()
	if r == 0 || r != c {
		return nil, configErrorf("correlation structure", ErrDimensionMismatch, "covariance matrix must be square and non empty, got %dx%d", r, c)
	}

	sym := mat.NewSymDense(r, nil)
	for i := range r {
		for j := range i + 1 {
			a, b := m.At(i, j), m.At(j, i)
			if math.IsNaN(a) || math.IsInf(a, 0) {
				return nil, configErrorf("correlation structure", ErrInvalidParameter, "covariance entry (%d,%d) is not finite", i, j)
			}
			if math.Abs(a-b) > symmetryTolerance*math.Max(1, math.Abs(a)) {
				return nil, configErrorf("correlation structure", ErrNonPositiveSemiDefinite, "covariance matrix is not symmetric at (%d,%d): %v != %v", i, j, a, b)
			}
			sym.SetSym(i, j, a)
		}
	}

	return sym, nil
}

func GetCholeskyDecomposition(covMatrix *mat.SymDense) (*mat.TriDense, error) {
	chol := new(mat.Cholesky)
	if ok := chol.Factorize(covMatrix); !ok {
		return nil, &ConfigurationError{Op: "cholesky decomposition", Err: ErrNonPositiveSemiDefinite}
	}

	L := new(mat.TriDense)
	chol.LTo(L)

	return L, nil
}

// Dim is the number of systematic risk factors
func (cs *CorrelationStructure) Dim() int {
	return cs.cov.SymmetricDim()
}

func (cs *CorrelationStructure) Covariance() mat.Symmetric {
	return cs.cov
}

func (cs *CorrelationStructure) LowerFactor() mat.Triangular {
	return cs.lower
}

// Correlate writes L*n into dst, dst and n must have length Dim()
func (cs *CorrelationStructure) Correlate(dst, n *mat.VecDense) {
	dst.MulVec(cs.lower, n) // correlated factors = chol L * iid normals
}
