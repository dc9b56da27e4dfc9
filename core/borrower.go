package core

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

const probabilityTolerance = 1e-6

// Borrower is the atomic unit for rating migrations. It is mutated while the portfolio is
// wired (AddExposure, SetNorm) and only read during trials.
type Borrower struct {
	id      string
	weights *mat.VecDense // dependency on the systematic risk factors, length must match the covariance
	rating  int           // current rating class as index
	rho     float64       // dependency on the systematic factor
	eps     float64       // dependency on the risk group factor

	pMig       []float64 // migration probabilities into each rating class
	thresholds []float64 // standard normal thresholds of the cumulative migration probabilities, len(pMig)-1

	// factor model loadings, precomputed from rho and eps
	loadY, loadE1, loadE2 float64

	exposures  []*Exposure
	value      float64   // valuation at the current rating
	valuations []float64 // valuation at each rating, summed over exposures
	losses     []float64 // value - valuations[i], positive values are losses

	norm float64 // sqrt(w' * cov * w), NaN until SetNorm
}

// NewBorrower validates the static inputs and derives the migration thresholds
func NewBorrower(id string, weights []float64, rating int, rho, eps float64, pMig []float64) (*Borrower, error) {
	k := len(pMig)
	if k < 2 {
		return nil, configErrorf("new borrower", ErrInvalidProbabilities, "borrower %s needs at least 2 rating classes, got %d", id, k)
	}
	if rating < 0 || rating >= k {
		return nil, configErrorf("new borrower", ErrRatingOutOfRange, "borrower %s has rating %d, expected [0,%d)", id, rating, k)
	}
	if !inUnitInterval(rho) {
		return nil, configErrorf("new borrower", ErrInvalidParameter, "borrower %s has rho %v outside [0,1]", id, rho)
	}
	if !inUnitInterval(eps) {
		return nil, configErrorf("new borrower", ErrInvalidParameter, "borrower %s has eps %v outside [0,1]", id, eps)
	}
	if len(weights) == 0 {
		return nil, configErrorf("new borrower", ErrDimensionMismatch, "borrower %s has no risk factor weights", id)
	}
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, configErrorf("new borrower", ErrInvalidParameter, "borrower %s has non finite weight at risk factor %d", id, i)
		}
	}

	thresholds, err := GetMigrationThresholds(pMig)
	if err != nil {
		return nil, &ConfigurationError{Op: "new borrower " + id, Err: err}
	}

	return &Borrower{
		id:         id,
		weights:    mat.NewVecDense(len(weights), slices.Clone(weights)),
		rating:     rating,
		rho:        rho,
		eps:        eps,
		pMig:       slices.Clone(pMig),
		thresholds: thresholds,
		loadY:      math.Sqrt(rho),
		loadE1:     math.Sqrt(1-rho) * math.Sqrt(1-eps),
		loadE2:     math.Sqrt(1-rho) * math.Sqrt(eps),
		valuations: make([]float64, k),
		losses:     make([]float64, k),
		norm:       math.NaN(),
	}, nil
}

// GetMigrationThresholds turns migration probabilities into thresholds of a standard normal variable,
// P(z <= thresholds[i]) equals the cumulative probability of ending in rating i or better.
// The last cumulative probability is 1 and needs no threshold.
func GetMigrationThresholds(pMig []float64) ([]float64, error) {
	sum := 0.0
	for i, p := range pMig {
		if math.IsNaN(p) || p < 0 {
			return nil, fmt.Errorf("%w: probability %v at rating %d", ErrInvalidProbabilities, p, i)
		}
		sum += p
	}
	if math.Abs(sum-1) > probabilityTolerance {
		return nil, fmt.Errorf("%w: probabilities sum to %.8f, expected 1", ErrInvalidProbabilities, sum)
	}

	cumulative := make([]float64, len(pMig))
	floats.CumSum(cumulative, pMig)

	thresholds := make([]float64, len(pMig)-1)
	for i := range thresholds {
		// rounding can push a cumulative sum just past 1
		p := math.Min(math.Max(cumulative[i], 0), 1)
		thresholds[i] = distuv.UnitNormal.Quantile(p)
	}

	return thresholds, nil
}

// AddExposure adds the exposure valuations to the borrower and refreshes losses and expected loss
func (b *Borrower) AddExposure(e *Exposure) error {
	if e.NumValues() != len(b.valuations) {
		return configErrorf("add exposure", ErrDimensionMismatch, "exposure %s has %d valuations, borrower %s expects %d", e.Id, e.NumValues(), b.id, len(b.valuations))
	}

	floats.Add(b.valuations, e.valuations)
	b.exposures = append(b.exposures, e)

	b.value = b.valuations[b.rating]
	for i, v := range b.valuations {
		b.losses[i] = b.value - v
	}

	return nil
}

// SetNorm sets sqrt(w' * cov * w) so that RiskFactor returns a standard normal variable.
// It has to be called with the covariance the owning portfolio factorized.
func (b *Borrower) SetNorm(cov mat.Symmetric) error {
	if n := cov.SymmetricDim(); n != b.weights.Len() {
		return configErrorf("set norm", ErrDimensionMismatch, "borrower %s has %d risk factor weights, covariance has %d factors", b.id, b.weights.Len(), n)
	}

	variance := mat.Inner(b.weights, cov, b.weights)
	norm := math.Sqrt(variance)
	if !(norm > 0) || math.IsInf(norm, 0) {
		return configErrorf("set norm", ErrInvalidParameter, "borrower %s has systematic variance %v, weights must load on the risk factors", b.id, variance)
	}

	b.norm = norm
	return nil
}

// RiskFactor projects the correlated systematic factors onto the borrower weights, standardized to unit variance
func (b *Borrower) RiskFactor(riskFactors mat.Vector) float64 {
	return mat.Dot(riskFactors, b.weights) / b.norm
}

// AssetValue applies the nested factor model z = sqrt(rho)*y + sqrt(1-rho)*(sqrt(1-eps)*e1 + sqrt(eps)*e2),
// y systematic, e1 borrower idiosyncratic and e2 risk group idiosyncratic
func (b *Borrower) AssetValue(y, e1, e2 float64) float64 {
	return b.loadY*y + b.loadE1*e1 + b.loadE2*e2
}

// Migration returns the smallest rating index i with z <= thresholds[i], or the last rating if z
// is above every threshold. A z exactly on a threshold stays in the lower index.
func (b *Borrower) Migration(z float64) (int, error) {
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return 0, &NumericalError{Op: "migration of borrower " + b.id, Value: z, Err: ErrNonFiniteAssetValue}
	}
	return sort.SearchFloat64s(b.thresholds, z), nil
}

// Loss returns the loss incurred if the borrower migrates to the given rating
func (b *Borrower) Loss(rating int) (float64, error) {
	if rating < 0 || rating >= len(b.losses) {
		return 0, configErrorf("loss lookup", ErrRatingOutOfRange, "rating %d not in [0,%d) for borrower %s", rating, len(b.losses), b.id)
	}
	return b.losses[rating], nil
}

// ExpectedLoss is sum_i p_i * loss_i
func (b *Borrower) ExpectedLoss() float64 {
	return floats.Dot(b.pMig, b.losses)
}

func (b *Borrower) Id() string { return b.id }

func (b *Borrower) Rating() int { return b.rating }

func (b *Borrower) NumRatings() int { return len(b.pMig) }

func (b *Borrower) NumRiskFactors() int { return b.weights.Len() }

func (b *Borrower) NumExposures() int { return len(b.exposures) }

func (b *Borrower) Norm() float64 { return b.norm }

// Value is the valuation at the current rating
func (b *Borrower) Value() float64 { return b.value }

func (b *Borrower) Thresholds() []float64 { return slices.Clone(b.thresholds) }

func (b *Borrower) Losses() []float64 { return slices.Clone(b.losses) }

func (b *Borrower) Valuations() []float64 { return slices.Clone(b.valuations) }

func (b *Borrower) Probabilities() []float64 { return slices.Clone(b.pMig) }

func inUnitInterval(v float64) bool {
	return v >= 0 && v <= 1
}
