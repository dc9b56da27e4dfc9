package core

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	ex "cpm/data/extensions"
)

func TestSingleBorrowerMigration(t *testing.T) {
	b := newSingleBorrower(t, 1, 0)

	thresholds := b.Thresholds()
	ex.AssertAreEqual(t, "number of thresholds", 1, len(thresholds))
	ex.AssertInDelta(t, "threshold[0]", 1.2816, thresholds[0], 1e-4)

	// rho = 1 means z is the systematic factor
	z := b.AssetValue(2.0, 0.7, -0.3)
	ex.AssertAreEqual(t, "z", 2.0, z)

	rating, err := b.Migration(z)
	require.NoError(t, err)
	ex.AssertAreEqual(t, "rating for z = 2", 1, rating)

	loss, err := b.Loss(rating)
	require.NoError(t, err)
	ex.AssertAreEqual(t, "loss for z = 2", 100.0, loss)

	rating, err = b.Migration(b.AssetValue(0, 0, 0))
	require.NoError(t, err)
	ex.AssertAreEqual(t, "rating for z = 0", 0, rating)

	loss, err = b.Loss(rating)
	require.NoError(t, err)
	ex.AssertAreEqual(t, "loss for z = 0", 0.0, loss)

	ex.AssertInDelta(t, "expected loss", 10, b.ExpectedLoss(), 1e-12)
}

func TestAssetValueDegenerateLoadingsAreExact(t *testing.T) {
	systematic := newSingleBorrower(t, 1, 0)
	group := newSingleBorrower(t, 0, 1)

	triples := [][3]float64{
		{2, 0.7, -0.3},
		{-1.5, 3, 0.25},
		{0.1, -2, 1e-3},
		{-4.2, -0.9, 6.5},
	}
	for _, tr := range triples {
		y, e1, e2 := tr[0], tr[1], tr[2]

		// rho = 1 leaves only the systematic factor
		ex.AssertAreEqual(t, "z with rho = 1", y, systematic.AssetValue(y, e1, e2))

		// rho = 0 and eps = 1 leave only the risk group factor
		ex.AssertAreEqual(t, "z with rho = 0, eps = 1", e2, group.AssetValue(y, e1, e2))
	}
}

func TestMigrationOnThresholdStaysInLowerRating(t *testing.T) {
	b, err := NewBorrower("B1", []float64{1}, 1, 0.5, 0.5, []float64{0.1, 0.3, 0.6})
	require.NoError(t, err)

	thresholds := b.Thresholds()
	for i, th := range thresholds {
		rating, err := b.Migration(th)
		require.NoError(t, err)
		ex.AssertAreEqual(t, "rating on threshold", i, rating)

		rating, err = b.Migration(math.Nextafter(th, math.Inf(1)))
		require.NoError(t, err)
		ex.AssertAreEqual(t, "rating just above threshold", i+1, rating)
	}

	rating, err := b.Migration(-1e300)
	require.NoError(t, err)
	ex.AssertAreEqual(t, "rating far below", 0, rating)

	rating, err = b.Migration(1e300)
	require.NoError(t, err)
	ex.AssertAreEqual(t, "rating far above", 2, rating)
}

func TestMigrationThresholdsAreMonotone(t *testing.T) {
	thresholds, err := GetMigrationThresholds([]float64{0.01, 0.04, 0.15, 0.5, 0.2, 0.07, 0.03})
	require.NoError(t, err)
	ex.AssertAreEqual(t, "number of thresholds", 6, len(thresholds))

	for i := 1; i < len(thresholds); i++ {
		assert.Less(t, thresholds[i-1], thresholds[i])
	}
}

func TestDegenerateMigrationProbabilities(t *testing.T) {
	// all mass on the first class, every finite z stays there
	stay, err := NewBorrower("stay", []float64{1}, 0, 0.5, 0.5, []float64{1, 0})
	require.NoError(t, err)
	assert.True(t, math.IsInf(stay.Thresholds()[0], 1))

	// all mass on the last class, every finite z ends there
	move, err := NewBorrower("move", []float64{1}, 0, 0.5, 0.5, []float64{0, 1})
	require.NoError(t, err)
	assert.True(t, math.IsInf(move.Thresholds()[0], -1))

	for _, z := range []float64{-50, -1, 0, 1, 50} {
		rating, err := stay.Migration(z)
		require.NoError(t, err)
		ex.AssertAreEqual(t, "rating with p = [1, 0]", 0, rating)

		rating, err = move.Migration(z)
		require.NoError(t, err)
		ex.AssertAreEqual(t, "rating with p = [0, 1]", 1, rating)
	}
}

func TestMigrationRejectsNonFiniteAssetValue(t *testing.T) {
	b := newSingleBorrower(t, 0.5, 0.5)

	for _, z := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := b.Migration(z)
		assert.True(t, IsNumericalError(err), "expected numerical error for %v, got %v", z, err)
		assert.ErrorIs(t, err, ErrNonFiniteAssetValue)
		assert.False(t, IsConfigurationError(err))
	}
}

func TestExposureAggregation(t *testing.T) {
	b, err := NewBorrower("B1", []float64{1}, 0, 0.5, 0.5, []float64{0.9, 0.1})
	require.NoError(t, err)

	require.NoError(t, b.AddExposure(NewExposure("E1", 100, []float64{100, 80})))
	require.NoError(t, b.AddExposure(NewExposure("E2", 50, []float64{50, 40})))

	assert.Equal(t, []float64{150, 120}, b.Valuations())
	assert.Equal(t, []float64{0, 30}, b.Losses())
	ex.AssertAreEqual(t, "value", 150.0, b.Value())
	ex.AssertAreEqual(t, "exposures", 2, b.NumExposures())
	ex.AssertInDelta(t, "expected loss", 3, b.ExpectedLoss(), 1e-12)

	err = b.AddExposure(NewExposure("E3", 10, []float64{10, 5, 1}))
	assert.True(t, IsConfigurationError(err))
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, []float64{150, 120}, b.Valuations(), "a rejected exposure must not change the borrower")
}

func TestLossesCanBeNegativeAboveCurrentRating(t *testing.T) {
	b, err := NewBorrower("B1", []float64{1}, 1, 0.5, 0.5, []float64{0.2, 0.7, 0.1})
	require.NoError(t, err)
	require.NoError(t, b.AddExposure(NewExposure("E1", 100, []float64{110, 100, 60})))

	assert.Equal(t, []float64{-10, 0, 40}, b.Losses())
	ex.AssertInDelta(t, "expected loss", -2+4, b.ExpectedLoss(), 1e-12)

	_, err = b.Loss(3)
	assert.ErrorIs(t, err, ErrRatingOutOfRange)
}

func TestNewBorrowerValidation(t *testing.T) {
	tests := []struct {
		name     string
		weights  []float64
		rating   int
		rho, eps float64
		pMig     []float64
		sentinel error
	}{
		{"single rating class", []float64{1}, 0, 0.5, 0.5, []float64{1}, ErrInvalidProbabilities},
		{"rating out of range", []float64{1}, 2, 0.5, 0.5, []float64{0.5, 0.5}, ErrRatingOutOfRange},
		{"negative rating", []float64{1}, -1, 0.5, 0.5, []float64{0.5, 0.5}, ErrRatingOutOfRange},
		{"rho above one", []float64{1}, 0, 1.1, 0.5, []float64{0.5, 0.5}, ErrInvalidParameter},
		{"negative eps", []float64{1}, 0, 0.5, -0.1, []float64{0.5, 0.5}, ErrInvalidParameter},
		{"no weights", nil, 0, 0.5, 0.5, []float64{0.5, 0.5}, ErrDimensionMismatch},
		{"nan weight", []float64{math.NaN()}, 0, 0.5, 0.5, []float64{0.5, 0.5}, ErrInvalidParameter},
		{"probabilities do not sum to one", []float64{1}, 0, 0.5, 0.5, []float64{0.5, 0.4}, ErrInvalidProbabilities},
		{"negative probability", []float64{1}, 0, 0.5, 0.5, []float64{1.1, -0.1}, ErrInvalidProbabilities},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBorrower("B1", tt.weights, tt.rating, tt.rho, tt.eps, tt.pMig)
			ex.AssertNillability(t, "borrower", true, b)
			assert.True(t, IsConfigurationError(err), "expected configuration error, got %v", err)
			assert.True(t, errors.Is(err, tt.sentinel), "expected %v, got %v", tt.sentinel, err)
		})
	}
}

func TestProbabilitySumTolerance(t *testing.T) {
	_, err := NewBorrower("B1", []float64{1}, 0, 0.5, 0.5, []float64{0.3333333, 0.3333333, 0.3333334})
	assert.NoError(t, err)

	_, err = NewBorrower("B1", []float64{1}, 0, 0.5, 0.5, []float64{0.33, 0.33, 0.33})
	assert.ErrorIs(t, err, ErrInvalidProbabilities)
}

func TestSetNormStandardizesTheRiskFactor(t *testing.T) {
	b, err := NewBorrower("B1", []float64{1, 1}, 0, 0.5, 0.5, []float64{0.5, 0.5})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(b.Norm()))

	cov := mat.NewSymDense(2, []float64{1, 0.5, 0.5, 1})
	require.NoError(t, b.SetNorm(cov))

	// w' cov w = 1 + 1 + 2 * 0.5
	ex.AssertInDelta(t, "norm", math.Sqrt(3), b.Norm(), 1e-12)
	ex.AssertInDelta(t, "risk factor", 2/math.Sqrt(3), b.RiskFactor(mat.NewVecDense(2, []float64{1, 1})), 1e-12)

	err = b.SetNorm(mat.NewSymDense(3, nil))
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	zero, err := NewBorrower("B2", []float64{0, 0}, 0, 0.5, 0.5, []float64{0.5, 0.5})
	require.NoError(t, err)
	err = zero.SetNorm(cov)
	assert.True(t, IsConfigurationError(err))
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestAssetValueHasUnitVariance(t *testing.T) {
	for _, rho := range []float64{0, 0.1, 0.5, 0.99, 1} {
		for _, eps := range []float64{0, 0.3, 1} {
			b, err := NewBorrower("B1", []float64{1}, 0, rho, eps, []float64{0.5, 0.5})
			require.NoError(t, err)

			// z is linear in independent unit normals, its variance is the sum of squared loadings
			variance := b.loadY*b.loadY + b.loadE1*b.loadE1 + b.loadE2*b.loadE2
			ex.AssertInDelta(t, "variance of z", 1, variance, 1e-12)
		}
	}
}

func TestExposureValuation(t *testing.T) {
	e := NewExposure("E1", 100, []float64{100, 80})

	v, err := e.Valuation(1)
	require.NoError(t, err)
	ex.AssertAreEqual(t, "valuation", 80.0, v)

	_, err = e.Valuation(2)
	assert.ErrorIs(t, err, ErrRatingOutOfRange)
}
