package core

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Portfolio owns the correlation structure and the risk groups. Once the risk groups are
// added it is only read, which is what lets trials run on many goroutines at once.
type Portfolio struct {
	correlation  *CorrelationStructure
	riskGroups   []*RiskGroup
	numBorrowers int
}

// NewPortfolio factorizes the covariance matrix of the systematic risk factors
func NewPortfolio(cov mat.Matrix) (*Portfolio, error) {
	cs, err := NewCorrelationStructure(cov)
	if err != nil {
		return nil, err
	}

	return &Portfolio{correlation: cs}, nil
}

// AddRiskGroup sets the norm of every borrower in the group with the portfolio covariance and appends it
func (p *Portfolio) AddRiskGroup(rg *RiskGroup) error {
	if err := rg.SetNorm(p.correlation.Covariance()); err != nil {
		return err
	}

	p.numBorrowers += rg.NumBorrowers()
	p.riskGroups = append(p.riskGroups, rg)
	return nil
}

func (p *Portfolio) RiskGroups() []*RiskGroup {
	return p.riskGroups
}

func (p *Portfolio) NumBorrowers() int {
	return p.numBorrowers
}

func (p *Portfolio) NumRiskFactors() int {
	return p.correlation.Dim()
}

func (p *Portfolio) Correlation() *CorrelationStructure {
	return p.correlation
}

// BorrowerIds lists the borrowers in the order every per borrower vector uses
func (p *Portfolio) BorrowerIds() []string {
	ids := make([]string, 0, p.numBorrowers)
	for _, rg := range p.riskGroups {
		for _, b := range rg.Borrowers() {
			ids = append(ids, b.Id())
		}
	}
	return ids
}

// ExpectedLoss is the analytic expected loss, the value simulated losses should converge to
func (p *Portfolio) ExpectedLoss() float64 {
	el := 0.0
	for _, rg := range p.riskGroups {
		for _, b := range rg.Borrowers() {
			el += b.ExpectedLoss()
		}
	}
	return el
}

// WorkerResource is the per stream state of a trial: the random source and scratch vectors.
// Each goroutine needs its own, the portfolio itself is shared.
type WorkerResource struct {
	normalDist distuv.Normal
	draws      *mat.VecDense
	factors    *mat.VecDense
}

func NewWorkerResource(p *Portfolio, src rand.Source) *WorkerResource {
	n := p.NumRiskFactors()
	return &WorkerResource{
		normalDist: distuv.Normal{Mu: 0, Sigma: 1, Src: src},
		draws:      mat.NewVecDense(n, nil),
		factors:    mat.NewVecDense(n, nil),
	}
}

// Trial simulates the factor model once for every borrower and writes each borrower loss to out.
// Draw order is fixed: the systematic factors, then per risk group the group factor followed by
// one factor per borrower.
func (p *Portfolio) Trial(wr *WorkerResource, out []float64) error {
	if len(out) != p.numBorrowers {
		return configErrorf("trial", ErrDimensionMismatch, "output has length %d, portfolio has %d borrowers", len(out), p.numBorrowers)
	}

	for i := range wr.draws.Len() {
		wr.draws.SetVec(i, wr.normalDist.Rand())
	}
	p.correlation.Correlate(wr.factors, wr.draws)

	idx := 0
	for _, rg := range p.riskGroups {
		e2 := wr.normalDist.Rand() // risk group idiosyncratic

		for _, b := range rg.Borrowers() {
			e1 := wr.normalDist.Rand() // borrower idiosyncratic

			y := b.RiskFactor(wr.factors)
			z := b.AssetValue(y, e1, e2)

			rating, err := b.Migration(z)
			if err != nil {
				return err
			}

			loss, err := b.Loss(rating)
			if err != nil {
				return err
			}

			out[idx] = loss
			idx++
		}
	}

	return nil
}
