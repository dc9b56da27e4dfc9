package core

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	sm "cpm/models"
)

// ReportQuantiles are the confidence levels printed and stored for every run
var ReportQuantiles = []float64{0.90, 0.99, 0.999}

// BuildLossReport summarizes the loss distribution of a simulation
func BuildLossReport(p *Portfolio, res *SimulationResult) (*sm.LossReport, error) {
	n := len(res.TrialLosses)
	if n == 0 {
		return nil, fmt.Errorf("cannot build a loss report without trials")
	}

	// stat.Quantile requires the slice to be sorted in increasing order
	sorted := slices.Clone(res.TrialLosses)
	slices.Sort(sorted)

	el := p.ExpectedLoss()
	report := &sm.LossReport{
		ExpectedLoss:          el,
		SimulatedExpectedLoss: res.SimulatedExpectedLoss(),
		Mean:                  stat.Mean(sorted, nil),
		Median:                stat.Quantile(0.5, stat.Empirical, sorted, nil),
		NumTrials:             n,
		Quantiles:             make([]sm.LossQuantile, 0, len(ReportQuantiles)),
	}

	if n > 1 {
		report.StdDev = stat.StdDev(sorted, nil)
		report.StandardError = StandardError(sorted)
	}

	for _, level := range ReportQuantiles {
		v := stat.Quantile(level, stat.Empirical, sorted, nil)
		report.Quantiles = append(report.Quantiles, sm.LossQuantile{
			Level:             level,
			ValueAtRisk:       v,
			ExpectedShortfall: calculateExpectedShortfall(sorted, level),
			UnexpectedLoss:    v - el,
		})
	}

	report.Borrowers = make([]sm.BorrowerLoss, 0, p.NumBorrowers())
	idx := 0
	for _, rg := range p.RiskGroups() {
		for _, b := range rg.Borrowers() {
			report.Borrowers = append(report.Borrowers, sm.BorrowerLoss{
				BorrowerId:    b.Id(),
				ExpectedLoss:  b.ExpectedLoss(),
				SimulatedLoss: res.BorrowerLosses[idx],
			})
			idx++
		}
	}

	return report, nil
}

// calculateExpectedShortfall is the mean of the worst (1 - level) share of the sorted losses
func calculateExpectedShortfall(sortedLosses []float64, level float64) float64 {
	n := len(sortedLosses)
	// 1 - level is not exact in floating point, 1 - 0.99 is slightly above 0.01
	tail := int(math.Ceil((1-level)*float64(n) - 1e-9))
	tail = max(1, min(tail, n))
	return stat.Mean(sortedLosses[n-tail:], nil)
}

// StandardError of the simulated mean loss, used to judge convergence towards the analytic expected loss
func StandardError(losses []float64) float64 {
	if len(losses) < 2 {
		return math.Inf(1)
	}
	return stat.StdDev(losses, nil) / math.Sqrt(float64(len(losses)))
}
