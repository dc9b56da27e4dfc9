package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"cpm/data/loader"
	m "cpm/data/models"
)

// expected loss of newTestInput, B1 3.0 + B2 7.5 + B3 3.35
const testInputExpectedLoss = 13.85

// newTestInput is a two factor portfolio with three borrowers in two risk groups. Records are
// deliberately out of order.
func newTestInput() *m.PortfolioInput {
	return &m.PortfolioInput{
		Covariance: []m.CovarianceCell{
			{RiskFactor1: 0, RiskFactor2: 0, Correlation: 1},
			{RiskFactor1: 1, RiskFactor2: 1, Correlation: 1},
			{RiskFactor1: 0, RiskFactor2: 1, Correlation: 0.3},
		},
		Borrowers: []m.BorrowerRecord{
			{BorrowerId: "B3", RiskGroup: "G2", Rating: 1, R2: 0.3, Eps: 0.2},
			{BorrowerId: "B2", RiskGroup: "G1", Rating: 1, R2: 0.2, Eps: 0.1},
			{BorrowerId: "B1", RiskGroup: "G1", Rating: 0, R2: 0.4, Eps: 0.5},
		},
		MigrationProbs: []m.MigrationProbability{
			{BorrowerId: "B1", Rating: 0, Probability: 0.9},
			{BorrowerId: "B1", Rating: 1, Probability: 0.08},
			{BorrowerId: "B1", Rating: 2, Probability: 0.02},
			{BorrowerId: "B2", Rating: 2, Probability: 0.10},
			{BorrowerId: "B2", Rating: 1, Probability: 0.85},
			{BorrowerId: "B2", Rating: 0, Probability: 0.05},
			{BorrowerId: "B3", Rating: 0, Probability: 0.03},
			{BorrowerId: "B3", Rating: 1, Probability: 0.9},
			{BorrowerId: "B3", Rating: 2, Probability: 0.07},
		},
		RiskFactors: []m.RiskFactorWeight{
			{BorrowerId: "B1", RiskFactor: 0, Weight: 1},
			{BorrowerId: "B2", RiskFactor: 0, Weight: 0.5},
			{BorrowerId: "B2", RiskFactor: 1, Weight: 0.5},
			{BorrowerId: "B3", RiskFactor: 1, Weight: 1},
		},
		Exposures: []m.ExposureRecord{
			{ExposureId: "E1", BorrowerId: "B1", Outstanding: 100},
			{ExposureId: "E2", BorrowerId: "B1", Outstanding: 50},
			{ExposureId: "E3", BorrowerId: "B2", Outstanding: 200},
			{ExposureId: "E4", BorrowerId: "B3", Outstanding: 80},
		},
		Valuations: []m.Valuation{
			{ExposureId: "E1", Rating: 0, Valuation: 100},
			{ExposureId: "E1", Rating: 1, Valuation: 90},
			{ExposureId: "E1", Rating: 2, Valuation: 40},
			{ExposureId: "E2", Rating: 0, Valuation: 50},
			{ExposureId: "E2", Rating: 1, Valuation: 45},
			{ExposureId: "E2", Rating: 2, Valuation: 20},
			{ExposureId: "E3", Rating: 0, Valuation: 210},
			{ExposureId: "E3", Rating: 1, Valuation: 200},
			{ExposureId: "E3", Rating: 2, Valuation: 120},
			{ExposureId: "E4", Rating: 0, Valuation: 85},
			{ExposureId: "E4", Rating: 1, Valuation: 80},
			{ExposureId: "E4", Rating: 2, Valuation: 30},
		},
	}
}

func newTestPortfolio(t *testing.T) *Portfolio {
	t.Helper()
	p, err := BuildPortfolio(newTestInput())
	if err != nil {
		t.Fatalf("unexpected error building test portfolio: %v", err)
	}
	return p
}

// newSingleBorrower is one borrower with two rating classes, p = [0.9, 0.1] and losses [0, 100]
func newSingleBorrower(t *testing.T, rho, eps float64) *Borrower {
	t.Helper()
	b, err := NewBorrower("B1", []float64{1}, 0, rho, eps, []float64{0.9, 0.1})
	if err != nil {
		t.Fatalf("unexpected error creating borrower: %v", err)
	}
	if err := b.AddExposure(NewExposure("E1", 100, []float64{100, 0})); err != nil {
		t.Fatalf("unexpected error adding exposure: %v", err)
	}
	if err := b.SetNorm(mat.NewSymDense(1, []float64{1})); err != nil {
		t.Fatalf("unexpected error setting norm: %v", err)
	}
	return b
}

// writeTestInputFiles writes pi as the six csv input files into dir
func writeTestInputFiles(t *testing.T, dir string, pi *m.PortfolioInput) {
	t.Helper()

	files := map[string][]string{
		loader.CovarianceFile: {"risk_factor_1,risk_factor_2,correlation"},
		loader.BorrowerFile:   {"borrower_id,risk_group,rating,r2,eps"},
		loader.MigrationFile:  {"borrower_id,rating,probability"},
		loader.RiskFactorFile: {"borrower_id,risk_factor,weight"},
		loader.ExposureFile:   {"exposure_id,borrower_id,outstanding"},
		loader.ValuationFile:  {"exposure_id,rating,valuation"},
	}
	add := func(file, format string, args ...any) {
		files[file] = append(files[file], fmt.Sprintf(format, args...))
	}

	for _, c := range pi.Covariance {
		add(loader.CovarianceFile, "%d,%d,%v", c.RiskFactor1, c.RiskFactor2, c.Correlation)
	}
	for _, b := range pi.Borrowers {
		add(loader.BorrowerFile, "%s,%s,%d,%v,%v", b.BorrowerId, b.RiskGroup, b.Rating, b.R2, b.Eps)
	}
	for _, mp := range pi.MigrationProbs {
		add(loader.MigrationFile, "%s,%d,%v", mp.BorrowerId, mp.Rating, mp.Probability)
	}
	for _, rf := range pi.RiskFactors {
		add(loader.RiskFactorFile, "%s,%d,%v", rf.BorrowerId, rf.RiskFactor, rf.Weight)
	}
	for _, e := range pi.Exposures {
		add(loader.ExposureFile, "%s,%s,%v", e.ExposureId, e.BorrowerId, e.Outstanding)
	}
	for _, v := range pi.Valuations {
		add(loader.ValuationFile, "%s,%d,%v", v.ExposureId, v.Rating, v.Valuation)
	}

	for name, lines := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
			t.Fatalf("unexpected error writing %s: %v", name, err)
		}
	}
}
