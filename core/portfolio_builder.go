package core

import (
	"fmt"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	ex "cpm/data/extensions"
	m "cpm/data/models"
)

// BuildPortfolio assembles a portfolio from raw input records. Risk groups are ordered by id and
// borrowers by id inside their group, which fixes the draw order of a trial independent of the
// record order. Every record level problem is collected before failing.
func BuildPortfolio(pi *m.PortfolioInput) (*Portfolio, error) {
	cov, err := GetCovarianceFromCells(pi.Covariance)
	if err != nil {
		return nil, err
	}

	p, err := NewPortfolio(cov)
	if err != nil {
		return nil, err
	}

	nRiskFactors := p.NumRiskFactors()

	var errs error
	appendErr := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}

	probs := make(map[string][]float64)
	for _, mp := range pi.MigrationProbs {
		if mp.Rating < 0 {
			appendErr("borrower %s has migration probability for negative rating %d", mp.BorrowerId, mp.Rating)
			continue
		}
		entry := probs[mp.BorrowerId]
		if len(entry) < mp.Rating+1 {
			entry = append(entry, make([]float64, mp.Rating+1-len(entry))...)
		}
		entry[mp.Rating] = mp.Probability
		probs[mp.BorrowerId] = entry
	}

	weights := make(map[string][]float64)
	for _, rf := range pi.RiskFactors {
		if rf.RiskFactor < 0 || rf.RiskFactor >= nRiskFactors {
			appendErr("borrower %s has weight for risk factor %d, covariance has %d factors", rf.BorrowerId, rf.RiskFactor, nRiskFactors)
			continue
		}
		entry, ok := weights[rf.BorrowerId]
		if !ok {
			entry = make([]float64, nRiskFactors)
			weights[rf.BorrowerId] = entry
		}
		entry[rf.RiskFactor] = rf.Weight
	}

	valuations := make(map[string][]float64)
	for _, v := range pi.Valuations {
		if v.Rating < 0 {
			appendErr("exposure %s has valuation for negative rating %d", v.ExposureId, v.Rating)
			continue
		}
		entry := valuations[v.ExposureId]
		if len(entry) < v.Rating+1 {
			entry = append(entry, make([]float64, v.Rating+1-len(entry))...)
		}
		entry[v.Rating] = v.Valuation
		valuations[v.ExposureId] = entry
	}

	exposures := ex.GroupBy(pi.Exposures, func(e m.ExposureRecord) string { return e.BorrowerId })
	groups := ex.GroupBy(pi.Borrowers, func(b m.BorrowerRecord) string { return b.RiskGroup })

	seen := make(map[string]bool, len(pi.Borrowers))
	for _, groupId := range ex.SortedKeys(groups) {
		records := slices.Clone(groups[groupId])
		slices.SortStableFunc(records, func(a, b m.BorrowerRecord) int { return strings.Compare(a.BorrowerId, b.BorrowerId) })

		rg := NewRiskGroup(groupId)
		for _, rec := range records {
			if seen[rec.BorrowerId] {
				appendErr("duplicate borrower %s", rec.BorrowerId)
				continue
			}
			seen[rec.BorrowerId] = true

			b, err := buildBorrower(rec, probs, weights, exposures, valuations)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			rg.AddBorrower(b)
		}

		if err := p.AddRiskGroup(rg); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	for id := range probs {
		if !seen[id] {
			log.Warnf("migration probabilities for unknown borrower %s are ignored", id)
		}
	}
	for id := range exposures {
		if !seen[id] {
			log.Warnf("exposures of unknown borrower %s are ignored", id)
		}
	}

	if errs != nil {
		return nil, &ConfigurationError{Op: "build portfolio", Err: errs}
	}
	if p.NumBorrowers() == 0 {
		return nil, &ConfigurationError{Op: "build portfolio", Err: ErrEmptyPortfolio}
	}

	return p, nil
}

func buildBorrower(rec m.BorrowerRecord, probs, weights map[string][]float64, exposures map[string][]m.ExposureRecord, valuations map[string][]float64) (*Borrower, error) {
	p, ok := probs[rec.BorrowerId]
	if !ok {
		return nil, fmt.Errorf("borrower %s has no migration probabilities", rec.BorrowerId)
	}
	w, ok := weights[rec.BorrowerId]
	if !ok {
		return nil, fmt.Errorf("borrower %s has no risk factor weights", rec.BorrowerId)
	}
	exps, ok := exposures[rec.BorrowerId]
	if !ok {
		return nil, fmt.Errorf("borrower %s has no exposures", rec.BorrowerId)
	}

	b, err := NewBorrower(rec.BorrowerId, w, rec.Rating, rec.R2, rec.Eps, p)
	if err != nil {
		return nil, err
	}

	for _, e := range exps {
		v, ok := valuations[e.ExposureId]
		if !ok {
			return nil, fmt.Errorf("exposure %s of borrower %s has no valuations", e.ExposureId, rec.BorrowerId)
		}
		if err := b.AddExposure(NewExposure(e.ExposureId, e.Outstanding, v)); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// GetCovarianceFromCells builds the covariance matrix from (row, column, value) cells. A cell given
// for one triangle only is mirrored, cells given for both triangles have to agree.
func GetCovarianceFromCells(cells []m.CovarianceCell) (*mat.Dense, error) {
	n := 0
	for _, c := range cells {
		if c.RiskFactor1 < 0 || c.RiskFactor2 < 0 {
			return nil, configErrorf("covariance", ErrDimensionMismatch, "negative risk factor index in cell (%d,%d)", c.RiskFactor1, c.RiskFactor2)
		}
		n = max(n, c.RiskFactor1+1, c.RiskFactor2+1)
	}
	if n == 0 {
		return nil, configErrorf("covariance", ErrDimensionMismatch, "no covariance cells")
	}

	cov := mat.NewDense(n, n, nil)
	explicit := make([]bool, n*n)
	for _, c := range cells {
		i, j := c.RiskFactor1, c.RiskFactor2
		cov.Set(i, j, c.Correlation)
		explicit[i*n+j] = true
		if !explicit[j*n+i] {
			cov.Set(j, i, c.Correlation)
		}
	}

	return cov, nil
}
