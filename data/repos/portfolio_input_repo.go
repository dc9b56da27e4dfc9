package repos

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	m "cpm/data/models"
	q "cpm/data/queries"
)

// GetPortfolioInput loads every input record of a portfolio
func (pg *Postgres) GetPortfolioInput(ctx context.Context, portfolioId int64) (*m.PortfolioInput, error) {
	args := pgx.NamedArgs{"portfolio_id": portfolioId}
	var (
		pi  m.PortfolioInput
		err error
	)

	if pi.Covariance, err = Query[m.CovarianceCell](ctx, pg, q.Get(q.QueryHelper.Select.CovarianceCells), args); err != nil {
		return nil, fmt.Errorf("error getting covariance of portfolio %d: %w", portfolioId, err)
	}
	if len(pi.Covariance) == 0 {
		return nil, fmt.Errorf("portfolio %d has no covariance cells", portfolioId)
	}
	if pi.Borrowers, err = Query[m.BorrowerRecord](ctx, pg, q.Get(q.QueryHelper.Select.Borrowers), args); err != nil {
		return nil, fmt.Errorf("error getting borrowers of portfolio %d: %w", portfolioId, err)
	}
	if pi.MigrationProbs, err = Query[m.MigrationProbability](ctx, pg, q.Get(q.QueryHelper.Select.MigrationProbabilities), args); err != nil {
		return nil, fmt.Errorf("error getting migration probabilities of portfolio %d: %w", portfolioId, err)
	}
	if pi.RiskFactors, err = Query[m.RiskFactorWeight](ctx, pg, q.Get(q.QueryHelper.Select.RiskFactorWeights), args); err != nil {
		return nil, fmt.Errorf("error getting risk factor weights of portfolio %d: %w", portfolioId, err)
	}
	if pi.Exposures, err = Query[m.ExposureRecord](ctx, pg, q.Get(q.QueryHelper.Select.Exposures), args); err != nil {
		return nil, fmt.Errorf("error getting exposures of portfolio %d: %w", portfolioId, err)
	}
	if pi.Valuations, err = Query[m.Valuation](ctx, pg, q.Get(q.QueryHelper.Select.Valuations), args); err != nil {
		return nil, fmt.Errorf("error getting valuations of portfolio %d: %w", portfolioId, err)
	}

	return &pi, nil
}

// InsertPortfolioInput copies a full input set into the portfolio tables in one transaction
func (pg *Postgres) InsertPortfolioInput(ctx context.Context, portfolioId int64, pi *m.PortfolioInput) error {
	tables := []struct {
		name    string
		columns []string
		rows    [][]any
	}{
		{"covariance_cell", []string{"portfolio_id", "risk_factor_1", "risk_factor_2", "correlation"}, toRows(pi.Covariance, func(c m.CovarianceCell) []any {
			return []any{portfolioId, c.RiskFactor1, c.RiskFactor2, c.Correlation}
		})},
		{"borrower", []string{"portfolio_id", "borrower_id", "risk_group", "rating", "r2", "eps"}, toRows(pi.Borrowers, func(b m.BorrowerRecord) []any {
			return []any{portfolioId, b.BorrowerId, b.RiskGroup, b.Rating, b.R2, b.Eps}
		})},
		{"migration_probability", []string{"portfolio_id", "borrower_id", "rating", "probability"}, toRows(pi.MigrationProbs, func(mp m.MigrationProbability) []any {
			return []any{portfolioId, mp.BorrowerId, mp.Rating, mp.Probability}
		})},
		{"risk_factor_weight", []string{"portfolio_id", "borrower_id", "risk_factor", "weight"}, toRows(pi.RiskFactors, func(rf m.RiskFactorWeight) []any {
			return []any{portfolioId, rf.BorrowerId, rf.RiskFactor, rf.Weight}
		})},
		{"exposure", []string{"portfolio_id", "exposure_id", "borrower_id", "outstanding"}, toRows(pi.Exposures, func(e m.ExposureRecord) []any {
			return []any{portfolioId, e.ExposureId, e.BorrowerId, e.Outstanding}
		})},
		{"valuation", []string{"portfolio_id", "exposure_id", "rating", "valuation"}, toRows(pi.Valuations, func(v m.Valuation) []any {
			return []any{portfolioId, v.ExposureId, v.Rating, v.Valuation}
		})},
	}

	err := pg.InTransaction(ctx, func(tx pgx.Tx) error {
		for _, t := range tables {
			if _, err := BulkInsert(ctx, tx, t.name, t.columns, t.rows); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error inserting portfolio %d: %w", portfolioId, err)
	}
	return nil
}

func toRows[T any](records []T, f func(T) []any) [][]any {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = f(r)
	}
	return rows
}
