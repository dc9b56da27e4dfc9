package repos

import (
	"context"
	"fmt"
	"strings"

	"github.com/guregu/null/v6"
	"github.com/jackc/pgx/v5"

	m "cpm/data/models"
	q "cpm/data/queries"
)

func (pg *Postgres) InsertSimulationRun(ctx context.Context, run *m.SimulationRun) (int32, error) {
	sql := q.Get(q.QueryHelper.Insert.SimulationRun)
	args := pgx.NamedArgs{
		"run_id":       run.RunId,
		"portfolio_id": run.PortfolioId,
		"num_trials":   run.NumTrials,
		"chunk_size":   run.ChunkSize,
		"seed":         run.Seed,
	}

	var id int32
	if err := pg.db.QueryRow(ctx, sql, args).Scan(&id); err != nil {
		return 0, fmt.Errorf("error inserting simulation run: %w", err)
	}

	run.Id = id
	return id, nil
}

func (pg *Postgres) UpdateSimulationRunAsSuccess(ctx context.Context, id int32, expectedLoss, simulatedExpectedLoss float64) error {
	return pg.updateSimulationRun(ctx, pgx.NamedArgs{
		"id":                      id,
		"status":                  m.RunStatusSuccess,
		"expected_loss":           null.FloatFrom(expectedLoss),
		"simulated_expected_loss": null.FloatFrom(simulatedExpectedLoss),
		"error_message":           null.String{},
	})
}

func (pg *Postgres) UpdateSimulationRunAsFailure(ctx context.Context, id int32, errorMessage string) error {
	cleanErrorMessage := strings.TrimSpace(errorMessage)
	if cleanErrorMessage == "" {
		return fmt.Errorf("error message is required if simulation run is failing, occurred in %d", id)
	}

	return pg.updateSimulationRun(ctx, pgx.NamedArgs{
		"id":                      id,
		"status":                  m.RunStatusFailure,
		"expected_loss":           null.Float{},
		"simulated_expected_loss": null.Float{},
		"error_message":           null.StringFrom(cleanErrorMessage),
	})
}

func (pg *Postgres) updateSimulationRun(ctx context.Context, args pgx.NamedArgs) error {
	sql := q.Get(q.QueryHelper.Update.SimulationRun)
	if _, err := pg.db.Exec(ctx, sql, args); err != nil {
		return fmt.Errorf("error updating simulation run: %w", err)
	}
	return nil
}

func (pg *Postgres) GetSimulationRun(ctx context.Context, id int32) (*m.SimulationRun, error) {
	return QuerySingle[m.SimulationRun](ctx, pg, q.Get(q.QueryHelper.Select.SimulationRunById), pgx.NamedArgs{"id": id})
}

// InsertSimulationLosses copies the trial loss vector of a run
func (pg *Postgres) InsertSimulationLosses(ctx context.Context, runId int32, losses []float64) (int64, error) {
	rows := make([][]any, len(losses))
	for i, l := range losses {
		rows[i] = []any{runId, i, l}
	}

	n, err := BulkInsert(ctx, pg.db, "simulation_loss", []string{"run_id", "trial", "loss"}, rows)
	if err != nil {
		return 0, fmt.Errorf("error inserting losses of simulation run %d: %w", runId, err)
	}
	return n, nil
}

func (pg *Postgres) GetSimulationLosses(ctx context.Context, runId int32) ([]m.SimulationLoss, error) {
	return Query[m.SimulationLoss](ctx, pg, q.Get(q.QueryHelper.Select.SimulationLossesByRunId), pgx.NamedArgs{"run_id": runId})
}
