package core

import (
	"context"

	dm "cpm/data/models"
	sm "cpm/models"
)

// SimulationStore is the persistence the controller needs, implemented by repos.Postgres
type SimulationStore interface {
	GetPortfolioInput(ctx context.Context, portfolioId int64) (*dm.PortfolioInput, error)
	InsertSimulationRun(ctx context.Context, run *dm.SimulationRun) (int32, error)
	UpdateSimulationRunAsSuccess(ctx context.Context, id int32, expectedLoss, simulatedExpectedLoss float64) error
	UpdateSimulationRunAsFailure(ctx context.Context, id int32, errorMessage string) error
	InsertSimulationLosses(ctx context.Context, runId int32, losses []float64) (int64, error)
}

type ServiceContext struct {
	Context   context.Context
	Store     SimulationStore // nil when running without a database
	Defaults  sm.SimulationSettings
	InputRoot string // input directories of requests must be relative to it, empty allows any path
}
