package models

import (
	"time"

	"github.com/guregu/null/v6"
)

const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailure = "failure"
)

// SimulationRun is one row of the run history, results stay null until the run completes
type SimulationRun struct {
	Id                    int32       `db:"id"`
	RunId                 string      `db:"run_id"`
	PortfolioId           null.Int    `db:"portfolio_id"`
	NumTrials             int         `db:"num_trials"`
	ChunkSize             int         `db:"chunk_size"`
	Seed                  int64       `db:"seed"`
	Status                string      `db:"status"`
	ExpectedLoss          null.Float  `db:"expected_loss"`
	SimulatedExpectedLoss null.Float  `db:"simulated_expected_loss"`
	ErrorMessage          null.String `db:"error_message"`
	CreatedAt             time.Time   `db:"created_at"`
	CompletedAt           null.Time   `db:"completed_at"`
}

// SeedColumn maps a simulation seed onto the signed BIGINT seed column. Seeds above
// math.MaxInt64 are stored as their two's complement negative value, UnsignedSeed reads them back.
func SeedColumn(seed uint64) int64 {
	return int64(seed)
}

// UnsignedSeed is the seed the run was simulated with
func (r *SimulationRun) UnsignedSeed() uint64 {
	return uint64(r.Seed)
}

type SimulationLoss struct {
	RunId int32   `db:"run_id"`
	Trial int     `db:"trial"`
	Loss  float64 `db:"loss"`
}
