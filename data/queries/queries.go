package queries

import (
	"embed"
	"fmt"
)

//go:embed schema/*.sql insert/*.sql select/*.sql update/*.sql
var Files embed.FS

// ^^^ the go:embed directive embeds the sql files into the binary at compile time

type SchemaQueries struct {
	CreateTables string
}

type InsertQueries struct {
	SimulationRun string
}

type SelectQueries struct {
	Borrowers               string
	CovarianceCells         string
	Exposures               string
	MigrationProbabilities  string
	RiskFactorWeights       string
	SimulationLossesByRunId string
	SimulationRunById       string
	Valuations              string
}

type UpdateQueries struct {
	SimulationRun string
}

type QueryHelperStruct struct {
	Schema SchemaQueries
	Insert InsertQueries
	Select SelectQueries
	Update UpdateQueries
}

var QueryHelper = QueryHelperStruct{
	Schema: SchemaQueries{
		CreateTables: "schema/create_tables.sql",
	},
	Insert: InsertQueries{
		SimulationRun: "insert/simulation_run.sql",
	},
	Select: SelectQueries{
		Borrowers:               "select/borrowers.sql",
		CovarianceCells:         "select/covariance_cells.sql",
		Exposures:               "select/exposures.sql",
		MigrationProbabilities:  "select/migration_probabilities.sql",
		RiskFactorWeights:       "select/risk_factor_weights.sql",
		SimulationLossesByRunId: "select/simulation_losses_by_run_id.sql",
		SimulationRunById:       "select/simulation_run_by_id.sql",
		Valuations:              "select/valuations.sql",
	},
	Update: UpdateQueries{
		SimulationRun: "update/simulation_run.sql",
	},
}

func Get(path string) string {
	content, err := Files.ReadFile(path)
	if err != nil {
		panic(fmt.Errorf("error reading query file: %w", err))
	}

	return string(content)
}
