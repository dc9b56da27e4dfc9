package models

// SimulationSettings are the run parameters of a monte carlo simulation
type SimulationSettings struct {
	NumTrials int    `json:"numTrials" mapstructure:"num_trials"`
	ChunkSize int    `json:"chunkSize" mapstructure:"chunk_size"` // trials per unit of parallel work
	Seed      uint64 `json:"seed" mapstructure:"seed"`
	Workers   int    `json:"workers" mapstructure:"workers"` // 0 uses GOMAXPROCS
}

// SimulationRequest is what the cli and the http api hand to the simulation controller.
// Exactly one of PortfolioId and InputDir has to be set.
type SimulationRequest struct {
	PortfolioId   *int64             `json:"portfolioId"`
	InputDir      string             `json:"inputDir"`
	Settings      SimulationSettings `json:"settings"`
	Persist       bool               `json:"persist"`       // store run history and losses in postgres
	IncludeLosses bool               `json:"includeLosses"` // return the full trial loss vector
}

// SimulationResponse is the result of a run and what is sent back to the caller
type SimulationResponse struct {
	RunId        string     `json:"runId"`
	RunHistoryId int32      `json:"runHistoryId,omitempty"`
	Report       LossReport `json:"report"`
	TrialLosses  []float64  `json:"trialLosses,omitempty"`
}

type LossReport struct {
	ExpectedLoss          float64        `json:"expectedLoss"`          // analytic
	SimulatedExpectedLoss float64        `json:"simulatedExpectedLoss"` // sum of per borrower mean losses
	Mean                  float64        `json:"mean"`
	StdDev                float64        `json:"stdDev"`
	StandardError         float64        `json:"standardError"`
	Median                float64        `json:"median"`
	Quantiles             []LossQuantile `json:"quantiles"`
	NumTrials             int            `json:"numTrials"`
	Borrowers             []BorrowerLoss `json:"borrowers,omitempty"`
}

// LossQuantile holds the value at risk at a confidence level, the expected shortfall beyond it
// and the unexpected loss (VaR minus analytic expected loss)
type LossQuantile struct {
	Level             float64 `json:"level"`
	ValueAtRisk       float64 `json:"valueAtRisk"`
	ExpectedShortfall float64 `json:"expectedShortfall"`
	UnexpectedLoss    float64 `json:"unexpectedLoss"`
}

type BorrowerLoss struct {
	BorrowerId    string  `json:"borrowerId"`
	ExpectedLoss  float64 `json:"expectedLoss"`
	SimulatedLoss float64 `json:"simulatedLoss"`
}
