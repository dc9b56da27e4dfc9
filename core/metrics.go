package core

import (
	"github.com/prometheus/client_golang/prometheus"

	dm "cpm/data/models"
	sm "cpm/models"
)

var (
	simulationDurationMetrics = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cpm_simulation_duration_seconds",
			Help:    "Wall time of a monte carlo simulation from portfolio build to loss report",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms to ~45min
		}, []string{"source"},
	)

	simulationTrialsTotalMetrics = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cpm_simulation_trials_total",
			Help: "Total number of simulated trials",
		},
	)

	simulationRunsTotalMetrics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cpm_simulation_runs_total",
			Help: "Total number of simulation runs by status and error kind",
		}, []string{"status", "kind"},
	)
)

func init() {
	prometheus.MustRegister(
		simulationDurationMetrics,
		simulationTrialsTotalMetrics,
		simulationRunsTotalMetrics,
	)
}

// errorKind maps an error onto the labels used by metrics and api responses
func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsConfigurationError(err):
		return sm.ErrorKindConfiguration
	case IsNumericalError(err):
		return sm.ErrorKindNumerical
	default:
		return sm.ErrorKindInternal
	}
}

func runStatus(err error) string {
	if err != nil {
		return dm.RunStatusFailure
	}
	return dm.RunStatusSuccess
}
