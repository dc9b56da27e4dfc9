package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v6"
	log "github.com/sirupsen/logrus"

	"cpm/data/loader"
	dm "cpm/data/models"
	sm "cpm/models"
)

var ErrNoStore = errors.New("no database configured")

// RunSimulation loads the portfolio input, builds the portfolio, runs the monte carlo simulation and
// reports the loss distribution. With Persist set the run is recorded in the run history, a failed
// run is marked as failure with its error message.
func (sc *ServiceContext) RunSimulation(req sm.SimulationRequest) (*sm.SimulationResponse, error) {
	start := time.Now()
	runId := uuid.NewString()
	settings := sc.applyDefaults(req.Settings)
	source := "files"
	if req.PortfolioId != nil {
		source = "database"
	}

	logger := log.WithField("run", runId)
	logger.Infof("Received request to run simulation from %s (trials: %d, chunk size: %d, seed: %d)", source, settings.NumTrials, settings.ChunkSize, settings.Seed)

	if err := validateRequest(req); err != nil {
		simulationRunsTotalMetrics.WithLabelValues(dm.RunStatusFailure, errorKind(err)).Inc()
		return nil, err
	}
	if req.Persist && sc.Store == nil {
		return nil, fmt.Errorf("cannot persist simulation run: %w", ErrNoStore)
	}

	var runHistoryId int32
	if req.Persist {
		logger.Infof("Inserting run to run history (time: %v)", time.Since(start))
		run := &dm.SimulationRun{
			RunId:     runId,
			NumTrials: settings.NumTrials,
			ChunkSize: settings.ChunkSize,
			Seed:      dm.SeedColumn(settings.Seed),
		}
		if req.PortfolioId != nil {
			run.PortfolioId = null.IntFrom(*req.PortfolioId)
		}

		id, err := sc.Store.InsertSimulationRun(sc.Context, run)
		if err != nil {
			logger.WithError(err).Error("Error inserting run to run history")
			return nil, err
		}
		runHistoryId = id
	}

	response, res, err := sc.runSimulation(req, settings, logger, start)
	if err == nil {
		simulationTrialsTotalMetrics.Add(float64(settings.NumTrials))
		if req.Persist {
			err = sc.persistResult(runHistoryId, response, res, logger, start)
		}
	}
	simulationRunsTotalMetrics.WithLabelValues(runStatus(err), errorKind(err)).Inc()
	simulationDurationMetrics.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		logger.WithError(err).Errorf("Simulation failed (time: %v)", time.Since(start))
		if req.Persist {
			// the request context may be gone, the run must still leave the running state
			if markErr := sc.Store.UpdateSimulationRunAsFailure(context.WithoutCancel(sc.Context), runHistoryId, err.Error()); markErr != nil {
				logger.WithError(markErr).Error("Error marking run as failure")
			}
		}
		return nil, err
	}

	response.RunId = runId
	response.RunHistoryId = runHistoryId

	if req.IncludeLosses {
		response.TrialLosses = res.TrialLosses
	}

	logger.Infof("Simulation completed (time: %v)", time.Since(start))
	return response, nil
}

func (sc *ServiceContext) runSimulation(req sm.SimulationRequest, settings sm.SimulationSettings, logger *log.Entry, start time.Time) (*sm.SimulationResponse, *SimulationResult, error) {
	logger.Infof("Loading portfolio input (time: %v)", time.Since(start))
	input, err := sc.loadPortfolioInput(req)
	if err != nil {
		return nil, nil, err
	}

	logger.Infof("Building portfolio from %d borrowers and %d exposures (time: %v)", len(input.Borrowers), len(input.Exposures), time.Since(start))
	portfolio, err := BuildPortfolio(input)
	if err != nil {
		return nil, nil, err
	}

	logger.Infof("Running monte carlo simulation (time: %v)", time.Since(start))
	res, err := portfolio.Simulate(sc.Context, settings)
	if err != nil {
		return nil, nil, err
	}

	logger.Infof("Building loss report (time: %v)", time.Since(start))
	report, err := BuildLossReport(portfolio, res)
	if err != nil {
		return nil, nil, err
	}

	return &sm.SimulationResponse{Report: *report}, res, nil
}

// persistResult stores the trial losses of a completed run and marks it as success
func (sc *ServiceContext) persistResult(id int32, response *sm.SimulationResponse, res *SimulationResult, logger *log.Entry, start time.Time) error {
	logger.Infof("Persisting %d trial losses (time: %v)", len(res.TrialLosses), time.Since(start))
	if _, err := sc.Store.InsertSimulationLosses(sc.Context, id, res.TrialLosses); err != nil {
		return fmt.Errorf("error persisting trial losses: %w", err)
	}
	if err := sc.Store.UpdateSimulationRunAsSuccess(sc.Context, id, response.Report.ExpectedLoss, response.Report.SimulatedExpectedLoss); err != nil {
		return fmt.Errorf("error marking run as success: %w", err)
	}
	return nil
}

func (sc *ServiceContext) loadPortfolioInput(req sm.SimulationRequest) (*dm.PortfolioInput, error) {
	if req.PortfolioId != nil {
		if sc.Store == nil {
			return nil, fmt.Errorf("cannot load portfolio %d: %w", *req.PortfolioId, ErrNoStore)
		}
		return sc.Store.GetPortfolioInput(sc.Context, *req.PortfolioId)
	}

	dir, err := sc.resolveInputDir(req.InputDir)
	if err != nil {
		return nil, err
	}
	input, err := loader.ReadPortfolioInput(dir)
	if err != nil {
		return nil, &ConfigurationError{Op: "load input", Err: err}
	}
	return input, nil
}

// resolveInputDir confines the requested directory to the input root. Without a root the
// directory is used as given.
func (sc *ServiceContext) resolveInputDir(dir string) (string, error) {
	if sc.InputRoot == "" {
		return dir, nil
	}
	if !filepath.IsLocal(dir) {
		return "", configErrorf("load input", ErrInvalidParameter, "input directory %q must be a relative path inside the input root", dir)
	}
	return filepath.Join(sc.InputRoot, dir), nil
}

// applyDefaults fills zero valued settings from the service defaults
func (sc *ServiceContext) applyDefaults(s sm.SimulationSettings) sm.SimulationSettings {
	if s.NumTrials == 0 {
		s.NumTrials = sc.Defaults.NumTrials
	}
	if s.ChunkSize == 0 {
		s.ChunkSize = sc.Defaults.ChunkSize
	}
	if s.Workers == 0 {
		s.Workers = sc.Defaults.Workers
	}
	if s.NumTrials == 0 {
		s.NumTrials = DefaultNumTrials
	}
	if s.ChunkSize == 0 {
		s.ChunkSize = DefaultChunkSize
	}
	return s
}

func validateRequest(req sm.SimulationRequest) error {
	if (req.PortfolioId == nil) == (req.InputDir == "") {
		return configErrorf("simulation request", ErrInvalidParameter, "exactly one of portfolio id and input directory is required")
	}
	return nil
}
