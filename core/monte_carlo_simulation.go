package core

import (
	"context"
	"math/rand/v2"
	"runtime"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	ex "cpm/data/extensions"
	sm "cpm/models"
)

const (
	DefaultNumTrials = 10
	DefaultChunkSize = 10_000
)

type SimulationResult struct {
	TrialLosses    []float64 // total portfolio loss of every trial
	BorrowerLosses []float64 // mean simulated loss per borrower, same order as Portfolio.BorrowerIds
}

// SimulatedExpectedLoss is the sum of the per borrower mean losses
func (sr *SimulationResult) SimulatedExpectedLoss() float64 {
	return floats.Sum(sr.BorrowerLosses)
}

type job struct {
	chunk int
	start int
	end   int
}

func GetNumberOfJobsAndWorkers(iterations int, batchSize int, workers int) ([]job, int) {
	if iterations <= 0 || batchSize <= 0 {
		return nil, 0
	}

	// clamp before dividing, iterations + batchSize overflows for huge batch sizes
	batchSize = ex.Min(batchSize, iterations)

	// number of chunks is the ceiling of iterations / batch size, the last one is truncated
	nJobs := iterations / batchSize
	if iterations%batchSize != 0 {
		nJobs++
	}

	// never spin up more workers than there are jobs
	nWorkers := ex.Min(nJobs, workers)

	jobs := make([]job, nJobs)
	for i := range nJobs {
		start := i * batchSize
		jobs[i] = job{
			chunk: i,
			start: start,
			end:   start + ex.Min(batchSize, iterations-start),
		}
	}

	return jobs, nWorkers
}

// GetChunkStreams derives one stream identifier per chunk. A base PCG seeded with (seed, 0) is
// drawn from sequentially, stream c is its c-th Uint64. Chunk c then runs on PCG(seed, stream c),
// so a chunk's random numbers depend only on the seed and the chunk index.
func GetChunkStreams(seed uint64, nChunks int) []uint64 {
	base := rand.NewPCG(seed, 0)
	streams := make([]uint64, nChunks)
	for i := range streams {
		streams[i] = base.Uint64()
	}
	return streams
}

// NewChunkSource is the random source for a single chunk
func NewChunkSource(seed, stream uint64) *rand.PCG {
	return rand.NewPCG(seed, stream)
}

func validateSettings(s sm.SimulationSettings) error {
	if s.NumTrials < 1 {
		return configErrorf("simulate", ErrInvalidParameter, "number of trials must be positive, got %d", s.NumTrials)
	}
	if s.ChunkSize < 1 {
		return configErrorf("simulate", ErrInvalidParameter, "chunk size must be positive, got %d", s.ChunkSize)
	}
	if s.Workers < 0 {
		return configErrorf("simulate", ErrInvalidParameter, "workers must not be negative, got %d", s.Workers)
	}
	return nil
}

// Simulate runs settings.NumTrials trials split into chunks of at most settings.ChunkSize.
// Every chunk runs sequentially on its own stream and returns a partial per borrower sum,
// the partials are folded in chunk order once all workers finished. For a fixed seed and chunk
// size the result does not depend on the number of workers.
func (p *Portfolio) Simulate(ctx context.Context, settings sm.SimulationSettings) (*SimulationResult, error) {
	if err := validateSettings(settings); err != nil {
		return nil, err
	}
	if p.numBorrowers == 0 {
		return nil, &ConfigurationError{Op: "simulate", Err: ErrEmptyPortfolio}
	}

	maxWorkers := settings.Workers
	if maxWorkers == 0 {
		maxWorkers = runtime.GOMAXPROCS(0)
	}

	jobs, nWorkers := GetNumberOfJobsAndWorkers(settings.NumTrials, settings.ChunkSize, maxWorkers)
	streams := GetChunkStreams(settings.Seed, len(jobs))

	log.WithFields(log.Fields{
		"trials":     settings.NumTrials,
		"chunkSize":  settings.ChunkSize,
		"chunks":     len(jobs),
		"workers":    nWorkers,
		"borrowers":  p.numBorrowers,
		"riskGroups": len(p.riskGroups),
		"seed":       settings.Seed,
	}).Info("starting monte carlo simulation")

	trialLosses := make([]float64, settings.NumTrials)
	partials := make([][]float64, len(jobs))

	// workers steal jobs from this channel until it is drained
	jobsChannel := make(chan job, len(jobs))
	for _, j := range jobs {
		jobsChannel <- j
	}
	close(jobsChannel)

	// a failing chunk cancels the others, there is no partial result
	g, gctx := errgroup.WithContext(ctx)

	for range nWorkers {
		g.Go(func() error {
			for j := range jobsChannel {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				partial, err := p.runChunk(streams[j.chunk], settings.Seed, trialLosses[j.start:j.end])
				if err != nil {
					log.WithError(err).Errorf("chunk %d (trials %d to %d) failed", j.chunk, j.start, j.end)
					return err
				}
				partials[j.chunk] = partial
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	borrowerLosses := make([]float64, p.numBorrowers)
	for _, partial := range partials {
		floats.Add(borrowerLosses, partial)
	}
	floats.Scale(1/float64(settings.NumTrials), borrowerLosses)

	return &SimulationResult{
		TrialLosses:    trialLosses,
		BorrowerLosses: borrowerLosses,
	}, nil
}

// runChunk runs the trials of one chunk on its own stream, writing trial totals into out
// and returning the per borrower loss sum of the chunk
func (p *Portfolio) runChunk(stream, seed uint64, out []float64) ([]float64, error) {
	wr := NewWorkerResource(p, NewChunkSource(seed, stream))

	partial := make([]float64, p.numBorrowers)
	trial := make([]float64, p.numBorrowers)

	for i := range out {
		if err := p.Trial(wr, trial); err != nil {
			return nil, err
		}
		out[i] = floats.Sum(trial)
		floats.Add(partial, trial)
	}

	return partial, nil
}
