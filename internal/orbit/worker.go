package orbit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/star/transitlight/internal/catalog"
)

// sampleJob is a unit of work for the worker pool.
type sampleJob struct {
	index  int
	system catalog.System
	at     time.Time
}

// sampleResult is the output of a single system evaluation.
type sampleResult struct {
	index  int
	sample Sample
	err    error
}

// WorkerPool manages a fixed number of goroutines for parallel sampling.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// SampleBatch evaluates every system at t. Samples come back in catalog
// order; systems that fail are logged and skipped.
func (wp *WorkerPool) SampleBatch(ctx context.Context, systems []catalog.System, t time.Time) ([]Sample, int, int) {
	if len(systems) == 0 || ctx.Err() != nil {
		return nil, 0, 0
	}

	jobs := make(chan sampleJob, wp.workers*2)
	results := make(chan sampleResult, wp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				s, err := SampleSystemAt(job.system, job.at)
				select {
				case results <- sampleResult{index: job.index, sample: s, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, sys := range systems {
			select {
			case jobs <- sampleJob{index: i, system: sys, at: t}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	slots := make([]*Sample, len(systems))
	var successCount, errorCount int
	for result := range results {
		if result.err != nil {
			errorCount++
			wp.logger.Warn("sampling failed",
				"system", systems[result.index].Name,
				"error", result.err,
			)
			continue
		}
		successCount++
		s := result.sample
		slots[result.index] = &s
	}

	samples := make([]Sample, 0, successCount)
	for _, s := range slots {
		if s != nil {
			samples = append(samples, *s)
		}
	}
	return samples, successCount, errorCount
}
