package orbit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/star/transitlight/internal/catalog"
	"github.com/star/transitlight/internal/metrics"
	"github.com/star/transitlight/internal/tracing"
)

// Sampler produces frames for the catalog currently held in a store.
type Sampler struct {
	store  *catalog.Store
	pool   *WorkerPool
	config Config
	logger *slog.Logger
	tracer trace.Tracer
}

// NewSampler creates a new sampling orchestrator.
func NewSampler(store *catalog.Store, config Config, logger *slog.Logger) *Sampler {
	metrics.SetSamplingWorkersActive(config.Workers)
	return &Sampler{
		store:  store,
		pool:   NewWorkerPool(config.Workers, logger),
		config: config,
		logger: logger,
		tracer: tracing.Tracer("github.com/star/transitlight/internal/orbit"),
	}
}

// Config returns the sampler configuration.
func (s *Sampler) Config() Config {
	return s.config
}

// SampleAt generates a single frame at the given time.
func (s *Sampler) SampleAt(ctx context.Context, at time.Time) (*Frame, error) {
	ds := s.store.Get()
	if ds == nil {
		return nil, ErrNoCatalog
	}

	ctx, span := s.tracer.Start(ctx, "orbit.SampleAt",
		trace.WithAttributes(attribute.Int("systems", len(ds.Systems))))
	defer span.End()

	start := time.Now()
	samples, successCount, errorCount := s.pool.SampleBatch(ctx, ds.Systems, at)
	duration := time.Since(start)

	metrics.RecordSampling(duration, successCount, errorCount)
	span.SetAttributes(attribute.Int("success", successCount), attribute.Int("errors", errorCount))

	s.logger.Debug("sampling complete",
		"target_time", at.UTC().Format(time.RFC3339Nano),
		"success", successCount,
		"errors", errorCount,
		"duration_us", duration.Microseconds(),
	)

	return &Frame{Timestamp: at, Samples: samples}, nil
}

// GenerateFrames generates frames from start over the configured horizon at
// the configured step.
func (s *Sampler) GenerateFrames(ctx context.Context, start time.Time) ([]*Frame, error) {
	if s.store.Get() == nil {
		return nil, ErrNoCatalog
	}
	if s.config.Step <= 0 {
		return nil, fmt.Errorf("frame step %v must be positive", s.config.Step)
	}

	ctx, span := s.tracer.Start(ctx, "orbit.GenerateFrames")
	defer span.End()

	numFrames := int(s.config.Horizon/s.config.Step) + 1
	frames := make([]*Frame, 0, numFrames)

	for i := 0; i < numFrames; i++ {
		select {
		case <-ctx.Done():
			return frames, ctx.Err()
		default:
		}

		at := start.Add(time.Duration(i) * s.config.Step)
		f, err := s.SampleAt(ctx, at)
		if err != nil {
			return frames, fmt.Errorf("frame %d at %s: %w", i, at.Format(time.RFC3339), err)
		}
		frames = append(frames, f)
	}

	span.SetAttributes(attribute.Int("frames", len(frames)))
	return frames, nil
}
