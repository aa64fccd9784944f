package curve

import (
	"context"
	"time"

	"github.com/star/transitlight/internal/metrics"
)

// Start runs the background maintenance loop. It fills the full
// [now, now+horizon] window once, then on every step samples the leading
// edge, evicts expired frames and rebuilds the window after a catalog change.
//
// Blocks until ctx is cancelled.
func (c *FrameCache) Start(ctx context.Context) {
	if !c.waitForCatalog(ctx) {
		return
	}

	c.warmup(ctx)

	ticker := time.NewTicker(c.config.Step)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("frame cache worker stopped")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// waitForCatalog blocks until the store holds a catalog, checking every
// second. Returns false if ctx is cancelled.
func (c *FrameCache) waitForCatalog(ctx context.Context) bool {
	if c.store.Get() != nil {
		return true
	}

	c.logger.Info("frame cache waiting for catalog")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if c.store.Get() != nil {
				c.logger.Info("catalog available, starting frame cache warmup")
				return true
			}
		}
	}
}

// buildWindow samples every step of [now, now+horizon] into a new entry map.
// It returns false if ctx was cancelled before the window was complete.
func (c *FrameCache) buildWindow(ctx context.Context, phase string) (map[time.Time]*entry, bool) {
	now := c.RoundToStep(time.Now())
	numFrames := int(c.config.Horizon/c.config.Step) + 1
	entries := make(map[time.Time]*entry, numFrames)

	for i := 0; i < numFrames; i++ {
		select {
		case <-ctx.Done():
			return entries, false
		default:
		}

		at := now.Add(time.Duration(i) * c.config.Step)
		f, err := c.sampler.SampleAt(ctx, at)
		if err != nil {
			c.logger.Warn(phase+" sampling failed",
				"timestamp", at.Format(time.RFC3339),
				"error", err,
			)
			metrics.IncCacheRegenerationErrors()
			continue
		}
		entries[c.RoundToStep(f.Timestamp)] = &entry{frame: f, generatedAt: time.Now()}
	}
	return entries, true
}

// warmup fills the cache with frames for [now, now+horizon].
func (c *FrameCache) warmup(ctx context.Context) {
	ds := c.store.Get()
	if ds == nil {
		return
	}
	c.builtFrom = ds.FetchedAt

	c.logger.Info("frame cache warmup starting",
		"frames", int(c.config.Horizon/c.config.Step)+1,
		"systems", len(ds.Systems),
	)

	start := time.Now()
	entries, _ := c.buildWindow(ctx, "warmup")
	if len(entries) > 0 {
		c.replaceAll(entries)
	}

	c.logger.Info("frame cache warmup complete",
		"generated", len(entries),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// tick runs one iteration of the maintenance loop.
func (c *FrameCache) tick(ctx context.Context) {
	if c.catalogChanged() {
		c.performCutover(ctx)
		return
	}
	c.generateLeadingEdge(ctx)
	c.evictExpired()
}

// generateLeadingEdge samples the frame at the leading edge of the window.
func (c *FrameCache) generateLeadingEdge(ctx context.Context) {
	target := c.RoundToStep(time.Now().Add(c.config.Horizon))

	c.mu.RLock()
	_, cached := c.entries[target]
	c.mu.RUnlock()
	if cached {
		return
	}

	start := time.Now()
	f, err := c.sampler.SampleAt(ctx, target)
	duration := time.Since(start)
	if err != nil {
		c.logger.Warn("leading edge sampling failed",
			"timestamp", target.Format(time.RFC3339),
			"error", err,
		)
		metrics.IncCacheRegenerationErrors()
		return
	}

	c.put(f)
	metrics.ObserveCacheRegenerationDuration(duration)
}

// catalogChanged reports whether the store holds a different catalog than the
// one the cache was built from.
func (c *FrameCache) catalogChanged() bool {
	ds := c.store.Get()
	if ds == nil {
		return false
	}
	return !ds.FetchedAt.Equal(c.builtFrom)
}

// performCutover rebuilds the window for the new catalog. Reads keep hitting
// the old frames until the new set is swapped in, or until the grace period
// runs out.
func (c *FrameCache) performCutover(ctx context.Context) {
	ds := c.store.Get()
	if ds == nil {
		return
	}

	c.logger.Info("catalog cutover starting",
		"old_catalog_fetched_at", c.builtFrom.UTC().Format(time.RFC3339),
		"new_catalog_fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
		"systems", len(ds.Systems),
	)

	c.graceStarted.Store(time.Now().UnixNano())
	metrics.SetCacheGracePeriodActive(true)
	defer func() {
		c.graceStarted.Store(0)
		metrics.SetCacheGracePeriodActive(false)
	}()

	start := time.Now()
	entries, complete := c.buildWindow(ctx, "cutover")
	if !complete {
		c.logger.Warn("catalog cutover cancelled by context")
		return
	}

	c.replaceAll(entries)
	c.builtFrom = ds.FetchedAt

	duration := time.Since(start)
	c.logger.Info("catalog cutover complete",
		"duration_ms", duration.Milliseconds(),
		"entries_replaced", len(entries),
	)
	metrics.ObserveCacheRegenerationDuration(duration)
}
