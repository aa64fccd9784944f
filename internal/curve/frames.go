// Package curve keeps sampled light curves ready for readers.
//
// FrameCache holds frames for [now, now+horizon] continuously. A background
// worker samples new frames at the leading edge and evicts expired ones from
// the trailing edge. When the catalog changes, the window is rebuilt while
// the old frames keep serving reads for up to the grace period.
package curve

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/star/transitlight/internal/catalog"
	"github.com/star/transitlight/internal/metrics"
	"github.com/star/transitlight/internal/orbit"
)

// Config holds cache configuration loaded from environment variables.
type Config struct {
	Step        time.Duration // Frame interval (default: sampler step)
	Horizon     time.Duration // How far ahead to cache (default: sampler horizon)
	GracePeriod time.Duration // Longest time stale frames are served after a catalog change (default: 30s)
	Buffer      time.Duration // Keep frames this long past their time (default: 60s)
}

type entry struct {
	frame       *orbit.Frame
	generatedAt time.Time
}

// FrameCache is an in-memory cache of frames with a rolling window.
// Safe for concurrent use by multiple goroutines.
type FrameCache struct {
	mu      sync.RWMutex
	entries map[time.Time]*entry

	config  Config
	sampler *orbit.Sampler
	store   *catalog.Store
	logger  *slog.Logger

	// FetchedAt of the catalog the current entries were sampled from.
	builtFrom time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	// Unix nanoseconds at which the current grace period began; 0 when none.
	graceStarted atomic.Int64
}

// NewFrameCache creates a new frame cache.
func NewFrameCache(config Config, sampler *orbit.Sampler, store *catalog.Store, logger *slog.Logger) *FrameCache {
	logger.Info("frame cache initialized",
		"step_seconds", config.Step.Seconds(),
		"horizon_seconds", config.Horizon.Seconds(),
		"buffer_seconds", config.Buffer.Seconds(),
		"grace_period_seconds", config.GracePeriod.Seconds(),
	)

	return &FrameCache{
		entries: make(map[time.Time]*entry),
		config:  config,
		sampler: sampler,
		store:   store,
		logger:  logger,
	}
}

// RoundToStep rounds a timestamp down to the nearest step boundary, in UTC.
func (c *FrameCache) RoundToStep(t time.Time) time.Time {
	return t.UTC().Truncate(c.config.Step)
}

// Step returns the frame interval.
func (c *FrameCache) Step() time.Duration {
	return c.config.Step
}

// Get returns the frame for the given timestamp, or nil if not cached.
func (c *FrameCache) Get(t time.Time) *orbit.Frame {
	if c.graceExpired() {
		c.miss()
		return nil
	}

	key := c.RoundToStep(t)
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.miss()
		return nil
	}
	c.hit()
	return e.frame
}

// GetLatest returns the frame closest to (but not after) the current time.
func (c *FrameCache) GetLatest() *orbit.Frame {
	if c.graceExpired() {
		c.miss()
		return nil
	}

	now := c.RoundToStep(time.Now())

	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := 0; i < 10; i++ {
		if e, ok := c.entries[now.Add(-time.Duration(i)*c.config.Step)]; ok {
			c.hit()
			return e.frame
		}
	}
	c.miss()
	return nil
}

func (c *FrameCache) hit() {
	c.hits.Add(1)
	metrics.IncCacheHits()
}

func (c *FrameCache) miss() {
	c.misses.Add(1)
	metrics.IncCacheMisses()
}

// graceExpired reports whether a rebuild has outlasted the grace period, in
// which case the stale frames must no longer be served.
func (c *FrameCache) graceExpired() bool {
	started := c.graceStarted.Load()
	if started == 0 || c.config.GracePeriod <= 0 {
		return false
	}
	return time.Since(time.Unix(0, started)) > c.config.GracePeriod
}

// InGracePeriod reports whether a catalog rebuild is in progress.
func (c *FrameCache) InGracePeriod() bool {
	return c.graceStarted.Load() != 0
}

// put stores a frame in the cache. Caller must not hold mu.
func (c *FrameCache) put(f *orbit.Frame) {
	key := c.RoundToStep(f.Timestamp)

	c.mu.Lock()
	c.entries[key] = &entry{frame: f, generatedAt: time.Now()}
	c.mu.Unlock()

	c.updateMetrics()
}

// evictExpired removes frames older than now - buffer.
func (c *FrameCache) evictExpired() int {
	cutoff := time.Now().Add(-c.config.Buffer)
	var removed int

	c.mu.Lock()
	for ts := range c.entries {
		if ts.Before(cutoff) {
			delete(c.entries, ts)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.AddCacheEvictions(removed)
		c.updateMetrics()
		c.logger.Debug("frame cache eviction", "entries_removed", removed)
	}
	return removed
}

// replaceAll swaps in a freshly built set of frames.
func (c *FrameCache) replaceAll(entries map[time.Time]*entry) {
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	c.updateMetrics()
}

// Stats holds cache statistics for the stats endpoint.
type Stats struct {
	Entries         int       `json:"entries"`
	SizeBytes       int64     `json:"size_bytes"`
	OldestTimestamp time.Time `json:"oldest_timestamp"`
	NewestTimestamp time.Time `json:"newest_timestamp"`
	Hits            int64     `json:"hits"`
	Misses          int64     `json:"misses"`
	Evictions       int64     `json:"evictions"`
	InGracePeriod   bool      `json:"in_grace_period"`
}

// Stats returns current cache statistics.
func (c *FrameCache) Stats() Stats {
	c.mu.RLock()
	count := len(c.entries)
	var oldest, newest time.Time
	for ts := range c.entries {
		if oldest.IsZero() || ts.Before(oldest) {
			oldest = ts
		}
		if newest.IsZero() || ts.After(newest) {
			newest = ts
		}
	}
	c.mu.RUnlock()

	return Stats{
		Entries:         count,
		SizeBytes:       c.estimateSizeBytes(),
		OldestTimestamp: oldest,
		NewestTimestamp: newest,
		Hits:            c.hits.Load(),
		Misses:          c.misses.Load(),
		Evictions:       c.evictions.Load(),
		InGracePeriod:   c.InGracePeriod(),
	}
}

// estimateSizeBytes returns a rough estimate of the cache memory footprint.
func (c *FrameCache) estimateSizeBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sampleSize := int64(unsafe.Sizeof(orbit.Sample{}))
	var total int64
	for _, e := range c.entries {
		if e.frame == nil {
			continue
		}
		for _, s := range e.frame.Samples {
			total += sampleSize + int64(len(s.Name))
		}
		// Frame: Timestamp(24) + slice header(24); entry: pointer(8) + generatedAt(24).
		total += 48 + 32
	}
	// Map overhead, roughly 8 bytes per bucket.
	total += int64(len(c.entries)) * 8
	return total
}

// updateMetrics publishes current cache size to Prometheus.
func (c *FrameCache) updateMetrics() {
	c.mu.RLock()
	count := len(c.entries)
	c.mu.RUnlock()

	metrics.SetCacheEntries(count)
	metrics.SetCacheSizeBytes(c.estimateSizeBytes())
}
