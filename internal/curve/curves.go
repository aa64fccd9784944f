package curve

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/star/transitlight/internal/catalog"
	"github.com/star/transitlight/internal/metrics"
	"github.com/star/transitlight/internal/orbit"
)

// DefaultCurveCacheSize bounds the number of full-orbit curves kept in memory.
const DefaultCurveCacheSize = 128

// ErrUnknownSystem is returned for a name the catalog does not contain.
var ErrUnknownSystem = errors.New("unknown system")

// curveKey identifies a curve. Catalog reloads change fetchedAt, so curves
// sampled from an older catalog are never returned.
type curveKey struct {
	name      string
	stepDeg   float64
	fetchedAt int64
}

// Curves memoizes full-orbit light curves in an LRU cache.
type Curves struct {
	cache *lru.Cache[curveKey, []orbit.Sample]
}

// NewCurves creates a curve cache holding at most size curves.
func NewCurves(size int) (*Curves, error) {
	if size <= 0 {
		size = DefaultCurveCacheSize
	}
	c, err := lru.New[curveKey, []orbit.Sample](size)
	if err != nil {
		return nil, fmt.Errorf("creating curve cache: %w", err)
	}
	return &Curves{cache: c}, nil
}

// Get returns the curve of the named system in ds, sampling it on a miss.
// The returned slice is shared and must not be modified.
func (c *Curves) Get(ds *catalog.Dataset, name string, stepDeg float64) ([]orbit.Sample, error) {
	sys, ok := ds.Find(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSystem, name)
	}

	key := curveKey{name: name, stepDeg: stepDeg, fetchedAt: ds.FetchedAt.UnixNano()}
	if samples, ok := c.cache.Get(key); ok {
		metrics.RecordCurveCache(true)
		return samples, nil
	}
	metrics.RecordCurveCache(false)

	samples, err := orbit.Curve(sys, stepDeg)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, samples)
	return samples, nil
}

// Len returns the number of cached curves.
func (c *Curves) Len() int {
	return c.cache.Len()
}
