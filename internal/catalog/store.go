package catalog

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrEmptyCatalog is returned by Replace when a load yields no systems.
var ErrEmptyCatalog = errors.New("catalog has no systems")

// Store holds the catalog currently being served. Readers see immutable
// snapshots; replacements are serialized through Replace.
type Store struct {
	current    atomic.Pointer[Dataset]
	generation atomic.Uint64
	replaceMu  sync.Mutex
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current dataset, or nil if none has been loaded.
func (s *Store) Get() *Dataset {
	return s.current.Load()
}

// Set installs ds unconditionally. Used for the initial catalog and tests.
func (s *Store) Set(ds *Dataset) {
	s.current.Store(ds)
	s.generation.Add(1)
}

// Generation counts installed datasets. It starts at 0 and changes on every
// Set or successful Replace.
func (s *Store) Generation() uint64 {
	return s.generation.Load()
}

// Replace runs load while holding the replace lock and installs its result.
// The current dataset stays in place when load fails or returns no systems.
// Concurrent callers run one at a time, each seeing the previous result.
func (s *Store) Replace(load func(current *Dataset) (*Dataset, error)) (*Dataset, error) {
	s.replaceMu.Lock()
	defer s.replaceMu.Unlock()

	ds, err := load(s.current.Load())
	if err != nil {
		return nil, err
	}
	if ds == nil || len(ds.Systems) == 0 {
		return nil, ErrEmptyCatalog
	}
	s.Set(ds)
	return ds, nil
}

// Find looks a system up in the current dataset.
func (s *Store) Find(name string) (System, bool) {
	return s.current.Load().Find(name)
}

// Age returns how long ago the current dataset was fetched. ok is false when
// no dataset is loaded.
func (s *Store) Age(now time.Time) (age time.Duration, ok bool) {
	ds := s.current.Load()
	if ds == nil {
		return 0, false
	}
	return now.Sub(ds.FetchedAt), true
}

// Stale reports whether the catalog is missing or at least maxAge old.
func (s *Store) Stale(now time.Time, maxAge time.Duration) bool {
	age, ok := s.Age(now)
	return !ok || age >= maxAge
}
