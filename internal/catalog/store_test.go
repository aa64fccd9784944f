package catalog

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestStoreReplace(t *testing.T) {
	store := NewStore()
	if store.Get() != nil || store.Generation() != 0 {
		t.Fatal("new store should be empty at generation 0")
	}

	first := Default()
	ds, err := store.Replace(func(current *Dataset) (*Dataset, error) {
		if current != nil {
			t.Errorf("current = %v, want nil on first replace", current)
		}
		return first, nil
	})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if ds != first || store.Get() != first || store.Generation() != 1 {
		t.Fatalf("after Replace: get=%p gen=%d", store.Get(), store.Generation())
	}

	fetchErr := errors.New("upstream down")
	if _, err := store.Replace(func(*Dataset) (*Dataset, error) { return nil, fetchErr }); !errors.Is(err, fetchErr) {
		t.Errorf("Replace error = %v, want %v", err, fetchErr)
	}
	if _, err := store.Replace(func(*Dataset) (*Dataset, error) { return &Dataset{Source: "empty"}, nil }); !errors.Is(err, ErrEmptyCatalog) {
		t.Errorf("Replace error = %v, want ErrEmptyCatalog", err)
	}
	if store.Get() != first || store.Generation() != 1 {
		t.Error("failed replaces must keep the current dataset")
	}
}

func TestStoreReplaceSerialized(t *testing.T) {
	store := NewStore()
	store.Set(Default())

	const n = 20
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		inside int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Replace(func(current *Dataset) (*Dataset, error) {
				mu.Lock()
				inside++
				if inside > 1 {
					t.Error("Replace loads overlapped")
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)
				next := &Dataset{Source: "test", FetchedAt: time.Now(), Systems: current.Systems}

				mu.Lock()
				inside--
				mu.Unlock()
				return next, nil
			})
		}()
	}
	wg.Wait()

	if got := store.Generation(); got != n+1 {
		t.Errorf("Generation = %d, want %d", got, n+1)
	}
}

func TestStoreFindAndAge(t *testing.T) {
	store := NewStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, ok := store.Find(DefaultSystemName); ok {
		t.Error("Find on empty store should fail")
	}
	if _, ok := store.Age(now); ok {
		t.Error("Age on empty store should report !ok")
	}
	if !store.Stale(now, time.Hour) {
		t.Error("empty store should be stale")
	}

	ds := Default()
	ds.FetchedAt = now.Add(-30 * time.Minute)
	store.Set(ds)

	if sys, ok := store.Find(DefaultSystemName); !ok || sys.Name != DefaultSystemName {
		t.Errorf("Find(%q) = %v, %v", DefaultSystemName, sys, ok)
	}
	if age, ok := store.Age(now); !ok || age != 30*time.Minute {
		t.Errorf("Age = %v, %v; want 30m", age, ok)
	}
	if store.Stale(now, time.Hour) {
		t.Error("30m-old catalog should not be stale at 1h")
	}
	if !store.Stale(now, 30*time.Minute) {
		t.Error("catalog should be stale once age reaches maxAge")
	}
}
