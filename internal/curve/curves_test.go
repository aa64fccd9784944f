package curve

import (
	"errors"
	"testing"
	"time"

	"github.com/star/transitlight/internal/catalog"
)

func TestCurvesMemoize(t *testing.T) {
	c, err := NewCurves(2)
	if err != nil {
		t.Fatalf("NewCurves: %v", err)
	}
	ds := catalog.Default()

	first, err := c.Get(ds, catalog.DefaultSystemName, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(first) != 360 {
		t.Fatalf("got %d samples, want 360", len(first))
	}

	second, err := c.Get(ds, catalog.DefaultSystemName, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if &first[0] != &second[0] {
		t.Error("second lookup should return the cached slice")
	}

	// A reloaded catalog never sees curves of the old one.
	reloaded := catalog.Default()
	reloaded.FetchedAt = time.Now()
	third, err := c.Get(reloaded, catalog.DefaultSystemName, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if &third[0] == &first[0] {
		t.Error("curve from a previous catalog was reused")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}

	// Capacity is 2: a third key evicts the oldest.
	if _, err := c.Get(ds, catalog.DefaultSystemName, 10); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d after eviction, want 2", c.Len())
	}
}

func TestCurvesErrors(t *testing.T) {
	c, err := NewCurves(0)
	if err != nil {
		t.Fatalf("NewCurves: %v", err)
	}
	ds := catalog.Default()

	if _, err := c.Get(ds, "NOPE", 1); !errors.Is(err, ErrUnknownSystem) {
		t.Errorf("expected ErrUnknownSystem, got %v", err)
	}
	if _, err := c.Get(ds, catalog.DefaultSystemName, 0); err == nil {
		t.Error("expected error for zero step")
	}
	if c.Len() != 0 {
		t.Errorf("failed lookups should not be cached, Len = %d", c.Len())
	}
}
