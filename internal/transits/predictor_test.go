package transits

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/star/transitlight/internal/catalog"
)

// The demo planet touches the star's limb when its center is 85 units from the
// star's center, i.e. 26.575 degrees either side of mid-transit.
var (
	demo        = catalog.Default().Systems[0]
	contactDeg  = math.Asin(85.0/190.0) * 180 / math.Pi
	ingressSec  = 90 - contactDeg
	egressSec   = 90 + contactDeg
	demoDepth   = 100.0 / 5625.0
	secondsTol  = 0.02
	fractionTol = 1e-9
)

func secondsSinceEpoch(t time.Time) float64 {
	return t.Sub(demo.Epoch).Seconds()
}

func TestPredictDemo(t *testing.T) {
	req := Request{
		Systems:     []catalog.System{demo},
		Start:       demo.Epoch,
		Horizon:     2 * demo.Period,
		MaxTransits: 10,
	}

	results := Predict(context.Background(), req)
	if len(results) != 1 {
		t.Fatalf("expected 1 system result, got %d", len(results))
	}

	sys := results[0]
	if sys.Name != catalog.DefaultSystemName {
		t.Errorf("name = %q, want %q", sys.Name, catalog.DefaultSystemName)
	}
	if sys.Error != "" {
		t.Fatalf("unexpected error: %s", sys.Error)
	}
	if len(sys.Transits) != 2 {
		t.Fatalf("got %d transits over two orbits, want 2", len(sys.Transits))
	}

	for i, ev := range sys.Transits {
		orbitStart := float64(i) * demo.Period.Seconds()

		if got := secondsSinceEpoch(ev.Ingress) - orbitStart; math.Abs(got-ingressSec) > secondsTol {
			t.Errorf("transit %d: ingress at %.3fs, want %.3fs", i, got, ingressSec)
		}
		if got := secondsSinceEpoch(ev.Egress) - orbitStart; math.Abs(got-egressSec) > secondsTol {
			t.Errorf("transit %d: egress at %.3fs, want %.3fs", i, got, egressSec)
		}
		if got := secondsSinceEpoch(ev.Mid) - orbitStart; math.Abs(got-90) > secondsTol {
			t.Errorf("transit %d: mid at %.3fs, want 90s", i, got)
		}
		if want := 2440587.5 + float64(ev.Mid.UnixNano())/86400e9; math.Abs(ev.MidJD-want) > 1e-8 {
			t.Errorf("transit %d: mid JD %.8f, want %.8f", i, ev.MidJD, want)
		}
		if !ev.Ingress.Before(ev.Mid) || !ev.Mid.Before(ev.Egress) {
			t.Errorf("transit %d: time ordering violated: %v %v %v", i, ev.Ingress, ev.Mid, ev.Egress)
		}
		if math.Abs(ev.DurationSeconds-2*contactDeg) > 2*secondsTol {
			t.Errorf("transit %d: duration %.3fs, want %.3fs", i, ev.DurationSeconds, 2*contactDeg)
		}
		if math.Abs(ev.Depth-demoDepth) > fractionTol {
			t.Errorf("transit %d: depth %v, want %v", i, ev.Depth, demoDepth)
		}
		if math.Abs(ev.MinLightFraction+ev.Depth-1) > fractionTol {
			t.Errorf("transit %d: min light %v and depth %v do not sum to 1", i, ev.MinLightFraction, ev.Depth)
		}

		if len(ev.Curve) < 2 {
			t.Fatalf("transit %d: expected curve points, got %d", i, len(ev.Curve))
		}
		if !ev.Curve[0].Time.Equal(ev.Ingress) {
			t.Errorf("transit %d: first curve point %v, want ingress %v", i, ev.Curve[0].Time, ev.Ingress)
		}
		if last := ev.Curve[len(ev.Curve)-1]; !last.Time.Equal(ev.Egress) || last.LightFraction != 1 {
			t.Errorf("transit %d: last curve point %+v, want full light at egress", i, last)
		}
		for j, p := range ev.Curve {
			if p.LightFraction < ev.MinLightFraction || p.LightFraction > 1 {
				t.Errorf("transit %d point %d: light %v out of range", i, j, p.LightFraction)
			}
		}
	}
}

func TestPredictMaxTransits(t *testing.T) {
	req := Request{
		Systems:     []catalog.System{demo},
		Start:       demo.Epoch,
		Horizon:     10 * demo.Period,
		MaxTransits: 3,
	}
	results := Predict(context.Background(), req)
	if got := len(results[0].Transits); got != 3 {
		t.Errorf("got %d transits, want 3", got)
	}
}

func TestPredictMinDepth(t *testing.T) {
	req := Request{
		Systems:     []catalog.System{demo},
		Start:       demo.Epoch,
		Horizon:     demo.Period,
		MinDepth:    0.5,
		MaxTransits: 10,
	}
	results := Predict(context.Background(), req)
	if got := len(results[0].Transits); got != 0 {
		t.Errorf("got %d transits deeper than 0.5, want 0", got)
	}
}

func TestPredictClipsToWindow(t *testing.T) {
	// Start mid-transit and stop before egress.
	start := demo.Epoch.Add(90 * time.Second)
	req := Request{
		Systems:     []catalog.System{demo},
		Start:       start,
		Horizon:     10 * time.Second,
		MaxTransits: 10,
	}

	results := Predict(context.Background(), req)
	if len(results[0].Transits) != 1 {
		t.Fatalf("got %d transits, want 1", len(results[0].Transits))
	}
	ev := results[0].Transits[0]
	if !ev.Ingress.Equal(start) {
		t.Errorf("ingress = %v, want window start %v", ev.Ingress, start)
	}
	if !ev.Egress.Equal(start.Add(10 * time.Second)) {
		t.Errorf("egress = %v, want window end", ev.Egress)
	}
}

func TestPredictInvalidSystem(t *testing.T) {
	bad := demo
	bad.Name = "BAD"
	bad.Star.Diameter = 0

	results := Predict(context.Background(), Request{
		Systems:     []catalog.System{demo, bad},
		Start:       demo.Epoch,
		Horizon:     demo.Period,
		MaxTransits: 10,
	})
	if results[0].Error != "" || len(results[0].Transits) != 1 {
		t.Errorf("good system: %+v", results[0])
	}
	if results[1].Name != "BAD" || results[1].Error == "" {
		t.Errorf("bad system should report an error, got %+v", results[1])
	}
}

func TestPredictCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := Predict(ctx, Request{
		Systems:     []catalog.System{demo, demo, demo},
		Start:       demo.Epoch,
		Horizon:     100 * demo.Period,
		MaxTransits: 100,
	})
	for i, r := range results {
		if r.Error != "cancelled" && len(r.Transits) != 0 {
			t.Errorf("result %d: expected no work after cancellation, got %+v", i, r)
		}
	}
}

func TestScanSamples(t *testing.T) {
	if got := ScanSamples(demo, 7*24*time.Hour); got != 604800 {
		t.Errorf("demo week = %d samples, want 604800", got)
	}
	if got := ScanSamples(demo, 0); got != 0 {
		t.Errorf("zero horizon = %d samples, want 0", got)
	}

	fast := demo
	fast.Period = 500 * time.Millisecond
	if got := ScanSamples(fast, 7*24*time.Hour); got < 100_000_000 {
		t.Errorf("sub-second period week = %d samples, want at least 1e8", got)
	}
}

func TestScanSteps(t *testing.T) {
	coarse, fine := scanSteps(demo)
	if coarse != time.Second || fine != 10*time.Millisecond {
		t.Errorf("demo steps = %v/%v, want 1s/10ms", coarse, fine)
	}

	// A distant planet crosses the star in well under a degree of phase.
	far := demo
	far.OrbitRadius = 100000
	coarse, _ = scanSteps(far)
	arc := time.Duration(float64(far.Period) * 2 * math.Asin(85.0/100000) / (2 * math.Pi))
	if coarse > arc/4+time.Microsecond {
		t.Errorf("coarse step %v too long for a %v transit", coarse, arc)
	}
}
