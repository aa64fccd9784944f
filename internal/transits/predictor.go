package transits

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/star/transitlight/internal/catalog"
	"github.com/star/transitlight/internal/metrics"
	"github.com/star/transitlight/internal/orbit"
)

// CurvePoint is the star's brightness at one instant during a transit.
type CurvePoint struct {
	Time          time.Time `json:"time" msgpack:"time"`
	Phase         float64   `json:"phase" msgpack:"phase"`
	LightFraction float64   `json:"light_fraction" msgpack:"light_fraction"`
}

// Event describes a single transit of a planet across its star.
type Event struct {
	Ingress          time.Time    `json:"ingress" msgpack:"ingress"`
	Mid              time.Time    `json:"mid" msgpack:"mid"`
	MidJD            float64      `json:"mid_jd" msgpack:"mid_jd"`
	Egress           time.Time    `json:"egress" msgpack:"egress"`
	DurationSeconds  float64      `json:"duration_seconds" msgpack:"duration_seconds"`
	MinLightFraction float64      `json:"min_light_fraction" msgpack:"min_light_fraction"`
	Depth            float64      `json:"depth" msgpack:"depth"`
	Curve            []CurvePoint `json:"curve" msgpack:"curve"`
}

// SystemTransits holds the predicted transits for one system.
type SystemTransits struct {
	Name     string  `json:"name" msgpack:"name"`
	Transits []Event `json:"transits" msgpack:"transits"`
	Error    string  `json:"error,omitempty" msgpack:"error,omitempty"`
}

// Request holds the parameters for a transit prediction request.
type Request struct {
	Systems     []catalog.System
	Start       time.Time
	Horizon     time.Duration
	MinDepth    float64 // transits shallower than this are dropped
	MaxTransits int
}

const (
	fineStepsPerCoarse = 100
	fineStepsPerPoint  = 100
	minFineStep        = time.Millisecond
)

// Predict computes transits for every system in the request.
// Each system is processed in its own goroutine, bounded by a semaphore.
func Predict(ctx context.Context, req Request) []SystemTransits {
	start := time.Now()
	defer func() { metrics.RecordTransitPrediction(time.Since(start)) }()

	results := make([]SystemTransits, len(req.Systems))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, sys := range req.Systems {
		wg.Add(1)
		go func(idx int, s catalog.System) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = SystemTransits{Name: s.Name, Error: "cancelled"}
				return
			}

			events, err := predictSystem(ctx, req, s)
			if err != nil {
				results[idx] = SystemTransits{Name: s.Name, Error: err.Error()}
				return
			}
			results[idx] = SystemTransits{Name: s.Name, Transits: events}
		}(i, sys)
	}

	wg.Wait()
	return results
}

// scanSteps picks a coarse step short enough that no transit fits between two
// samples, and a fine step for locating contact times.
func scanSteps(sys catalog.System) (coarse, fine time.Duration) {
	coarse = sys.Period / 360
	reach := sys.Star.Radius() + sys.PlanetDiameter/2
	if sys.OrbitRadius > reach {
		arcDeg := 2 * math.Asin(reach/sys.OrbitRadius) * 180 / math.Pi
		if c := time.Duration(float64(sys.Period) * arcDeg / 360 / 4); c < coarse {
			coarse = c
		}
	}
	fine = coarse / fineStepsPerCoarse
	if fine < minFineStep {
		fine = minFineStep
	}
	if coarse < fine {
		coarse = fine
	}
	return coarse, fine
}

// ScanSamples returns how many coarse samples a prediction over horizon
// takes for sys. Callers use it to bound work before calling Predict.
func ScanSamples(sys catalog.System, horizon time.Duration) int {
	if horizon <= 0 {
		return 0
	}
	coarse, _ := scanSteps(sys)
	return int(math.Ceil(float64(horizon) / float64(coarse)))
}

// predictSystem finds all transits for a single system.
func predictSystem(ctx context.Context, req Request, sys catalog.System) ([]Event, error) {
	if err := sys.Validate(); err != nil {
		return nil, err
	}

	coarse, fine := scanSteps(sys)
	end := req.Start.Add(req.Horizon)
	var events []Event

	// Coarse scan: step through the window looking for any overlap in front.
	t := req.Start
	for t.Before(end) && len(events) < req.MaxTransits {
		if ctx.Err() != nil {
			return events, nil
		}

		_, in, err := transitAt(sys, t)
		if err != nil {
			return events, fmt.Errorf("sampling at %s: %w", t.Format(time.RFC3339), err)
		}

		if !in {
			t = t.Add(coarse)
			continue
		}

		ev, windowEnd := refine(ctx, sys, t, req.Start, end, coarse, fine)
		if ev != nil && ev.Depth >= req.MinDepth {
			events = append(events, *ev)
		}
		t = windowEnd.Add(coarse)
	}

	return events, nil
}

// refine scans at the fine step around a coarse hit. It backs up to find
// ingress, then scans forward to egress. Returns the event and the time the
// scan stopped.
func refine(ctx context.Context, sys catalog.System, coarseHit, windowStart, windowEnd time.Time, coarse, fine time.Duration) (*Event, time.Time) {
	searchStart := coarseHit.Add(-coarse)
	if searchStart.Before(windowStart) {
		searchStart = windowStart
	}

	var (
		ingress, egress, mid time.Time
		minLight             = 1.0
		minDist              = math.Inf(1)
		wasIn, foundIngress  bool
		curve                []CurvePoint
		steps                int
	)

	t := searchStart
	for t.Before(windowEnd) {
		if ctx.Err() != nil {
			break
		}

		s, in, err := transitAt(sys, t)
		if err != nil {
			break
		}

		if in && !wasIn {
			ingress = t
			foundIngress = true
			steps = 0
		}

		if in && foundIngress {
			if s.LightFraction < minLight {
				minLight = s.LightFraction
			}
			if d := math.Abs(s.Planet.CenterX - sys.Star.CenterX); d < minDist {
				minDist = d
				mid = t
			}
			if steps%fineStepsPerPoint == 0 {
				curve = append(curve, CurvePoint{Time: t, Phase: s.Phase, LightFraction: s.LightFraction})
			}
			steps++
		}

		if !in && wasIn && foundIngress {
			egress = t
			curve = append(curve, CurvePoint{Time: t, Phase: s.Phase, LightFraction: s.LightFraction})
			break
		}

		wasIn = in
		t = t.Add(fine)
	}

	// Still in transit when the window closed: end the event there.
	if foundIngress && egress.IsZero() && wasIn {
		egress = t
	}

	if !foundIngress || egress.IsZero() {
		return nil, t
	}

	return &Event{
		Ingress:          ingress,
		Mid:              mid,
		MidJD:            orbit.JulianDate(mid),
		Egress:           egress,
		DurationSeconds:  egress.Sub(ingress).Seconds(),
		MinLightFraction: minLight,
		Depth:            1 - minLight,
		Curve:            curve,
	}, egress
}

// transitAt reports whether the planet blocks any of the star at t.
func transitAt(sys catalog.System, t time.Time) (orbit.Sample, bool, error) {
	s, err := orbit.SampleSystemAt(sys, t)
	if err != nil {
		return orbit.Sample{}, false, err
	}
	return s, !s.Behind && s.OverlapArea > 0, nil
}
