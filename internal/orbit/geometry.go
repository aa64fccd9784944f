package orbit

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/star/transitlight/internal/catalog"
	"github.com/star/transitlight/internal/metrics"
	"github.com/star/transitlight/internal/occlusion"
)

const secondsPerDay = 86400.0

// PhaseAt returns the orbital phase of sys at t in degrees, in [0, 360).
// Phase 0 puts the planet at its left extreme; 90 is mid-transit.
func PhaseAt(sys catalog.System, t time.Time) float64 {
	elapsed := elapsedSeconds(sys.Epoch, t)
	return normalizeDegrees(elapsed / sys.Period.Seconds() * 360)
}

// elapsedSeconds returns to - from in seconds. Unlike time.Sub it does not
// saturate for epochs more than about 292 years away.
func elapsedSeconds(from, to time.Time) float64 {
	return float64(to.Unix()-from.Unix()) + float64(to.Nanosecond()-from.Nanosecond())/1e9
}

// JulianDate returns the Julian date of t, as transit ephemerides are quoted.
// The underlying algorithm is valid for 1900 through 2100.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	whole := satellite.JDay(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	return whole + float64(t.Nanosecond())/1e9/secondsPerDay
}

func normalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// PlanetAt returns the planet disc of sys at the given phase. The orbit is
// seen edge-on, so the planet only moves along the star's horizontal axis.
func PlanetAt(sys catalog.System, phaseDeg float64) occlusion.Disc {
	rad := (phaseDeg - 90) * math.Pi / 180
	return occlusion.Disc{
		CenterX:  sys.OrbitRadius*math.Sin(rad) + sys.Star.CenterX,
		CenterY:  sys.Star.CenterY,
		Diameter: sys.PlanetDiameter,
	}
}

// BehindStar reports whether the planet is on the far side of the star.
func BehindStar(phaseDeg float64) bool {
	return phaseDeg > 180
}

// SampleSystem evaluates sys at the given phase.
func SampleSystem(sys catalog.System, phaseDeg float64) (Sample, error) {
	planet := PlanetAt(sys, phaseDeg)
	behind := BehindStar(phaseDeg)

	res, err := occlusion.Evaluate(sys.Star, planet, behind)
	if err != nil {
		metrics.RecordOcclusion("invalid")
		return Sample{}, fmt.Errorf("system %q at phase %.3f: %w", sys.Name, phaseDeg, err)
	}
	if behind {
		metrics.RecordOcclusion("behind")
	} else {
		metrics.RecordOcclusion(res.Case.String())
	}

	return Sample{
		Name:          sys.Name,
		Phase:         phaseDeg,
		Planet:        planet,
		Behind:        behind,
		OverlapArea:   res.OverlapArea,
		LightFraction: res.LightFraction,
	}, nil
}

// SampleSystemAt evaluates sys at time t.
func SampleSystemAt(sys catalog.System, t time.Time) (Sample, error) {
	return SampleSystem(sys, PhaseAt(sys, t))
}

// Curve samples one full orbit of sys every stepDeg degrees, starting at
// phase 0.
func Curve(sys catalog.System, stepDeg float64) ([]Sample, error) {
	if !(stepDeg > 0) || math.IsInf(stepDeg, 0) {
		return nil, fmt.Errorf("curve step %v must be a positive number of degrees", stepDeg)
	}
	n := int(math.Ceil(360 / stepDeg))
	samples := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		phase := float64(i) * stepDeg
		if phase >= 360 {
			break
		}
		s, err := SampleSystem(sys, phase)
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, nil
}
