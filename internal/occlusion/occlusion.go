// Package occlusion computes how much of a star's disc a planet's disc covers
// and the fraction of the star's light that still reaches the observer.
//
// Both discs are projected onto the same plane. All angles are radians; the
// functions here are pure and safe for concurrent use.
package occlusion

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// ErrInvalidGeometry is returned when a disc has a non-positive diameter,
// a non-finite coordinate, or an area that does not fit in a float64.
var ErrInvalidGeometry = errors.New("invalid geometry")

// Disc is a circle given by its center and diameter.
type Disc struct {
	CenterX  float64 `json:"x" msgpack:"x"`
	CenterY  float64 `json:"y" msgpack:"y"`
	Diameter float64 `json:"d" msgpack:"d"`
}

// Radius returns half the diameter.
func (d Disc) Radius() float64 {
	return d.Diameter / 2
}

// Area returns the area of the disc.
func (d Disc) Area() float64 {
	r := d.Radius()
	return math.Pi * r * r
}

// DistanceTo returns the distance between the two disc centers.
func (d Disc) DistanceTo(other Disc) float64 {
	return math.Hypot(d.CenterX-other.CenterX, d.CenterY-other.CenterY)
}

// Validate reports ErrInvalidGeometry for a non-positive diameter,
// non-finite values, or a diameter whose area overflows to +Inf or
// underflows to zero (roughly outside [2e-162, 1.5e154]).
func (d Disc) Validate() error {
	if math.IsNaN(d.Diameter) || math.IsInf(d.Diameter, 0) || d.Diameter <= 0 {
		return fmt.Errorf("%w: diameter %v must be positive", ErrInvalidGeometry, d.Diameter)
	}
	if a := d.Area(); math.IsInf(a, 0) || a <= 0 {
		return fmt.Errorf("%w: diameter %v has no representable area", ErrInvalidGeometry, d.Diameter)
	}
	if !finite(d.CenterX) || !finite(d.CenterY) {
		return fmt.Errorf("%w: center (%v, %v) must be finite", ErrInvalidGeometry, d.CenterX, d.CenterY)
	}
	return nil
}

// Case identifies which branch of the overlap computation applied.
type Case int

const (
	// Apart: the discs do not overlap (they may touch at one point).
	Apart Case = iota
	// Contained: the smaller disc lies entirely inside the larger one.
	Contained
	// Partial: the discs intersect in a lens.
	Partial
)

func (c Case) String() string {
	switch c {
	case Apart:
		return "apart"
	case Contained:
		return "contained"
	case Partial:
		return "partial"
	default:
		return "unknown"
	}
}

// Result holds the overlap between two discs and the light fraction derived
// from it.
type Result struct {
	OverlapArea   float64
	LightFraction float64
	Case          Case
}

// OverlapArea returns the area common to the star and planet discs.
// The result is symmetric in its arguments and never exceeds the area of the
// smaller disc.
func OverlapArea(star, planet Disc) (float64, error) {
	if err := validatePair(star, planet); err != nil {
		return 0, err
	}
	area, _ := overlap(star, planet)
	return area, nil
}

// LightFraction returns the fraction of the star's light that is not blocked
// by the planet, in [0, 1]. A planet behind the star blocks nothing.
func LightFraction(star, planet Disc, planetBehindStar bool) (float64, error) {
	r, err := Evaluate(star, planet, planetBehindStar)
	if err != nil {
		return 0, err
	}
	return r.LightFraction, nil
}

// Evaluate computes the overlap area and light fraction in one pass.
// OverlapArea is always the geometric overlap; when planetBehindStar is set
// the light fraction is 1 regardless.
func Evaluate(star, planet Disc, planetBehindStar bool) (Result, error) {
	if err := validatePair(star, planet); err != nil {
		return Result{}, err
	}

	area, c := overlap(star, planet)
	res := Result{OverlapArea: area, LightFraction: 1, Case: c}
	if !planetBehindStar {
		res.LightFraction = Clamp(1-area/star.Area(), 0, 1)
	}
	return res, nil
}

func validatePair(star, planet Disc) error {
	if err := star.Validate(); err != nil {
		return fmt.Errorf("star: %w", err)
	}
	if err := planet.Validate(); err != nil {
		return fmt.Errorf("planet: %w", err)
	}
	return nil
}

// overlap assumes both discs are valid.
func overlap(a, b Disc) (float64, Case) {
	rs := a.Radius()
	rp := b.Radius()
	d := a.DistanceTo(b)

	if d >= rs+rp {
		return 0, Apart
	}

	rMin, rMax := math.Min(rs, rp), math.Max(rs, rp)
	smaller := math.Pi * rMin * rMin

	// Checked before the lens formula so d == 0 never reaches a division.
	if d+rMin <= rMax {
		return smaller, Contained
	}

	// Work in units of the larger radius so no square can overflow.
	lens := lensArea(rs/rMax, rp/rMax, d/rMax) * rMax * rMax
	return Clamp(lens, 0, smaller), Partial
}

// lensArea is the standard circle-circle intersection area for radii rs, rp
// whose centers are d apart, with |rs-rp| < d < rs+rp.
//
//	A = rp²·acos((d²+rp²−rs²)/(2·d·rp)) + rs²·acos((d²+rs²−rp²)/(2·d·rs))
//	    − ½·sqrt((rp+rs−d)(d+rp−rs)(d+rs−rp)(d+rp+rs))
func lensArea(rs, rp, d float64) float64 {
	cosP := Clamp((d*d+rp*rp-rs*rs)/(2*d*rp), -1, 1)
	cosS := Clamp((d*d+rs*rs-rp*rp)/(2*d*rs), -1, 1)

	k := (rp + rs - d) * (d + rp - rs) * (d + rs - rp) * (d + rp + rs)
	if k < 0 {
		k = 0
	}

	return rp*rp*math.Acos(cosP) + rs*rs*math.Acos(cosS) - 0.5*math.Sqrt(k)
}

// Clamp limits x to [low, high]. NaN clamps to low.
func Clamp[T constraints.Ordered](x, low, high T) T {
	if x != x || x < low {
		return low
	} else if x > high {
		return high
	}
	return x
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
