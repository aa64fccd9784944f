// Package plot maps light fractions and orbital phases onto the 2D field the
// viewer draws: the star and planet in the top band, the light curve below.
package plot

import (
	"fmt"
	"math"

	"github.com/star/transitlight/internal/occlusion"
)

// Viewport describes the drawing surface.
type Viewport struct {
	Width       float64 `json:"width"`        // curve x wraps at this width
	FieldHeight float64 `json:"field_height"` // star field band; the curve is drawn below it
	CurveScale  float64 `json:"curve_scale"`  // y of a point at full light
}

// Default returns the 400-unit viewport the demo system is laid out for.
func Default() Viewport {
	return Viewport{Width: 400, FieldHeight: 200, CurveScale: 250}
}

// Validate checks that the viewport has a drawable size.
func (v Viewport) Validate() error {
	if !(v.Width > 0) || math.IsInf(v.Width, 0) {
		return fmt.Errorf("viewport width %v must be positive", v.Width)
	}
	if !(v.CurveScale > 0) || math.IsInf(v.CurveScale, 0) {
		return fmt.Errorf("viewport curve scale %v must be positive", v.CurveScale)
	}
	return nil
}

// Coord is a point on the drawing surface.
type Coord struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Point places the light fraction sampled at step on the curve. x advances
// one unit per step and wraps at the viewport width.
func (v Viewport) Point(step int, fraction float64) Coord {
	x := math.Mod(float64(step), v.Width)
	if x < 0 {
		x += v.Width
	}
	return Coord{X: x, Y: occlusion.Clamp(fraction, 0, 1) * v.CurveScale}
}

// Side names a half of the planet disc.
type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

// Illumination describes how the lit part of the planet is drawn.
type Illumination struct {
	// LitSide is the half disc facing the star.
	LitSide Side `json:"lit_side" msgpack:"lit_side"`
	// CoverWidth is the width of the centered cover ellipse as a fraction of
	// the planet diameter; its height is always the full diameter.
	CoverWidth float64 `json:"cover_width" msgpack:"cover_width"`
	// CoverLit paints the cover ellipse lit (gibbous) instead of dark (crescent).
	CoverLit bool `json:"cover_lit" msgpack:"cover_lit"`
}

// Illuminate returns the planet's phase appearance at phaseDeg.
// Phase 0 is the far left of the star, 180 the far right.
func Illuminate(phaseDeg float64) Illumination {
	p := math.Mod(phaseDeg, 360)
	if p < 0 {
		p += 360
	}

	side := Left
	if p < 90 || p > 270 {
		side = Right
	}
	return Illumination{
		LitSide:    side,
		CoverWidth: 1 - math.Abs(math.Mod(p, 180)-90)/90,
		CoverLit:   p >= 180,
	}
}

// PlanetFirst reports whether the planet is drawn before the star, which
// hides it behind the star's disc.
func PlanetFirst(phaseDeg float64) bool {
	p := math.Mod(phaseDeg, 360)
	if p < 0 {
		p += 360
	}
	return p > 180
}
