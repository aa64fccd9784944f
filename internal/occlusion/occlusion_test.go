package occlusion

import (
	"errors"
	"math"
	"testing"
)

const eps = 1e-9

func TestOverlapAreaScenarios(t *testing.T) {
	star := Disc{CenterX: 0, CenterY: 0, Diameter: 200}

	tests := []struct {
		name      string
		planet    Disc
		wantArea  float64
		wantLight float64
		wantCase  Case
	}{
		{
			name:      "planet well clear of star",
			planet:    Disc{CenterX: 300, CenterY: 0, Diameter: 50},
			wantArea:  0,
			wantLight: 1,
			wantCase:  Apart,
		},
		{
			name:      "planet centered on star",
			planet:    Disc{CenterX: 0, CenterY: 0, Diameter: 50},
			wantArea:  math.Pi * 25 * 25,
			wantLight: 0.9375,
			wantCase:  Contained,
		},
		{
			name:      "external tangency",
			planet:    Disc{CenterX: 125, CenterY: 0, Diameter: 50},
			wantArea:  0,
			wantLight: 1,
			wantCase:  Apart,
		},
		{
			name:      "internal tangency",
			planet:    Disc{CenterX: 0, CenterY: 75, Diameter: 50},
			wantArea:  math.Pi * 25 * 25,
			wantLight: 0.9375,
			wantCase:  Contained,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			area, err := OverlapArea(star, tt.planet)
			if err != nil {
				t.Fatalf("OverlapArea: %v", err)
			}
			if math.Abs(area-tt.wantArea) > eps {
				t.Errorf("OverlapArea = %.6f, want %.6f", area, tt.wantArea)
			}

			light, err := LightFraction(star, tt.planet, false)
			if err != nil {
				t.Fatalf("LightFraction: %v", err)
			}
			if math.Abs(light-tt.wantLight) > eps {
				t.Errorf("LightFraction = %.6f, want %.6f", light, tt.wantLight)
			}

			res, err := Evaluate(star, tt.planet, false)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if res.Case != tt.wantCase {
				t.Errorf("Case = %v, want %v", res.Case, tt.wantCase)
			}
		})
	}
}

func TestOverlapAreaPartial(t *testing.T) {
	star := Disc{CenterX: 0, CenterY: 0, Diameter: 200}
	planet := Disc{CenterX: 100, CenterY: 0, Diameter: 50}

	area, err := OverlapArea(star, planet)
	if err != nil {
		t.Fatalf("OverlapArea: %v", err)
	}

	smaller := math.Pi * 25 * 25
	if area <= 0 || area >= smaller {
		t.Fatalf("OverlapArea = %.3f, want in (0, %.3f)", area, smaller)
	}

	// Cross-check the lens formula against a grid count over the planet's
	// bounding box.
	const step = 0.05
	var inside int
	for x := 75 + step/2; x < 125; x += step {
		for y := -25 + step/2; y < 25; y += step {
			inPlanet := (x-100)*(x-100)+y*y <= 25*25
			inStar := x*x+y*y <= 100*100
			if inPlanet && inStar {
				inside++
			}
		}
	}
	approx := float64(inside) * step * step
	if math.Abs(area-approx)/approx > 0.01 {
		t.Errorf("OverlapArea = %.3f, grid estimate %.3f (diff > 1%%)", area, approx)
	}

	res, err := Evaluate(star, planet, false)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Case != Partial {
		t.Errorf("Case = %v, want partial", res.Case)
	}
}

func TestOverlapAreaSymmetry(t *testing.T) {
	pairs := [][2]Disc{
		{{0, 0, 200}, {100, 0, 50}},
		{{0, 0, 200}, {60, 80, 120}},
		{{10, -5, 30}, {25, 3, 40}},
		{{0, 0, 10}, {0, 0, 10}},
		{{0, 0, 150}, {300, 0, 20}},
		{{-3, 4, 8}, {0, 0, 90}},
	}

	for _, p := range pairs {
		ab, err := OverlapArea(p[0], p[1])
		if err != nil {
			t.Fatalf("OverlapArea(%v, %v): %v", p[0], p[1], err)
		}
		ba, err := OverlapArea(p[1], p[0])
		if err != nil {
			t.Fatalf("OverlapArea(%v, %v): %v", p[1], p[0], err)
		}
		if math.Abs(ab-ba) > 1e-9*math.Max(1, ab) {
			t.Errorf("OverlapArea not symmetric for %v/%v: %.12f vs %.12f", p[0], p[1], ab, ba)
		}
	}
}

func TestOverlapAreaBounds(t *testing.T) {
	star := Disc{CenterX: 200, CenterY: 100, Diameter: 150}

	for _, pd := range []float64{5, 20, 75, 150, 220} {
		planet := Disc{CenterY: 100, Diameter: pd}
		rMin := math.Min(star.Radius(), planet.Radius())
		limit := math.Pi * rMin * rMin

		for x := 0.0; x <= 400; x += 0.5 {
			planet.CenterX = x
			area, err := OverlapArea(star, planet)
			if err != nil {
				t.Fatalf("OverlapArea: %v", err)
			}
			if math.IsNaN(area) || area < 0 || area > limit+eps {
				t.Fatalf("planet d=%.0f x=%.1f: area %.6f outside [0, %.6f]", pd, x, area, limit)
			}
			if d := star.DistanceTo(planet); d >= star.Radius()+planet.Radius() && area != 0 {
				t.Fatalf("planet d=%.0f x=%.1f: area %.6f, want exactly 0 when apart", pd, x, area)
			}
		}
	}
}

func TestLightFractionMonotonic(t *testing.T) {
	star := Disc{CenterX: 0, CenterY: 0, Diameter: 200}
	const rp = 25.0
	const steps = 500

	prev := 1.0
	for i := 0; i <= steps; i++ {
		d := (100 + rp) * float64(steps-i) / steps
		planet := Disc{CenterX: d, CenterY: 0, Diameter: 2 * rp}
		light, err := LightFraction(star, planet, false)
		if err != nil {
			t.Fatalf("LightFraction: %v", err)
		}
		if light > prev+eps {
			t.Fatalf("light fraction increased from %.12f to %.12f at d=%.3f", prev, light, d)
		}
		if light < 0 || light > 1 {
			t.Fatalf("light fraction %.6f outside [0,1]", light)
		}
		prev = light
	}
	if math.Abs(prev-0.9375) > eps {
		t.Errorf("light fraction at center = %.6f, want 0.9375", prev)
	}
}

func TestLightFractionBehindStar(t *testing.T) {
	star := Disc{CenterX: 0, CenterY: 0, Diameter: 200}
	for _, planet := range []Disc{
		{0, 0, 50},
		{100, 0, 50},
		{300, 0, 50},
		{0, 0, 400},
	} {
		light, err := LightFraction(star, planet, true)
		if err != nil {
			t.Fatalf("LightFraction: %v", err)
		}
		if light != 1 {
			t.Errorf("LightFraction(%v, behind) = %v, want 1", planet, light)
		}
	}
}

func TestLightFractionPlanetLargerThanStar(t *testing.T) {
	star := Disc{CenterX: 0, CenterY: 0, Diameter: 50}
	planet := Disc{CenterX: 0, CenterY: 0, Diameter: 200}

	light, err := LightFraction(star, planet, false)
	if err != nil {
		t.Fatalf("LightFraction: %v", err)
	}
	if light != 0 {
		t.Errorf("LightFraction = %v, want 0 for a fully covered star", light)
	}
}

func TestCoincidentEqualDiscs(t *testing.T) {
	a := Disc{CenterX: 5, CenterY: 5, Diameter: 10}
	area, err := OverlapArea(a, a)
	if err != nil {
		t.Fatalf("OverlapArea: %v", err)
	}
	if math.Abs(area-a.Area()) > eps {
		t.Errorf("OverlapArea = %v, want %v", area, a.Area())
	}
}

func TestInvalidGeometry(t *testing.T) {
	tests := []struct {
		name   string
		star   Disc
		planet Disc
	}{
		{"negative star diameter", Disc{0, 0, -5}, Disc{0, 0, 10}},
		{"zero star diameter", Disc{0, 0, 0}, Disc{0, 0, 10}},
		{"zero planet diameter", Disc{0, 0, 10}, Disc{1, 1, 0}},
		{"NaN diameter", Disc{0, 0, math.NaN()}, Disc{0, 0, 10}},
		{"infinite diameter", Disc{0, 0, 10}, Disc{0, 0, math.Inf(1)}},
		{"NaN center", Disc{math.NaN(), 0, 10}, Disc{0, 0, 10}},
		{"star area overflows", Disc{0, 0, 4e154}, Disc{3e154, 0, 4e154}},
		{"coincident areas overflow", Disc{0, 0, 1e200}, Disc{0, 0, 1e200}},
		{"planet area underflows", Disc{0, 0, 10}, Disc{0, 0, 1e-170}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := OverlapArea(tt.star, tt.planet); !errors.Is(err, ErrInvalidGeometry) {
				t.Errorf("OverlapArea error = %v, want ErrInvalidGeometry", err)
			}
			if _, err := LightFraction(tt.star, tt.planet, false); !errors.Is(err, ErrInvalidGeometry) {
				t.Errorf("LightFraction error = %v, want ErrInvalidGeometry", err)
			}
			if _, err := LightFraction(tt.star, tt.planet, true); !errors.Is(err, ErrInvalidGeometry) {
				t.Errorf("LightFraction(behind) error = %v, want ErrInvalidGeometry", err)
			}
		})
	}
}

func TestOverlapAreaLargeDiscs(t *testing.T) {
	small := [2]Disc{{0, 0, 1.4}, {1, 0, 1.4}}
	want, err := OverlapArea(small[0], small[1])
	if err != nil {
		t.Fatalf("OverlapArea: %v", err)
	}

	const scale = 1e154
	star := Disc{0, 0, small[0].Diameter * scale}
	planet := Disc{small[1].CenterX * scale, 0, small[1].Diameter * scale}

	res, err := Evaluate(star, planet, false)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if math.IsNaN(res.OverlapArea) || math.IsInf(res.OverlapArea, 0) {
		t.Fatalf("OverlapArea = %v, want finite", res.OverlapArea)
	}
	if got := res.OverlapArea / (scale * scale); math.Abs(got-want) > 1e-9*want {
		t.Errorf("scaled OverlapArea = %.12f, want %.12f", got, want)
	}
	if math.IsNaN(res.LightFraction) || res.LightFraction < 0 || res.LightFraction > 1 {
		t.Errorf("LightFraction = %v, want within [0,1]", res.LightFraction)
	}
	if res.Case != Partial {
		t.Errorf("Case = %v, want partial", res.Case)
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(1.5, 0.0, 1.0); got != 1 {
		t.Errorf("Clamp(1.5) = %v", got)
	}
	if got := Clamp(-2, 0, 10); got != 0 {
		t.Errorf("Clamp(-2) = %v", got)
	}
	if got := Clamp(0.25, 0.0, 1.0); got != 0.25 {
		t.Errorf("Clamp(0.25) = %v", got)
	}
	if got := Clamp(math.NaN(), 0.0, 1.0); got != 0 {
		t.Errorf("Clamp(NaN) = %v, want 0", got)
	}
}

func BenchmarkEvaluatePartial(b *testing.B) {
	star := Disc{CenterX: 0, CenterY: 0, Diameter: 200}
	planet := Disc{CenterX: 100, CenterY: 0, Diameter: 50}
	for i := 0; i < b.N; i++ {
		if _, err := Evaluate(star, planet, false); err != nil {
			b.Fatal(err)
		}
	}
}
