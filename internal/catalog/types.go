package catalog

import (
	"fmt"
	"time"

	"github.com/star/transitlight/internal/occlusion"
)

// System describes one star with a single planet on a circular, edge-on orbit.
type System struct {
	Name           string
	Star           occlusion.Disc
	PlanetDiameter float64
	OrbitRadius    float64       // projected distance from star center at quadrature
	Period         time.Duration // one full orbit
	Epoch          time.Time     // instant of phase 0 (planet at the left extreme)
}

// Validate checks that the system describes drawable discs and a usable orbit.
func (s System) Validate() error {
	if err := s.Star.Validate(); err != nil {
		return fmt.Errorf("system %q star: %w", s.Name, err)
	}
	planet := occlusion.Disc{CenterX: s.Star.CenterX, CenterY: s.Star.CenterY, Diameter: s.PlanetDiameter}
	if err := planet.Validate(); err != nil {
		return fmt.Errorf("system %q planet: %w", s.Name, err)
	}
	if s.OrbitRadius < 0 {
		return fmt.Errorf("system %q: orbit radius %v must not be negative", s.Name, s.OrbitRadius)
	}
	if s.Period <= 0 {
		return fmt.Errorf("system %q: period %v must be positive", s.Name, s.Period)
	}
	return nil
}

// DeriveOrbitRadius places the planet so it sweeps out to the left edge of a
// field whose center is the star, as the demo does. Stars too close to the
// origin for that fall back to a radius that just clears the star.
func DeriveOrbitRadius(star occlusion.Disc, planetDiameter float64) float64 {
	if r := star.CenterX - planetDiameter/2; r > star.Radius()+planetDiameter/2 {
		return r
	}
	return star.Radius() + planetDiameter
}

// Dataset is a complete catalog of systems loaded from one source.
type Dataset struct {
	Source    string
	FetchedAt time.Time
	Systems   []System
}

// Find returns the system with the given name.
func (ds *Dataset) Find(name string) (System, bool) {
	if ds == nil {
		return System{}, false
	}
	for _, s := range ds.Systems {
		if s.Name == name {
			return s, true
		}
	}
	return System{}, false
}

// Names returns the system names in catalog order.
func (ds *Dataset) Names() []string {
	if ds == nil {
		return nil
	}
	names := make([]string, len(ds.Systems))
	for i, s := range ds.Systems {
		names[i] = s.Name
	}
	return names
}
