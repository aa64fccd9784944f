package orbit

import (
	"errors"
	"time"

	"github.com/star/transitlight/internal/occlusion"
)

// ErrNoCatalog is returned when sampling is requested before any catalog has
// been loaded.
var ErrNoCatalog = errors.New("no catalog loaded")

// Sample is one system's geometry and brightness at a single phase.
type Sample struct {
	Name          string         `json:"name" msgpack:"name"`
	Phase         float64        `json:"phase" msgpack:"phase"` // degrees, [0, 360)
	Planet        occlusion.Disc `json:"planet" msgpack:"planet"`
	Behind        bool           `json:"behind" msgpack:"behind"`
	OverlapArea   float64        `json:"overlap_area" msgpack:"overlap_area"`
	LightFraction float64        `json:"light_fraction" msgpack:"light_fraction"`
}

// Frame holds the samples of all systems at a single point in time.
type Frame struct {
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
	Samples   []Sample  `json:"samples" msgpack:"samples"`
}

// Find returns the sample for the named system.
func (f *Frame) Find(name string) (Sample, bool) {
	for _, s := range f.Samples {
		if s.Name == name {
			return s, true
		}
	}
	return Sample{}, false
}

// Config holds sampling configuration loaded from environment variables.
type Config struct {
	Workers int           // Worker pool size (default: runtime.NumCPU())
	Step    time.Duration // Frame interval (default: 1s)
	Horizon time.Duration // Sampling horizon (default: 120s)
}
