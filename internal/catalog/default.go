package catalog

import (
	"time"

	"github.com/star/transitlight/internal/occlusion"
)

// DefaultSystemName names the built-in demonstration system.
const DefaultSystemName = "DEMO-1"

// Default returns the built-in demonstration catalog: a 150-unit star in a
// 400x200 field with a 20-unit planet sweeping from edge to edge, one degree
// of phase per second.
func Default() *Dataset {
	return &Dataset{
		Source:    "builtin",
		FetchedAt: DefaultEpoch,
		Systems: []System{
			{
				Name:           DefaultSystemName,
				Star:           occlusion.Disc{CenterX: 200, CenterY: 100, Diameter: 150},
				PlanetDiameter: 20,
				OrbitRadius:    190,
				Period:         360 * time.Second,
				Epoch:          DefaultEpoch,
			},
		},
	}
}
