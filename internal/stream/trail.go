package stream

import "github.com/star/transitlight/internal/orbit"

// trailBuffer keeps, per system, the last size light fractions sent on one
// connection, oldest first. The trail therefore follows the stream's own
// step and survives cache eviction.
type trailBuffer struct {
	size     int
	bySystem map[string][]float64
}

func newTrailBuffer(size int) *trailBuffer {
	return &trailBuffer{size: size, bySystem: make(map[string][]float64)}
}

// push records f and returns the trails including it. Systems missing from
// f are forgotten. Returns nil when trails are off.
func (b *trailBuffer) push(f *orbit.Frame) map[string][]float64 {
	if b == nil || b.size <= 0 {
		return nil
	}

	next := make(map[string][]float64, len(f.Samples))
	for _, s := range f.Samples {
		prev := b.bySystem[s.Name]
		if len(prev) >= b.size {
			prev = prev[len(prev)-b.size+1:]
		}
		tr := make([]float64, len(prev), len(prev)+1)
		copy(tr, prev)
		next[s.Name] = append(tr, s.LightFraction)
	}
	b.bySystem = next
	return next
}
