package spokes

import "github.com/banshee-data/marpa/internal/geo"

// Sampler tests one detection bit of a History. The bit is fixed for the
// lifetime of the value so a call chain never mixes primary and duplicate reads.
//
// Sampler methods do not lock; callers hold History.RLock where the ingestion
// path may be writing concurrently.
type Sampler struct {
	h   *History
	bit Bit
}

// Geometry returns the grid geometry of the underlying history.
func (s Sampler) Geometry() geo.Geometry { return s.h.geometry }

// Bit returns the detection bit this sampler tests.
func (s Sampler) Bit() Bit { return s.bit }

// SpokeTime returns the reception time of the spoke at angle.
func (s Sampler) SpokeTime(angle int) int64 { return s.h.SpokeTime(angle) }

// Hit reports whether the cell at (angle, r) has the sampler's bit set.
// The first two and the last bin are never hits, which keeps the fixed
// range-ring artefacts at the edges out of any blob.
func (s Sampler) Hit(angle, r int) bool {
	if r <= 1 || r >= s.h.geometry.Bins-1 {
		return false
	}
	return s.h.spokes[s.h.geometry.ModAngle(angle)].Data[r]&byte(s.bit) != 0
}

// DenseHit reports a hit that is supported by at least two of its four
// orthogonal neighbours. Single-pixel noise never passes.
func (s Sampler) DenseHit(angle, r int) bool {
	if !s.Hit(angle, r) {
		return false
	}
	n := 0
	for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		if s.Hit(angle+d[0], r+d[1]) {
			n++
		}
	}
	return n >= 2
}
