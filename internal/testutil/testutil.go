// Package testutil provides shared test fixtures for painting synthetic radar
// sweeps into a spokes.History.
package testutil

import (
	"testing"
	"time"

	"github.com/banshee-data/marpa/internal/geo"
	"github.com/banshee-data/marpa/internal/spokes"
)

// Sweep collects painted cells in grid coordinates and writes them into a
// History as one full antenna rotation.
type Sweep struct {
	g     geo.Geometry
	cells map[int][]byte
}

// NewSweep returns an empty sweep for the given geometry.
func NewSweep(g geo.Geometry) *Sweep {
	return &Sweep{g: g, cells: make(map[int][]byte)}
}

// Cell marks a single cell.
func (s *Sweep) Cell(angle, r int) *Sweep {
	if r < 0 || r >= s.g.Bins {
		return s
	}
	a := s.g.ModAngle(angle)
	line, ok := s.cells[a]
	if !ok {
		line = make([]byte, s.g.Bins)
		s.cells[a] = line
	}
	line[r] = 255
	return s
}

// Disk marks every cell whose grid distance to (angle, r) is at most radius.
// Distances are measured in index units, so the disk is round on the grid,
// not in metres.
func (s *Sweep) Disk(angle, r, radius int) *Sweep {
	for da := -radius; da <= radius; da++ {
		for dr := -radius; dr <= radius; dr++ {
			if da*da+dr*dr <= radius*radius {
				s.Cell(angle+da, r+dr)
			}
		}
	}
	return s
}

// Rect marks the inclusive extent [minAngle, maxAngle] x [minRange, maxRange].
func (s *Sweep) Rect(minAngle, maxAngle, minRange, maxRange int) *Sweep {
	for a := minAngle; a <= maxAngle; a++ {
		for r := minRange; r <= maxRange; r++ {
			s.Cell(a, r)
		}
	}
	return s
}

// Write stores the sweep in h. Spoke i is stamped start + i*period/Spokes and
// tagged with own ship.
func (s *Sweep) Write(h *spokes.History, start time.Time, period time.Duration, own geo.Position) {
	empty := make([]byte, s.g.Bins)
	step := int64(period) / int64(s.g.Spokes)
	for a := 0; a < s.g.Spokes; a++ {
		line, ok := s.cells[a]
		if !ok {
			line = empty
		}
		h.WriteSpoke(a, start.UnixNano()+int64(a)*step, own, line, 1)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
