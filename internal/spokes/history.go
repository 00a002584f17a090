// Package spokes holds the radar return history: one thresholded line of
// range bins per antenna spoke, together with the time and own-ship position
// at which each spoke was received.
//
// Each cell carries two detection bits. PrimaryBit is the normal detection and
// is cleared by the tracker once a blob has been claimed in the current sweep.
// DuplicateBit is set together with PrimaryBit by the ingestion path but never
// cleared by the tracker, so a track can tell that a blob it failed to find
// was taken by another track.
package spokes

import (
	"sync"

	"github.com/banshee-data/marpa/internal/geo"
)

// Bit selects one of the detection bits of a cell.
type Bit byte

const (
	PrimaryBit   Bit = 0x80
	DuplicateBit Bit = 0x40
)

// Spoke is one received radar line.
type Spoke struct {
	TimeUnixNanos int64
	OwnLat        float64
	OwnLon        float64
	Data          []byte // one cell per range bin
}

// History is the cyclic angle x range return buffer.
type History struct {
	geometry    geo.Geometry
	rangeMeters float64
	spokes      []Spoke

	// mu serialises ingestion writes and pixel clearing against contour
	// tracing, which holds the read lock for a whole walk.
	mu sync.RWMutex
}

// NewHistory allocates an empty history for the given grid geometry.
func NewHistory(g geo.Geometry, rangeMeters float64) *History {
	h := &History{
		geometry:    g,
		rangeMeters: rangeMeters,
		spokes:      make([]Spoke, g.Spokes),
	}
	for i := range h.spokes {
		h.spokes[i].Data = make([]byte, g.Bins)
	}
	return h
}

// Geometry returns the grid geometry.
func (h *History) Geometry() geo.Geometry { return h.geometry }

// RangeMeters returns the range currently covered by Bins.
func (h *History) RangeMeters() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rangeMeters
}

// SetRange changes the displayed range, for example after a zoom.
func (h *History) SetRange(meters float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rangeMeters = meters
}

// WriteSpoke stores a received spoke. Cells whose return is at or above
// threshold get both detection bits, all others are cleared.
func (h *History) WriteSpoke(angle int, timeUnixNanos int64, ownShip geo.Position, returns []byte, threshold byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := &h.spokes[h.geometry.ModAngle(angle)]
	s.TimeUnixNanos = timeUnixNanos
	s.OwnLat = ownShip.Lat
	s.OwnLon = ownShip.Lon
	for r := range s.Data {
		if r < len(returns) && returns[r] >= threshold {
			s.Data[r] = byte(PrimaryBit | DuplicateBit)
		} else {
			s.Data[r] = 0
		}
	}
}

// SpokeTime returns the reception time of the spoke at angle.
// Callers running inside a refresh read it without locking; the timestamp is
// only ever advanced by the ingestion path.
func (h *History) SpokeTime(angle int) int64 {
	return h.spokes[h.geometry.ModAngle(angle)].TimeUnixNanos
}

// SpokeOwnShip returns own-ship position at the reception time of the spoke at angle.
func (h *History) SpokeOwnShip(angle int) geo.Position {
	s := &h.spokes[h.geometry.ModAngle(angle)]
	return geo.Position{Lat: s.OwnLat, Lon: s.OwnLon}
}

// RLock takes the read lock for the duration of a contour walk.
func (h *History) RLock() { h.mu.RLock() }

// RUnlock releases the read lock.
func (h *History) RUnlock() { h.mu.RUnlock() }

// ClearPrimary resets the primary bit over the given extent extended by margin
// on each side, so that a claimed blob is not found again in the same sweep.
func (h *History) ClearPrimary(minAngle, maxAngle, minRange, maxRange, margin int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for r := minRange - margin; r <= maxRange+margin; r++ {
		if r < 0 || r >= h.geometry.Bins {
			continue
		}
		for a := minAngle - margin; a <= maxAngle+margin; a++ {
			h.spokes[h.geometry.ModAngle(a)].Data[r] &^= byte(PrimaryBit)
		}
	}
}

// Sampler returns a view of the history that tests the given bit.
func (h *History) Sampler(bit Bit) Sampler {
	return Sampler{h: h, bit: bit}
}
