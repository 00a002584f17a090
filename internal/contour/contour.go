// Package contour locates and outlines blobs of detected cells in the polar
// return history.
package contour

import (
	"errors"

	"github.com/banshee-data/marpa/internal/geo"
	"github.com/banshee-data/marpa/internal/spokes"
)

// MaxLength bounds the number of stored contour points. Longer outlines are
// still walked to completion, but only the first MaxLength-2 points are kept
// followed by the start point.
const MaxLength = 601

// Trace failure outcomes.
var (
	ErrRangeTooLarge  = errors.New("contour: range too large")
	ErrRangeTooSmall  = errors.New("contour: range too small")
	ErrNotOnBlob      = errors.New("contour: seed is not on a blob")
	ErrNotOnBoundary  = errors.New("contour: seed is not on the blob boundary")
	ErrNoContinuation = errors.New("contour: no next boundary point")
)

// ErrNotFound is returned by Locate when no blob is near the search point.
var ErrNotFound = errors.New("contour: no blob found")

// Contour is the outline of a blob and its bounding extent.
//
// MinAngle and MaxAngle are not wrapped: a blob straddling north has
// MaxAngle >= Spokes, so MaxAngle-MinAngle is always its angular width.
type Contour struct {
	Points   []geo.Polar
	MinAngle int
	MaxAngle int
	MinRange int
	MaxRange int
}

// Len returns the number of stored points.
func (c *Contour) Len() int { return len(c.Points) }

func (c *Contour) reset(p geo.Polar) {
	if c.Points == nil {
		c.Points = make([]geo.Polar, 0, MaxLength)
	}
	c.Points = c.Points[:0]
	c.MinAngle, c.MaxAngle = p.Angle, p.Angle
	c.MinRange, c.MaxRange = p.Range, p.Range
}

// steps are the 4-connected moves: outward, clockwise, inward, anticlockwise.
var steps = [4]struct{ da, dr int }{{0, 1}, {1, 0}, {0, -1}, {-1, 0}}

// Trace walks the outline of the blob that seed lies on, keeping the blob on
// the same side throughout, until it returns to seed. seed must be a hit with
// at least one orthogonal neighbour that is not.
//
// On success the midpoint of the bounding extent is returned, stamped with the
// reception time of its spoke. The caller must hold the history read lock.
func Trace(s spokes.Sampler, seed geo.Polar, c *Contour) (geo.Polar, error) {
	g := s.Geometry()
	c.reset(seed)

	if seed.Range >= g.Bins-1 {
		return seed, ErrRangeTooLarge
	}
	if seed.Range < 4 {
		return seed, ErrRangeTooSmall
	}
	if !s.Hit(seed.Angle, seed.Range) {
		return seed, ErrNotOnBlob
	}

	index := -1
	for i, d := range steps {
		if !s.Hit(seed.Angle+d.da, seed.Range+d.dr) {
			index = i
			break
		}
	}
	if index < 0 {
		return seed, ErrNotOnBoundary
	}
	index = (index + 1) % 4

	// An outline that never closes, such as a ring around the origin, is
	// treated like a dead end.
	limit := 16 * (g.Spokes + g.Bins)
	cur := seed
	count := 0
	for walked := 0; count == 0 || cur.Angle != seed.Angle || cur.Range != seed.Range; walked++ {
		if walked >= limit {
			return seed, ErrNoContinuation
		}
		index = (index + 3) % 4 // prefer a left turn
		found := false
		for i := 0; i < 4; i++ {
			d := steps[index]
			if s.Hit(cur.Angle+d.da, cur.Range+d.dr) {
				cur.Angle += d.da
				cur.Range += d.dr
				found = true
				break
			}
			index = (index + 1) % 4
		}
		if !found {
			return seed, ErrNoContinuation
		}

		switch {
		case count < MaxLength-2:
			c.Points = append(c.Points, geo.Polar{Angle: g.ModAngle(cur.Angle), Range: cur.Range})
		case count == MaxLength-2:
			c.Points = append(c.Points, geo.Polar{Angle: g.ModAngle(seed.Angle), Range: seed.Range})
		}
		if count < MaxLength-1 {
			count++
		}

		c.MinAngle = min(c.MinAngle, cur.Angle)
		c.MaxAngle = max(c.MaxAngle, cur.Angle)
		c.MinRange = min(c.MinRange, cur.Range)
		c.MaxRange = max(c.MaxRange, cur.Range)
	}

	if c.MinAngle < 0 {
		c.MinAngle += g.Spokes
		c.MaxAngle += g.Spokes
	}
	if c.MaxRange > g.Bins-1 {
		return seed, ErrRangeTooLarge
	}
	if c.MinRange < 2 {
		return seed, ErrRangeTooSmall
	}

	angle := g.ModAngle((c.MinAngle + c.MaxAngle) / 2)
	return geo.Polar{
		Angle:         angle,
		Range:         (c.MinRange + c.MaxRange) / 2,
		TimeUnixNanos: s.SpokeTime(angle),
	}, nil
}

// MoveToBoundary moves a point inside a blob anticlockwise to the first cell
// of the blob on its spoke line. It reports false when p is not a usable hit.
func MoveToBoundary(s spokes.Sampler, p geo.Polar) (geo.Polar, bool) {
	g := s.Geometry()
	if p.Range >= g.Bins-1 || p.Range < 3 {
		return p, false
	}
	if !s.Hit(p.Angle, p.Range) {
		return p, false
	}
	a := p.Angle
	for s.Hit(a, p.Range) {
		a--
		if p.Angle-a > g.Spokes {
			return p, false // the whole range ring is set
		}
	}
	p.Angle = a + 1
	return p, true
}

// FindNearest searches rings of increasing size around p, out to dist range
// bins, for a dense hit. Each ring is square in metres: its angular half-width
// shrinks with range. Cells closest to the middle of each side are tried first.
func FindNearest(s spokes.Sampler, p geo.Polar, dist int) (geo.Polar, bool) {
	g := s.Geometry()
	a, r := p.Angle, p.Range
	if r <= 0 {
		return p, false
	}
	dist = max(dist, 2)

	try := func(aa, rr int) bool {
		return rr <= g.Bins-2 && s.DenseHit(aa, rr)
	}
	found := func(aa, rr int) (geo.Polar, bool) {
		return geo.Polar{Angle: aa, Range: rr, TimeUnixNanos: p.TimeUnixNanos}, true
	}

	for j := 1; j <= dist; j++ {
		da := max(int(g.SpokesPerRadian()/float64(r)*float64(j)), 1)
		for i := 0; i <= da; i++ {
			if try(a-i, r+j) {
				return found(a-i, r+j)
			}
			if try(a+i, r+j) {
				return found(a+i, r+j)
			}
		}
		for i := 0; i < j; i++ {
			if try(a+da, r+i) {
				return found(a+da, r+i)
			}
			if try(a+da, r-i) {
				return found(a+da, r-i)
			}
		}
		for i := 0; i <= da; i++ {
			if try(a+i, r-j) {
				return found(a+i, r-j)
			}
			if try(a-i, r-j) {
				return found(a-i, r-j)
			}
		}
		for i := 0; i < j; i++ {
			if try(a-da, r+i) {
				return found(a-da, r+i)
			}
			if try(a-da, r-i) {
				return found(a-da, r-i)
			}
		}
	}
	return p, false
}

// Locate finds the blob at or near p in the given detection bit of h and
// traces it into c. The search radius never reaches within five bins of the
// origin. On failure p is returned unchanged.
func Locate(h *spokes.History, bit spokes.Bit, p geo.Polar, dist int, c *Contour) (geo.Polar, error) {
	h.RLock()
	defer h.RUnlock()

	s := h.Sampler(bit)
	dist = min(dist, p.Range-5)

	var (
		seed geo.Polar
		ok   bool
	)
	if s.Hit(p.Angle, p.Range) {
		seed, ok = MoveToBoundary(s, p)
	} else if seed, ok = FindNearest(s, p, dist); ok {
		seed, ok = MoveToBoundary(s, seed)
	}
	if !ok {
		return p, ErrNotFound
	}

	center, err := Trace(s, seed, c)
	if err != nil {
		return p, err
	}
	return center, nil
}
