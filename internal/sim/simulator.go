package sim

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/banshee-data/marpa/internal/geo"
	"github.com/banshee-data/marpa/internal/spokes"
	"github.com/banshee-data/marpa/internal/units"
)

// Painted cells carry full intensity; the history threshold keeps them.
const (
	returnLevel = 255
	threshold   = 128
)

// Refresher is run after every painted sweep.
type Refresher interface {
	RefreshTargets()
}

// Simulator writes scenario sweeps into a History. It implements
// arpa.OwnShip and arpa.AISLookup for the time of the last painted spoke.
type Simulator struct {
	sc  Scenario
	g   geo.Geometry
	h   *spokes.History
	rng *rand.Rand

	mu      sync.Mutex
	sweeps  int
	cursor  int // next spoke to paint
	clutter map[int][]int
	now     time.Time
}

// New returns a simulator with an empty history sized for sc.
func New(sc Scenario) *Simulator {
	g := sc.Geometry()
	return &Simulator{
		sc:  sc,
		g:   g,
		h:   spokes.NewHistory(g, sc.RangeMeters),
		rng: rand.New(rand.NewSource(sc.Seed)),
		now: sc.Start,
	}
}

// History returns the history the simulator paints into.
func (s *Simulator) History() *spokes.History { return s.h }

// Scenario returns the scenario being run.
func (s *Simulator) Scenario() Scenario { return s.sc }

// Sweeps returns the number of completed rotations.
func (s *Simulator) Sweeps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweeps
}

// Now returns the time of the last painted spoke.
func (s *Simulator) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Position returns own ship at the time of the last painted spoke.
func (s *Simulator) Position() geo.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownAt(s.now)
}

// Contacts returns the true contact positions at the time of the last
// painted spoke, in scenario order.
func (s *Simulator) Contacts() []geo.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]geo.Position, len(s.sc.Contacts))
	for i, c := range s.sc.Contacts {
		out[i] = s.contactAt(c, s.now)
	}
	return out
}

// FindAIS reports whether an AIS contact is within radiusMeters of (lat, lon).
func (s *Simulator) FindAIS(lat, lon, radiusMeters float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := geo.Position{Lat: lat, Lon: lon}
	for _, c := range s.sc.Contacts {
		if c.AIS && geo.DistanceMeters(s.contactAt(c, s.now), p) <= radiusMeters {
			return true
		}
	}
	return false
}

// Sweep paints the rest of the current antenna rotation.
func (s *Simulator) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step(s.g.Spokes - s.cursor)
}

// Step paints the next n spokes, with own ship and the contacts moving
// between spokes.
func (s *Simulator) Step(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step(n)
}

func (s *Simulator) step(n int) {
	period := s.sc.Period()
	step := period / time.Duration(s.g.Spokes)
	line := make([]byte, s.g.Bins)

	for ; n > 0; n-- {
		if s.cursor == 0 {
			s.clutter = s.noise()
		}
		a := s.cursor
		t := s.sc.Start.Add(time.Duration(s.sweeps)*period + time.Duration(a)*step)
		own := s.ownAt(t)
		clear(line)
		for _, c := range s.sc.Contacts {
			s.paint(line, a, own, s.contactAt(c, t), c.RadiusMeters)
		}
		for _, r := range s.clutter[a] {
			line[r] = returnLevel
		}
		s.h.WriteSpoke(a, t.UnixNano(), own, line, threshold)
		s.now = t

		s.cursor++
		if s.cursor == s.g.Spokes {
			s.cursor = 0
			s.sweeps++
		}
	}
}

// Run paints rotations until n are done or ctx is cancelled, refreshing tr
// every RefreshSpokes spokes the way a live radar feed would. n <= 0 runs
// until cancelled. When tick is not nil each rotation waits for a tick first.
func (s *Simulator) Run(ctx context.Context, tr Refresher, n int, tick <-chan time.Time) error {
	for i := 0; n <= 0 || i < n; i++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		for done := 0; done < s.g.Spokes; done += s.sc.RefreshSpokes {
			s.Step(min(s.sc.RefreshSpokes, s.g.Spokes-done))
			tr.RefreshTargets()
		}
	}
	return nil
}

// paint marks the bins of spoke angle that fall within radius of p.
func (s *Simulator) paint(line []byte, angle int, own, p geo.Position, radius float64) {
	rangeMeters := s.sc.RangeMeters
	x := geo.ToLocal(p, own)
	dist := math.Hypot(x.North, x.East)
	if dist-radius > rangeMeters {
		return
	}
	if dist > radius {
		centre := s.g.GeoToPolar(p, own, rangeMeters)
		half := math.Asin(radius/dist)*s.g.SpokesPerRadian() + 1
		if math.Abs(float64(s.g.AngleDiff(angle, centre.Angle))) > half {
			return
		}
	}
	perBin := rangeMeters / float64(s.g.Bins)
	lo := max(0, int((dist-radius)/perBin))
	hi := min(s.g.Bins-1, int((dist+radius)/perBin)+1)
	for r := lo; r <= hi; r++ {
		cell := s.g.PolarToGeo(geo.Polar{Angle: angle, Range: r}, own, rangeMeters)
		if geo.DistanceMeters(cell, p) <= radius {
			line[r] = returnLevel
		}
	}
}

// noise picks the clutter cells of one sweep, keyed by spoke.
func (s *Simulator) noise() map[int][]int {
	cells := make(map[int][]int, s.sc.NoiseCells)
	for i := 0; i < s.sc.NoiseCells; i++ {
		a := s.rng.Intn(s.g.Spokes)
		cells[a] = append(cells[a], 2+s.rng.Intn(s.g.Bins-3))
	}
	return cells
}

func (s *Simulator) ownAt(t time.Time) geo.Position {
	dt := t.Sub(s.sc.Start).Seconds()
	vn, ve := velocity(s.sc.OwnSpeedKn, s.sc.OwnCourseDeg)
	p := geo.FromLocal(geo.LocalPosition{North: vn * dt, East: ve * dt, VNorth: vn, VEast: ve}, s.sc.Origin())
	p.SpeedKn = s.sc.OwnSpeedKn
	p.TimeUnixNanos = t.UnixNano()
	return p
}

func (s *Simulator) contactAt(c Contact, t time.Time) geo.Position {
	dt := t.Sub(s.sc.Start).Seconds()
	vn, ve := velocity(c.SpeedKn, c.CourseDeg)
	p := geo.FromLocal(geo.LocalPosition{North: c.North + vn*dt, East: c.East + ve*dt, VNorth: vn, VEast: ve}, s.sc.Origin())
	p.SpeedKn = c.SpeedKn
	p.TimeUnixNanos = t.UnixNano()
	return p
}

// velocity returns north and east components in m/s.
func velocity(speedKn, courseDeg float64) (north, east float64) {
	v := units.KnotsToMPS(speedKn)
	c := courseDeg * math.Pi / 180
	return v * math.Cos(c), v * math.Sin(c)
}
