// Package arpa tracks radar targets across antenna sweeps.
//
// A Tracker owns a fixed pool of Target slots. Targets are acquired manually
// from a chart position (MARPA) or automatically from a polar cell (ARPA),
// relocated once per sweep in the spoke history by contour tracing, smoothed
// by a Kalman filter and reported once they have been seen often enough.
package arpa

import (
	"math"

	"github.com/banshee-data/marpa/internal/geo"
	"github.com/banshee-data/marpa/internal/monitoring"
	"github.com/banshee-data/marpa/internal/spokes"
	"github.com/banshee-data/marpa/internal/timeutil"
)

// OwnShip supplies the current position of the radar.
type OwnShip interface {
	Position() geo.Position
}

// AISLookup reports whether an AIS target lies within radiusMeters of a position.
type AISLookup interface {
	FindAIS(lat, lon, radiusMeters float64) bool
}

// GuardZone is evaluated once per sweep after all targets are refreshed.
type GuardZone interface {
	SearchTargets()
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithReportSink sets where reports go. The default discards them.
func WithReportSink(s ReportSink) Option {
	return func(tr *Tracker) { tr.sink = s }
}

// WithAIS enables AIS merging of reports.
func WithAIS(a AISLookup) Option {
	return func(tr *Tracker) { tr.ais = a }
}

// WithGuardZones sets the zones evaluated when Config.GuardZonesEnabled is set.
func WithGuardZones(zones ...GuardZone) Option {
	return func(tr *Tracker) { tr.zones = zones }
}

// WithClock sets the clock used to stamp automatic acquisitions.
func WithClock(c timeutil.Clock) Option {
	return func(tr *Tracker) { tr.clock = c }
}

// WithLogger replaces the diagnostic logger.
func WithLogger(logf func(format string, v ...interface{})) Option {
	return func(tr *Tracker) { tr.logf = logf }
}

// Tracker is the target pool and per-sweep scheduler. It is not safe for
// concurrent use; one goroutine drives acquisitions and RefreshTargets.
type Tracker struct {
	cfg     Config
	history *spokes.History
	own     OwnShip
	ais     AISLookup
	zones   []GuardZone
	sink    ReportSink
	clock   timeutil.Clock
	logf    func(format string, v ...interface{})

	targets []*Target // slots, allocated on first use
	count   int       // live prefix of targets
	scratch []*Target
	lastID  int
}

// NewTracker returns an empty tracker reading returns from h.
func NewTracker(cfg Config, h *spokes.History, own OwnShip, opts ...Option) *Tracker {
	tr := &Tracker{
		cfg:     cfg,
		history: h,
		own:     own,
		sink:    discardSink{},
		clock:   timeutil.RealClock{},
		logf:    monitoring.Componentf("arpa"),
		targets: make([]*Target, cfg.MaxTargets),
		scratch: make([]*Target, 0, cfg.MaxTargets),
	}
	for _, o := range opts {
		o(tr)
	}
	return tr
}

// Config returns the tracker configuration.
func (tr *Tracker) Config() Config { return tr.cfg }

// Count returns the number of occupied slots, including targets lost since
// the last compaction.
func (tr *Tracker) Count() int { return tr.count }

// AcquireMARPATarget starts tracking whatever is at p.
func (tr *Tracker) AcquireMARPATarget(p geo.Position) {
	tr.acquireOrDelete(p, StatusAcquire0)
}

// DeleteTarget drops the target nearest to p at the next RefreshTargets.
func (tr *Tracker) DeleteTarget(p geo.Position) {
	tr.acquireOrDelete(p, StatusForDeletion)
}

func (tr *Tracker) acquireOrDelete(p geo.Position, status Status) {
	t, _ := tr.allocate(status)
	if t == nil {
		return
	}
	t.init(p, status)
}

// AcquireARPATarget starts an automatic track at a polar cell of the current
// image and refreshes it right away. It returns the slot, or -1 when the
// pool is full.
func (tr *Tracker) AcquireARPATarget(pol geo.Polar) int {
	t, slot := tr.allocate(StatusAcquire0)
	if t == nil {
		return -1
	}
	g := tr.cfg.Geometry
	p := g.PolarToGeo(pol, tr.own.Position(), tr.history.RangeMeters())
	t.init(p, StatusAcquire0)
	t.position.TimeUnixNanos = tr.clock.Now().UnixNano()
	t.automatic = true
	t.refresh(tr.cfg.SearchRadius1)
	return slot
}

// allocate claims the next free slot. The last slot is kept for a deletion
// request so that a full pool can still be cleaned up.
func (tr *Tracker) allocate(status Status) (*Target, int) {
	capacity := tr.cfg.MaxTargets
	if tr.count < capacity-1 || (tr.count == capacity-1 && status == StatusForDeletion) {
		slot := tr.count
		if tr.targets[slot] == nil {
			tr.targets[slot] = newTarget(tr)
		}
		tr.count++
		return tr.targets[slot], slot
	}
	tr.logf("max targets exceeded (%d), acquisition ignored", tr.count)
	return nil, -1
}

// DeleteAllTargets drops every target, retracting the reported ones.
func (tr *Tracker) DeleteAllTargets() {
	for i := 0; i < tr.count; i++ {
		if t := tr.targets[i]; t != nil {
			t.setStatusLost()
		}
	}
}

// RefreshTargets runs one sweep: compaction, pending deletion, pass 1 with
// the small search radius, pass 2 with the large one for targets pass 1
// could not resolve, and finally the guard zones.
func (tr *Tracker) RefreshTargets() {
	tr.compact()
	tr.resolveDeletion()

	for i := 0; i < tr.count; i++ {
		t := tr.targets[i]
		t.pass = pass1
		if t.pass1Result == pass1NotFound {
			continue
		}
		t.refresh(tr.cfg.SearchRadius1)
	}

	for i := 0; i < tr.count; i++ {
		t := tr.targets[i]
		if t.pass1Result == pass1Unknown {
			continue
		}
		t.pass = pass2
		t.refresh(tr.cfg.SearchRadius2)
	}

	if tr.cfg.GuardZonesEnabled {
		for _, z := range tr.zones {
			z.SearchTargets()
		}
	}
}

// compact moves lost targets behind the live ones, keeping both groups in
// their original order, and shrinks the live count. After compaction every
// slot below count holds a target.
func (tr *Tracker) compact() {
	lost := tr.scratch[:0]
	n := 0
	for i := 0; i < tr.count; i++ {
		t := tr.targets[i]
		if t == nil {
			tr.logf("empty target slot %d", i)
		}
		if t == nil || t.status == StatusLost {
			lost = append(lost, t)
			continue
		}
		tr.targets[n] = t
		n++
	}
	copy(tr.targets[n:], lost)
	tr.count = n
	tr.scratch = lost[:0]
}

// resolveDeletion drops the live target nearest to a pending deletion request
// together with the request itself.
func (tr *Tracker) resolveDeletion() {
	del := -1
	for i := 0; i < tr.count; i++ {
		if t := tr.targets[i]; t != nil && t.status == StatusForDeletion {
			del = i
		}
	}
	if del < 0 {
		return
	}
	req := tr.targets[del]
	nearest := -1
	best := math.Inf(1)
	for i := 0; i < tr.count; i++ {
		t := tr.targets[i]
		if i == del || t == nil || t.status < StatusAcquire0 {
			continue
		}
		if d := geo.DistanceMeters(req.position, t.position); d < best {
			best = d
			nearest = i
		}
	}
	if nearest >= 0 {
		tr.targets[nearest].setStatusLost()
	}
	req.setStatusLost()
}

// nextID returns the next report identifier. The counter wraps to 1, so a
// long running tracker can hand out an identifier that is still in use.
func (tr *Tracker) nextID() int {
	tr.lastID++
	if tr.lastID >= tr.cfg.IDModulus {
		tr.lastID = 1
	}
	return tr.lastID
}

// Snapshot returns the live targets in slot order.
func (tr *Tracker) Snapshot() []TargetState {
	var out []TargetState
	for i := 0; i < tr.count; i++ {
		t := tr.targets[i]
		if t == nil || t.status == StatusLost || t.status == StatusForDeletion {
			continue
		}
		out = append(out, t.state(i))
	}
	return out
}
