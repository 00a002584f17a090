package arpa

import (
	"math"

	"github.com/banshee-data/marpa/internal/contour"
	"github.com/banshee-data/marpa/internal/geo"
	"github.com/banshee-data/marpa/internal/kalman"
	"github.com/banshee-data/marpa/internal/spokes"
	"github.com/banshee-data/marpa/internal/units"
)

// Status is the confidence level of a track. Values from StatusAcquire0
// upwards count successful refreshes.
type Status int

const (
	StatusForDeletion Status = -2 // placeholder marking a deletion request
	StatusLost        Status = -1
	StatusAcquire0    Status = 0
	StatusAcquire1    Status = 1
	StatusAcquire2    Status = 2
	StatusAcquire3    Status = 3
)

type passNr int

const (
	pass1 passNr = iota + 1
	pass2
)

type pass1Result int

const (
	pass1Unknown pass1Result = iota
	pass1NotFound
	pass1Duplicate
)

// Target is one track slot of a Tracker.
type Target struct {
	tr *Tracker

	status      Status
	position    geo.Position
	expected    geo.Polar
	contour     contour.Contour
	id          int
	lostCount   int
	automatic   bool
	refreshTime int64 // sensor time of the last refresh
	pass        passNr
	pass1Result pass1Result
	speedKn     float64
	courseDeg   float64
	stationary  int

	speeds  []float64 // newest first
	nSpeeds int

	filter *kalman.Filter
}

func newTarget(tr *Tracker) *Target {
	return &Target{
		tr:     tr,
		status: StatusLost,
		pass:   pass1,
		speeds: make([]float64, tr.cfg.SpeedHistory),
		filter: kalman.New(tr.cfg.Geometry, tr.cfg.Kalman),
	}
}

// init prepares a free slot for a new acquisition at p.
func (t *Target) init(p geo.Position, status Status) {
	t.position = geo.Position{Lat: p.Lat, Lon: p.Lon}
	t.expected = geo.Polar{}
	t.contour.Points = t.contour.Points[:0]
	t.status = status
	t.id = 0
	t.lostCount = 0
	t.automatic = false
	t.refreshTime = 0
	t.pass = pass1
	t.pass1Result = pass1Unknown
	t.speedKn, t.courseDeg = 0, 0
	t.stationary = 0
	t.nSpeeds = 0
	t.filter.Reset()
}

// refresh relocates the target in the current sweep. dist is the search
// radius in range bins. Every outcome is resolved into a state change of
// the target; nothing is returned.
func (t *Target) refresh(dist int) {
	if t.status == StatusLost {
		return
	}
	cfg := &t.tr.cfg
	g := cfg.Geometry
	h := t.tr.history

	own := t.tr.own.Position()
	rangeMeters := h.RangeMeters()

	// Only refresh once the beam has swept past the target plus a margin,
	// and at most once per rotation.
	pol := g.GeoToPolar(t.position, own, rangeMeters)
	time1 := h.SpokeTime(pol.Angle)
	margin := cfg.ScanMargin
	if t.pass == pass2 {
		margin += cfg.Pass2ExtraMargin
	}
	time2 := h.SpokeTime(pol.Angle + margin)
	if (time1 < t.refreshTime+int64(cfg.ScanMarginTime) || time2 < time1) && t.status != StatusAcquire0 {
		return
	}

	prevRefresh := t.refreshTime
	prev := t.position
	t.refreshTime = time1
	t.position.TimeUnixNanos = time1

	dt := float64(time1-prev.TimeUnixNanos) / 1e9
	if t.status == StatusAcquire0 {
		dt = 0
	}

	if t.position.Lat > 90 {
		t.setStatusLost()
		return
	}

	x := t.filter.Predict(geo.ToLocal(t.position, own), dt)
	expected := g.LocalToPolar(x, rangeMeters)
	if expected.Range >= g.Bins || expected.Range <= 0 {
		t.setStatusLost()
		return
	}
	t.expected = expected

	radius := dist
	if t.status == StatusAcquire0 || t.status == StatusAcquire1 {
		radius *= 2
	}

	meas, err := contour.Locate(h, spokes.PrimaryBit, expected, radius, &t.contour)
	if err == nil {
		c := &t.contour
		if abs(expected.Range-meas.Range) > cfg.MaxTargetDiameter ||
			c.MaxRange-c.MinRange > cfg.MaxTargetDiameter ||
			c.MaxAngle-c.MinAngle > cfg.MaxTargetDiameter {
			t.setStatusLost()
			return
		}
		if c.Len() < cfg.MinContourLength && (t.status == StatusAcquire0 || t.status == StatusAcquire1) {
			t.setStatusLost()
			return
		}
		if meas.TimeUnixNanos <= prev.TimeUnixNanos && t.status > StatusAcquire1 {
			t.tr.logf("target %d: measurement at %d is not newer than %d, keeping previous state",
				t.id, meas.TimeUnixNanos, prev.TimeUnixNanos)
			t.position = prev
			return
		}

		h.ClearPrimary(c.MinAngle, c.MaxAngle, c.MinRange, c.MaxRange, cfg.DistanceBetweenTargets)
		t.lostCount = 0

		if t.status == StatusAcquire0 {
			// First fix: place the target where it was seen, relative to
			// where own ship was when that spoke came in.
			t.position = g.PolarToGeo(meas, h.SpokeOwnShip(meas.Angle), rangeMeters)
			t.expected = meas
		}

		t.status++
		if t.status == cfg.StatusToReport {
			t.id = t.tr.nextID()
		}

		if t.status > StatusAcquire1 {
			x = t.filter.Update(x, meas, rangeMeters)
		} else {
			t.filter.CommitPrediction()
		}
		t.position.TimeUnixNanos = meas.TimeUnixNanos
	} else {
		if t.pass == pass1 {
			// Another track may have claimed the blob this sweep; its
			// duplicate bit is still set. Either way retry in pass 2.
			t.pass1Result = pass1NotFound
			if _, err := contour.Locate(h, spokes.DuplicateBit, expected, radius, &t.contour); err == nil {
				t.pass1Result = pass1Duplicate
			}
			t.refreshTime = prevRefresh
			t.position = prev
			return
		}

		if t.status < cfg.CoastMinStatus {
			t.setStatusLost()
			return
		}
		t.lostCount++
		t.filter.CommitPrediction()
		if t.lostCount > cfg.MaxLostCount {
			t.setStatusLost()
			return
		}
	}

	t.pass1Result = pass1Unknown
	if t.status != StatusAcquire1 {
		p := geo.FromLocal(x, own)
		t.position.Lat = p.Lat
		t.position.Lon = p.Lon
		t.position.DLatDt = x.VNorth
		t.position.DLonDt = x.VEast
		t.position.SDSpeedKn = units.MPSToKnots(x.SDSpeedMps)
	}
	t.refreshTime = t.position.TimeUnixNanos

	t.updateSpeed()
	if t.status >= cfg.StatusToReport {
		t.report(own, rangeMeters)
	}
}

// updateSpeed derives speed and course from the velocity estimate.
func (t *Target) updateSpeed() {
	cfg := &t.tr.cfg
	switch t.status {
	case StatusAcquire2:
		t.clampVelocity(cfg.StartUpSpeed)
	case StatusAcquire3:
		t.clampVelocity(2 * cfg.StartUpSpeed)
	}

	vn, ve := t.position.DLatDt, t.position.DLonDt
	speed := units.MPSToKnots(math.Hypot(vn, ve))
	t.courseDeg = geo.Rad2Deg(math.Atan2(ve, vn))
	if t.courseDeg < 0 {
		t.courseDeg += 360
	}
	t.speedKn = t.smoothSpeed(speed)
	t.position.SpeedKn = t.speedKn

	if t.speedKn < cfg.SpeedDivSdev*t.position.SDSpeedKn {
		t.speedKn = 0
		t.courseDeg = 0
		if t.stationary < 2 {
			t.stationary++
		}
	} else if t.stationary > 0 {
		t.stationary--
	}
}

func (t *Target) clampVelocity(limit float64) {
	t.position.DLatDt = clamp(t.position.DLatDt, limit)
	t.position.DLonDt = clamp(t.position.DLonDt, limit)
}

// smoothSpeed pushes v into the speed history and returns the mean.
func (t *Target) smoothSpeed(v float64) float64 {
	if len(t.speeds) == 0 {
		return v
	}
	copy(t.speeds[1:], t.speeds[:len(t.speeds)-1])
	t.speeds[0] = v
	if t.nSpeeds < len(t.speeds) {
		t.nSpeeds++
	}
	var sum float64
	for _, s := range t.speeds[:t.nSpeeds] {
		sum += s
	}
	return sum / float64(t.nSpeeds)
}

func (t *Target) report(own geo.Position, rangeMeters float64) {
	cfg := &t.tr.cfg
	g := cfg.Geometry

	cls := Uncertain
	if t.status > cfg.ConfirmedStatus {
		cls = Confirmed
	}
	if t.lostCount > 0 {
		cls = Uncertain
	}

	pol := g.GeoToPolar(t.position, own, rangeMeters)
	distance := float64(pol.Range) / float64(g.Bins) * rangeMeters
	if ais := t.tr.ais; ais != nil {
		radius := cfg.AISOffsetMeters + cfg.AISDistanceRatio*distance
		if ais.FindAIS(t.position.Lat, t.position.Lon, radius) {
			cls = Merged
		}
	}

	t.tr.sink.Report(Report{
		TargetID:       t.id,
		RangeNM:        units.MetersToNM(distance),
		BearingDeg:     float64(pol.Angle) * 360 / float64(g.Spokes),
		SpeedKn:        t.speedKn,
		CourseDeg:      t.courseDeg,
		Classification: cls,
		Automatic:      t.automatic,
		Lat:            t.position.Lat,
		Lon:            t.position.Lon,
		TimeUnixNanos:  t.position.TimeUnixNanos,
	})
}

// setStatusLost frees the slot. A track that was being reported is retracted.
func (t *Target) setStatusLost() {
	t.contour.Points = t.contour.Points[:0]
	t.lostCount = 0
	t.filter.Reset()
	if t.status >= t.tr.cfg.StatusToReport {
		t.tr.sink.Report(Report{
			TargetID:       t.id,
			Classification: Merged,
			Automatic:      t.automatic,
			TimeUnixNanos:  t.position.TimeUnixNanos,
		})
	}
	t.status = StatusLost
	t.id = 0
	t.automatic = false
	t.refreshTime = 0
	t.speedKn, t.courseDeg = 0, 0
	t.stationary = 0
	t.position.DLatDt, t.position.DLonDt = 0, 0
	t.nSpeeds = 0
	t.pass = pass1
	t.pass1Result = pass1Unknown
}

// TargetState is a read-only copy of a live track.
type TargetState struct {
	Slot        int
	ID          int
	Status      Status
	Automatic   bool
	Position    geo.Position
	Expected    geo.Polar
	SpeedKn     float64
	CourseDeg   float64
	LostCount   int
	Stationary  bool
	ContourLen  int
	MinAngle    int
	MaxAngle    int
	MinRange    int
	MaxRange    int
	PendingPass bool // unresolved in pass 1 of the last sweep
}

func (t *Target) state(slot int) TargetState {
	return TargetState{
		Slot:        slot,
		ID:          t.id,
		Status:      t.status,
		Automatic:   t.automatic,
		Position:    t.position,
		Expected:    t.expected,
		SpeedKn:     t.speedKn,
		CourseDeg:   t.courseDeg,
		LostCount:   t.lostCount,
		Stationary:  t.stationary > 0,
		ContourLen:  t.contour.Len(),
		MinAngle:    t.contour.MinAngle,
		MaxAngle:    t.contour.MaxAngle,
		MinRange:    t.contour.MinRange,
		MaxRange:    t.contour.MaxRange,
		PendingPass: t.pass1Result != pass1Unknown,
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}
