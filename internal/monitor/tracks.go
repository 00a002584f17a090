// Package monitor records reported tracks and renders them for inspection,
// as PNG plots and as interactive charts on the debug server.
package monitor

import (
	"sort"
	"strconv"
	"sync"

	"github.com/banshee-data/marpa/internal/arpa"
	"github.com/banshee-data/marpa/internal/geo"
)

// TrackPoint is one reported position in metres from the recorder origin.
type TrackPoint struct {
	North          float64
	East           float64
	SpeedKn        float64
	TimeUnixNanos  int64
	Classification arpa.Classification
}

// Track is the report history of one target identifier.
type Track struct {
	ID        int
	Automatic bool
	Retracted bool
	Points    []TrackPoint
}

// Name is the label plotters show for the track.
func (t Track) Name() string {
	if t.Automatic {
		return "ARPA " + strconv.Itoa(t.ID)
	}
	return "MARPA " + strconv.Itoa(t.ID)
}

// TrackRecorder is an arpa.ReportSink that keeps every track it has seen.
// Identifiers can be reused after a retraction, so a retracted track is
// closed and a later report with the same identifier starts a new one.
type TrackRecorder struct {
	mu     sync.Mutex
	origin geo.Position
	active map[int]*Track
	order  []*Track // creation order
}

// NewTrackRecorder returns a recorder placing positions relative to origin.
func NewTrackRecorder(origin geo.Position) *TrackRecorder {
	return &TrackRecorder{origin: origin, active: make(map[int]*Track)}
}

// Report implements arpa.ReportSink.
func (rec *TrackRecorder) Report(r arpa.Report) {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	t, ok := rec.active[r.TargetID]
	if r.IsRetraction() {
		if ok {
			t.Retracted = true
			delete(rec.active, r.TargetID)
		}
		return
	}
	if !ok {
		t = &Track{ID: r.TargetID, Automatic: r.Automatic}
		rec.active[r.TargetID] = t
		rec.order = append(rec.order, t)
	}
	x := geo.ToLocal(geo.Position{Lat: r.Lat, Lon: r.Lon}, rec.origin)
	t.Points = append(t.Points, TrackPoint{
		North:          x.North,
		East:           x.East,
		SpeedKn:        r.SpeedKn,
		TimeUnixNanos:  r.TimeUnixNanos,
		Classification: r.Classification,
	})
}

// Tracks returns copies of all tracks in the order they were started.
func (rec *TrackRecorder) Tracks() []Track {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]Track, 0, len(rec.order))
	for _, t := range rec.order {
		c := *t
		c.Points = append([]TrackPoint(nil), t.Points...)
		out = append(out, c)
	}
	return out
}

// Active returns the identifiers of tracks that have not been retracted, ascending.
func (rec *TrackRecorder) Active() []int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	ids := make([]int, 0, len(rec.active))
	for id := range rec.active {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
