package sim

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/marpa/internal/arpa"
	"github.com/banshee-data/marpa/internal/geo"
	"github.com/banshee-data/marpa/internal/spokes"
	"github.com/banshee-data/marpa/internal/units"
)

func quietScenario(contacts ...Contact) Scenario {
	sc := DefaultScenario()
	sc.OwnSpeedKn = 0
	sc.NoiseCells = 0
	sc.Contacts = contacts
	return sc
}

func countHits(h *spokes.History) int {
	g := h.Geometry()
	s := h.Sampler(spokes.PrimaryBit)
	n := 0
	for a := 0; a < g.Spokes; a++ {
		for r := 0; r < g.Bins; r++ {
			if s.Hit(a, r) {
				n++
			}
		}
	}
	return n
}

type countingRefresher struct{ n int }

func (c *countingRefresher) RefreshTargets() { c.n++ }

func TestSweep_PaintsContact(t *testing.T) {
	sc := quietScenario(Contact{Name: "buoy", North: 600, East: 900, RadiusMeters: 15})
	s := New(sc)
	s.Sweep()
	assert.Equal(t, 1, s.Sweeps())

	h := s.History()
	g := sc.Geometry()
	centre := g.GeoToPolar(s.Contacts()[0], s.Position(), sc.RangeMeters)
	hit := h.Sampler(spokes.PrimaryBit)
	assert.True(t, hit.Hit(centre.Angle, centre.Range))
	assert.True(t, hit.DenseHit(centre.Angle, centre.Range))
	assert.False(t, hit.Hit(centre.Angle+100, centre.Range))
	assert.Greater(t, countHits(h), 10)

	step := sc.Period() / time.Duration(sc.Spokes)
	assert.Equal(t, sc.Start.UnixNano(), h.SpokeTime(0))
	assert.Equal(t, sc.Start.Add(2047*step).UnixNano(), h.SpokeTime(2047))
	assert.Equal(t, sc.Start.Add(2047*step), s.Now())
}

func TestSweep_OutOfRangeContact(t *testing.T) {
	s := New(quietScenario(Contact{Name: "far", North: 10000, RadiusMeters: 50}))
	s.Sweep()
	assert.Zero(t, countHits(s.History()))
}

func TestPosition_OwnShipMoves(t *testing.T) {
	sc := quietScenario()
	sc.OwnSpeedKn = 10
	sc.OwnCourseDeg = 90
	s := New(sc)
	assert.Equal(t, sc.Origin().Lat, s.Position().Lat)

	s.Sweep()
	own := s.Position()
	elapsed := s.Now().Sub(sc.Start).Seconds()
	assert.Greater(t, own.Lon, sc.OriginLon)
	assert.InDelta(t, sc.OriginLat, own.Lat, 1e-9)
	assert.InDelta(t, units.KnotsToMPS(10)*elapsed, geo.DistanceMeters(own, sc.Origin()), 0.01)
	assert.InDelta(t, units.KnotsToMPS(10), own.DLonDt, 1e-9)
	assert.Equal(t, s.Now().UnixNano(), own.TimeUnixNanos)

	// Each spoke carries own ship at its own reception time.
	assert.Less(t, s.History().SpokeOwnShip(0).Lon, s.History().SpokeOwnShip(2000).Lon)
}

func TestFindAIS(t *testing.T) {
	s := New(quietScenario(
		Contact{Name: "ferry", North: 1000, RadiusMeters: 30, AIS: true},
		Contact{Name: "dinghy", North: -1000, RadiusMeters: 10},
	))
	ferry := s.Contacts()[0]
	dinghy := s.Contacts()[1]

	assert.True(t, s.FindAIS(ferry.Lat, ferry.Lon, 5))
	assert.False(t, s.FindAIS(dinghy.Lat, dinghy.Lon, 5))

	near := geo.FromLocal(geo.LocalPosition{North: 1040}, s.Scenario().Origin())
	assert.False(t, s.FindAIS(near.Lat, near.Lon, 30))
	assert.True(t, s.FindAIS(near.Lat, near.Lon, 50))
}

func TestContacts_Move(t *testing.T) {
	s := New(quietScenario(Contact{Name: "yacht", SpeedKn: 6, CourseDeg: 180, North: 500, RadiusMeters: 10}))
	before := s.Contacts()[0]
	s.Sweep()
	after := s.Contacts()[0]

	elapsed := s.Now().Sub(s.Scenario().Start).Seconds()
	assert.Less(t, after.Lat, before.Lat)
	assert.InDelta(t, units.KnotsToMPS(6)*elapsed, geo.DistanceMeters(after, before), 0.01)
}

func TestNoise_Reproducible(t *testing.T) {
	sc := quietScenario()
	sc.NoiseCells = 30
	a, b := New(sc), New(sc)
	a.Sweep()
	b.Sweep()

	n := countHits(a.History())
	assert.Greater(t, n, 0)
	assert.LessOrEqual(t, n, 30)
	assert.Equal(t, n, countHits(b.History()))
}

func TestStep_WrapsRotation(t *testing.T) {
	sc := quietScenario()
	s := New(sc)
	s.Step(1000)
	assert.Equal(t, 0, s.Sweeps())
	s.Step(1048)
	assert.Equal(t, 1, s.Sweeps())
	s.Step(10)

	step := sc.Period() / time.Duration(sc.Spokes)
	assert.Equal(t, sc.Start.Add(sc.Period()+5*step).UnixNano(), s.History().SpokeTime(5))
	assert.Equal(t, sc.Start.Add(2047*step).UnixNano(), s.History().SpokeTime(2047))

	// Sweep finishes the started rotation.
	s.Sweep()
	assert.Equal(t, 2, s.Sweeps())
}

func TestRun_RefreshesPerChunk(t *testing.T) {
	s := New(quietScenario())
	var r countingRefresher
	require.NoError(t, s.Run(context.Background(), &r, 2, nil))
	assert.Equal(t, 2, s.Sweeps())
	assert.Equal(t, 2*2048/256, r.n)
}

func TestRun_Cancelled(t *testing.T) {
	s := New(quietScenario())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var r countingRefresher
	assert.ErrorIs(t, s.Run(ctx, &r, 0, nil), context.Canceled)
	assert.ErrorIs(t, s.Run(ctx, &r, 0, make(chan time.Time)), context.Canceled)
	assert.Zero(t, r.n)
	assert.Zero(t, s.Sweeps())
}

func TestRun_WaitsForTick(t *testing.T) {
	s := New(quietScenario())
	tick := make(chan time.Time, 1)
	tick <- time.Now()

	var r countingRefresher
	require.NoError(t, s.Run(context.Background(), &r, 1, tick))
	assert.Equal(t, 1, s.Sweeps())
}

func TestLoadScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "harbour.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"range_m": 1852,
		"noise_cells": 5,
		"contacts": [{"name": "pilot", "north_m": 300, "speed_kn": 12, "radius_m": 12}]
	}`), 0o644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, 1852.0, sc.RangeMeters)
	assert.Equal(t, 5, sc.NoiseCells)
	assert.Equal(t, 2048, sc.Spokes)
	require.Len(t, sc.Contacts, 1)
	assert.Equal(t, Contact{Name: "pilot", North: 300, SpeedKn: 12, RadiusMeters: 12}, sc.Contacts[0])

	// Contacts default when the file leaves them out.
	require.NoError(t, os.WriteFile(path, []byte(`{"seed": 7}`), 0o644))
	sc, err = LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, int64(7), sc.Seed)
	assert.Len(t, sc.Contacts, len(DefaultScenario().Contacts))
}

func TestLoadScenario_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadScenario(filepath.Join(dir, "scenario.yaml"))
	assert.ErrorContains(t, err, ".json extension")

	_, err = LoadScenario(filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "failed to read scenario")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"contacts": [{"name": "ghost"}]}`), 0o644))
	_, err = LoadScenario(bad)
	assert.ErrorContains(t, err, "radius_m must be positive")

	require.NoError(t, os.WriteFile(bad, []byte(`{"refresh_spokes": 4096}`), 0o644))
	_, err = LoadScenario(bad)
	assert.ErrorContains(t, err, "refresh_spokes")

	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0o644))
	_, err = LoadScenario(bad)
	assert.ErrorContains(t, err, "failed to parse scenario JSON")
}

type reportLog struct{ reports []arpa.Report }

func (l *reportLog) Report(r arpa.Report) { l.reports = append(l.reports, r) }

func TestTrackerFollowsContacts(t *testing.T) {
	sc := DefaultScenario()
	sc.NoiseCells = 0
	s := New(sc)
	s.Sweep()

	var log reportLog
	tr := arpa.NewTracker(arpa.DefaultConfig(), s.History(), s,
		arpa.WithAIS(s),
		arpa.WithReportSink(&log),
		arpa.WithLogger(t.Logf),
	)
	for _, p := range s.Contacts() {
		tr.AcquireMARPATarget(p)
	}
	require.NoError(t, s.Run(context.Background(), tr, 12, nil))
	require.Len(t, tr.Snapshot(), 3)

	last := make(map[int]arpa.Report)
	for _, r := range log.reports {
		require.False(t, r.IsRetraction(), "target %d retracted", r.TargetID)
		last[r.TargetID] = r
	}
	require.Len(t, last, 3)
	for id := 1; id <= 3; id++ {
		require.Contains(t, last, id)
	}

	// Match each contact to the nearest final report.
	truth := s.Contacts()
	for i, c := range sc.Contacts {
		best, bestDist := arpa.Report{}, math.Inf(1)
		for _, r := range last {
			if d := geo.DistanceMeters(geo.Position{Lat: r.Lat, Lon: r.Lon}, truth[i]); d < bestDist {
				best, bestDist = r, d
			}
		}
		assert.Less(t, bestDist, 30.0, c.Name)
		assert.False(t, best.Automatic, c.Name)

		switch c.Name {
		case "tanker":
			assert.Equal(t, arpa.Merged, best.Classification)
			assert.InDelta(t, 8, best.SpeedKn, 2)
			assert.InDelta(t, 135, best.CourseDeg, 15)
		case "yacht":
			assert.Equal(t, arpa.Confirmed, best.Classification)
			assert.InDelta(t, 5, best.SpeedKn, 1.5)
		case "buoy":
			assert.Equal(t, arpa.Confirmed, best.Classification)
			assert.Less(t, best.SpeedKn, 1.0)
		}
	}
}

func TestLoadScenario_Shipped(t *testing.T) {
	sc, err := LoadScenario("../../config/scenarios/crossing.json")
	require.NoError(t, err)
	assert.Equal(t, int64(42), sc.Seed)
	require.Len(t, sc.Contacts, 3)
	assert.True(t, sc.Contacts[0].AIS)
	assert.Equal(t, DefaultScenario().Geometry(), sc.Geometry())
}
