package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/marpa/internal/arpa"
	"github.com/banshee-data/marpa/internal/db"
	"github.com/banshee-data/marpa/internal/geo"
	"github.com/banshee-data/marpa/internal/monitor"
	"github.com/banshee-data/marpa/internal/monitoring"
)

func newTestServer(t *testing.T, tracks *monitor.TrackRecorder) (*Server, *db.DB) {
	t.Helper()
	prev := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(prev) })

	store, err := db.NewDB(filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewServer(store, tracks, "kn"), store
}

func seedRun(t *testing.T, store *db.DB) string {
	t.Helper()
	runID, err := store.StartRun("harbour", "", time.Unix(1700000000, 0))
	require.NoError(t, err)
	for _, r := range []arpa.Report{
		{TargetID: 1, RangeNM: 0.4, BearingDeg: 45, SpeedKn: 10, CourseDeg: 90, Classification: arpa.Confirmed, Lat: 52.004, Lon: 4.005, TimeUnixNanos: 10},
		{TargetID: 2, RangeNM: 1.2, BearingDeg: 180, SpeedKn: 2, Classification: arpa.Uncertain, Automatic: true, Lat: 51.98, Lon: 4.0, TimeUnixNanos: 11},
		{TargetID: 1, Classification: arpa.Merged, TimeUnixNanos: 12},
	} {
		require.NoError(t, store.RecordReport(runID, r))
	}
	return runID
}

func get(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestListRuns(t *testing.T) {
	s, store := newTestServer(t, nil)
	runID := seedRun(t, store)

	w := get(t, s.ServeMux(), http.MethodGet, "/api/runs")
	require.Equal(t, http.StatusOK, w.Code)

	var runs []RunAPI
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, "harbour", runs[0].Label)
	assert.Equal(t, 3, runs[0].ReportCount)
	assert.Equal(t, 2, runs[0].TargetCount)
	assert.True(t, runs[0].Started.Equal(time.Unix(1700000000, 0)))

	w = get(t, s.ServeMux(), http.MethodPost, "/api/runs")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestListReports(t *testing.T) {
	s, store := newTestServer(t, nil)
	runID := seedRun(t, store)
	mux := s.ServeMux()

	w := get(t, mux, http.MethodGet, "/api/runs/"+runID+"/reports")
	require.Equal(t, http.StatusOK, w.Code)
	var reports []ReportAPI
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reports))
	require.Len(t, reports, 3)
	assert.Equal(t, "MARPA 1", reports[0].Name)
	assert.Equal(t, "confirmed", reports[0].Classification)
	assert.InDelta(t, 10, reports[0].Speed, 1e-9)
	assert.Equal(t, "ARPA 2", reports[1].Name)
	assert.True(t, reports[2].Retraction)
	assert.False(t, reports[0].Retraction)

	w = get(t, mux, http.MethodGet, "/api/runs/"+runID+"/reports?target=1&units=mps")
	require.Equal(t, http.StatusOK, w.Code)
	reports = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reports))
	require.Len(t, reports, 2)
	assert.InDelta(t, 10*1852.0/3600, reports[0].Speed, 1e-9)
}

func TestListReports_BadParams(t *testing.T) {
	s, store := newTestServer(t, nil)
	runID := seedRun(t, store)
	mux := s.ServeMux()

	for _, q := range []string{"?units=furlongs", "?target=abc", "?target=0"} {
		w := get(t, mux, http.MethodGet, "/api/runs/"+runID+"/reports"+q)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestDeleteRun(t *testing.T) {
	s, store := newTestServer(t, nil)
	runID := seedRun(t, store)
	mux := s.ServeMux()

	w := get(t, mux, http.MethodDelete, "/api/runs/"+runID)
	assert.Equal(t, http.StatusNoContent, w.Code)

	runs, err := store.Runs()
	require.NoError(t, err)
	assert.Empty(t, runs)

	w = get(t, mux, http.MethodDelete, "/api/runs/"+runID)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get(t, mux, http.MethodGet, "/api/runs/"+runID)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestListTracks(t *testing.T) {
	origin := geo.Position{Lat: 52, Lon: 4}
	tracks := monitor.NewTrackRecorder(origin)
	tracks.Report(arpa.Report{TargetID: 1, SpeedKn: 6, Classification: arpa.Confirmed, Lat: 52.001, Lon: 4, TimeUnixNanos: 1})
	tracks.Report(arpa.Report{TargetID: 1, SpeedKn: 7, Classification: arpa.Confirmed, Lat: 52.002, Lon: 4, TimeUnixNanos: 2})
	s, _ := newTestServer(t, tracks)

	w := get(t, s.ServeMux(), http.MethodGet, "/api/tracks")
	require.Equal(t, http.StatusOK, w.Code)
	var out []TrackAPI
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "MARPA 1", out[0].Name)
	assert.Equal(t, 2, out[0].Points)
	assert.InDelta(t, 7, out[0].Speed, 1e-9)
	assert.InDelta(t, 0.002*60*1852, out[0].North, 1)
	assert.False(t, out[0].Retracted)
}

func TestListTracks_NoSession(t *testing.T) {
	s, _ := newTestServer(t, nil)
	w := get(t, s.ServeMux(), http.MethodGet, "/api/tracks")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestShowConfig(t *testing.T) {
	s, _ := newTestServer(t, nil)
	w := get(t, s.ServeMux(), http.MethodGet, "/api/config")
	require.Equal(t, http.StatusOK, w.Code)

	var cfg struct {
		Units      string   `json:"units"`
		Live       bool     `json:"live"`
		ValidUnits []string `json:"validUnits"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, "kn", cfg.Units)
	assert.False(t, cfg.Live)
	assert.Contains(t, cfg.ValidUnits, "mps")
}

func TestLoggingMiddleware(t *testing.T) {
	var lines []string
	prev := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, format)
	})
	t.Cleanup(func() { monitoring.SetLogger(prev) })

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := get(t, h, http.MethodGet, "/api/teapot")
	assert.Equal(t, http.StatusTeapot, w.Code)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "[api]")
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"304"+colorReset, statusCodeColor(304))
	assert.Equal(t, colorBoldRed+"500"+colorReset, statusCodeColor(500))
	assert.Equal(t, "101", statusCodeColor(101))
}
