// Package api serves stored runs, their reports and the live track list as JSON.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/marpa/internal/arpa"
	"github.com/banshee-data/marpa/internal/db"
	"github.com/banshee-data/marpa/internal/httputil"
	"github.com/banshee-data/marpa/internal/monitor"
	"github.com/banshee-data/marpa/internal/monitoring"
	"github.com/banshee-data/marpa/internal/timeutil"
	"github.com/banshee-data/marpa/internal/units"
)

// ANSI escape codes for request logging.
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

var logf = monitoring.Componentf("api")

// Server exposes a report store and, optionally, the live tracks of the
// current session.
type Server struct {
	db     *db.DB
	tracks *monitor.TrackRecorder
	units  string
}

// NewServer returns a server reporting speeds in units unless a request
// asks for others. tracks may be nil.
func NewServer(d *db.DB, tracks *monitor.TrackRecorder, units string) *Server {
	return &Server{db: d, tracks: tracks, units: units}
}

// ReportAPI is the wire form of a stored report.
type ReportAPI struct {
	RunID          string    `json:"run_id"`
	TargetID       int       `json:"target_id"`
	Name           string    `json:"name"`
	RangeNM        float64   `json:"range_nm"`
	BearingDeg     float64   `json:"bearing_deg"`
	Speed          float64   `json:"speed"`
	CourseDeg      float64   `json:"course_deg"`
	Classification string    `json:"classification"`
	Retraction     bool      `json:"retraction"`
	Lat            float64   `json:"lat"`
	Lon            float64   `json:"lon"`
	Time           time.Time `json:"time"`
}

// RunAPI is the wire form of a run.
type RunAPI struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Started     time.Time `json:"started"`
	ReportCount int       `json:"report_count"`
	TargetCount int       `json:"target_count"`
}

// TrackAPI summarises a live track.
type TrackAPI struct {
	Name      string  `json:"name"`
	Retracted bool    `json:"retracted"`
	Points    int     `json:"points"`
	North     float64 `json:"north_m"`
	East      float64 `json:"east_m"`
	Speed     float64 `json:"speed"`
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/{id}", s.deleteRun)
	mux.HandleFunc("/api/runs/{id}/reports", s.listReports)
	mux.HandleFunc("/api/tracks", s.listTracks)
	mux.HandleFunc("/api/config", s.showConfig)
	return mux
}

// speedUnits picks the units query parameter or the server default.
func (s *Server) speedUnits(r *http.Request) (string, error) {
	u := r.URL.Query().Get("units")
	if u == "" {
		return s.units, nil
	}
	if !units.IsValid(u) {
		return "", fmt.Errorf("invalid 'units' parameter, use one of %s", units.GetValidUnitsString())
	}
	return u, nil
}

func convertKnots(kn float64, to string) float64 {
	return units.ConvertSpeed(units.KnotsToMPS(kn), to)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	runs, err := s.db.Runs()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve runs: %v", err))
		return
	}
	out := make([]RunAPI, len(runs))
	for i, run := range runs {
		out[i] = RunAPI{
			ID:          run.ID,
			Label:       run.Label,
			Started:     timeutil.UnixNanos(run.StartedUnixNs),
			ReportCount: run.ReportCount,
			TargetCount: run.TargetCount,
		}
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		httputil.MethodNotAllowed(w)
		return
	}
	id := r.PathValue("id")
	if err := s.db.DeleteRun(id); err != nil {
		if errors.Is(err, db.ErrRunNotFound) {
			httputil.WriteJSONError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", id))
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("Failed to delete run: %v", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	to, err := s.speedUnits(r)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	target := 0
	if t := r.URL.Query().Get("target"); t != "" {
		target, err = strconv.Atoi(t)
		if err != nil || target < 1 {
			httputil.WriteJSONError(w, http.StatusBadRequest, "Invalid 'target' parameter")
			return
		}
	}

	reports, err := s.db.Reports(r.PathValue("id"), target)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve reports: %v", err))
		return
	}
	out := make([]ReportAPI, len(reports))
	for i, rep := range reports {
		out[i] = reportToAPI(rep, to)
	}
	httputil.WriteJSONOK(w, out)
}

func reportToAPI(s db.StoredReport, to string) ReportAPI {
	return ReportAPI{
		RunID:          s.RunID,
		TargetID:       s.TargetID,
		Name:           targetName(s.Report),
		RangeNM:        s.RangeNM,
		BearingDeg:     s.BearingDeg,
		Speed:          convertKnots(s.SpeedKn, to),
		CourseDeg:      s.CourseDeg,
		Classification: s.Classification.String(),
		Retraction:     s.IsRetraction(),
		Lat:            s.Lat,
		Lon:            s.Lon,
		Time:           timeutil.UnixNanos(s.TimeUnixNanos),
	}
}

func targetName(r arpa.Report) string {
	return monitor.Track{ID: r.TargetID, Automatic: r.Automatic}.Name()
}

func (s *Server) listTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.tracks == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "no live session")
		return
	}
	to, err := s.speedUnits(r)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	tracks := s.tracks.Tracks()
	out := make([]TrackAPI, 0, len(tracks))
	for _, t := range tracks {
		if len(t.Points) == 0 {
			continue
		}
		last := t.Points[len(t.Points)-1]
		out = append(out, TrackAPI{
			Name:      t.Name(),
			Retracted: t.Retracted,
			Points:    len(t.Points),
			North:     last.North,
			East:      last.East,
			Speed:     convertKnots(last.SpeedKn, to),
		})
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"units":      s.units,
		"live":       s.tracks != nil,
		"validUnits": units.ValidUnits,
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	code := strconv.Itoa(statusCode)
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + code + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + code + colorReset
	case statusCode >= 400:
		return colorBoldRed + code + colorReset
	default:
		return code
	}
}

// LoggingMiddleware logs method, path, status and duration of every request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		logf("[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}
