package db

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/marpa/internal/arpa"
)

// ErrRunNotFound is returned when a run identifier is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is one tracker session.
type Run struct {
	ID            string
	Label         string
	StartedUnixNs int64
	ConfigJSON    string
	ReportCount   int
	TargetCount   int
}

// StoredReport is a report as persisted for a run.
type StoredReport struct {
	RunID string
	arpa.Report
}

// StartRun registers a new session and returns its identifier.
func (db *DB) StartRun(label, configJSON string, started time.Time) (string, error) {
	if configJSON == "" {
		configJSON = "{}"
	}
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO runs (run_id, label, started_unix_ns, config_json) VALUES (?, ?, ?, ?)`,
		id, label, started.UnixNano(), configJSON,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// RecordReport stores r under runID.
func (db *DB) RecordReport(runID string, r arpa.Report) error {
	_, err := db.Exec(
		`INSERT INTO reports (
			run_id, target_id, range_nm, bearing_deg, speed_kn, course_deg,
			classification, automatic, lat, lon, time_unix_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.TargetID, r.RangeNM, r.BearingDeg, r.SpeedKn, r.CourseDeg,
		r.Classification.String(), r.Automatic, r.Lat, r.Lon, r.TimeUnixNanos,
	)
	if err != nil {
		return fmt.Errorf("insert report for target %d: %w", r.TargetID, err)
	}
	return nil
}

// Reports returns the reports of a run in the order they were recorded.
// A targetID above zero restricts the result to that target.
func (db *DB) Reports(runID string, targetID int) ([]StoredReport, error) {
	q := `SELECT run_id, target_id, range_nm, bearing_deg, speed_kn, course_deg,
			classification, automatic, lat, lon, time_unix_ns
		FROM reports WHERE run_id = ?`
	args := []interface{}{runID}
	if targetID > 0 {
		q += ` AND target_id = ?`
		args = append(args, targetID)
	}
	q += ` ORDER BY report_id`

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredReport
	for rows.Next() {
		var (
			s   StoredReport
			cls string
		)
		if err := rows.Scan(
			&s.RunID, &s.TargetID, &s.RangeNM, &s.BearingDeg, &s.SpeedKn, &s.CourseDeg,
			&cls, &s.Automatic, &s.Lat, &s.Lon, &s.TimeUnixNanos,
		); err != nil {
			return nil, err
		}
		c, err := parseClassification(cls)
		if err != nil {
			return nil, err
		}
		s.Classification = c
		out = append(out, s)
	}
	return out, rows.Err()
}

// Runs lists all sessions, newest first, with their report and target counts.
func (db *DB) Runs() ([]Run, error) {
	rows, err := db.Query(`
		SELECT r.run_id, r.label, r.started_unix_ns, r.config_json,
			COUNT(p.report_id), COUNT(DISTINCT p.target_id)
		FROM runs r LEFT JOIN reports p ON p.run_id = r.run_id
		GROUP BY r.run_id
		ORDER BY r.started_unix_ns DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Label, &r.StartedUnixNs, &r.ConfigJSON, &r.ReportCount, &r.TargetCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its reports.
func (db *DB) DeleteRun(runID string) error {
	res, err := db.Exec(`DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// ClassCount is the number of reports of one classification in a run.
type ClassCount struct {
	RunID          string `json:"run_id"`
	Classification string `json:"classification"`
	Count          int    `json:"count"`
}

// ReportStats counts reports per run and classification.
func (db *DB) ReportStats() ([]ClassCount, error) {
	rows, err := db.Query(`
		SELECT run_id, classification, COUNT(*)
		FROM reports GROUP BY run_id, classification
		ORDER BY run_id, classification`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClassCount
	for rows.Next() {
		var c ClassCount
		if err := rows.Scan(&c.RunID, &c.Classification, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func parseClassification(s string) (arpa.Classification, error) {
	for _, c := range []arpa.Classification{arpa.Uncertain, arpa.Confirmed, arpa.Merged} {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown classification %q", s)
}

// Recorder is an arpa.ReportSink persisting every report of one run. Insert
// failures are logged; the first one is kept for Err.
type Recorder struct {
	db    *DB
	runID string

	mu  sync.Mutex
	err error
}

// NewRecorder returns a sink writing to runID.
func NewRecorder(db *DB, runID string) *Recorder {
	return &Recorder{db: db, runID: runID}
}

// Report implements arpa.ReportSink.
func (rec *Recorder) Report(r arpa.Report) {
	if err := rec.db.RecordReport(rec.runID, r); err != nil {
		logf("run %s: %v", rec.runID, err)
		rec.mu.Lock()
		if rec.err == nil {
			rec.err = err
		}
		rec.mu.Unlock()
	}
}

// Err returns the first insert failure, if any.
func (rec *Recorder) Err() error {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.err
}
