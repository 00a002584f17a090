// Package ttm encodes target reports as NMEA 0183 TTM (tracked target
// message) sentences for chart plotters.
package ttm

import (
	"fmt"
	"io"
	"sync"

	"github.com/banshee-data/marpa/internal/arpa"
	"github.com/banshee-data/marpa/internal/monitoring"
)

// Status letters of the TTM target status field.
const (
	StatusLost     = "L"
	StatusQuery    = "Q"
	StatusTracking = "T"
)

// StatusLetter maps a classification to the TTM status field. Merged targets
// are shown as lost so the plotter prefers the AIS target.
func StatusLetter(c arpa.Classification) string {
	switch c {
	case arpa.Confirmed:
		return StatusTracking
	case arpa.Merged:
		return StatusLost
	default:
		return StatusQuery
	}
}

// TargetName returns the name a plotter shows for a target.
func TargetName(r arpa.Report) string {
	if r.Automatic {
		return fmt.Sprintf("ARPA%4d", r.TargetID)
	}
	return fmt.Sprintf("MARPA%4d", r.TargetID)
}

// Sentence returns the complete sentence for r including the leading '$',
// checksum and CRLF. Speed and course of uncertain targets are sent as zero.
func Sentence(r arpa.Report) string {
	status := StatusLetter(r.Classification)
	speed, course := r.SpeedKn, r.CourseDeg
	if status == StatusQuery {
		speed, course = 0, 0
	}
	body := fmt.Sprintf("RATTM,%4d,%f,%f,,%4.2f,%3.1f,T, , ,N,%s,%s, ",
		r.TargetID, r.RangeNM, r.BearingDeg, speed, course, TargetName(r), status)
	return fmt.Sprintf("$%s*%02X\r\n", body, Checksum(body))
}

// Checksum is the XOR of all bytes between '$' and '*'.
func Checksum(body string) byte {
	var cs byte
	for i := 0; i < len(body); i++ {
		cs ^= body[i]
	}
	return cs
}

// Writer is a report sink that writes one sentence per report. Write errors
// are logged and the report is dropped.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a sink writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

var logf = monitoring.Componentf("ttm")

// Report implements arpa.ReportSink.
func (tw *Writer) Report(r arpa.Report) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if _, err := io.WriteString(tw.w, Sentence(r)); err != nil {
		logf("write target %d: %v", r.TargetID, err)
	}
}
