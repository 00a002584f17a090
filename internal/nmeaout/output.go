// Package nmeaout sends target reports as TTM sentences to a serial port and
// lets debug clients tail what was sent.
package nmeaout

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.bug.st/serial"
	"tailscale.com/tsweb"

	"github.com/banshee-data/marpa/internal/arpa"
	"github.com/banshee-data/marpa/internal/httputil"
	"github.com/banshee-data/marpa/internal/monitoring"
	"github.com/banshee-data/marpa/internal/ttm"
)

var ErrClosed = fmt.Errorf("nmea output closed")

var logf = monitoring.Componentf("nmeaout")

// Stats counts sentences handled by an Output.
type Stats struct {
	Sent    int `json:"sent"`
	Dropped int `json:"dropped"`
	Errors  int `json:"errors"`
}

// Output is an arpa.ReportSink writing to a port from its own goroutine, so a
// slow link never stalls the tracker. Sentences that do not fit the queue are
// dropped.
type Output struct {
	port  io.WriteCloser
	queue chan string

	done  chan struct{} // closed when Run returns

	mu          sync.Mutex
	stats       Stats
	subscribers map[string]chan string
	running     bool
	closed      bool
}

// NewOutput returns an output writing to port with room for queueLen pending
// sentences.
func NewOutput(port io.WriteCloser, queueLen int) *Output {
	if queueLen < 1 {
		queueLen = 1
	}
	return &Output{
		port:        port,
		queue:       make(chan string, queueLen),
		done:        make(chan struct{}),
		subscribers: make(map[string]chan string),
	}
}

// Open opens the serial port at path.
func Open(path string, opts PortOptions, queueLen int) (*Output, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return NewOutput(port, queueLen), nil
}

// Report implements arpa.ReportSink.
func (o *Output) Report(r arpa.Report) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	select {
	case o.queue <- ttm.Sentence(r):
	default:
		o.stats.Dropped++
	}
}

// Run writes queued sentences until ctx is done or the output is closed.
// It must be called at most once.
func (o *Output) Run(ctx context.Context) error {
	o.mu.Lock()
	o.running = true
	o.mu.Unlock()
	defer close(o.done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-o.queue:
			if !ok {
				return nil
			}
			o.write(s)
		}
	}
}

func (o *Output) write(s string) {
	_, err := io.WriteString(o.port, s)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.stats.Errors++
		logf("write failed: %v", err)
		return
	}
	o.stats.Sent++
	line := strings.TrimRight(s, "\r\n")
	for _, ch := range o.subscribers {
		select {
		case ch <- line:
		default:
		}
	}
}

// Stats returns a copy of the counters.
func (o *Output) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

// Subscribe returns a channel receiving every sentence written, without CRLF.
func (o *Output) Subscribe() (string, chan string) {
	id := uuid.NewString()
	ch := make(chan string, 16)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber channel.
func (o *Output) Unsubscribe(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ch, ok := o.subscribers[id]; ok {
		close(ch)
		delete(o.subscribers, id)
	}
}

// Close stops accepting reports, waits for a running Run to drain the queue
// and closes the port.
func (o *Output) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	o.closed = true
	close(o.queue)
	for id, ch := range o.subscribers {
		close(ch)
		delete(o.subscribers, id)
	}
	running := o.running
	o.mu.Unlock()

	if running {
		<-o.done
	}
	return o.port.Close()
}

// AttachAdminRoutes mounts the sentence tail and counters on the debug mux.
func (o *Output) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("ttm-stats", "TTM output counters", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, o.Stats())
	})

	debug.HandleSilentFunc("ttm-tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			httputil.InternalServerError(w, "streaming unsupported")
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Accel-Buffering", "no")

		id, c := o.Subscribe()
		defer o.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()
		for {
			select {
			case line, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", line); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
