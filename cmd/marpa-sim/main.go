// Command marpa-sim runs the target tracker against a simulated radar. It
// prints or sends TTM sentences, stores every report in SQLite and can serve
// the debug routes and write a track plot.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/marpa/internal/api"
	"github.com/banshee-data/marpa/internal/arpa"
	"github.com/banshee-data/marpa/internal/config"
	"github.com/banshee-data/marpa/internal/db"
	"github.com/banshee-data/marpa/internal/monitor"
	"github.com/banshee-data/marpa/internal/nmeaout"
	"github.com/banshee-data/marpa/internal/security"
	"github.com/banshee-data/marpa/internal/sim"
	"github.com/banshee-data/marpa/internal/timeutil"
	"github.com/banshee-data/marpa/internal/ttm"
	"github.com/banshee-data/marpa/internal/units"
	"github.com/banshee-data/marpa/internal/version"
)

var (
	scenarioPath = flag.String("scenario", "", "Scenario JSON file (built-in harbour approach when empty)")
	tuningPath   = flag.String("tuning", config.DefaultConfigPath, "Tracker tuning JSON file")
	sweeps       = flag.Int("sweeps", 40, "Antenna rotations to simulate, 0 runs until interrupted")
	realtime     = flag.Bool("realtime", false, "Pace rotations at the scenario period")
	automatic    = flag.Bool("auto", false, "Acquire contacts as automatic ARPA targets instead of MARPA")
	dbPath       = flag.String("db", "marpa_reports.db", "SQLite report store, empty to disable")
	label        = flag.String("label", "", "Run label (defaults to the scenario file name)")
	serialPort   = flag.String("serial", "", "Serial port for TTM output, stdout when empty")
	baud         = flag.Int("baud", nmeaout.DefaultBaudRate, "Baud rate for -serial")
	listen       = flag.String("listen", "", "Debug server address, e.g. :8080")
	plotDir      = flag.String("plot-dir", "", "Directory for the PNG track plot written at exit")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

// outputQueueLen is the number of sentences buffered for a slow serial link.
const outputQueueLen = 256

type options struct {
	ScenarioPath string
	TuningPath   string
	Sweeps       int
	Realtime     bool
	Automatic    bool
	DBPath       string
	Label        string
	SerialPort   string
	Baud         int
	Listen       string
	PlotDir      string
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, options{
		ScenarioPath: *scenarioPath,
		TuningPath:   *tuningPath,
		Sweeps:       *sweeps,
		Realtime:     *realtime,
		Automatic:    *automatic,
		DBPath:       *dbPath,
		Label:        *label,
		SerialPort:   *serialPort,
		Baud:         *baud,
		Listen:       *listen,
		PlotDir:      *plotDir,
	}, os.Stdout)
	if err != nil {
		log.Fatalf("marpa-sim: %v", err)
	}
}

func runLabel(o options) string {
	if o.Label != "" {
		return o.Label
	}
	if o.ScenarioPath != "" {
		return strings.TrimSuffix(filepath.Base(o.ScenarioPath), filepath.Ext(o.ScenarioPath))
	}
	return "default"
}

func run(ctx context.Context, o options, stdout io.Writer) error {
	sc := sim.DefaultScenario()
	if o.ScenarioPath != "" {
		var err error
		if sc, err = sim.LoadScenario(o.ScenarioPath); err != nil {
			return err
		}
	}
	tuning, err := config.LoadTuningConfig(o.TuningPath)
	if err != nil {
		return err
	}
	cfg := arpa.ConfigFromTuning(tuning)
	if cfg.Geometry != sc.Geometry() {
		return fmt.Errorf("tuning geometry %dx%d does not match scenario geometry %dx%d",
			cfg.Geometry.Spokes, cfg.Geometry.Bins, sc.Spokes, sc.Bins)
	}
	runName := runLabel(o)

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tracks := monitor.NewTrackRecorder(sc.Origin())
	sinks := arpa.MultiSink{tracks}

	var out *nmeaout.Output
	if o.SerialPort != "" {
		portOpts := nmeaout.PortOptions{BaudRate: o.Baud}
		if out, err = nmeaout.Open(o.SerialPort, portOpts, outputQueueLen); err != nil {
			return err
		}
		log.Printf("sending TTM to %s at %s", o.SerialPort, portOpts)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := out.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("ttm output: %v", err)
			}
		}()
		defer func() {
			if err := out.Close(); err != nil {
				log.Printf("close %s: %v", o.SerialPort, err)
			}
			log.Printf("ttm output: %+v", out.Stats())
		}()
		sinks = append(sinks, out)
	} else {
		sinks = append(sinks, ttm.NewWriter(stdout))
	}

	var store *db.DB
	var recorder *db.Recorder
	if o.DBPath != "" {
		if store, err = db.NewDB(o.DBPath); err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()

		cfgJSON, err := json.Marshal(tuning)
		if err != nil {
			return fmt.Errorf("encode tuning: %w", err)
		}
		runID, err := store.StartRun(runName, string(cfgJSON), sc.Start)
		if err != nil {
			return err
		}
		log.Printf("recording run %s (%s) to %s", runID, runName, o.DBPath)
		recorder = db.NewRecorder(store, runID)
		sinks = append(sinks, recorder)
	}

	if o.Listen != "" {
		mux := http.NewServeMux()
		tracks.AttachAdminRoutes(mux)
		if out != nil {
			out.AttachAdminRoutes(mux)
		}
		if store != nil {
			if err := store.AttachAdminRoutes(mux); err != nil {
				return err
			}
			mux.Handle("/api/", api.NewServer(store, tracks, units.KN).ServeMux())
		}
		serveDebug(ctx, &wg, o.Listen, api.LoggingMiddleware(mux))
	}

	s := sim.New(sc)
	tr := arpa.NewTracker(cfg, s.History(), s,
		arpa.WithAIS(s),
		arpa.WithReportSink(sinks),
		arpa.WithClock(timeutil.ClockFunc(s.Now)),
	)

	// One rotation fills the history before anything is acquired.
	s.Sweep()
	acquireContacts(tr, s, o.Automatic)

	var tick <-chan time.Time
	if o.Realtime {
		var stop func()
		tick, stop = timeutil.SweepTicks(sc.Period())
		defer stop()
	}
	if err := s.Run(ctx, tr, o.Sweeps, tick); err != nil {
		if !errors.Is(err, context.Canceled) {
			return err
		}
		log.Printf("interrupted after %d sweeps", s.Sweeps())
	}
	log.Printf("simulated %d sweeps, %d targets live, %d tracks reported",
		s.Sweeps(), len(tr.Snapshot()), len(tracks.Tracks()))

	if recorder != nil {
		if err := recorder.Err(); err != nil {
			return fmt.Errorf("storing reports: %w", err)
		}
	}
	if o.PlotDir != "" {
		path, err := security.OutputPath(o.PlotDir, runName, ".png")
		if err != nil {
			return err
		}
		if err := monitor.SaveTrackPlot(tracks.Tracks(), runName, path); err != nil {
			return err
		}
		log.Printf("track plot written to %s", path)
	}

	if o.Listen != "" && ctx.Err() == nil {
		log.Printf("serving debug routes on %s until interrupted", o.Listen)
		<-ctx.Done()
	}
	return nil
}

// acquireContacts starts a track on every scenario contact.
func acquireContacts(tr *arpa.Tracker, s *sim.Simulator, automatic bool) {
	sc := s.Scenario()
	own := s.Position()
	for _, p := range s.Contacts() {
		if !automatic {
			tr.AcquireMARPATarget(p)
			continue
		}
		pol := sc.Geometry().GeoToPolar(p, own, sc.RangeMeters)
		if slot := tr.AcquireARPATarget(pol); slot < 0 {
			log.Printf("no slot for contact at %d/%d", pol.Angle, pol.Range)
		}
	}
}

// serveDebug runs the debug server until ctx is done.
func serveDebug(ctx context.Context, wg *sync.WaitGroup, addr string, h http.Handler) {
	server := &http.Server{
		Addr:    addr,
		Handler: h,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("debug server: %v", err)
			}
		}()

		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("debug server shutdown: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("debug server close: %v", err)
			}
		}
	}()
}
