// Package sim paints synthetic radar sweeps for a moving own ship and a set
// of contacts. It stands in for a radar and a navigation feed when running
// the tracker without hardware.
package sim

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/marpa/internal/geo"
)

// Contact is a simulated vessel or buoy. Its start position is given in
// metres from the scenario origin.
type Contact struct {
	Name         string  `json:"name"`
	North        float64 `json:"north_m"`
	East         float64 `json:"east_m"`
	SpeedKn      float64 `json:"speed_kn"`
	CourseDeg    float64 `json:"course_deg"`
	RadiusMeters float64 `json:"radius_m"`
	AIS          bool    `json:"ais"` // broadcasts AIS, so tracks on it merge
}

// Scenario describes a simulation run.
type Scenario struct {
	Spokes        int       `json:"spokes"`
	Bins          int       `json:"bins"`
	RangeMeters   float64   `json:"range_m"`
	PeriodSeconds float64   `json:"period_s"`       // one antenna rotation
	RefreshSpokes int       `json:"refresh_spokes"` // spokes painted between tracker refreshes
	Start         time.Time `json:"start"`
	OriginLat     float64   `json:"origin_lat"`
	OriginLon     float64   `json:"origin_lon"`
	OwnSpeedKn    float64   `json:"own_speed_kn"`
	OwnCourseDeg  float64   `json:"own_course_deg"`
	NoiseCells    int       `json:"noise_cells"` // isolated clutter returns per sweep
	Seed          int64     `json:"seed"`
	Contacts      []Contact `json:"contacts"`
}

// DefaultScenario is a harbour approach with three contacts, one of them
// on AIS.
func DefaultScenario() Scenario {
	return Scenario{
		Spokes:        2048,
		Bins:          512,
		RangeMeters:   3704,
		PeriodSeconds: 2.5,
		RefreshSpokes: 256,
		Start:         time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC),
		OriginLat:     51.95,
		OriginLon:     4.05,
		OwnSpeedKn:    4,
		OwnCourseDeg:  90,
		NoiseCells:    40,
		Seed:          1,
		Contacts: []Contact{
			{Name: "tanker", North: 1500, East: -500, SpeedKn: 8, CourseDeg: 135, RadiusMeters: 40, AIS: true},
			{Name: "yacht", North: -800, East: 1200, SpeedKn: 5, CourseDeg: 0, RadiusMeters: 20},
			{Name: "buoy", North: 600, East: 900, RadiusMeters: 15},
		},
	}
}

// Geometry returns the grid geometry of the scenario.
func (sc Scenario) Geometry() geo.Geometry {
	return geo.Geometry{Spokes: sc.Spokes, Bins: sc.Bins}
}

// Period returns the rotation period.
func (sc Scenario) Period() time.Duration {
	return time.Duration(sc.PeriodSeconds * float64(time.Second))
}

// Origin is own ship's position at Start.
func (sc Scenario) Origin() geo.Position {
	return geo.Position{Lat: sc.OriginLat, Lon: sc.OriginLon}
}

// Validate checks that the scenario can be painted.
func (sc Scenario) Validate() error {
	if sc.Spokes <= 0 || sc.Bins <= 0 {
		return fmt.Errorf("invalid geometry %dx%d", sc.Spokes, sc.Bins)
	}
	if sc.RangeMeters <= 0 {
		return errors.New("range_m must be positive")
	}
	if sc.PeriodSeconds <= 0 {
		return errors.New("period_s must be positive")
	}
	if sc.RefreshSpokes <= 0 || sc.RefreshSpokes > sc.Spokes {
		return fmt.Errorf("refresh_spokes must be in 1..%d", sc.Spokes)
	}
	if sc.NoiseCells < 0 {
		return errors.New("noise_cells must not be negative")
	}
	for i, c := range sc.Contacts {
		if c.RadiusMeters <= 0 {
			return fmt.Errorf("contact %d (%s): radius_m must be positive", i, c.Name)
		}
	}
	return nil
}

// LoadScenario reads a scenario from a JSON file. Fields left out of the
// file keep their DefaultScenario values, except contacts, which are
// replaced when present.
func LoadScenario(path string) (Scenario, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Scenario{}, fmt.Errorf("scenario file must have .json extension, got %q", ext)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Scenario{}, fmt.Errorf("failed to read scenario: %w", err)
	}
	sc := DefaultScenario()
	contacts := sc.Contacts
	sc.Contacts = nil
	if err := json.Unmarshal(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("failed to parse scenario JSON: %w", err)
	}
	if sc.Contacts == nil {
		sc.Contacts = contacts
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, fmt.Errorf("invalid scenario: %w", err)
	}
	return sc, nil
}
