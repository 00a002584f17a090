package arpa

import (
	"time"

	"github.com/banshee-data/marpa/internal/config"
	"github.com/banshee-data/marpa/internal/geo"
	"github.com/banshee-data/marpa/internal/kalman"
)

// Config holds the tracker tunables.
type Config struct {
	Geometry geo.Geometry

	// Pool and search
	MaxTargets             int           // slots, the last one reserved for a deletion request
	SearchRadius1          int           // pass 1 search radius in range bins
	SearchRadius2          int           // pass 2 search radius in range bins
	ScanMargin             int           // spokes the beam must have passed beyond a target
	Pass2ExtraMargin       int           // added to ScanMargin in pass 2
	ScanMarginTime         time.Duration // minimum time between refreshes of one target
	MaxTargetDiameter      int           // larger blobs or jumps are land, not targets
	MinContourLength       int           // shorter outlines are noise while acquiring
	DistanceBetweenTargets int           // margin cleared around a claimed blob
	GuardZonesEnabled      bool

	// Status machine
	MaxLostCount    int
	StatusToReport  Status // first status that is reported and gets an identifier
	ConfirmedStatus Status // statuses above this report as confirmed
	CoastMinStatus  Status // lower statuses are dropped on the first miss
	IDModulus       int

	// Speed and course
	SpeedHistory     int
	SpeedDivSdev     float64 // speeds below SpeedDivSdev standard deviations read as stationary
	StartUpSpeed     float64 // m/s clamp per axis at Acquire2, doubled at Acquire3
	AISOffsetMeters  float64
	AISDistanceRatio float64 // fraction of target distance added to the AIS match radius

	Kalman kalman.Config
}

// DefaultConfig returns tracker configuration loaded from the
// canonical tuning defaults file (config/tuning.defaults.json).
// Panics if the file cannot be found; intended for tests and binaries
// that have already validated config availability.
func DefaultConfig() Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		Geometry:               geo.Geometry{Spokes: cfg.GetSpokes(), Bins: cfg.GetBins()},
		MaxTargets:             cfg.GetMaxTargets(),
		SearchRadius1:          cfg.GetSearchRadius1(),
		SearchRadius2:          cfg.GetSearchRadius2(),
		ScanMargin:             cfg.GetScanMarginSpokes(),
		Pass2ExtraMargin:       cfg.GetPass2ExtraMarginSpokes(),
		ScanMarginTime:         cfg.GetScanMarginTime(),
		MaxTargetDiameter:      cfg.GetMaxTargetDiameter(),
		MinContourLength:       cfg.GetMinContourLength(),
		DistanceBetweenTargets: cfg.GetDistanceBetweenTargets(),
		GuardZonesEnabled:      cfg.GetGuardZonesEnabled(),
		MaxLostCount:           cfg.GetMaxLostCount(),
		StatusToReport:         Status(cfg.GetStatusToReport()),
		ConfirmedStatus:        Status(cfg.GetConfirmedStatus()),
		CoastMinStatus:         Status(cfg.GetCoastMinStatus()),
		IDModulus:              cfg.GetIDModulus(),
		SpeedHistory:           cfg.GetSpeedHistory(),
		SpeedDivSdev:           cfg.GetSpeedDivSdev(),
		StartUpSpeed:           cfg.GetStartUpSpeedMps(),
		AISOffsetMeters:        cfg.GetAISOffsetMeters(),
		AISDistanceRatio:       cfg.GetAISDistanceRatio(),
		Kalman: kalman.Config{
			InitialPosVar: cfg.GetInitialPosVar(),
			InitialVelVar: cfg.GetInitialVelVar(),
			ProcessNoise:  cfg.GetProcessNoise(),
			AngleNoise:    cfg.GetAngleNoise(),
			RangeNoise:    cfg.GetRangeNoise(),
		},
	}
}
