package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tracker tuning.
// Every field is optional; the Get* methods supply the default for any
// field left out of the JSON, so partial files are safe.
type TuningConfig struct {
	// Radar image geometry
	Spokes *int `json:"spokes,omitempty"`
	Bins   *int `json:"bins,omitempty"`

	// Track pool and search
	MaxTargets             *int    `json:"max_targets,omitempty"`
	SearchRadius1          *int    `json:"search_radius1,omitempty"`
	SearchRadius2          *int    `json:"search_radius2,omitempty"`
	ScanMarginSpokes       *int    `json:"scan_margin_spokes,omitempty"`
	Pass2ExtraMarginSpokes *int    `json:"pass2_extra_margin_spokes,omitempty"`
	ScanMarginTime         *string `json:"scan_margin_time,omitempty"` // duration string like "1s"
	MaxTargetDiameter      *int    `json:"max_target_diameter,omitempty"`
	MinContourLength       *int    `json:"min_contour_length,omitempty"`
	DistanceBetweenTargets *int    `json:"distance_between_targets,omitempty"`
	GuardZonesEnabled      *bool   `json:"guard_zones_enabled,omitempty"`

	// Track status machine
	MaxLostCount    *int `json:"max_lost_count,omitempty"`
	StatusToReport  *int `json:"status_to_report,omitempty"`
	ConfirmedStatus *int `json:"confirmed_status,omitempty"`
	CoastMinStatus  *int `json:"coast_min_status,omitempty"`
	IDModulus       *int `json:"id_modulus,omitempty"`

	// Speed and course
	SpeedHistory     *int     `json:"speed_history,omitempty"`
	SpeedDivSdev     *float64 `json:"speed_div_sdev,omitempty"`
	StartUpSpeedMps  *float64 `json:"start_up_speed_mps,omitempty"`
	AISOffsetMeters  *float64 `json:"ais_offset_meters,omitempty"`
	AISDistanceRatio *float64 `json:"ais_distance_ratio,omitempty"`

	// Estimator noise
	InitialPosVar *float64 `json:"initial_pos_var,omitempty"`
	InitialVelVar *float64 `json:"initial_vel_var,omitempty"`
	ProcessNoise  *float64 `json:"process_noise,omitempty"`
	AngleNoise    *float64 `json:"angle_noise,omitempty"`
	RangeNoise    *float64 `json:"range_noise,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	positive := []struct {
		name string
		v    *int
	}{
		{"spokes", c.Spokes},
		{"bins", c.Bins},
		{"max_targets", c.MaxTargets},
		{"speed_history", c.SpeedHistory},
		{"id_modulus", c.IDModulus},
	}
	for _, p := range positive {
		if p.v != nil && *p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, *p.v)
		}
	}

	if c.MaxTargets != nil && *c.MaxTargets < 2 {
		return fmt.Errorf("max_targets must be at least 2, got %d", *c.MaxTargets)
	}

	if c.ScanMarginTime != nil && *c.ScanMarginTime != "" {
		if _, err := time.ParseDuration(*c.ScanMarginTime); err != nil {
			return fmt.Errorf("invalid scan_margin_time '%s': %w", *c.ScanMarginTime, err)
		}
	}

	if c.StatusToReport != nil && *c.StatusToReport < 1 {
		return fmt.Errorf("status_to_report must be at least 1, got %d", *c.StatusToReport)
	}
	if c.GetConfirmedStatus() < c.GetStatusToReport() {
		return fmt.Errorf("confirmed_status (%d) must not be below status_to_report (%d)",
			c.GetConfirmedStatus(), c.GetStatusToReport())
	}

	if c.AISDistanceRatio != nil && (*c.AISDistanceRatio < 0 || *c.AISDistanceRatio > 1) {
		return fmt.Errorf("ais_distance_ratio must be between 0 and 1, got %f", *c.AISDistanceRatio)
	}

	for name, v := range map[string]*float64{
		"initial_pos_var": c.InitialPosVar,
		"initial_vel_var": c.InitialVelVar,
		"angle_noise":     c.AngleNoise,
		"range_noise":     c.RangeNoise,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}
	if c.ProcessNoise != nil && *c.ProcessNoise < 0 {
		return fmt.Errorf("process_noise must be non-negative, got %f", *c.ProcessNoise)
	}

	return nil
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// GetSpokes returns the spokes value or the default.
func (c *TuningConfig) GetSpokes() int { return intOr(c.Spokes, 2048) }

// GetBins returns the bins value or the default.
func (c *TuningConfig) GetBins() int { return intOr(c.Bins, 512) }

// GetMaxTargets returns the max_targets value or the default.
func (c *TuningConfig) GetMaxTargets() int { return intOr(c.MaxTargets, 64) }

// GetSearchRadius1 returns the pass 1 search radius in range bins.
func (c *TuningConfig) GetSearchRadius1() int { return intOr(c.SearchRadius1, 10) }

// GetSearchRadius2 returns the pass 2 search radius in range bins.
func (c *TuningConfig) GetSearchRadius2() int { return intOr(c.SearchRadius2, 40) }

// GetScanMarginSpokes returns the scan_margin_spokes value or the default.
func (c *TuningConfig) GetScanMarginSpokes() int { return intOr(c.ScanMarginSpokes, 150) }

// GetPass2ExtraMarginSpokes returns the pass2_extra_margin_spokes value or the default.
func (c *TuningConfig) GetPass2ExtraMarginSpokes() int { return intOr(c.Pass2ExtraMarginSpokes, 100) }

// GetScanMarginTime parses and returns the ScanMarginTime as a time.Duration.
func (c *TuningConfig) GetScanMarginTime() time.Duration {
	if c.ScanMarginTime == nil || *c.ScanMarginTime == "" {
		return time.Second // default
	}
	d, err := time.ParseDuration(*c.ScanMarginTime)
	if err != nil {
		return time.Second // default on parse error
	}
	return d
}

// GetMaxTargetDiameter returns the max_target_diameter value or the default.
func (c *TuningConfig) GetMaxTargetDiameter() int { return intOr(c.MaxTargetDiameter, 200) }

// GetMinContourLength returns the min_contour_length value or the default.
func (c *TuningConfig) GetMinContourLength() int { return intOr(c.MinContourLength, 6) }

// GetDistanceBetweenTargets returns the distance_between_targets value or the default.
func (c *TuningConfig) GetDistanceBetweenTargets() int { return intOr(c.DistanceBetweenTargets, 4) }

// GetGuardZonesEnabled returns the guard_zones_enabled value or the default.
func (c *TuningConfig) GetGuardZonesEnabled() bool {
	if c.GuardZonesEnabled == nil {
		return false // default: guard zones off
	}
	return *c.GuardZonesEnabled
}

// GetMaxLostCount returns the max_lost_count value or the default.
func (c *TuningConfig) GetMaxLostCount() int { return intOr(c.MaxLostCount, 3) }

// GetStatusToReport returns the status_to_report value or the default.
func (c *TuningConfig) GetStatusToReport() int { return intOr(c.StatusToReport, 5) }

// GetConfirmedStatus returns the confirmed_status value or the default.
func (c *TuningConfig) GetConfirmedStatus() int { return intOr(c.ConfirmedStatus, 6) }

// GetCoastMinStatus returns the coast_min_status value or the default.
func (c *TuningConfig) GetCoastMinStatus() int { return intOr(c.CoastMinStatus, 3) }

// GetIDModulus returns the id_modulus value or the default.
func (c *TuningConfig) GetIDModulus() int { return intOr(c.IDModulus, 10000) }

// GetSpeedHistory returns the speed_history value or the default.
func (c *TuningConfig) GetSpeedHistory() int { return intOr(c.SpeedHistory, 8) }

// GetSpeedDivSdev returns the speed_div_sdev value or the default.
func (c *TuningConfig) GetSpeedDivSdev() float64 { return floatOr(c.SpeedDivSdev, 2) }

// GetStartUpSpeedMps returns the start_up_speed_mps value or the default.
func (c *TuningConfig) GetStartUpSpeedMps() float64 { return floatOr(c.StartUpSpeedMps, 0.5) }

// GetAISOffsetMeters returns the ais_offset_meters value or the default.
func (c *TuningConfig) GetAISOffsetMeters() float64 { return floatOr(c.AISOffsetMeters, 18) }

// GetAISDistanceRatio returns the ais_distance_ratio value or the default.
func (c *TuningConfig) GetAISDistanceRatio() float64 { return floatOr(c.AISDistanceRatio, 0.03) }

// GetInitialPosVar returns the initial_pos_var value or the default.
func (c *TuningConfig) GetInitialPosVar() float64 { return floatOr(c.InitialPosVar, 20) }

// GetInitialVelVar returns the initial_vel_var value or the default.
func (c *TuningConfig) GetInitialVelVar() float64 { return floatOr(c.InitialVelVar, 4) }

// GetProcessNoise returns the process_noise value or the default.
func (c *TuningConfig) GetProcessNoise() float64 { return floatOr(c.ProcessNoise, 0.015) }

// GetAngleNoise returns the angle_noise value or the default.
func (c *TuningConfig) GetAngleNoise() float64 { return floatOr(c.AngleNoise, 9) }

// GetRangeNoise returns the range_noise value or the default.
func (c *TuningConfig) GetRangeNoise() float64 { return floatOr(c.RangeNoise, 4) }
