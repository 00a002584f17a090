package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestMustLoadDefaultConfig_MatchesGetterDefaults(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	empty := EmptyTuningConfig()

	ints := []struct {
		name      string
		got, want int
	}{
		{"spokes", cfg.GetSpokes(), empty.GetSpokes()},
		{"bins", cfg.GetBins(), empty.GetBins()},
		{"max_targets", cfg.GetMaxTargets(), empty.GetMaxTargets()},
		{"search_radius1", cfg.GetSearchRadius1(), empty.GetSearchRadius1()},
		{"search_radius2", cfg.GetSearchRadius2(), empty.GetSearchRadius2()},
		{"scan_margin_spokes", cfg.GetScanMarginSpokes(), empty.GetScanMarginSpokes()},
		{"pass2_extra_margin_spokes", cfg.GetPass2ExtraMarginSpokes(), empty.GetPass2ExtraMarginSpokes()},
		{"max_target_diameter", cfg.GetMaxTargetDiameter(), empty.GetMaxTargetDiameter()},
		{"min_contour_length", cfg.GetMinContourLength(), empty.GetMinContourLength()},
		{"distance_between_targets", cfg.GetDistanceBetweenTargets(), empty.GetDistanceBetweenTargets()},
		{"max_lost_count", cfg.GetMaxLostCount(), empty.GetMaxLostCount()},
		{"status_to_report", cfg.GetStatusToReport(), empty.GetStatusToReport()},
		{"confirmed_status", cfg.GetConfirmedStatus(), empty.GetConfirmedStatus()},
		{"coast_min_status", cfg.GetCoastMinStatus(), empty.GetCoastMinStatus()},
		{"id_modulus", cfg.GetIDModulus(), empty.GetIDModulus()},
		{"speed_history", cfg.GetSpeedHistory(), empty.GetSpeedHistory()},
	}
	for _, tc := range ints {
		if tc.got != tc.want {
			t.Errorf("%s: defaults file has %d, getter default is %d", tc.name, tc.got, tc.want)
		}
	}

	floats := []struct {
		name      string
		got, want float64
	}{
		{"speed_div_sdev", cfg.GetSpeedDivSdev(), empty.GetSpeedDivSdev()},
		{"start_up_speed_mps", cfg.GetStartUpSpeedMps(), empty.GetStartUpSpeedMps()},
		{"ais_offset_meters", cfg.GetAISOffsetMeters(), empty.GetAISOffsetMeters()},
		{"ais_distance_ratio", cfg.GetAISDistanceRatio(), empty.GetAISDistanceRatio()},
		{"initial_pos_var", cfg.GetInitialPosVar(), empty.GetInitialPosVar()},
		{"initial_vel_var", cfg.GetInitialVelVar(), empty.GetInitialVelVar()},
		{"process_noise", cfg.GetProcessNoise(), empty.GetProcessNoise()},
		{"angle_noise", cfg.GetAngleNoise(), empty.GetAngleNoise()},
		{"range_noise", cfg.GetRangeNoise(), empty.GetRangeNoise()},
	}
	for _, tc := range floats {
		if tc.got != tc.want {
			t.Errorf("%s: defaults file has %v, getter default is %v", tc.name, tc.got, tc.want)
		}
	}

	if cfg.GetScanMarginTime() != time.Second {
		t.Errorf("GetScanMarginTime() = %v, want 1s", cfg.GetScanMarginTime())
	}
	if cfg.GetGuardZonesEnabled() {
		t.Error("guard zones should default to disabled")
	}
}

func TestLoadTuningConfig_Partial(t *testing.T) {
	path := writeConfig(t, "partial.json", `{
  "search_radius2": 60,
  "scan_margin_time": "750ms",
  "guard_zones_enabled": true,
  "angle_noise": 16
}`)

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetSearchRadius2() != 60 {
		t.Errorf("GetSearchRadius2() = %d, want 60", cfg.GetSearchRadius2())
	}
	if cfg.GetScanMarginTime() != 750*time.Millisecond {
		t.Errorf("GetScanMarginTime() = %v, want 750ms", cfg.GetScanMarginTime())
	}
	if !cfg.GetGuardZonesEnabled() {
		t.Error("GetGuardZonesEnabled() = false, want true")
	}
	if cfg.GetAngleNoise() != 16 {
		t.Errorf("GetAngleNoise() = %v, want 16", cfg.GetAngleNoise())
	}
	// Omitted fields fall back to defaults.
	if cfg.GetSearchRadius1() != 10 {
		t.Errorf("GetSearchRadius1() = %d, want 10", cfg.GetSearchRadius1())
	}
	if cfg.GetMaxTargets() != 64 {
		t.Errorf("GetMaxTargets() = %d, want 64", cfg.GetMaxTargets())
	}
}

func TestLoadTuningConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "tuning.yaml", `{}`, ".json extension"},
		{"bad json", "bad.json", `{"max_targets": `, "failed to parse"},
		{"bad duration", "dur.json", `{"scan_margin_time": "soon"}`, "scan_margin_time"},
		{"zero spokes", "spokes.json", `{"spokes": 0}`, "spokes must be positive"},
		{"one target", "pool.json", `{"max_targets": 1}`, "max_targets must be at least 2"},
		{"report threshold", "report.json", `{"status_to_report": 0}`, "status_to_report must be at least 1"},
		{"status order", "status.json", `{"confirmed_status": 3}`, "must not be below status_to_report"},
		{"ais ratio", "ais.json", `{"ais_distance_ratio": 2}`, "ais_distance_ratio"},
		{"negative noise", "noise.json", `{"range_noise": -1}`, "range_noise must be positive"},
		{"negative process noise", "q.json", `{"process_noise": -0.1}`, "process_noise"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.file, tc.body)
			_, err := LoadTuningConfig(path)
			if err == nil {
				t.Fatalf("expected error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadTuningConfig_MissingFile(t *testing.T) {
	_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil || !strings.Contains(err.Error(), "failed to stat") {
		t.Errorf("expected stat error, got %v", err)
	}
}

func TestLoadTuningConfig_TooLarge(t *testing.T) {
	big := `{"spokes": 2048` + strings.Repeat(" ", 1024*1024) + `}`
	path := writeConfig(t, "big.json", big)
	_, err := LoadTuningConfig(path)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected size error, got %v", err)
	}
}

func TestGetScanMarginTime_InvalidFallsBack(t *testing.T) {
	bad := "later"
	cfg := &TuningConfig{ScanMarginTime: &bad}
	if cfg.GetScanMarginTime() != time.Second {
		t.Errorf("GetScanMarginTime() = %v, want default", cfg.GetScanMarginTime())
	}
}
