package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.CellWidthPx == nil || *cfg.CellWidthPx != 20 {
		t.Errorf("Expected CellWidthPx 20, got %v", cfg.CellWidthPx)
	}
	if cfg.ObstacleRatio == nil || *cfg.ObstacleRatio != 0.2 {
		t.Errorf("Expected ObstacleRatio 0.2, got %v", cfg.ObstacleRatio)
	}
	if cfg.Strategy == nil || *cfg.Strategy != "wall_follow" {
		t.Errorf("Expected Strategy 'wall_follow', got %v", cfg.Strategy)
	}
	if cfg.ExcludeBorder == nil || *cfg.ExcludeBorder != true {
		t.Errorf("Expected ExcludeBorder true, got %v", cfg.ExcludeBorder)
	}
	if cfg.GetCalibration() != nil {
		t.Errorf("Expected no calibration, got %v", cfg.GetCalibration())
	}

	if cfg.GetThreshold() != 127 {
		t.Errorf("GetThreshold() = %d, want 127", cfg.GetThreshold())
	}
	if cfg.GetReachDistance() != 0.1 {
		t.Errorf("GetReachDistance() = %f, want 0.1", cfg.GetReachDistance())
	}
	if cfg.GetSerialBaudRate() != 115200 {
		t.Errorf("GetSerialBaudRate() = %d, want 115200", cfg.GetSerialBaudRate())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestDefaultsFileMatchesGetters(t *testing.T) {
	file := MustLoadDefaultConfig()
	want := DefaultTuningConfig()

	if file.GetCellWidthPx() != want.GetCellWidthPx() ||
		file.GetCellHeightPx() != want.GetCellHeightPx() ||
		file.GetThreshold() != want.GetThreshold() ||
		file.GetObstacleRatio() != want.GetObstacleRatio() ||
		file.GetExcludeBorder() != want.GetExcludeBorder() ||
		file.GetReachDistance() != want.GetReachDistance() ||
		file.GetStrategy() != want.GetStrategy() ||
		file.GetMetersPerPixel() != want.GetMetersPerPixel() ||
		file.GetCameraDevice() != want.GetCameraDevice() ||
		file.GetSerialPort() != want.GetSerialPort() ||
		file.GetSerialBaudRate() != want.GetSerialBaudRate() ||
		file.GetDatabasePath() != want.GetDatabasePath() ||
		file.GetListen() != want.GetListen() {
		t.Errorf("%s drifted from the built-in defaults", DefaultConfigPath)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "cell_width_px": 32,
  "threshold": 90,
  "exclude_border": false,
  "strategy": "global_preference",
  "calibration": [
    {"pixel": [0, 0], "world": [0, 0]},
    {"pixel": [640, 0], "world": [3.2, 0]},
    {"pixel": [640, 480], "world": [3.2, -2.4]},
    {"pixel": [0, 480], "world": [0, -2.4]}
  ],
  "listen": "127.0.0.1:9000"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetCellWidthPx() != 32 {
		t.Errorf("Expected CellWidthPx 32, got %d", cfg.GetCellWidthPx())
	}
	if cfg.GetCellHeightPx() != 20 {
		t.Errorf("Expected omitted CellHeightPx to default to 20, got %d", cfg.GetCellHeightPx())
	}
	if cfg.GetThreshold() != 90 {
		t.Errorf("Expected Threshold 90, got %d", cfg.GetThreshold())
	}
	if cfg.GetExcludeBorder() {
		t.Error("Expected ExcludeBorder false")
	}
	if cal := cfg.GetCalibration(); len(cal) != 4 || cal[2].Pixel != [2]float64{640, 480} || cal[2].World != [2]float64{3.2, -2.4} {
		t.Errorf("Unexpected calibration %v", cal)
	}
	if cfg.GetStrategy() != "global_preference" {
		t.Errorf("Expected Strategy 'global_preference', got %q", cfg.GetStrategy())
	}
	if cfg.GetListen() != "127.0.0.1:9000" {
		t.Errorf("Expected Listen '127.0.0.1:9000', got %q", cfg.GetListen())
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigWrongExtension(t *testing.T) {
	_, err := LoadTuningConfig("config.yaml")
	if err == nil || !strings.Contains(err.Error(), ".json") {
		t.Errorf("Expected extension error, got %v", err)
	}
}

func TestLoadTuningConfigTooLarge(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "big.json")
	if err := os.WriteFile(configPath, make([]byte, 1024*1024+1), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	_, err := LoadTuningConfig(configPath)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("Expected size error, got %v", err)
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()

	for name, body := range map[string]string{
		"bad_json.json":  `{"threshold": "high"`,
		"bad_value.json": `{"threshold": 300}`,
	} {
		configPath := filepath.Join(tmpDir, name)
		if err := os.WriteFile(configPath, []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write test config: %v", err)
		}
		if _, err := LoadTuningConfig(configPath); err == nil {
			t.Errorf("%s: expected error, got nil", name)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{name: "valid config", cfg: DefaultTuningConfig()},
		{name: "empty config is valid", cfg: &TuningConfig{}},
		{name: "zero cell width", cfg: &TuningConfig{CellWidthPx: ptrInt(0)}, wantErr: true},
		{name: "negative cell height", cfg: &TuningConfig{CellHeightPx: ptrInt(-4)}, wantErr: true},
		{name: "threshold too high", cfg: &TuningConfig{Threshold: ptrInt(256)}, wantErr: true},
		{name: "threshold negative", cfg: &TuningConfig{Threshold: ptrInt(-1)}, wantErr: true},
		{name: "negative obstacle ratio", cfg: &TuningConfig{ObstacleRatio: ptrFloat64(-0.1)}, wantErr: true},
		{name: "negative reach", cfg: &TuningConfig{ReachDistance: ptrFloat64(-1)}, wantErr: true},
		{name: "unknown strategy", cfg: &TuningConfig{Strategy: ptrString("zigzag")}, wantErr: true},
		{name: "empty strategy", cfg: &TuningConfig{Strategy: ptrString("")}},
		{name: "zero scale", cfg: &TuningConfig{MetersPerPixel: ptrFloat64(0)}, wantErr: true},
		{name: "zero baud", cfg: &TuningConfig{SerialBaudRate: ptrInt(0)}, wantErr: true},
		{name: "three calibration pairs", cfg: &TuningConfig{Calibration: make([]CalibrationPoint, 3)}, wantErr: true},
		{name: "four calibration pairs", cfg: &TuningConfig{Calibration: make([]CalibrationPoint, 4)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetStrategy(t *testing.T) {
	tests := []struct {
		name string
		cfg  *TuningConfig
		want string
	}{
		{name: "nil pointer returns default", cfg: &TuningConfig{}, want: "wall_follow"},
		{name: "empty string returns default", cfg: &TuningConfig{Strategy: ptrString("")}, want: "wall_follow"},
		{name: "explicit", cfg: &TuningConfig{Strategy: ptrString("local_preference")}, want: "local_preference"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetStrategy(); got != tt.want {
				t.Errorf("GetStrategy() = %q, want %q", got, tt.want)
			}
		})
	}
}
