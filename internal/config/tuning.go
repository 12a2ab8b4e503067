package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// Strategy names accepted in the strategy field.
var strategies = map[string]bool{
	"wall_follow":       true,
	"local_preference":  true,
	"global_preference": true,
}

// TuningConfig holds the knobs of the classification, planning and adapter
// stages. Every field is optional; the Get* methods supply defaults.
type TuningConfig struct {
	// Classification
	CellWidthPx   *int     `json:"cell_width_px,omitempty"`
	CellHeightPx  *int     `json:"cell_height_px,omitempty"`
	Threshold     *int     `json:"threshold,omitempty"` // binarisation cut, 0-255
	ObstacleRatio *float64 `json:"obstacle_ratio,omitempty"`
	ExcludeBorder *bool    `json:"exclude_border,omitempty"`

	// Planning
	ReachDistance  *float64 `json:"reach_distance,omitempty"` // world units
	Strategy       *string  `json:"strategy,omitempty"`
	MetersPerPixel *float64 `json:"meters_per_pixel,omitempty"`
	// Calibration replaces meters_per_pixel with a homography fitted to
	// these pairs when it holds at least four of them.
	Calibration []CalibrationPoint `json:"calibration,omitempty"`

	// Adapters
	CameraDevice   *int    `json:"camera_device,omitempty"`
	SerialPort     *string `json:"serial_port,omitempty"`
	SerialBaudRate *int    `json:"serial_baud_rate,omitempty"`
	DatabasePath   *string `json:"database_path,omitempty"`
	Listen         *string `json:"listen,omitempty"`
}

// CalibrationPoint pairs a frame pixel with its surveyed world position.
type CalibrationPoint struct {
	Pixel [2]float64 `json:"pixel"`
	World [2]float64 `json:"world"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a config with every field set to its default.
func DefaultTuningConfig() *TuningConfig {
	c := EmptyTuningConfig()
	return &TuningConfig{
		CellWidthPx:    ptrInt(c.GetCellWidthPx()),
		CellHeightPx:   ptrInt(c.GetCellHeightPx()),
		Threshold:      ptrInt(c.GetThreshold()),
		ObstacleRatio:  ptrFloat64(c.GetObstacleRatio()),
		ExcludeBorder:  ptrBool(c.GetExcludeBorder()),
		ReachDistance:  ptrFloat64(c.GetReachDistance()),
		Strategy:       ptrString(c.GetStrategy()),
		MetersPerPixel: ptrFloat64(c.GetMetersPerPixel()),
		CameraDevice:   ptrInt(c.GetCameraDevice()),
		SerialPort:     ptrString(c.GetSerialPort()),
		SerialBaudRate: ptrInt(c.GetSerialBaudRate()),
		DatabasePath:   ptrString(c.GetDatabasePath()),
		Listen:         ptrString(c.GetListen()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file fall back to their defaults, so
// partial configs are safe.
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
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
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
	if c.CellWidthPx != nil && *c.CellWidthPx <= 0 {
		return fmt.Errorf("cell_width_px must be positive, got %d", *c.CellWidthPx)
	}
	if c.CellHeightPx != nil && *c.CellHeightPx <= 0 {
		return fmt.Errorf("cell_height_px must be positive, got %d", *c.CellHeightPx)
	}
	if c.Threshold != nil && (*c.Threshold < 0 || *c.Threshold > 255) {
		return fmt.Errorf("threshold must be between 0 and 255, got %d", *c.Threshold)
	}
	if c.ObstacleRatio != nil && *c.ObstacleRatio < 0 {
		return fmt.Errorf("obstacle_ratio must be non-negative, got %f", *c.ObstacleRatio)
	}
	if c.ReachDistance != nil && *c.ReachDistance < 0 {
		return fmt.Errorf("reach_distance must be non-negative, got %f", *c.ReachDistance)
	}
	if c.Strategy != nil && *c.Strategy != "" && !strategies[*c.Strategy] {
		return fmt.Errorf("unknown strategy %q", *c.Strategy)
	}
	if c.MetersPerPixel != nil && *c.MetersPerPixel <= 0 {
		return fmt.Errorf("meters_per_pixel must be positive, got %f", *c.MetersPerPixel)
	}
	if n := len(c.Calibration); n > 0 && n < 4 {
		return fmt.Errorf("calibration needs at least 4 point pairs, got %d", n)
	}
	if c.SerialBaudRate != nil && *c.SerialBaudRate <= 0 {
		return fmt.Errorf("serial_baud_rate must be positive, got %d", *c.SerialBaudRate)
	}
	return nil
}

// GetCellWidthPx returns the cell_width_px value or the default.
func (c *TuningConfig) GetCellWidthPx() int {
	if c.CellWidthPx == nil {
		return 20
	}
	return *c.CellWidthPx
}

// GetCellHeightPx returns the cell_height_px value or the default.
func (c *TuningConfig) GetCellHeightPx() int {
	if c.CellHeightPx == nil {
		return 20
	}
	return *c.CellHeightPx
}

// GetThreshold returns the threshold value or the default.
func (c *TuningConfig) GetThreshold() int {
	if c.Threshold == nil {
		return 127
	}
	return *c.Threshold
}

// GetObstacleRatio returns the obstacle_ratio value or the default.
func (c *TuningConfig) GetObstacleRatio() float64 {
	if c.ObstacleRatio == nil {
		return 0.2
	}
	return *c.ObstacleRatio
}

// GetExcludeBorder returns the exclude_border value or the default.
func (c *TuningConfig) GetExcludeBorder() bool {
	if c.ExcludeBorder == nil {
		return true
	}
	return *c.ExcludeBorder
}

// GetReachDistance returns the reach_distance value or the default.
func (c *TuningConfig) GetReachDistance() float64 {
	if c.ReachDistance == nil {
		return 0.1
	}
	return *c.ReachDistance
}

// GetStrategy returns the strategy value or the default.
func (c *TuningConfig) GetStrategy() string {
	if c.Strategy == nil || *c.Strategy == "" {
		return "wall_follow"
	}
	return *c.Strategy
}

// GetMetersPerPixel returns the meters_per_pixel value or the default.
func (c *TuningConfig) GetMetersPerPixel() float64 {
	if c.MetersPerPixel == nil {
		return 0.005
	}
	return *c.MetersPerPixel
}

// GetCalibration returns the calibration pairs, nil when none are set.
func (c *TuningConfig) GetCalibration() []CalibrationPoint {
	return c.Calibration
}

// GetCameraDevice returns the camera_device value or the default.
func (c *TuningConfig) GetCameraDevice() int {
	if c.CameraDevice == nil {
		return 0
	}
	return *c.CameraDevice
}

// GetSerialPort returns the serial_port value or the default.
func (c *TuningConfig) GetSerialPort() string {
	if c.SerialPort == nil {
		return "/dev/ttyUSB0"
	}
	return *c.SerialPort
}

// GetSerialBaudRate returns the serial_baud_rate value or the default.
func (c *TuningConfig) GetSerialBaudRate() int {
	if c.SerialBaudRate == nil {
		return 115200
	}
	return *c.SerialBaudRate
}

// GetDatabasePath returns the database_path value or the default.
func (c *TuningConfig) GetDatabasePath() string {
	if c.DatabasePath == nil {
		return "coverage.db"
	}
	return *c.DatabasePath
}

// GetListen returns the listen value or the default.
func (c *TuningConfig) GetListen() string {
	if c.Listen == nil {
		return ":8089"
	}
	return *c.Listen
}
