// Package config handles configuration loading, validation, and management for spectrumlabel.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"spectrumlabel/internal/logging"
	"spectrumlabel/internal/render"
	"spectrumlabel/internal/series"
	"spectrumlabel/internal/window"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete labeler configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Input describes the recordings to label.
	Input InputConfig `toml:"input" json:"input" yaml:"input"`

	// Planner controls window sampling.
	Planner PlannerConfig `toml:"planner" json:"planner" yaml:"planner"`

	// Output controls where labels are written.
	Output OutputConfig `toml:"output" json:"output" yaml:"output"`

	// Storage configures the SQLite labeling journal.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Display configures spectrogram rendering.
	Display DisplayConfig `toml:"display" json:"display" yaml:"display"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Metrics configuration.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`

	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// InputConfig lists recordings and how to parse them.
type InputConfig struct {
	// Files are the recording paths, labeled in order.
	Files []string `toml:"files" json:"files" yaml:"files"`

	// TimeLayout is the Go reference layout of the timestamp field.
	TimeLayout string `toml:"time_layout" json:"time_layout" yaml:"time_layout"`

	// ScratchDir holds the memory-mapped measurement matrix. Empty uses the OS temp dir.
	ScratchDir string `toml:"scratch_dir" json:"scratch_dir" yaml:"scratch_dir"`

	// ValidateSchema checks the first record against the record schema.
	ValidateSchema bool `toml:"validate_schema" json:"validate_schema" yaml:"validate_schema"`
}

// PlannerConfig controls window sampling.
type PlannerConfig struct {
	// WindowDurationSec is the nominal window length in seconds.
	WindowDurationSec float64 `toml:"window_duration_sec" json:"window_duration_sec" yaml:"window_duration_sec"`

	// SkipMinSec and SkipMaxSec bound the random gap after each window.
	SkipMinSec int `toml:"skip_min_sec" json:"skip_min_sec" yaml:"skip_min_sec"`
	SkipMaxSec int `toml:"skip_max_sec" json:"skip_max_sec" yaml:"skip_max_sec"`

	// Seed makes the window sequence reproducible.
	Seed uint64 `toml:"seed" json:"seed" yaml:"seed"`

	// StartTolerance, EndTolerance and MinSpan are fractions of the window duration.
	StartTolerance float64 `toml:"start_tolerance" json:"start_tolerance" yaml:"start_tolerance"`
	EndTolerance   float64 `toml:"end_tolerance" json:"end_tolerance" yaml:"end_tolerance"`
	MinSpan        float64 `toml:"min_span" json:"min_span" yaml:"min_span"`
}

// Flush modes for OutputConfig.Flush.
const (
	FlushSeries = "series"
	FlushWindow = "window"
)

// OutputConfig controls the label artifact.
type OutputConfig struct {
	// Directory receives one output file per recording.
	Directory string `toml:"directory" json:"directory" yaml:"directory"`

	// Prefix is prepended to the recording's base name.
	Prefix string `toml:"prefix" json:"prefix" yaml:"prefix"`

	// Flush is "series" (write once at the end) or "window" (rewrite after every window).
	Flush string `toml:"flush" json:"flush" yaml:"flush"`
}

// StorageConfig holds journal configuration.
type StorageConfig struct {
	// Enabled turns the SQLite journal and resume on.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the path to the database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// BusyTimeoutMs is the SQLite busy timeout in milliseconds.
	BusyTimeoutMs int `toml:"busy_timeout_ms" json:"busy_timeout_ms" yaml:"busy_timeout_ms"`
}

// DisplayConfig controls spectrogram rendering.
type DisplayConfig struct {
	// NoiseCutoff floors values within this many dBm of the recording minimum.
	NoiseCutoff float64 `toml:"noise_cutoff" json:"noise_cutoff" yaml:"noise_cutoff"`

	// Colormap is "inferno" or "gray".
	Colormap string `toml:"colormap" json:"colormap" yaml:"colormap"`

	// Width and Height are the initial window size in dp.
	Width  int `toml:"width" json:"width" yaml:"width"`
	Height int `toml:"height" json:"height" yaml:"height"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr", "file", or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
}

// MetricsConfig holds metrics export configuration.
type MetricsConfig struct {
	// Path receives a Prometheus text dump at the end of a run. Empty disables it.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() *Config {
	dir := DataDir()
	return &Config{
		Version: Version,
		Input: InputConfig{
			TimeLayout:     series.DefaultTimeLayout,
			ValidateSchema: true,
		},
		Planner: PlannerConfig{
			WindowDurationSec: 30,
			SkipMinSec:        600,
			SkipMaxSec:        900,
			Seed:              42,
			StartTolerance:    0.25,
			EndTolerance:      0.25,
			MinSpan:           0.5,
		},
		Output: OutputConfig{
			Directory: ".",
			Prefix:    "out_",
			Flush:     FlushSeries,
		},
		Storage: StorageConfig{
			Enabled:       true,
			Path:          filepath.Join(dir, "journal.db"),
			BusyTimeoutMs: 5000,
		},
		Display: DisplayConfig{
			Colormap: render.ColormapInferno,
			Width:    1400,
			Height:   700,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "spectrumlabel.log"),
			MaxSizeMB:  20,
			MaxBackups: 5,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// DataDir returns the base spectrumlabel data directory.
// SPECTRUMLABEL_DATA_DIR overrides the platform default.
func DataDir() string {
	if envDir := os.Getenv("SPECTRUMLABEL_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the output, journal and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Output.Directory}
	if c.Storage.Enabled {
		dirs = append(dirs, filepath.Dir(c.Storage.Path))
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}
	if c.Metrics.Path != "" {
		dirs = append(dirs, filepath.Dir(c.Metrics.Path))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies SPECTRUMLABEL_* environment overrides.
func (c *Config) ApplyEnvOverrides() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("SPECTRUMLABEL_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("SPECTRUMLABEL_SEED: %w", err)
		}
		c.Planner.Seed = seed
	}
	if v := os.Getenv("SPECTRUMLABEL_WINDOW_DURATION"); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SPECTRUMLABEL_WINDOW_DURATION: %w", err)
		}
		c.Planner.WindowDurationSec = d
	}
	if v := os.Getenv("SPECTRUMLABEL_OUTPUT_DIR"); v != "" {
		c.Output.Directory = v
	}
	if v := os.Getenv("SPECTRUMLABEL_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("SPECTRUMLABEL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &Config{
		Version: c.Version,
		Input: InputConfig{
			Files:          append([]string{}, c.Input.Files...),
			TimeLayout:     c.Input.TimeLayout,
			ScratchDir:     c.Input.ScratchDir,
			ValidateSchema: c.Input.ValidateSchema,
		},
		Planner: c.Planner,
		Output:  c.Output,
		Storage: c.Storage,
		Display: c.Display,
		Logging: c.Logging,
		Metrics: c.Metrics,
	}
}

// WindowConfig converts the planner section into planner settings.
func (c *Config) WindowConfig() window.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p := c.Planner
	return window.Config{
		Duration:       p.WindowDurationSec,
		SkipMin:        p.SkipMinSec,
		SkipMax:        p.SkipMaxSec,
		Seed:           p.Seed,
		StartTolerance: p.StartTolerance,
		EndTolerance:   p.EndTolerance,
		MinSpan:        p.MinSpan,
	}
}

// LoadOptions converts the input section into loader options.
func (c *Config) LoadOptions() series.LoadOptions {
	c.mu.RLock()
	defer c.mu.RUnlock()

	opts := series.DefaultLoadOptions()
	if c.Input.TimeLayout != "" {
		opts.TimeLayout = c.Input.TimeLayout
	}
	opts.ScratchDir = c.Input.ScratchDir
	opts.ValidateSchema = c.Input.ValidateSchema
	return opts
}

// LoggerConfig converts the logging section for logging.New.
func (c *Config) LoggerConfig() (*logging.Config, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Logging.Format)
	if err != nil {
		return nil, err
	}
	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = format
	lc.Output = c.Logging.Output
	if c.Logging.FilePath != "" {
		lc.FilePath = c.Logging.FilePath
	}
	if c.Logging.MaxSizeMB > 0 {
		lc.MaxSize = int64(c.Logging.MaxSizeMB)
	}
	lc.MaxBackups = c.Logging.MaxBackups
	return lc, nil
}

// BusyTimeout returns the journal busy timeout as a duration.
func (c *Config) BusyTimeout() time.Duration {
	return time.Duration(c.Storage.BusyTimeoutMs) * time.Millisecond
}
