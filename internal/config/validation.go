package config

import (
	"errors"
	"fmt"
	"strings"

	"spectrumlabel/internal/render"
)

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Is lets errors.Is(err, ErrInvalidConfig) match any validation failure.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Fields returns the names of the offending fields.
func (e ValidationErrors) Fields() []string {
	out := make([]string, 0, len(e))
	for _, err := range e {
		out = append(out, err.Field)
	}
	return out
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateInput(&c.Input)...)
	errs = append(errs, validatePlanner(&c.Planner)...)
	errs = append(errs, validateOutput(&c.Output)...)
	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateDisplay(&c.Display)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateInput(in *InputConfig) ValidationErrors {
	var errs ValidationErrors
	if in.TimeLayout == "" {
		errs = append(errs, *RequiredFieldError("input.time_layout"))
	}
	for i, f := range in.Files {
		if strings.TrimSpace(f) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("input.files[%d]", i),
				Message: "empty path",
			})
		}
	}
	return errs
}

func validatePlanner(p *PlannerConfig) ValidationErrors {
	var errs ValidationErrors

	if p.WindowDurationSec <= 0 {
		errs = append(errs, ValidationError{
			Field:   "planner.window_duration_sec",
			Message: "window duration must be positive",
		})
	}
	if p.SkipMinSec < 0 || p.SkipMaxSec < p.SkipMinSec {
		errs = append(errs, ValidationError{
			Field:   "planner.skip_min_sec",
			Message: fmt.Sprintf("need 0 <= skip_min_sec <= skip_max_sec, got %d and %d", p.SkipMinSec, p.SkipMaxSec),
		})
	}
	if p.SkipMaxSec < 1 {
		errs = append(errs, ValidationError{
			Field:   "planner.skip_max_sec",
			Message: "skip_max_sec must be at least 1 so the cursor advances",
		})
	}

	fractions := []struct {
		field string
		v     float64
	}{
		{"planner.start_tolerance", p.StartTolerance},
		{"planner.end_tolerance", p.EndTolerance},
		{"planner.min_span", p.MinSpan},
	}
	for _, f := range fractions {
		if f.v <= 0 || f.v > 1 {
			errs = append(errs, *RangeError(f.field, "0 (exclusive)", 1))
		}
	}
	return errs
}

func validateOutput(o *OutputConfig) ValidationErrors {
	var errs ValidationErrors
	if o.Directory == "" {
		errs = append(errs, *RequiredFieldError("output.directory"))
	}
	if strings.ContainsRune(o.Prefix, '/') {
		errs = append(errs, ValidationError{
			Field:   "output.prefix",
			Message: "prefix must not contain a path separator",
		})
	}
	switch o.Flush {
	case FlushSeries, FlushWindow:
	default:
		errs = append(errs, ValidationError{
			Field:   "output.flush",
			Message: fmt.Sprintf("invalid flush mode: %s (valid: series, window)", o.Flush),
		})
	}
	return errs
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors
	if !s.Enabled {
		return nil
	}
	if s.Path == "" {
		errs = append(errs, *RequiredFieldError("storage.path"))
	}
	if s.BusyTimeoutMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.busy_timeout_ms",
			Message: "busy timeout cannot be negative",
		})
	}
	return errs
}

func validateDisplay(d *DisplayConfig) ValidationErrors {
	var errs ValidationErrors
	if d.NoiseCutoff < 0 {
		errs = append(errs, ValidationError{
			Field:   "display.noise_cutoff",
			Message: "noise cutoff cannot be negative",
		})
	}
	if _, err := render.ColormapByName(d.Colormap); err != nil {
		errs = append(errs, ValidationError{
			Field:   "display.colormap",
			Message: fmt.Sprintf("invalid colormap: %s (valid: inferno, gray)", d.Colormap),
		})
	}
	if d.Width < 0 || d.Height < 0 {
		errs = append(errs, ValidationError{
			Field:   "display.width",
			Message: "window size cannot be negative",
		})
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output writes to a file",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size cannot be negative",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}

	return errs
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}
