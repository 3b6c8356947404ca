// Package window cuts a recording into randomly spaced review windows.
//
// The planner walks a cursor from the start of the recording, skipping forward a
// random whole number of seconds between windows, so that long idle stretches
// are sampled rather than reviewed exhaustively. Every candidate is checked
// against the sampling-gap tolerances before it is handed out.
package window

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrEmptySeries   = errors.New("window: empty time series")
	ErrInvalidConfig = errors.New("window: invalid planner configuration")
)

// Window is an accepted review window. Rows [StartIndex, EndIndex) are shown to
// the annotator; StartTime and EndTime are the timestamps at both indices.
type Window struct {
	StartIndex int
	EndIndex   int
	StartTime  float64
	EndTime    float64
}

// Rows returns the number of displayed rows.
func (w Window) Rows() int {
	return w.EndIndex - w.StartIndex
}

// Span returns EndTime - StartTime in seconds.
func (w Window) Span() float64 {
	return w.EndTime - w.StartTime
}

// SecondsPerRow returns the mean sampling interval inside the window.
func (w Window) SecondsPerRow() float64 {
	if w.Rows() == 0 {
		return 0
	}
	return w.Span() / float64(w.Rows())
}

func (w Window) String() string {
	return fmt.Sprintf("[%d,%d] %f-%f", w.StartIndex, w.EndIndex, w.StartTime, w.EndTime)
}

// Config holds the planner parameters. Tolerances are fractions of Duration.
type Config struct {
	// Duration is the nominal window length in seconds.
	Duration float64

	// SkipMin and SkipMax bound the random forward skip in whole seconds,
	// both inclusive.
	SkipMin int
	SkipMax int

	// Seed makes the skip sequence reproducible.
	Seed uint64

	// StartTolerance bounds |cursor - T[start]|.
	StartTolerance float64

	// EndTolerance bounds |cursor + Duration - T[end]|.
	EndTolerance float64

	// MinSpan is the lower bound for T[end] - T[start].
	MinSpan float64
}

// DefaultConfig returns 30 second windows spaced 10 to 15 minutes apart.
func DefaultConfig() Config {
	return Config{
		Duration:       30,
		SkipMin:        10 * 60,
		SkipMax:        15 * 60,
		Seed:           42,
		StartTolerance: 0.25,
		EndTolerance:   0.25,
		MinSpan:        0.5,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.Duration <= 0:
		return fmt.Errorf("%w: duration must be positive, got %g", ErrInvalidConfig, c.Duration)
	case c.SkipMin < 0 || c.SkipMax < c.SkipMin:
		return fmt.Errorf("%w: skip range [%d, %d]", ErrInvalidConfig, c.SkipMin, c.SkipMax)
	case c.SkipMin == 0 && c.SkipMax == 0:
		return fmt.Errorf("%w: skip range must allow forward progress", ErrInvalidConfig)
	case c.StartTolerance <= 0 || c.EndTolerance <= 0 || c.MinSpan <= 0:
		return fmt.Errorf("%w: tolerances must be positive", ErrInvalidConfig)
	case c.StartTolerance > 1 || c.EndTolerance > 1 || c.MinSpan > 1:
		return fmt.Errorf("%w: tolerances are fractions of the duration", ErrInvalidConfig)
	}
	return nil
}

// Key identifies the window sequence this configuration produces. Two runs over
// the same recording with equal keys plan identical windows.
func (c Config) Key() string {
	return fmt.Sprintf("d=%g skip=%d-%d seed=%d tol=%g/%g/%g",
		c.Duration, c.SkipMin, c.SkipMax, c.Seed, c.StartTolerance, c.EndTolerance, c.MinSpan)
}
