// Package store provides the SQLite labeling journal for spectrumlabel.
package store

import (
	"time"

	"spectrumlabel/internal/labels"
	"spectrumlabel/internal/window"
)

// Dataset describes a loaded recording, keyed by its content fingerprint.
type Dataset struct {
	ID          int64
	Fingerprint string
	Path        string
	Samples     int
	Channels    int
	FirstTime   float64
	LastTime    float64
	Min         float64
	Max         float64
	CreatedAt   time.Time
}

// RunStatus is the lifecycle state of a labeling run.
type RunStatus string

const (
	// RunActive marks a run that has not finished yet.
	RunActive RunStatus = "active"
	// RunComplete marks a run whose planner was exhausted.
	RunComplete RunStatus = "complete"
	// RunAborted marks a run that was cancelled or failed.
	RunAborted RunStatus = "aborted"
)

// Run is one labeling pass over a dataset with a fixed planner configuration.
type Run struct {
	ID         string
	DatasetID  int64
	PlannerKey string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     RunStatus
}

// Summary holds spectral statistics computed over a window.
type Summary struct {
	PeakChannel int
	Centroid    float64
	Flatness    float64
	MeanPower   float64
}

// WindowRecord is a committed window together with its labels.
type WindowRecord struct {
	ID          int64
	DatasetID   int64
	PlannerKey  string
	RunID       string
	Ordinal     int
	Window      window.Window
	CommittedAt time.Time
	Summary     Summary
	Records     []labels.Record
}
