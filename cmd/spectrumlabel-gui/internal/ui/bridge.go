package ui

import (
	"context"
	"log/slog"
	"sync"

	"spectrumlabel/internal/annotation"
	"spectrumlabel/internal/labeler"
)

// Job is a window waiting for the user. The UI goroutine owns Annotator until
// it calls Commit.
type Job struct {
	View      labeler.View
	Annotator *labeler.Annotator
	done      chan error
	once      sync.Once
}

// Commit hands the window back to the labeler. Only the first call counts.
func (j *Job) Commit(err error) {
	j.once.Do(func() { j.done <- err })
}

// Bridge is the labeler.Presenter for the GUI. The labeler goroutine blocks
// in Annotate while the UI goroutine drives the session.
type Bridge struct {
	jobs     chan *Job
	finished chan error

	mu         sync.Mutex
	invalidate func()

	log *slog.Logger
}

// NewBridge creates a bridge. log may be nil.
func NewBridge(log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{
		jobs:       make(chan *Job, 1),
		finished:   make(chan error, 1),
		invalidate: func() {},
		log:        log,
	}
}

// SetInvalidate registers the function that schedules a redraw.
func (b *Bridge) SetInvalidate(fn func()) {
	b.mu.Lock()
	b.invalidate = fn
	b.mu.Unlock()
}

func (b *Bridge) redraw() {
	b.mu.Lock()
	fn := b.invalidate
	b.mu.Unlock()
	fn()
}

// Annotate publishes the window to the UI and waits for it to be committed.
func (b *Bridge) Annotate(ctx context.Context, v labeler.View, a *labeler.Annotator) error {
	j := &Job{View: v, Annotator: a, done: make(chan error, 1)}
	select {
	case b.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.redraw()

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns a pending job without blocking.
func (b *Bridge) Next() (*Job, bool) {
	select {
	case j := <-b.jobs:
		return j, true
	default:
		return nil, false
	}
}

// Finish reports the end of the labeling run to the UI.
func (b *Bridge) Finish(err error) {
	select {
	case b.finished <- err:
	default:
	}
	b.redraw()
}

// Finished reports whether the run has ended and with which error.
func (b *Bridge) Finished() (bool, error) {
	select {
	case err := <-b.finished:
		return true, err
	default:
		return false, nil
	}
}

// The session calls these on the UI goroutine; the view redraws from the
// session state on every frame.

func (b *Bridge) PlaceMarker(p annotation.PendingPoint) {
	b.log.Debug("marker placed", "channel", p.Channel, "time_index", p.TimeIndex, "raw_time", p.RawTime)
	b.redraw()
}

func (b *Bridge) RemoveMarker(annotation.PendingPoint) { b.redraw() }

func (b *Bridge) AddEvent(annotation.Event) { b.redraw() }

func (b *Bridge) RemoveEvent(annotation.Event) { b.redraw() }
