package labeler

import (
	"errors"

	"spectrumlabel/internal/annotation"
	"spectrumlabel/internal/metrics"
)

// Annotator is the session handed to presenters. It forwards gestures to the
// embedded session and counts undos and rejected gestures.
type Annotator struct {
	*annotation.Session
	metrics *metrics.LabelerMetrics
}

// NewAnnotator wraps s. m may be nil.
func NewAnnotator(s *annotation.Session, m *metrics.LabelerMetrics) *Annotator {
	return &Annotator{Session: s, metrics: m}
}

// Press forwards a press.
func (a *Annotator) Press(g annotation.Gesture) error {
	err := a.Session.Press(g)
	if err == nil && g.Button == annotation.ButtonSecondary {
		a.undone()
	}
	return a.track(err)
}

// Release forwards a release.
func (a *Annotator) Release(g annotation.Gesture) error {
	return a.track(a.Session.Release(g))
}

// Undo removes the newest event.
func (a *Annotator) Undo() (annotation.Event, error) {
	e, err := a.Session.Undo()
	if err == nil {
		a.undone()
	}
	return e, a.track(err)
}

// Done freezes the session.
func (a *Annotator) Done() ([]annotation.Event, error) {
	events, err := a.Session.Done()
	return events, a.track(err)
}

func (a *Annotator) undone() {
	if a.metrics != nil {
		a.metrics.RecordUndo()
	}
}

func (a *Annotator) track(err error) error {
	if err != nil && a.metrics != nil {
		a.metrics.RecordProtocolError(ErrorKind(err))
	}
	return err
}

// ErrorKind names a session error for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, annotation.ErrStrayRelease):
		return "stray_release"
	case errors.Is(err, annotation.ErrEmptyUndo):
		return "empty_undo"
	case errors.Is(err, annotation.ErrOutsideDisplay):
		return "outside_display"
	case errors.Is(err, annotation.ErrDragInProgress):
		return "drag_in_progress"
	case errors.Is(err, annotation.ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, annotation.ErrUnhandledButton):
		return "unhandled_button"
	default:
		return "other"
	}
}
