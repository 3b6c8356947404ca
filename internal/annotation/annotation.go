// Package annotation turns pointer gestures on a displayed window into event
// rectangles.
//
// A Session is a small state machine: a primary press starts a drag, the
// matching primary release closes it into an Event, a secondary press undoes
// the newest Event and a gesture outside the display area cancels a pending
// drag. Done freezes the event list. The session never talks to a display
// directly; an optional Overlay receives the visual side effects.
package annotation

import (
	"errors"
	"fmt"
)

// Errors returned for gestures that arrive in the wrong state. None of them
// change the session.
var (
	ErrStrayRelease    = errors.New("annotation: release without a matching press")
	ErrEmptyUndo       = errors.New("annotation: nothing to undo")
	ErrOutsideDisplay  = errors.New("annotation: gesture outside the display area")
	ErrDragInProgress  = errors.New("annotation: finish or cancel the current drag first")
	ErrSessionClosed   = errors.New("annotation: session is done")
	ErrUnhandledButton = errors.New("annotation: unhandled button")
)

// Button identifies a pointer button. Values follow the usual X11 numbering.
type Button int

const (
	ButtonNone      Button = 0
	ButtonPrimary   Button = 1
	ButtonMiddle    Button = 2
	ButtonSecondary Button = 3
)

func (b Button) String() string {
	switch b {
	case ButtonPrimary:
		return "primary"
	case ButtonMiddle:
		return "middle"
	case ButtonSecondary:
		return "secondary"
	default:
		return "none"
	}
}

// Gesture is a press or release at rounded display coordinates: Channel is the
// FFT bin (x axis) and Time is the row inside the window (y axis).
type Gesture struct {
	Channel int
	Time    int
	Button  Button
}

// PendingPoint is the anchor of a drag in progress.
type PendingPoint struct {
	Channel   int
	TimeIndex int
	// RawTime is the timestamp of the anchor row, when the session has one.
	RawTime float64
}

// Event is a finalized rectangle. Time indices are absolute rows of the
// recording, already shifted by the window offset.
type Event struct {
	StartChannel   int
	EndChannel     int
	StartTimeIndex int
	EndTimeIndex   int
}

func (e Event) String() string {
	return fmt.Sprintf("channels %d-%d rows %d-%d", e.StartChannel, e.EndChannel, e.StartTimeIndex, e.EndTimeIndex)
}

// State is the session state.
type State int

const (
	StateIdle State = iota
	StateDragging
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDragging:
		return "dragging"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Overlay receives the visual side effects of a session.
type Overlay interface {
	PlaceMarker(p PendingPoint)
	RemoveMarker(p PendingPoint)
	AddEvent(e Event)
	RemoveEvent(e Event)
}

type nopOverlay struct{}

func (nopOverlay) PlaceMarker(PendingPoint)  {}
func (nopOverlay) RemoveMarker(PendingPoint) {}
func (nopOverlay) AddEvent(Event)            {}
func (nopOverlay) RemoveEvent(Event)         {}
