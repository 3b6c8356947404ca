package annotation

import (
	"log/slog"
)

// Bounds describes the displayed window.
type Bounds struct {
	// Offset is the absolute row of display row 0.
	Offset int
	// Rows and Channels size the valid display area.
	Rows     int
	Channels int
}

// Contains reports whether (channel, row) lies inside the display area.
func (b Bounds) Contains(channel, row int) bool {
	return channel >= 0 && channel < b.Channels && row >= 0 && row < b.Rows
}

// Session records events for one window. It is not safe for concurrent use;
// the presentation layer drives it from a single goroutine.
type Session struct {
	bounds    Bounds
	timestamp func(int) float64
	overlay   Overlay
	log       *slog.Logger

	state   State
	pending PendingPoint
	events  []Event
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithOverlay sends visual side effects to o.
func WithOverlay(o Overlay) SessionOption {
	return func(s *Session) { s.overlay = o }
}

// WithTimestamps resolves absolute rows to timestamps for PendingPoint.RawTime.
func WithTimestamps(fn func(row int) float64) SessionOption {
	return func(s *Session) { s.timestamp = fn }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.log = l }
}

// NewSession starts an idle session over b.
func NewSession(b Bounds, opts ...SessionOption) *Session {
	s := &Session{
		bounds:  b,
		overlay: nopOverlay{},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bounds returns the display area the session accepts gestures in.
func (s *Session) Bounds() Bounds {
	return s.bounds
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Pending returns the drag anchor while dragging.
func (s *Session) Pending() (PendingPoint, bool) {
	return s.pending, s.state == StateDragging
}

// Events returns a copy of the events in creation order.
func (s *Session) Events() []Event {
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Len returns the number of events.
func (s *Session) Len() int {
	return len(s.events)
}

// Press handles a button press. A primary press anchors a drag; pressing it
// again while dragging moves the anchor. A secondary press undoes the newest
// event.
func (s *Session) Press(g Gesture) error {
	if s.state == StateDone {
		return s.diagnose(ErrSessionClosed, g)
	}
	if !s.bounds.Contains(g.Channel, g.Time) {
		return s.outside(g)
	}

	switch g.Button {
	case ButtonPrimary:
		if s.state == StateDragging {
			s.overlay.RemoveMarker(s.pending)
		}
		s.pending = PendingPoint{
			Channel:   g.Channel,
			TimeIndex: g.Time,
			RawTime:   s.rawTime(g.Time),
		}
		s.state = StateDragging
		s.overlay.PlaceMarker(s.pending)
		s.log.Info("drag started", "time_index", g.Time, "channel", g.Channel)
		return nil
	case ButtonSecondary:
		_, err := s.Undo()
		return err
	default:
		return s.diagnose(ErrUnhandledButton, g)
	}
}

// Release handles a button release. Only a primary release that closes a drag
// creates an event; other releases are ignored.
func (s *Session) Release(g Gesture) error {
	if s.state == StateDone {
		return s.diagnose(ErrSessionClosed, g)
	}
	if !s.bounds.Contains(g.Channel, g.Time) {
		return s.outside(g)
	}
	if g.Button != ButtonPrimary {
		return nil
	}
	if s.state != StateDragging {
		return s.diagnose(ErrStrayRelease, g)
	}

	p := s.pending
	e := Event{
		StartChannel:   min(p.Channel, g.Channel),
		EndChannel:     max(p.Channel, g.Channel),
		StartTimeIndex: min(p.TimeIndex, g.Time) + s.bounds.Offset,
		EndTimeIndex:   max(p.TimeIndex, g.Time) + s.bounds.Offset,
	}
	s.events = append(s.events, e)
	s.pending = PendingPoint{}
	s.state = StateIdle
	s.overlay.AddEvent(e)
	s.log.Info("event recorded",
		"start_channel", e.StartChannel,
		"end_channel", e.EndChannel,
		"start_index", e.StartTimeIndex,
		"end_index", e.EndTimeIndex,
	)
	return nil
}

// Undo removes the newest event. A pending drag is left alone.
func (s *Session) Undo() (Event, error) {
	if s.state == StateDone {
		return Event{}, s.diagnose(ErrSessionClosed, Gesture{Button: ButtonSecondary})
	}
	if len(s.events) == 0 {
		return Event{}, s.diagnose(ErrEmptyUndo, Gesture{Button: ButtonSecondary})
	}
	e := s.events[len(s.events)-1]
	s.events = s.events[:len(s.events)-1]
	s.overlay.RemoveEvent(e)
	s.log.Info("removed last event", "event", e.String())
	return e, nil
}

// Cancel drops a pending drag. It is a no-op when idle.
func (s *Session) Cancel() {
	if s.state != StateDragging {
		return
	}
	s.overlay.RemoveMarker(s.pending)
	s.pending = PendingPoint{}
	s.state = StateIdle
}

// Done freezes the session and returns its events. It is refused while a drag
// is in progress so that a stray key press cannot discard half a rectangle.
func (s *Session) Done() ([]Event, error) {
	switch s.state {
	case StateDragging:
		return nil, s.diagnose(ErrDragInProgress, Gesture{})
	case StateDone:
		return s.Events(), nil
	}
	s.state = StateDone
	return s.Events(), nil
}

func (s *Session) outside(g Gesture) error {
	if s.state == StateDragging {
		s.Cancel()
		s.log.Warn("pending point discarded, please click inside the spectrogram",
			"channel", g.Channel, "time_index", g.Time)
		return ErrOutsideDisplay
	}
	return s.diagnose(ErrOutsideDisplay, g)
}

func (s *Session) diagnose(err error, g Gesture) error {
	s.log.Warn(err.Error(),
		"state", s.state.String(),
		"button", g.Button.String(),
		"channel", g.Channel,
		"time_index", g.Time,
	)
	return err
}

func (s *Session) rawTime(row int) float64 {
	if s.timestamp == nil {
		return 0
	}
	return s.timestamp(row + s.bounds.Offset)
}
