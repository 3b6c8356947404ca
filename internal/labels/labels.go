// Package labels accumulates committed windows with their event records and
// reads and writes the line-oriented label file:
//
//	<window start> <window end>
//	{"StartChannel":1,"EndChannel":3,"StartTime":...,"EndTime":...}
//	...
//	<blank line>
//
// Window times are printed as seconds with six decimals. Records are JSON
// objects with the field names downstream tools expect.
package labels

import (
	"errors"
	"fmt"

	"spectrumlabel/internal/annotation"
	"spectrumlabel/internal/series"
	"spectrumlabel/internal/window"
)

// Errors
var (
	ErrMalformed  = errors.New("labels: malformed label file")
	ErrOutOfOrder = errors.New("labels: window does not advance")
	ErrBadRecord  = errors.New("labels: inconsistent event record")
)

// Record is an event with absolute timestamps.
type Record struct {
	StartChannel int     `json:"StartChannel" yaml:"start_channel"`
	EndChannel   int     `json:"EndChannel" yaml:"end_channel"`
	StartTime    float64 `json:"StartTime" yaml:"start_time"`
	EndTime      float64 `json:"EndTime" yaml:"end_time"`
}

// Validate checks the ordering of both ranges.
func (r Record) Validate() error {
	if r.StartChannel > r.EndChannel {
		return fmt.Errorf("%w: channels %d > %d", ErrBadRecord, r.StartChannel, r.EndChannel)
	}
	if r.StartTime > r.EndTime {
		return fmt.Errorf("%w: times %f > %f", ErrBadRecord, r.StartTime, r.EndTime)
	}
	return nil
}

// Resolve translates session events to records using the recording timestamps.
func Resolve(events []annotation.Event, idx *series.TimeIndex) ([]Record, error) {
	out := make([]Record, 0, len(events))
	for _, e := range events {
		if e.StartTimeIndex < 0 || e.EndTimeIndex >= idx.Len() {
			return nil, fmt.Errorf("%w: rows %d-%d outside recording", ErrBadRecord, e.StartTimeIndex, e.EndTimeIndex)
		}
		out = append(out, Record{
			StartChannel: e.StartChannel,
			EndChannel:   e.EndChannel,
			StartTime:    idx.At(e.StartTimeIndex),
			EndTime:      idx.At(e.EndTimeIndex),
		})
	}
	return out, nil
}

// Entry is one committed window with its records.
type Entry struct {
	Window  window.Window
	Records []Record
}

// Store is the in-memory event store for one recording. Entries are kept in
// commit order, which is also window order.
type Store struct {
	entries []Entry
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Commit appends a window and takes ownership of records. Windows must arrive
// in strictly increasing start time.
func (s *Store) Commit(w window.Window, records []Record) error {
	if n := len(s.entries); n > 0 && w.StartTime <= s.entries[n-1].Window.StartTime {
		return fmt.Errorf("%w: %f after %f", ErrOutOfOrder, w.StartTime, s.entries[n-1].Window.StartTime)
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	if records == nil {
		records = []Record{}
	}
	s.entries = append(s.entries, Entry{Window: w, Records: records})
	return nil
}

// Entries returns the committed entries. The slice must not be modified.
func (s *Store) Entries() []Entry {
	return s.entries
}

// Len returns the number of committed windows.
func (s *Store) Len() int {
	return len(s.entries)
}

// EventCount returns the number of records across all windows.
func (s *Store) EventCount() int {
	n := 0
	for _, e := range s.entries {
		n += len(e.Records)
	}
	return n
}
