// Package series models a loaded spectrum recording: the timestamp column, the
// sample matrix behind it and the boundary search used to cut windows out of it.
package series

import (
	"errors"
	"io"
)

// Errors
var (
	ErrInvalidRecord = errors.New("series: invalid record")
	ErrUnsorted      = errors.New("series: timestamps are not sorted")
	ErrEmpty         = errors.New("series: recording has no samples")
	ErrOutOfRange    = errors.New("series: row range out of bounds")
)

// Sample is one timestamped measurement vector.
type Sample struct {
	Timestamp float64
	Channels  []float64
}

// SliceReader reads the half-open row range [start, end) of the sample matrix.
// Returned rows may alias the underlying storage and must not be modified.
type SliceReader interface {
	Read(start, end int) ([][]float64, error)
}

// Series is a loaded recording.
type Series struct {
	// Path is the file the series was loaded from, if any.
	Path string

	// Timestamps holds one entry per row, in seconds, non-decreasing.
	Timestamps []float64

	// Matrix holds the measurement rows.
	Matrix SliceReader

	// Channels is the number of columns (FFT bins) per row.
	Channels int

	// Min and Max are taken over the whole matrix. They are used for display
	// normalization only.
	Min float64
	Max float64

	index *TimeIndex
}

// New wraps already-loaded data in a Series and computes the global min/max.
func New(timestamps []float64, m *Matrix) (*Series, error) {
	if len(timestamps) == 0 {
		return nil, ErrEmpty
	}
	if m.Rows() != len(timestamps) {
		return nil, errors.New("series: timestamp and matrix length mismatch")
	}
	if err := checkSorted(timestamps); err != nil {
		return nil, err
	}
	lo, hi := m.Bounds()
	return &Series{
		Timestamps: timestamps,
		Matrix:     m,
		Channels:   m.Cols(),
		Min:        lo,
		Max:        hi,
	}, nil
}

// Len returns the number of samples.
func (s *Series) Len() int {
	return len(s.Timestamps)
}

// Index returns the TimeIndex over the series timestamps.
func (s *Series) Index() *TimeIndex {
	if s.index == nil {
		s.index = NewTimeIndex(s.Timestamps)
	}
	return s.index
}

// Sample returns row i as a Sample.
func (s *Series) Sample(i int) (Sample, error) {
	rows, err := s.Matrix.Read(i, i+1)
	if err != nil {
		return Sample{}, err
	}
	return Sample{Timestamp: s.Timestamps[i], Channels: rows[0]}, nil
}

// Close releases the matrix storage if it holds any.
func (s *Series) Close() error {
	if c, ok := s.Matrix.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func checkSorted(ts []float64) error {
	for i := 1; i < len(ts); i++ {
		if ts[i] < ts[i-1] {
			return ErrUnsorted
		}
	}
	return nil
}
