package series

import (
	"fmt"
	"math"
)

// Matrix is a dense row-major float64 matrix. Its backing slice is either a
// Go allocation or a memory-mapped scratch file.
type Matrix struct {
	data  []float64
	rows  int
	cols  int
	unmap func() error
}

// NewMatrix allocates an in-memory rows x cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{data: make([]float64, rows*cols), rows: rows, cols: cols}
}

// MatrixFromRows copies rows into a new in-memory matrix.
func MatrixFromRows(rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	m := NewMatrix(len(rows), len(rows[0]))
	for i, r := range rows {
		if err := m.SetRow(i, r); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Rows returns the row count.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the column count.
func (m *Matrix) Cols() int { return m.cols }

// Row returns a view of row i.
func (m *Matrix) Row(i int) []float64 {
	return m.data[i*m.cols : (i+1)*m.cols : (i+1)*m.cols]
}

// SetRow copies vals into row i.
func (m *Matrix) SetRow(i int, vals []float64) error {
	if len(vals) != m.cols {
		return fmt.Errorf("%w: row %d has %d channels, want %d", ErrInvalidRecord, i, len(vals), m.cols)
	}
	copy(m.data[i*m.cols:], vals)
	return nil
}

// Read implements SliceReader. Rows are views, not copies.
func (m *Matrix) Read(start, end int) ([][]float64, error) {
	if start < 0 || end > m.rows || start > end {
		return nil, fmt.Errorf("%w: [%d, %d) of %d rows", ErrOutOfRange, start, end, m.rows)
	}
	out := make([][]float64, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, m.Row(i))
	}
	return out, nil
}

// Bounds returns the minimum and maximum value in the matrix.
func (m *Matrix) Bounds() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range m.data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Close unmaps the backing file, if any. The matrix is unusable afterwards.
func (m *Matrix) Close() error {
	m.data = nil
	if m.unmap != nil {
		err := m.unmap()
		m.unmap = nil
		return err
	}
	return nil
}
