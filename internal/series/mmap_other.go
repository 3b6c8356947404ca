//go:build !unix

package series

// NewMappedMatrix falls back to an in-memory matrix on platforms without mmap.
func NewMappedMatrix(_ string, rows, cols int) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, ErrEmpty
	}
	return NewMatrix(rows, cols), nil
}
