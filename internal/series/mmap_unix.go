//go:build unix

package series

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// NewMappedMatrix creates a rows x cols matrix backed by a memory-mapped scratch
// file in dir. The file is removed when the matrix is closed.
func NewMappedMatrix(dir string, rows, cols int) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, ErrEmpty
	}
	f, err := os.CreateTemp(dir, "spectrum-*.bin")
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}
	cleanup := func() {
		f.Close()
		os.Remove(f.Name())
	}

	size := rows * cols * 8
	if err := f.Truncate(int64(size)); err != nil {
		cleanup()
		return nil, fmt.Errorf("size scratch file: %w", err)
	}

	buf, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("mmap scratch file: %w", err)
	}

	data := unsafe.Slice((*float64)(unsafe.Pointer(&buf[0])), rows*cols)
	return &Matrix{
		data: data,
		rows: rows,
		cols: cols,
		unmap: func() error {
			err := unix.Munmap(buf)
			cleanup()
			return err
		},
	}, nil
}
