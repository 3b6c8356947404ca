package ui

import (
	"image"
	"math"

	"gioui.org/f32"
)

// CellAt maps a position inside a spectrogram of size pixels to a display
// cell. Channels run left to right and row 0 is at the bottom. Positions
// outside the area map to cells outside [0, channels) x [0, rows).
func CellAt(p f32.Point, size image.Point, channels, rows int) (channel, row int) {
	if size.X <= 0 || size.Y <= 0 {
		return -1, -1
	}
	channel = int(math.Floor(float64(p.X) * float64(channels) / float64(size.X)))
	row = int(math.Floor(float64(float32(size.Y)-p.Y) * float64(rows) / float64(size.Y)))
	return channel, row
}

// CellBounds returns the pixel rectangle covering channels [ch0, ch1] and
// rows [row0, row1] inclusive.
func CellBounds(ch0, ch1, row0, row1 int, size image.Point, channels, rows int) image.Rectangle {
	if channels <= 0 || rows <= 0 {
		return image.Rectangle{}
	}
	if ch1 < ch0 {
		ch0, ch1 = ch1, ch0
	}
	if row1 < row0 {
		row0, row1 = row1, row0
	}
	x := func(ch int) int { return ch * size.X / channels }
	y := func(r int) int { return size.Y - r*size.Y/rows }
	return image.Rect(x(ch0), y(row1+1), x(ch1+1), y(row0))
}
