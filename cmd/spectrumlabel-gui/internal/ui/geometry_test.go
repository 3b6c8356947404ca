package ui

import (
	"image"
	"testing"

	"gioui.org/f32"
	"github.com/stretchr/testify/assert"
)

func TestCellAt(t *testing.T) {
	size := image.Pt(800, 400)
	tests := []struct {
		name    string
		p       f32.Point
		channel int
		row     int
	}{
		{"bottom left", f32.Pt(0, 399.5), 0, 0},
		{"top right", f32.Pt(799, 1), 7, 3},
		{"middle", f32.Pt(450, 150), 4, 2},
		{"left of area", f32.Pt(-5, 200), -1, 2},
		{"above area", f32.Pt(10, -10), 0, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, row := CellAt(tt.p, size, 8, 4)
			assert.Equal(t, tt.channel, ch)
			assert.Equal(t, tt.row, row)
		})
	}

	ch, row := CellAt(f32.Pt(1, 1), image.Point{}, 8, 4)
	assert.Equal(t, -1, ch)
	assert.Equal(t, -1, row)
}

func TestCellBounds(t *testing.T) {
	size := image.Pt(800, 400)
	assert.Equal(t, image.Rect(100, 300, 400, 400), CellBounds(1, 3, 0, 0, size, 8, 4))
	assert.Equal(t, image.Rect(100, 0, 400, 300), CellBounds(3, 1, 3, 1, size, 8, 4))
	assert.Equal(t, image.Rectangle{}, CellBounds(0, 0, 0, 0, size, 0, 4))
}

func TestCellRoundTrip(t *testing.T) {
	size := image.Pt(640, 480)
	r := CellBounds(5, 5, 7, 7, size, 16, 12)
	ch, row := CellAt(f32.Pt(float32(r.Min.X)+1, float32(r.Max.Y)-1), size, 16, 12)
	assert.Equal(t, 5, ch)
	assert.Equal(t, 7, row)
}
