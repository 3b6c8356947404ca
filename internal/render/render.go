// Package render turns spectrum windows into images.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
)

var (
	// ErrEmpty is returned when there is nothing to draw.
	ErrEmpty = errors.New("render: empty window")
	// ErrRagged is returned when rows have differing channel counts.
	ErrRagged = errors.New("render: rows have differing lengths")
)

// Options controls spectrogram normalization.
type Options struct {
	// Min and Max are the recording-wide extremes used for scaling.
	Min, Max float64
	// NoiseCutoff floors every value <= Min+NoiseCutoff to Min. Zero disables it.
	NoiseCutoff float64
	Colormap    Colormap
}

// Normalize scales v into [0, 1] against the recording extremes.
func (o Options) Normalize(v float64) float64 {
	if o.NoiseCutoff > 0 && v <= o.Min+o.NoiseCutoff {
		v = o.Min
	}
	if o.Max <= o.Min {
		return 0
	}
	return clamp01((v - o.Min) / (o.Max - o.Min))
}

// Spectrogram renders rows as an image one pixel per cell: channels run
// left to right and row 0 sits at the bottom.
func Spectrogram(rows [][]float64, opts Options) (*image.NRGBA, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmpty
	}
	cmap := opts.Colormap
	if cmap == nil {
		cmap = Inferno
	}

	w, h := len(rows[0]), len(rows)
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for r, row := range rows {
		if len(row) != w {
			return nil, fmt.Errorf("%w: row %d has %d channels, want %d", ErrRagged, r, len(row), w)
		}
		y := h - 1 - r
		for x, v := range row {
			img.SetNRGBA(x, y, cmap(opts.Normalize(v)))
		}
	}
	return img, nil
}

// CellRect returns the image rectangle covering channels [ch0, ch1] and
// rows [row0, row1] of a spectrogram with the given row count.
func CellRect(ch0, ch1, row0, row1, rows int) image.Rectangle {
	if ch1 < ch0 {
		ch0, ch1 = ch1, ch0
	}
	if row1 < row0 {
		row0, row1 = row1, row0
	}
	return image.Rect(ch0, rows-1-row1, ch1+1, rows-row0)
}

// DrawRect outlines r on img with a one-pixel border, clipped to the image.
func DrawRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	b := img.Bounds()
	r = r.Canon()
	if r.Empty() || !r.Overlaps(b) {
		return
	}
	set := func(x, y int) {
		if (image.Point{X: x, Y: y}).In(b) {
			img.SetNRGBA(x, y, c)
		}
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		set(x, r.Min.Y)
		set(x, r.Max.Y-1)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		set(r.Min.X, y)
		set(r.Max.X-1, y)
	}
}

// Scale resizes src to w x h without smoothing so cells stay crisp.
func Scale(src image.Image, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// WritePNG encodes img as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// WritePNGFile writes img to path, creating parent directories.
func WritePNGFile(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create preview directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WritePNG(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
