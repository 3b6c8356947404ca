package labeler

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"spectrumlabel/internal/labels"
	"spectrumlabel/internal/render"
	"spectrumlabel/internal/series"
	"spectrumlabel/internal/window"
)

// LabelColor outlines labeled regions in previews.
var LabelColor = color.NRGBA{R: 0, G: 255, B: 128, A: 255}

// RenderWindow draws the spectrogram of w with records outlined. Records are
// mapped back to rows through the recording timestamps.
func RenderWindow(s *series.Series, w window.Window, records []labels.Record, opts render.Options) (*image.NRGBA, error) {
	rows, err := s.Matrix.Read(w.StartIndex, w.EndIndex)
	if err != nil {
		return nil, err
	}
	img, err := render.Spectrogram(rows, opts)
	if err != nil {
		return nil, err
	}
	idx := s.Index()
	for i, r := range records {
		r0, r1 := rowOf(idx, r.StartTime)-w.StartIndex, rowOf(idx, r.EndTime)-w.StartIndex
		if r0 < 0 || r1 >= w.Rows() {
			return nil, fmt.Errorf("record %d: rows %d-%d outside window %s", i, r0, r1, w.String())
		}
		render.DrawRect(img, render.CellRect(r.StartChannel, r.EndChannel, r0, r1, w.Rows()), LabelColor)
	}
	return img, nil
}

// rowOf returns the first row whose timestamp is >= t.
func rowOf(idx *series.TimeIndex, t float64) int {
	return idx.UpperBound(t) + 1
}

// MatchSections pairs planned windows with label file sections by start time.
// Windows without a section get nil.
func MatchSections(windows []window.Window, sections []labels.Section) [][]labels.Record {
	out := make([][]labels.Record, len(windows))
	j := 0
	for i, w := range windows {
		for j < len(sections) && sections[j].StartTime < w.StartTime-1e-3 {
			j++
		}
		if j < len(sections) && math.Abs(sections[j].StartTime-w.StartTime) <= 1e-3 {
			out[i] = sections[j].Records
			j++
		}
	}
	return out
}
