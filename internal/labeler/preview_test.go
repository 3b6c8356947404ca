package labeler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spectrumlabel/internal/labels"
	"spectrumlabel/internal/render"
	"spectrumlabel/internal/series"
	"spectrumlabel/internal/window"
)

func previewSeries(t *testing.T) *series.Series {
	t.Helper()
	ts := make([]float64, 10)
	rows := make([][]float64, 10)
	for i := range ts {
		ts[i] = float64(100 + i)
		rows[i] = []float64{-90, -90, -90, -90}
	}
	m, err := series.MatrixFromRows(rows)
	require.NoError(t, err)
	s, err := series.New(ts, m)
	require.NoError(t, err)
	return s
}

func TestRenderWindow(t *testing.T) {
	s := previewSeries(t)
	w := window.Window{StartIndex: 2, EndIndex: 6, StartTime: 102, EndTime: 106}
	recs := []labels.Record{{StartChannel: 1, EndChannel: 2, StartTime: 102, EndTime: 103}}

	img, err := RenderWindow(s, w, recs, render.Options{Min: -100, Max: -40})
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 4, img.Bounds().Dy())

	// Rows 0-1 occupy the bottom two pixel rows.
	assert.Equal(t, LabelColor, img.NRGBAAt(1, 3))
	assert.Equal(t, LabelColor, img.NRGBAAt(2, 2))
	assert.NotEqual(t, LabelColor, img.NRGBAAt(0, 3))
	assert.NotEqual(t, LabelColor, img.NRGBAAt(1, 1))

	_, err = RenderWindow(s, w, []labels.Record{{StartTime: 107, EndTime: 108}}, render.Options{Min: -100, Max: -40})
	assert.Error(t, err)
}

func TestMatchSections(t *testing.T) {
	windows := []window.Window{{StartTime: 10}, {StartTime: 20}, {StartTime: 30}}
	sections := []labels.Section{
		{StartTime: 10.0000001, Records: []labels.Record{{StartChannel: 1}}},
		{StartTime: 30, Records: []labels.Record{}},
	}
	got := MatchSections(windows, sections)
	require.Len(t, got, 3)
	assert.Len(t, got[0], 1)
	assert.Nil(t, got[1])
	assert.NotNil(t, got[2])
}
