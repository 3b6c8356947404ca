package labeler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	rows := [][]float64{
		{-100, -100, -40, -100, -100},
		{-100, -100, -40, -100, -100},
	}
	s := Summarize(rows)
	assert.Equal(t, 2, s.PeakChannel)
	assert.InDelta(t, 2.0, s.Centroid, 0.01)
	assert.Less(t, s.Flatness, 0.1)

	wantMean := 10 * math.Log10((4*1e-10+1e-4)/5)
	assert.InDelta(t, wantMean, s.MeanPower, 1e-6)
}

func TestSummarizeFlat(t *testing.T) {
	rows := [][]float64{{-80, -80, -80, -80}}
	s := Summarize(rows)
	assert.InDelta(t, 1.0, s.Flatness, 1e-9)
	assert.InDelta(t, 1.5, s.Centroid, 1e-9)
	assert.InDelta(t, -80.0, s.MeanPower, 1e-9)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, -1, Summarize(nil).PeakChannel)
	assert.Equal(t, -1, Summarize([][]float64{{}}).PeakChannel)
}
