package labeler

import (
	"math"

	"github.com/cwbudde/algo-dsp/stats/frequency"
	"github.com/cwbudde/algo-vecmath"

	"spectrumlabel/internal/store"
)

// Summarize computes spectral statistics of a window. Rows hold power in dBm;
// they are averaged in linear milliwatts. Centroid is expressed in channels.
func Summarize(rows [][]float64) store.Summary {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return store.Summary{PeakChannel: -1}
	}
	n := len(rows[0])

	mean := make([]float64, n)
	lin := make([]float64, n)
	used := 0
	for _, row := range rows {
		if len(row) != n {
			continue
		}
		for i, v := range row {
			lin[i] = math.Pow(10, v/10)
		}
		vecmath.AddBlockInPlace(mean, lin)
		used++
	}
	if used == 0 {
		return store.Summary{PeakChannel: -1}
	}
	vecmath.ScaleBlockInPlace(mean, 1/float64(used))

	// One-sided spectrum convention: bin i sits at i*rate/(2*(n-1)) Hz, so this
	// rate puts bin i at frequency i.
	rate := 1.0
	if n > 1 {
		rate = float64(2 * (n - 1))
	}
	st := frequency.Calculate(mean, rate)

	return store.Summary{
		PeakChannel: st.MaxBin,
		Centroid:    st.Centroid,
		Flatness:    st.Flatness,
		MeanPower:   10 * math.Log10(st.Average),
	}
}
