package render

import (
	"fmt"
	"image/color"
	"math"
)

// Colormap maps a normalized value in [0, 1] to a color.
type Colormap func(v float64) color.NRGBA

// Colormap names accepted by ColormapByName.
const (
	ColormapInferno = "inferno"
	ColormapGray    = "gray"
)

// infernoStops samples matplotlib's inferno map at nine evenly spaced points.
var infernoStops = [...][3]uint8{
	{0, 0, 4},
	{31, 12, 72},
	{85, 15, 109},
	{136, 34, 106},
	{186, 54, 85},
	{227, 89, 51},
	{249, 140, 10},
	{249, 201, 50},
	{252, 255, 164},
}

// Inferno is a perceptually uniform dark-to-bright colormap.
func Inferno(v float64) color.NRGBA {
	v = clamp01(v)
	pos := v * float64(len(infernoStops)-1)
	i := int(math.Floor(pos))
	if i >= len(infernoStops)-1 {
		s := infernoStops[len(infernoStops)-1]
		return color.NRGBA{R: s[0], G: s[1], B: s[2], A: 0xff}
	}
	f := pos - float64(i)
	a, b := infernoStops[i], infernoStops[i+1]
	return color.NRGBA{
		R: lerp(a[0], b[0], f),
		G: lerp(a[1], b[1], f),
		B: lerp(a[2], b[2], f),
		A: 0xff,
	}
}

// Gray maps 0 to black and 1 to white.
func Gray(v float64) color.NRGBA {
	g := uint8(math.Round(clamp01(v) * 255))
	return color.NRGBA{R: g, G: g, B: g, A: 0xff}
}

// ColormapByName resolves a configured colormap name.
func ColormapByName(name string) (Colormap, error) {
	switch name {
	case "", ColormapInferno:
		return Inferno, nil
	case ColormapGray:
		return Gray, nil
	default:
		return nil, fmt.Errorf("unknown colormap %q", name)
	}
}

func lerp(a, b uint8, f float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*f))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
