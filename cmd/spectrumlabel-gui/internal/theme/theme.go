package theme

import (
	"image/color"
	"runtime"

	"gioui.org/unit"
	"gioui.org/widget/material"
)

// Palette defines the application colors.
type Palette struct {
	Background color.NRGBA
	Surface    color.NRGBA
	Primary    color.NRGBA
	Text       color.NRGBA
	TextMuted  color.NRGBA
	Border     color.NRGBA
	Error      color.NRGBA
	Warning    color.NRGBA

	// Label outlines committed events on the spectrogram.
	Label color.NRGBA
	// Marker shows the anchor of a drag in progress.
	Marker color.NRGBA
}

// Config defines the layout metrics.
type Config struct {
	Spacing     unit.Dp
	Padding     unit.Dp
	Stroke      unit.Dp
	MarkerSize  unit.Dp
	FontTitle   unit.Sp
	FontBody    unit.Sp
	FontCaption unit.Sp
}

// Theme wraps the material theme with application styling.
type Theme struct {
	*material.Theme
	Palette Palette
	Config  Config
}

// NewTheme creates a theme for the current OS. The spectrogram colormap is
// dark, so every variant uses a dark background.
func NewTheme(mtheme *material.Theme) *Theme {
	t := &Theme{Theme: mtheme}

	t.Palette = Palette{
		Background: color.NRGBA{R: 0x1E, G: 0x1E, B: 0x1E, A: 0xFF},
		Surface:    color.NRGBA{R: 0x2A, G: 0x2A, B: 0x2A, A: 0xFF},
		Primary:    color.NRGBA{R: 0x0A, G: 0x84, B: 0xFF, A: 0xFF},
		Text:       color.NRGBA{R: 0xF5, G: 0xF5, B: 0xF7, A: 0xFF},
		TextMuted:  color.NRGBA{R: 0x96, G: 0x96, B: 0x9B, A: 0xFF},
		Border:     color.NRGBA{R: 0x3A, G: 0x3A, B: 0x3C, A: 0xFF},
		Error:      color.NRGBA{R: 0xFF, G: 0x45, B: 0x3A, A: 0xFF},
		Warning:    color.NRGBA{R: 0xFF, G: 0x9F, B: 0x0A, A: 0xFF},
		Label:      color.NRGBA{R: 0x00, G: 0xFF, B: 0x80, A: 0xFF},
		Marker:     color.NRGBA{R: 0x00, G: 0xE5, B: 0xFF, A: 0xFF},
	}
	t.Config = Config{
		Spacing:     unit.Dp(8),
		Padding:     unit.Dp(16),
		Stroke:      unit.Dp(2),
		MarkerSize:  unit.Dp(8),
		FontTitle:   unit.Sp(20),
		FontBody:    unit.Sp(14),
		FontCaption: unit.Sp(12),
	}

	if runtime.GOOS == "darwin" {
		// macOS system font runs slightly smaller.
		t.Config.Padding = unit.Dp(20)
		t.Config.FontTitle = unit.Sp(22)
		t.Config.FontBody = unit.Sp(13)
		t.Config.FontCaption = unit.Sp(11)
	}
	t.Theme.Palette.Fg = t.Palette.Text
	t.Theme.Palette.Bg = t.Palette.Background
	return t
}
