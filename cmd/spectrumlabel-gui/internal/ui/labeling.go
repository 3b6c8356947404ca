package ui

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"path/filepath"
	"sync"

	"gioui.org/io/event"
	"gioui.org/io/key"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"spectrumlabel/cmd/spectrumlabel-gui/internal/theme"
	"spectrumlabel/internal/annotation"
	"spectrumlabel/internal/render"
)

// Banner is shown under the spectrogram.
const Banner = "Drag with the left button to mark a signal. Right click removes the last mark. " +
	"Space, Enter or N saves the window and shows the next one. Esc drops a half-drawn mark, Q quits."

// Labeling is the main view: one spectrogram window at a time.
type Labeling struct {
	theme  *theme.Theme
	bridge *Bridge
	log    *slog.Logger
	onQuit func()

	mu      sync.Mutex
	display render.Options
	dirty   bool

	job     *Job
	img     paint.ImageOp
	buttons buttonTracker

	status    string
	statusErr bool

	finished  bool
	finishErr error
}

// NewLabeling creates the view. onQuit is called when the user asks to quit.
func NewLabeling(t *theme.Theme, b *Bridge, display render.Options, log *slog.Logger, onQuit func()) *Labeling {
	if log == nil {
		log = slog.Default()
	}
	return &Labeling{theme: t, bridge: b, display: display, log: log, onQuit: onQuit}
}

// SetDisplay replaces the normalization settings. It may be called from any
// goroutine; the spectrogram is redrawn on the next frame.
func (l *Labeling) SetDisplay(noiseCutoff float64, cmap render.Colormap) {
	l.mu.Lock()
	l.display.NoiseCutoff = noiseCutoff
	l.display.Colormap = cmap
	l.dirty = true
	l.mu.Unlock()
	l.bridge.redraw()
}

// Layout renders the view and processes input.
func (l *Labeling) Layout(gtx layout.Context) layout.Dimensions {
	l.poll()
	l.handleKeys(gtx)

	paint.Fill(gtx.Ops, l.theme.Palette.Background)

	return layout.UniformInset(l.theme.Config.Padding).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			layout.Rigid(l.layoutHeader),
			layout.Rigid(layout.Spacer{Height: l.theme.Config.Spacing}.Layout),
			layout.Flexed(1, l.layoutSpectrogram),
			layout.Rigid(layout.Spacer{Height: l.theme.Config.Spacing}.Layout),
			layout.Rigid(l.layoutFooter),
		)
	})
}

func (l *Labeling) poll() {
	fresh := false
	if l.job == nil {
		if j, ok := l.bridge.Next(); ok {
			l.job = j
			l.status, l.statusErr = "", false
			l.buttons = buttonTracker{}
			fresh = true
		}
	}
	if !l.finished {
		if done, err := l.bridge.Finished(); done {
			l.finished, l.finishErr = true, err
		}
	}

	l.mu.Lock()
	dirty := l.dirty || fresh
	opts := l.display
	l.dirty = false
	l.mu.Unlock()

	if dirty && l.job != nil {
		opts.Min, opts.Max = l.job.View.Min, l.job.View.Max
		img, err := render.Spectrogram(l.job.View.Rows, opts)
		if err != nil {
			l.log.Error("rendering window", "ordinal", l.job.View.Ordinal, "error", err)
			l.setStatus(err.Error(), true)
			return
		}
		l.img = paint.NewImageOp(img)
		l.img.Filter = paint.FilterNearest
	}
}

func (l *Labeling) handleKeys(gtx layout.Context) {
	for {
		ev, ok := gtx.Event(
			key.Filter{Name: key.NameSpace},
			key.Filter{Name: key.NameReturn},
			key.Filter{Name: "N"},
			key.Filter{Name: key.NameEscape},
			key.Filter{Name: key.NameDeleteBackward},
			key.Filter{Name: "U"},
			key.Filter{Name: "Q"},
		)
		if !ok {
			return
		}
		e, ok := ev.(key.Event)
		if !ok || e.State != key.Press {
			continue
		}
		l.handleKey(e.Name)
	}
}

func (l *Labeling) handleKey(name key.Name) {
	if name == "Q" {
		if l.onQuit != nil {
			l.onQuit()
		}
		return
	}
	if l.job == nil {
		return
	}
	a := l.job.Annotator

	switch name {
	case key.NameSpace, key.NameReturn, "N":
		if _, dragging := a.Pending(); dragging {
			l.setStatus("Finish the mark or press Esc before moving on.", true)
			return
		}
		l.log.Info("window done", "ordinal", l.job.View.Ordinal, "events", a.Len())
		l.job.Commit(nil)
		l.job = nil
		l.setStatus("", false)
	case key.NameEscape:
		a.Cancel()
		l.setStatus("", false)
	case key.NameDeleteBackward, "U":
		if _, err := a.Undo(); err != nil {
			l.setStatus(describe(err), true)
		}
	}
}

func (l *Labeling) setStatus(msg string, isErr bool) {
	l.status, l.statusErr = msg, isErr
}

func (l *Labeling) layoutHeader(gtx layout.Context) layout.Dimensions {
	text := "Waiting for the next window..."
	switch {
	case l.job != nil:
		v := l.job.View
		text = fmt.Sprintf("%s  window %d  (about %d left)  peak channel %d  centroid %.1f",
			filepath.Base(v.Recording), v.Ordinal+1, v.Remaining, v.Summary.PeakChannel, v.Summary.Centroid)
	case l.finished && l.finishErr != nil:
		text = "Labeling stopped: " + l.finishErr.Error()
	case l.finished:
		text = "All recordings labeled. Close the window or press Q."
	}
	h := material.H6(l.theme.Theme, text)
	h.Color = l.theme.Palette.Text
	h.TextSize = l.theme.Config.FontTitle
	return h.Layout(gtx)
}

func (l *Labeling) layoutFooter(gtx layout.Context) layout.Dimensions {
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			if l.job == nil {
				return layout.Dimensions{}
			}
			v := l.job.View
			c := material.Caption(l.theme.Theme, fmt.Sprintf("x: channel 0-%d    y: time, %.3f s per row, %d rows    marks: %d",
				len(v.Rows[0])-1, v.Window.SecondsPerRow(), v.Window.Rows(), l.job.Annotator.Len()))
			c.Color = l.theme.Palette.TextMuted
			c.TextSize = l.theme.Config.FontCaption
			return c.Layout(gtx)
		}),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			msg, col := Banner, l.theme.Palette.TextMuted
			if l.status != "" {
				msg, col = l.status, l.theme.Palette.Warning
				if l.statusErr {
					col = l.theme.Palette.Error
				}
			}
			b := material.Body1(l.theme.Theme, msg)
			b.Color = col
			b.TextSize = l.theme.Config.FontBody
			return b.Layout(gtx)
		}),
	)
}

func (l *Labeling) layoutSpectrogram(gtx layout.Context) layout.Dimensions {
	size := gtx.Constraints.Max
	if l.job == nil || len(l.job.View.Rows) == 0 {
		paint.FillShape(gtx.Ops, l.theme.Palette.Surface, clip.Rect{Max: size}.Op())
		return layout.Dimensions{Size: size}
	}
	v := l.job.View
	channels, rows := len(v.Rows[0]), len(v.Rows)

	l.handlePointer(gtx, size, channels, rows)

	if l.img.Size() != (image.Point{}) {
		gtx.Constraints.Min = size
		widget.Image{Src: l.img, Fit: widget.Fill}.Layout(gtx)
	}

	defer clip.Rect{Max: size}.Push(gtx.Ops).Pop()
	event.Op(gtx.Ops, l)

	stroke := gtx.Dp(l.theme.Config.Stroke)
	for _, e := range l.job.Annotator.Events() {
		r := CellBounds(e.StartChannel, e.EndChannel,
			e.StartTimeIndex-v.Window.StartIndex, e.EndTimeIndex-v.Window.StartIndex,
			size, channels, rows)
		outline(gtx, r, stroke, l.theme.Palette.Label)
	}
	if p, ok := l.job.Annotator.Pending(); ok {
		c := CellBounds(p.Channel, p.Channel, p.TimeIndex, p.TimeIndex, size, channels, rows)
		half := gtx.Dp(l.theme.Config.MarkerSize) / 2
		mid := c.Min.Add(c.Max).Div(2)
		m := image.Rectangle{Min: mid.Sub(image.Pt(half, half)), Max: mid.Add(image.Pt(half, half))}
		paint.FillShape(gtx.Ops, l.theme.Palette.Marker, clip.Rect(m).Op())
	}
	return layout.Dimensions{Size: size}
}

func (l *Labeling) handlePointer(gtx layout.Context, size image.Point, channels, rows int) {
	for {
		ev, ok := gtx.Event(pointer.Filter{Target: l, Kinds: pointer.Press | pointer.Release})
		if !ok {
			return
		}
		e, ok := ev.(pointer.Event)
		if !ok || l.job == nil {
			continue
		}
		ch, row := CellAt(e.Position, size, channels, rows)
		a := l.job.Annotator

		var err error
		switch e.Kind {
		case pointer.Press:
			err = a.Press(annotation.Gesture{Channel: ch, Time: row, Button: l.buttons.press(e.Buttons)})
		case pointer.Release:
			err = a.Release(annotation.Gesture{Channel: ch, Time: row, Button: l.buttons.release(e.Buttons)})
		}
		if err != nil {
			l.setStatus(describe(err), true)
		} else {
			l.setStatus("", false)
		}
	}
}

func outline(gtx layout.Context, r image.Rectangle, w int, c color.NRGBA) {
	edges := []image.Rectangle{
		{Min: r.Min, Max: image.Pt(r.Max.X, r.Min.Y+w)},
		{Min: image.Pt(r.Min.X, r.Max.Y-w), Max: r.Max},
		{Min: r.Min, Max: image.Pt(r.Min.X+w, r.Max.Y)},
		{Min: image.Pt(r.Max.X-w, r.Min.Y), Max: r.Max},
	}
	for _, e := range edges {
		paint.FillShape(gtx.Ops, c, clip.Rect(e).Op())
	}
}

// buttonTracker works out which button a press or release event is about.
// Release events carry the buttons still held, so the released button is the
// difference; when that is empty the last pressed button is assumed.
type buttonTracker struct {
	held pointer.Buttons
	last annotation.Button
}

func (t *buttonTracker) press(now pointer.Buttons) annotation.Button {
	b := buttonOf(now &^ t.held)
	if b == annotation.ButtonNone {
		b = buttonOf(now)
	}
	t.held = now
	t.last = b
	return b
}

func (t *buttonTracker) release(now pointer.Buttons) annotation.Button {
	b := buttonOf(t.held &^ now)
	if b == annotation.ButtonNone {
		b = t.last
	}
	t.held = now
	return b
}

func buttonOf(b pointer.Buttons) annotation.Button {
	switch {
	case b.Contain(pointer.ButtonPrimary):
		return annotation.ButtonPrimary
	case b.Contain(pointer.ButtonTertiary):
		return annotation.ButtonMiddle
	case b.Contain(pointer.ButtonSecondary):
		return annotation.ButtonSecondary
	default:
		return annotation.ButtonNone
	}
}

// describe turns a session error into a hint for the status line.
func describe(err error) string {
	switch {
	case errors.Is(err, annotation.ErrOutsideDisplay):
		return "Click inside the spectrogram. The pending mark was dropped."
	case errors.Is(err, annotation.ErrStrayRelease):
		return "Release without a press, ignored."
	case errors.Is(err, annotation.ErrEmptyUndo):
		return "Nothing to remove."
	case errors.Is(err, annotation.ErrUnhandledButton):
		return "Use the left button to mark and the right button to undo."
	default:
		return err.Error()
	}
}
