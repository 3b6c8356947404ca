package ui

import (
	"context"
	"image"
	"sync"
	"testing"

	"gioui.org/io/pointer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spectrumlabel/internal/annotation"
	"spectrumlabel/internal/labeler"
	"spectrumlabel/internal/render"
)

func TestButtonTracker(t *testing.T) {
	var bt buttonTracker

	assert.Equal(t, annotation.ButtonPrimary, bt.press(pointer.ButtonPrimary))
	assert.Equal(t, annotation.ButtonPrimary, bt.release(0))

	// Secondary pressed while primary is held.
	bt.press(pointer.ButtonPrimary)
	assert.Equal(t, annotation.ButtonSecondary, bt.press(pointer.ButtonPrimary|pointer.ButtonSecondary))
	assert.Equal(t, annotation.ButtonSecondary, bt.release(pointer.ButtonPrimary))
	assert.Equal(t, annotation.ButtonPrimary, bt.release(0))

	// A release that still reports the button falls back to the last press.
	bt = buttonTracker{}
	bt.press(pointer.ButtonTertiary)
	assert.Equal(t, annotation.ButtonMiddle, bt.release(pointer.ButtonTertiary))
}

func TestDescribe(t *testing.T) {
	assert.Contains(t, describe(annotation.ErrOutsideDisplay), "inside the spectrogram")
	assert.Equal(t, "Nothing to remove.", describe(annotation.ErrEmptyUndo))
	assert.Equal(t, annotation.ErrSessionClosed.Error(), describe(annotation.ErrSessionClosed))
}

func TestPollWithConcurrentReload(t *testing.T) {
	b := NewBridge(nil)
	l := NewLabeling(nil, b, render.Options{Colormap: render.Inferno}, nil, nil)

	view := labeler.View{
		Rows: [][]float64{{-100, -50, -20}, {-90, -40, -30}},
		Min:  -100,
		Max:  -20,
	}
	a := labeler.NewAnnotator(annotation.NewSession(annotation.Bounds{Rows: 2, Channels: 3}), nil)
	errc := make(chan error, 1)
	go func() {
		errc <- b.Annotate(context.Background(), view, a)
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			l.SetDisplay(float64(i%10), render.Gray)
		}
	}()
	for i := 0; i < 200 || l.job == nil; i++ {
		l.poll()
	}
	wg.Wait()
	l.poll()

	require.NotNil(t, l.job)
	assert.Equal(t, image.Pt(3, 2), l.img.Size())
	assert.False(t, l.statusErr)

	l.job.Commit(nil)
	require.NoError(t, <-errc)
}
