package ui

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spectrumlabel/internal/annotation"
	"spectrumlabel/internal/labeler"
)

func waitJob(t *testing.T, b *Bridge) *Job {
	t.Helper()
	var j *Job
	require.Eventually(t, func() bool {
		var ok bool
		j, ok = b.Next()
		return ok
	}, time.Second, time.Millisecond)
	return j
}

func TestBridgeCommit(t *testing.T) {
	b := NewBridge(nil)
	var redraws atomic.Int32
	b.SetInvalidate(func() { redraws.Add(1) })

	s := annotation.NewSession(annotation.Bounds{Rows: 4, Channels: 4})
	a := labeler.NewAnnotator(s, nil)

	errc := make(chan error, 1)
	go func() {
		errc <- b.Annotate(context.Background(), labeler.View{Ordinal: 7}, a)
	}()

	j := waitJob(t, b)
	assert.Equal(t, 7, j.View.Ordinal)
	require.NoError(t, j.Annotator.Press(annotation.Gesture{Channel: 1, Time: 1, Button: annotation.ButtonPrimary}))
	require.NoError(t, j.Annotator.Release(annotation.Gesture{Channel: 2, Time: 3, Button: annotation.ButtonPrimary}))
	j.Commit(nil)
	j.Commit(errors.New("ignored"))

	require.NoError(t, <-errc)
	assert.Equal(t, 1, a.Len())
	assert.GreaterOrEqual(t, redraws.Load(), int32(1))
}

func TestBridgeCancel(t *testing.T) {
	b := NewBridge(nil)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		errc <- b.Annotate(ctx, labeler.View{}, nil)
	}()
	waitJob(t, b)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestBridgeFinish(t *testing.T) {
	b := NewBridge(nil)
	ok, _ := b.Finished()
	assert.False(t, ok)

	boom := errors.New("boom")
	b.Finish(boom)
	ok, err := b.Finished()
	assert.True(t, ok)
	assert.Equal(t, boom, err)
}
