package control

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelToken(t *testing.T) {
	tok := NewCancelToken()
	assert.False(t, tok.Cancelled())
	tok.Cancel()
	assert.True(t, tok.Cancelled())
}

func TestCancelTokenNil(t *testing.T) {
	var tok *CancelToken
	assert.False(t, tok.Cancelled())
}

func TestPauseTokenGate(t *testing.T) {
	tok := NewPauseToken()
	tok.Pause()
	assert.True(t, tok.Paused())

	released := make(chan struct{})
	go func() {
		tok.Wait()
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("Wait returned while paused")
	case <-time.After(50 * time.Millisecond):
	}

	tok.Resume()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Resume")
	}
}

func TestPauseTokenWaitWhileRunning(t *testing.T) {
	tok := NewPauseToken()
	done := make(chan struct{})
	go func() {
		tok.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked on an unpaused token")
	}
}

func TestControllerProgressThrottle(t *testing.T) {
	var mu sync.Mutex
	var calls []int
	c := New(Options{
		Progress: func(pct int, _ string) {
			mu.Lock()
			calls = append(calls, pct)
			mu.Unlock()
		},
		Interval: time.Hour, // nothing but the first and terminal reports pass
	})

	for pct := 0; pct <= 99; pct++ {
		c.Progress(pct, "working")
	}
	c.Progress(100, "done")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 2)
	assert.Equal(t, 0, calls[0])
	assert.Equal(t, 100, calls[1])
}

func TestControllerProgressClamped(t *testing.T) {
	var got int
	c := New(Options{Progress: func(pct int, _ string) { got = pct }})
	c.Progress(250, "overshoot")
	assert.Equal(t, 100, got)
}

func TestControllerNilSafe(t *testing.T) {
	var c *Controller
	c.Progress(50, "ignored")
	c.Metrics(Metrics{})
	c.WaitIfPaused()
	assert.False(t, c.Cancelled())
	assert.NoError(t, c.Checkpoint())
}

func TestControllerCheckpointCancelled(t *testing.T) {
	cancel := NewCancelToken()
	c := New(Options{Cancel: cancel})
	require.NoError(t, c.Checkpoint())
	cancel.Cancel()
	assert.ErrorIs(t, c.Checkpoint(), ErrCancelled)
}

func TestControllerMetrics(t *testing.T) {
	var got Metrics
	c := New(Options{Metrics: func(m Metrics) { got = m }})
	c.Metrics(Metrics{BytesProcessed: 42, Throughput: 1024})
	assert.Equal(t, int64(42), got.BytesProcessed)
	assert.Equal(t, float64(1024), got.Throughput)
}
