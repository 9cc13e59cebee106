// Package control is the cooperative control surface threaded through
// long-running operations: throttled progress reporting, pause/resume,
// cancellation, and optional performance telemetry. The engine never owns
// the thread it runs on; the host supplies these ports and drives them.
package control

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrCancelled is the terminal condition for a cooperatively cancelled
// operation. It is not a failure: callers distinguish it from both success
// and error outcomes.
var ErrCancelled = errors.New("operation cancelled")

// CancelToken is a one-way cancellation flag, safe for concurrent use.
type CancelToken struct {
	flag atomic.Bool
}

// NewCancelToken returns an un-cancelled token.
func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

// Cancel marks the token. Cancellation is irreversible.
func (t *CancelToken) Cancel() {
	t.flag.Store(true)
}

// Cancelled reports whether Cancel has been called. Nil tokens are never
// cancelled.
func (t *CancelToken) Cancelled() bool {
	return t != nil && t.flag.Load()
}

// PauseToken gates execution without busy-polling. Wait blocks the calling
// goroutine while paused and returns immediately otherwise.
type PauseToken struct {
	mu     sync.Mutex
	cond   *sync.Cond
	paused bool
}

// NewPauseToken returns a running (unpaused) token.
func NewPauseToken() *PauseToken {
	t := &PauseToken{}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Pause blocks subsequent Wait calls until Resume.
func (t *PauseToken) Pause() {
	t.mu.Lock()
	t.paused = true
	t.mu.Unlock()
}

// Resume releases all goroutines blocked in Wait.
func (t *PauseToken) Resume() {
	t.mu.Lock()
	t.paused = false
	t.mu.Unlock()
	t.cond.Broadcast()
}

// Paused reports the current gate state.
func (t *PauseToken) Paused() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// Wait blocks while the token is paused. Nil tokens never block.
func (t *PauseToken) Wait() {
	if t == nil {
		return
	}
	t.mu.Lock()
	for t.paused {
		t.cond.Wait()
	}
	t.mu.Unlock()
}

// ProgressFunc receives a percentage in 0..100 and a short status message.
type ProgressFunc func(pct int, message string)

// Metrics is a point-in-time performance sample.
type Metrics struct {
	BytesProcessed int64
	Elapsed        time.Duration
	Throughput     float64 // bytes per second over the last sample window
}

// MetricsFunc receives live performance telemetry.
type MetricsFunc func(Metrics)

// Options configures a Controller. All fields are optional.
type Options struct {
	Progress ProgressFunc
	Metrics  MetricsFunc
	Cancel   *CancelToken
	Pause    *PauseToken
	// Interval is the minimum time between progress callbacks. Zero means
	// DefaultInterval.
	Interval time.Duration
}

// DefaultInterval throttles progress callbacks so per-chunk reporting does
// not swamp the host.
const DefaultInterval = 100 * time.Millisecond

// Controller bundles the host-supplied control ports. All methods are safe
// on a nil receiver so engine code can report unconditionally.
type Controller struct {
	progress ProgressFunc
	metrics  MetricsFunc
	cancel   *CancelToken
	pause    *PauseToken
	interval time.Duration

	mu         sync.Mutex
	lastReport time.Time
	lastPct    int
}

// New creates a Controller from opts.
func New(opts Options) *Controller {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Controller{
		progress: opts.Progress,
		metrics:  opts.Metrics,
		cancel:   opts.Cancel,
		pause:    opts.Pause,
		interval: interval,
		lastPct:  -1,
	}
}

// Progress invokes the progress callback at a throttled rate. Terminal
// reports (pct >= 100) always pass through.
func (c *Controller) Progress(pct int, message string) {
	if c == nil || c.progress == nil {
		return
	}
	if pct < 0 {
		pct = 0
	} else if pct > 100 {
		pct = 100
	}

	c.mu.Lock()
	now := time.Now()
	due := pct >= 100 || c.lastPct < 0 || now.Sub(c.lastReport) >= c.interval
	if due {
		c.lastReport = now
		c.lastPct = pct
	}
	c.mu.Unlock()

	if due {
		c.progress(pct, message)
	}
}

// Metrics forwards a telemetry sample to the host, if it asked for one.
func (c *Controller) Metrics(m Metrics) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics(m)
}

// Cancelled reports whether the host requested cancellation.
func (c *Controller) Cancelled() bool {
	return c != nil && c.cancel.Cancelled()
}

// WaitIfPaused blocks until the host resumes the operation.
func (c *Controller) WaitIfPaused() {
	if c == nil {
		return
	}
	c.pause.Wait()
}

// Checkpoint is the per-chunk/per-file suspension point: it honors a pause
// first, then reports ErrCancelled if the host cancelled while (or before)
// the operation was paused.
func (c *Controller) Checkpoint() error {
	if c == nil {
		return nil
	}
	c.WaitIfPaused()
	if c.Cancelled() {
		return ErrCancelled
	}
	return nil
}
