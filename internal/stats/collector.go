// Package stats tracks operation counters with lock-free atomics plus a
// small ring buffer of throughput samples for live telemetry.
package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robwhited/intact/internal/bufsize"
)

const ringSize = 60

// Collector tracks copy/hash/verify statistics. Counter methods are safe
// from any goroutine; Tick is called by a single presenter.
type Collector struct {
	filesCopied   atomic.Int64
	filesHashed   atomic.Int64
	filesFailed   atomic.Int64
	filesMatched  atomic.Int64
	filesMismatch atomic.Int64
	bytesCopied   atomic.Int64
	bytesHashed   atomic.Int64
	filesTotal    atomic.Int64
	bytesTotal    atomic.Int64

	smallFiles  atomic.Int64
	mediumFiles atomic.Int64
	largeFiles  atomic.Int64

	startTime time.Time

	// Ring buffer — written only by the presenter's Tick, not workers.
	mu         sync.Mutex
	throughput [ringSize]int64 // bytes delta per second
	ringIdx    int
	ringCount  int
	lastBytes  int64
	peakSpeed  float64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// SetTotals records enumeration totals once scanning completes.
func (c *Collector) SetTotals(files, bytes int64) {
	c.filesTotal.Store(files)
	c.bytesTotal.Store(bytes)
}

func (c *Collector) AddFilesCopied(n int64)   { c.filesCopied.Add(n) }
func (c *Collector) AddFilesHashed(n int64)   { c.filesHashed.Add(n) }
func (c *Collector) AddFilesFailed(n int64)   { c.filesFailed.Add(n) }
func (c *Collector) AddFilesMatched(n int64)  { c.filesMatched.Add(n) }
func (c *Collector) AddFilesMismatch(n int64) { c.filesMismatch.Add(n) }
func (c *Collector) AddBytesCopied(n int64)   { c.bytesCopied.Add(n) }
func (c *Collector) AddBytesHashed(n int64)   { c.bytesHashed.Add(n) }
func (c *Collector) AddFilesTotal(n int64)    { c.filesTotal.Add(n) }
func (c *Collector) AddBytesTotal(n int64)    { c.bytesTotal.Add(n) }

// CountTier bumps the size-bucket counter for one file.
func (c *Collector) CountTier(tier bufsize.Tier) {
	switch tier {
	case bufsize.Small:
		c.smallFiles.Add(1)
	case bufsize.Medium:
		c.mediumFiles.Add(1)
	case bufsize.Large:
		c.largeFiles.Add(1)
	}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	FilesCopied   int64
	FilesHashed   int64
	FilesFailed   int64
	FilesMatched  int64
	FilesMismatch int64
	BytesCopied   int64
	BytesHashed   int64
	FilesTotal    int64
	BytesTotal    int64
	SmallFiles    int64
	MediumFiles   int64
	LargeFiles    int64
	PeakSpeed     float64 // bytes per second
	Elapsed       time.Duration
}

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	peak := c.peakSpeed
	c.mu.Unlock()

	return Snapshot{
		FilesCopied:   c.filesCopied.Load(),
		FilesHashed:   c.filesHashed.Load(),
		FilesFailed:   c.filesFailed.Load(),
		FilesMatched:  c.filesMatched.Load(),
		FilesMismatch: c.filesMismatch.Load(),
		BytesCopied:   c.bytesCopied.Load(),
		BytesHashed:   c.bytesHashed.Load(),
		FilesTotal:    c.filesTotal.Load(),
		BytesTotal:    c.bytesTotal.Load(),
		SmallFiles:    c.smallFiles.Load(),
		MediumFiles:   c.mediumFiles.Load(),
		LargeFiles:    c.largeFiles.Load(),
		PeakSpeed:     peak,
		Elapsed:       c.Elapsed(),
	}
}

// Tick snapshots the byte delta into the ring buffer. Called 1/sec by the
// presenter.
func (c *Collector) Tick() {
	current := c.bytesCopied.Load() + c.bytesHashed.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	delta := current - c.lastBytes
	c.lastBytes = current

	c.throughput[c.ringIdx] = delta
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
	if float64(delta) > c.peakSpeed {
		c.peakSpeed = float64(delta)
	}
}

// RollingSpeed returns average bytes/sec over the last n seconds of samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := seconds
	if count > c.ringCount {
		count = c.ringCount
	}
	if count == 0 {
		return 0
	}
	var sum int64
	for i := 0; i < count; i++ {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += c.throughput[idx]
	}
	return float64(sum) / float64(count)
}

// ETA estimates remaining time based on rolling speed and remaining bytes.
func (c *Collector) ETA() time.Duration {
	speed := c.RollingSpeed(10)
	if speed <= 0 {
		return 0
	}
	remaining := c.bytesTotal.Load() - c.bytesCopied.Load()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/speed) * time.Second
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"copied=%d hashed=%d failed=%d matched=%d mismatched=%d bytes=%d",
		s.FilesCopied, s.FilesHashed, s.FilesFailed, s.FilesMatched,
		s.FilesMismatch, s.BytesCopied,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
