package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/robwhited/intact/internal/bufsize"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector()
	c.AddFilesCopied(2)
	c.AddFilesHashed(5)
	c.AddFilesFailed(1)
	c.AddBytesCopied(1024)
	c.AddBytesHashed(2048)
	c.SetTotals(10, 4096)

	s := c.Snapshot()
	assert.Equal(t, int64(2), s.FilesCopied)
	assert.Equal(t, int64(5), s.FilesHashed)
	assert.Equal(t, int64(1), s.FilesFailed)
	assert.Equal(t, int64(1024), s.BytesCopied)
	assert.Equal(t, int64(2048), s.BytesHashed)
	assert.Equal(t, int64(10), s.FilesTotal)
	assert.Equal(t, int64(4096), s.BytesTotal)
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for n := 0; n < 50; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.AddFilesCopied(1)
			c.AddBytesCopied(100)
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	assert.Equal(t, int64(50), s.FilesCopied)
	assert.Equal(t, int64(5000), s.BytesCopied)
}

func TestCountTier(t *testing.T) {
	c := NewCollector()
	c.CountTier(bufsize.Small)
	c.CountTier(bufsize.Small)
	c.CountTier(bufsize.Medium)
	c.CountTier(bufsize.Large)

	s := c.Snapshot()
	assert.Equal(t, int64(2), s.SmallFiles)
	assert.Equal(t, int64(1), s.MediumFiles)
	assert.Equal(t, int64(1), s.LargeFiles)
}

func TestTickAndRollingSpeed(t *testing.T) {
	c := NewCollector()
	assert.Zero(t, c.RollingSpeed(10))

	c.AddBytesCopied(1000)
	c.Tick()
	c.AddBytesCopied(3000)
	c.Tick()

	// Two samples: 1000 and 3000 bytes.
	assert.InDelta(t, 2000, c.RollingSpeed(10), 0.1)
	assert.Equal(t, float64(3000), c.Snapshot().PeakSpeed)
}

func TestETAWithoutSamples(t *testing.T) {
	c := NewCollector()
	c.SetTotals(1, 1<<30)
	assert.Zero(t, c.ETA())
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.0 KiB", FormatBytes(1024))
	assert.Equal(t, "1.5 MiB", FormatBytes(3*512*1024))
	assert.Equal(t, "2.0 GiB", FormatBytes(2<<30))
}
