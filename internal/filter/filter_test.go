package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainDefaultInclude(t *testing.T) {
	c := NewChain()
	assert.True(t, c.Empty())
	assert.True(t, c.Match("anything/at/all.txt", false, 10))
}

func TestChainExclude(t *testing.T) {
	c := NewChain()
	require.NoError(t, c.AddExclude("*.log"))

	assert.False(t, c.Match("app.log", false, 10))
	assert.False(t, c.Match("deep/nested/trace.log", false, 10))
	assert.True(t, c.Match("app.txt", false, 10))
}

func TestChainOrderFirstMatchWins(t *testing.T) {
	c := NewChain()
	require.NoError(t, c.AddInclude("keep.log"))
	require.NoError(t, c.AddExclude("*.log"))

	assert.True(t, c.Match("keep.log", false, 10))
	assert.False(t, c.Match("other.log", false, 10))
}

func TestChainSlashPattern(t *testing.T) {
	c := NewChain()
	require.NoError(t, c.AddExclude("tmp/*"))

	assert.False(t, c.Match("tmp/scratch.bin", false, 10))
	assert.True(t, c.Match("data/scratch.bin", false, 10))
}

func TestChainDirectorySegment(t *testing.T) {
	c := NewChain()
	require.NoError(t, c.AddExclude(".git"))

	assert.False(t, c.Match(".git/config", false, 10))
	assert.False(t, c.Match("sub/.git", true, 0))
	assert.True(t, c.Match("src/main.go", false, 10))
}

func TestChainSizeBounds(t *testing.T) {
	c := NewChain()
	c.SetMinSize(100)
	c.SetMaxSize(1000)

	assert.False(t, c.Match("small", false, 99))
	assert.True(t, c.Match("fits", false, 500))
	assert.False(t, c.Match("big", false, 1001))
	// Size bounds never apply to directories.
	assert.True(t, c.Match("dir", true, 0))
}

func TestAddInvalidPattern(t *testing.T) {
	c := NewChain()
	assert.Error(t, c.AddExclude("["))
	assert.Error(t, c.AddInclude(""))
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"512", 512, false},
		{"1K", 1024, false},
		{"100k", 102400, false},
		{"2M", 2 << 20, false},
		{"1G", 1 << 30, false},
		{"1T", 1 << 40, false},
		{"100KiB", 102400, false},
		{"5MB", 5 << 20, false},
		{"", 0, true},
		{"abc", 0, true},
		{"-5M", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
