package digest

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robwhited/intact/internal/control"
)

// Well-known digests of "hello world" (no newline).
const (
	helloSHA256 = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	helloSHA1   = "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed"
	helloMD5    = "5eb63bbbe01eeed093cb22bb8f5acdc3"
)

// Digests of the empty stream.
const (
	emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	emptyMD5    = "d41d8cd98f00b204e9800998ecf8427e"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"sha256", SHA256, false},
		{"SHA256", SHA256, false},
		{" md5 ", MD5, false},
		{"sha1", SHA1, false},
		{"blake3", BLAKE3, false},
		{"crc32", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestLegacyFlag(t *testing.T) {
	assert.False(t, SHA256.Legacy())
	assert.False(t, BLAKE3.Legacy())
	assert.True(t, SHA1.Legacy())
	assert.True(t, MD5.Legacy())
}

func TestStreamKnownVectors(t *testing.T) {
	tests := []struct {
		algo Algorithm
		want string
	}{
		{SHA256, helloSHA256},
		{SHA1, helloSHA1},
		{MD5, helloMD5},
	}
	for _, tt := range tests {
		t.Run(string(tt.algo), func(t *testing.T) {
			h := Hasher{Algorithm: tt.algo}
			res, err := h.Stream(strings.NewReader("hello world"), make([]byte, 4))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.HexDigest)
			assert.Equal(t, int64(11), res.BytesProcessed)
			assert.Equal(t, tt.algo, res.Algorithm)
		})
	}
}

func TestStreamEmpty(t *testing.T) {
	h := Hasher{Algorithm: SHA256}
	res, err := h.Stream(strings.NewReader(""), nil)
	require.NoError(t, err)
	assert.Equal(t, emptySHA256, res.HexDigest)
	assert.Equal(t, int64(0), res.BytesProcessed)
}

type failingReader struct {
	data []byte
	err  error
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, r.err
	}
	r.done = true
	return copy(p, r.data), nil
}

func TestStreamReadErrorDiscardsPartial(t *testing.T) {
	boom := errors.New("device gone")
	h := Hasher{Algorithm: SHA256}
	res, err := h.Stream(&failingReader{data: []byte("partial"), err: boom}, make([]byte, 64))

	require.Error(t, err)
	var re *ReadError
	require.ErrorAs(t, err, &re)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, res.HexDigest)
}

func TestStreamCancelled(t *testing.T) {
	cancel := control.NewCancelToken()
	cancel.Cancel()
	h := Hasher{
		Algorithm: SHA256,
		Control:   control.New(control.Options{Cancel: cancel}),
	}
	_, err := h.Stream(strings.NewReader("data"), make([]byte, 2))
	assert.ErrorIs(t, err, control.ErrCancelled)
}

func TestFileIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "evidence.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0644))

	first, err := File(path, SHA256)
	require.NoError(t, err)
	second, err := File(path, SHA256)
	require.NoError(t, err)

	assert.Equal(t, helloSHA256, first.HexDigest)
	assert.Equal(t, first, second)
}

func TestFileEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	res, err := File(path, MD5)
	require.NoError(t, err)
	assert.Equal(t, emptyMD5, res.HexDigest)
	assert.Equal(t, int64(0), res.BytesProcessed)
}

func TestFileNotExist(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "missing"), SHA256)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileReadErrorCarriesPath(t *testing.T) {
	// A directory opens fine but fails on read.
	dir := t.TempDir()
	h := Hasher{Algorithm: SHA256}
	_, err := h.File(dir)
	require.Error(t, err)
}

func TestStreamConsumesReader(t *testing.T) {
	r := strings.NewReader("some bytes here")
	h := Hasher{Algorithm: BLAKE3}
	_, err := h.Stream(r, make([]byte, 8))
	require.NoError(t, err)

	// Single-pass: the stream is exhausted.
	n, err := r.Read(make([]byte, 1))
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)
}
