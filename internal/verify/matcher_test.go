package verify

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robwhited/intact/internal/control"
	"github.com/robwhited/intact/internal/digest"
	"github.com/robwhited/intact/internal/engine"
	"github.com/robwhited/intact/internal/event"
	"github.com/robwhited/intact/internal/stats"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func scan(t *testing.T, root string) []engine.FileRecord {
	t.Helper()
	records, err := (&engine.Scanner{Root: root}).Scan()
	require.NoError(t, err)
	return records
}

func entriesByPath(r *Report) map[string]Entry {
	out := make(map[string]Entry, len(r.Entries))
	for _, e := range r.Entries {
		out[e.RelativePath] = e
	}
	return out
}

func TestVerifyIdenticalTrees(t *testing.T) {
	src, tgt := t.TempDir(), t.TempDir()
	files := map[string]string{
		"a.txt":       "alpha",
		"sub/b.txt":   "bravo",
		"sub/c/d.bin": "delta",
	}
	writeTree(t, src, files)
	writeTree(t, tgt, files)

	collector := stats.NewCollector()
	m := &Matcher{Algorithm: digest.SHA256, Stats: collector}
	report, err := m.Verify(scan(t, src), scan(t, tgt))
	require.NoError(t, err)

	assert.True(t, report.Clean())
	assert.False(t, report.Partial)
	assert.Equal(t, 3, report.Totals.Match)
	assert.Equal(t, 3, report.Totals.Entries())
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, int64(3), collector.Snapshot().FilesMatched)

	for _, e := range report.Entries {
		assert.Equal(t, Match, e.Classification, e.RelativePath)
		assert.Equal(t, e.SourceDigest, e.TargetDigest, e.RelativePath)
		assert.NotEmpty(t, e.SourceDigest, e.RelativePath)
	}
}

func TestVerifyRenamedCopyMatches(t *testing.T) {
	src, tgt := t.TempDir(), t.TempDir()
	writeTree(t, src, map[string]string{"photo.jpg": "pixels"})
	writeTree(t, tgt, map[string]string{"photo - Copy.jpg": "pixels"})

	m := &Matcher{Algorithm: digest.SHA256}
	report, err := m.Verify(scan(t, src), scan(t, tgt))
	require.NoError(t, err)

	require.Equal(t, 1, report.Totals.Entries())
	assert.Equal(t, Match, report.Entries[0].Classification)
	// The display path is the source path as enumerated, not normalized.
	assert.Equal(t, "photo.jpg", report.Entries[0].RelativePath)
}

func TestVerifyCaseInsensitiveMatch(t *testing.T) {
	src, tgt := t.TempDir(), t.TempDir()
	writeTree(t, src, map[string]string{"Docs/Report.TXT": "body"})
	writeTree(t, tgt, map[string]string{"docs/report.txt": "body"})

	m := &Matcher{Algorithm: digest.SHA256}
	report, err := m.Verify(scan(t, src), scan(t, tgt))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Totals.Match)
}

func TestVerifyHashMismatch(t *testing.T) {
	src, tgt := t.TempDir(), t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "original"})
	writeTree(t, tgt, map[string]string{"a.txt": "modified"})

	collector := stats.NewCollector()
	m := &Matcher{Algorithm: digest.SHA256, Stats: collector}
	report, err := m.Verify(scan(t, src), scan(t, tgt))
	require.NoError(t, err)

	require.Equal(t, 1, report.Totals.HashMismatch)
	e := report.Entries[0]
	assert.Equal(t, HashMismatch, e.Classification)
	assert.NotEqual(t, e.SourceDigest, e.TargetDigest)
	assert.NotEmpty(t, e.Detail)
	assert.Equal(t, int64(1), collector.Snapshot().FilesMismatch)
}

func TestVerifyMissingBothDirections(t *testing.T) {
	src, tgt := t.TempDir(), t.TempDir()
	writeTree(t, src, map[string]string{
		"common.txt":      "same",
		"source-only.txt": "src",
	})
	writeTree(t, tgt, map[string]string{
		"common.txt":      "same",
		"target-only.txt": "tgt",
	})

	m := &Matcher{Algorithm: digest.SHA256}
	report, err := m.Verify(scan(t, src), scan(t, tgt))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Totals.Match)
	assert.Equal(t, 1, report.Totals.MissingTarget)
	assert.Equal(t, 1, report.Totals.MissingSource)
	assert.Equal(t, 3, report.Totals.Entries())

	byPath := entriesByPath(report)
	assert.Equal(t, MissingTarget, byPath["source-only.txt"].Classification)
	assert.NotEmpty(t, byPath["source-only.txt"].SourceDigest)
	assert.Equal(t, MissingSource, byPath["target-only.txt"].Classification)
	assert.NotEmpty(t, byPath["target-only.txt"].TargetDigest)
}

func TestVerifyAmbiguousTargets(t *testing.T) {
	src, tgt := t.TempDir(), t.TempDir()
	writeTree(t, src, map[string]string{"doc.txt": "content"})
	// Both normalize to "doc.txt", so neither can be chosen as the twin.
	writeTree(t, tgt, map[string]string{
		"doc.txt":        "content",
		"doc - Copy.txt": "content",
	})

	m := &Matcher{Algorithm: digest.SHA256}
	report, err := m.Verify(scan(t, src), scan(t, tgt))
	require.NoError(t, err)

	assert.Equal(t, 3, report.Totals.AmbiguousMatch)
	assert.Equal(t, 3, report.Totals.Entries())
	assert.Zero(t, report.Totals.Match)
	assert.Zero(t, report.Totals.MissingSource)
	for _, e := range report.Entries {
		assert.Contains(t, e.Detail, "doc.txt")
	}
}

func TestVerifyProcessingError(t *testing.T) {
	tgt := t.TempDir()
	writeTree(t, tgt, map[string]string{"gone.txt": "data"})

	source := []engine.FileRecord{{
		AbsolutePath: filepath.Join(t.TempDir(), "gone.txt"),
		RelativePath: "gone.txt",
		SizeBytes:    4,
	}}

	m := &Matcher{Algorithm: digest.SHA256}
	report, err := m.Verify(source, scan(t, tgt))
	require.NoError(t, err)

	// The unreadable source is a processing error, and its twin is claimed
	// rather than double-reported as missing-source.
	require.Equal(t, 1, report.Totals.Entries())
	e := report.Entries[0]
	assert.Equal(t, ProcessingError, e.Classification)
	assert.Contains(t, e.Detail, "source:")
	assert.False(t, report.Clean())
}

func TestVerifyEmptyTrees(t *testing.T) {
	m := &Matcher{Algorithm: digest.SHA256}
	report, err := m.Verify(nil, nil)
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Empty(t, report.Entries)
}

func TestVerifyEmitsHashEvents(t *testing.T) {
	src, tgt := t.TempDir(), t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "alpha", "b.txt": "bravo"})
	writeTree(t, tgt, map[string]string{"a.txt": "alpha", "b.txt": "bravo"})

	events := make(chan event.Event, 64)
	m := &Matcher{Algorithm: digest.SHA256, Events: events}
	_, err := m.Verify(scan(t, src), scan(t, tgt))
	require.NoError(t, err)
	close(events)

	var started, completed int
	for ev := range events {
		switch ev.Type {
		case event.HashStarted:
			// One per hashing phase, announcing the batch size.
			assert.Equal(t, int64(2), ev.Total)
			started++
		case event.HashComplete:
			completed++
		}
	}
	assert.Equal(t, 2, started)
	assert.Equal(t, 4, completed)
}

func TestVerifyCancelledIsPartial(t *testing.T) {
	src, tgt := t.TempDir(), t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "alpha"})
	writeTree(t, tgt, map[string]string{"a.txt": "alpha"})

	cancel := control.NewCancelToken()
	cancel.Cancel()
	m := &Matcher{
		Algorithm: digest.SHA256,
		Control:   control.New(control.Options{Cancel: cancel}),
	}

	report, err := m.Verify(scan(t, src), scan(t, tgt))
	require.ErrorIs(t, err, control.ErrCancelled)
	require.NotNil(t, report)
	assert.True(t, report.Partial)
	assert.False(t, report.Clean())
}

func TestWriteCSV(t *testing.T) {
	src, tgt := t.TempDir(), t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "alpha", "only.txt": "x"})
	writeTree(t, tgt, map[string]string{"a.txt": "alpha"})

	m := &Matcher{Algorithm: digest.SHA256}
	report, err := m.Verify(scan(t, src), scan(t, tgt))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, report))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "file_path,algorithm,hash_value,file_size,status,error_message,timestamp", lines[0])
	assert.Contains(t, buf.String(), "match")
	assert.Contains(t, buf.String(), "missing_target")
	assert.Contains(t, buf.String(), "sha256")
}

func TestWriteDigestCSV(t *testing.T) {
	results := []digest.JobResult{
		{
			Job:    digest.Job{Rel: "a.txt", Size: 5},
			Result: digest.Result{Algorithm: digest.SHA256, HexDigest: "abc123", BytesProcessed: 5},
		},
		{
			Job: digest.Job{Rel: "bad.txt", Size: 9},
			Err: os.ErrNotExist,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDigestCSV(&buf, digest.SHA256, results, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "a.txt,sha256,abc123,5,hashed,,2025-06-01T12:00:00Z")
	assert.Contains(t, lines[2], "bad.txt,sha256,,9,error,")
}
