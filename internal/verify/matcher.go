// Package verify compares two file trees bidirectionally by content
// digest. Matching tolerates renamed copies through path normalization,
// and a hash failure on one file never aborts the run.
package verify

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/robwhited/intact/internal/bufsize"
	"github.com/robwhited/intact/internal/control"
	"github.com/robwhited/intact/internal/digest"
	"github.com/robwhited/intact/internal/engine"
	"github.com/robwhited/intact/internal/event"
	"github.com/robwhited/intact/internal/pathnorm"
	"github.com/robwhited/intact/internal/stats"
)

// Matcher runs tree verification. Zero value works with SHA-256, default
// thresholds, and automatic worker count.
type Matcher struct {
	Algorithm  digest.Algorithm
	Thresholds bufsize.Thresholds
	Workers    int
	Control    *control.Controller
	Stats      *stats.Collector
	Events     chan<- event.Event
}

func (m *Matcher) algorithm() digest.Algorithm {
	if m.Algorithm == "" {
		return digest.SHA256
	}
	return m.Algorithm
}

// targetState tracks one indexed target file through the two passes.
type targetState struct {
	rec     engine.FileRecord
	res     digest.JobResult
	claimed bool
}

// Verify hashes both enumerations and classifies every file on both
// sides. The forward pass walks sources against a target index keyed by
// normalized path; the backward pass reports targets no source claimed.
//
// On cancellation the report is returned with Partial set alongside
// control.ErrCancelled; entries cover only the phases that completed.
func (m *Matcher) Verify(source, target []engine.FileRecord) (*Report, error) {
	report := &Report{
		ID:        uuid.NewString(),
		Algorithm: m.algorithm(),
		StartedAt: time.Now(),
	}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	event.Emit(m.Events, event.Event{
		Type:  event.VerifyStarted,
		Total: int64(len(source) + len(target)),
	})

	m.Control.Progress(0, "hashing source tree")
	srcResults, cancelled := m.hashAll(source)
	if cancelled {
		report.Partial = true
		event.Emit(m.Events, event.Event{Type: event.Cancelled})
		return report, control.ErrCancelled
	}

	m.Control.Progress(50, "hashing target tree")
	tgtResults, cancelled := m.hashAll(target)
	if cancelled {
		report.Partial = true
		event.Emit(m.Events, event.Event{Type: event.Cancelled})
		return report, control.ErrCancelled
	}

	m.Control.Progress(90, "matching")
	index, ambiguous := m.indexTargets(report, target, tgtResults)
	m.forwardPass(report, source, srcResults, index, ambiguous)
	m.backwardPass(report, target, index, ambiguous)

	m.Control.Progress(100, "verification complete")
	event.Emit(m.Events, event.Event{
		Type:  event.VerifyComplete,
		Total: int64(len(report.Entries)),
	})
	return report, nil
}

// hashAll digests every record through a bounded worker pool. Results come
// back in input order; the second return value reports cancellation.
func (m *Matcher) hashAll(records []engine.FileRecord) ([]digest.JobResult, bool) {
	jobs := make([]digest.Job, len(records))
	for i, rec := range records {
		jobs[i] = digest.Job{Path: rec.AbsolutePath, Rel: rec.RelativePath, Size: rec.SizeBytes}
	}
	event.Emit(m.Events, event.Event{Type: event.HashStarted, Total: int64(len(jobs))})

	pool := &digest.Pool{
		Hasher: digest.Hasher{
			Algorithm:  m.algorithm(),
			Thresholds: m.Thresholds,
			Control:    m.Control,
		},
		Workers: m.Workers,
	}
	results := pool.Run(jobs)

	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if m.Stats != nil {
			m.Stats.AddFilesHashed(1)
			m.Stats.AddBytesHashed(r.Result.BytesProcessed)
		}
		event.Emit(m.Events, event.Event{
			Type:   event.HashComplete,
			Path:   r.Job.Rel,
			Size:   r.Result.BytesProcessed,
			Digest: r.Result.HexDigest,
		})
	}
	return results, m.Control.Cancelled()
}

// indexTargets builds the normalized-key index. Keys claimed by more than
// one target are excluded from matching entirely and every colliding file
// is reported as ambiguous.
func (m *Matcher) indexTargets(report *Report, target []engine.FileRecord, results []digest.JobResult) (map[string]*targetState, map[string]bool) {
	index := make(map[string]*targetState, len(target))
	ambiguous := make(map[string]bool)

	for i, rec := range target {
		key := pathnorm.Normalize(rec.RelativePath)

		if ambiguous[key] {
			report.add(ambiguousEntry(rec, key))
			continue
		}
		if prev, exists := index[key]; exists {
			ambiguous[key] = true
			delete(index, key)
			report.add(ambiguousEntry(prev.rec, key))
			report.add(ambiguousEntry(rec, key))
			continue
		}
		index[key] = &targetState{rec: rec, res: results[i]}
	}
	return index, ambiguous
}

func ambiguousEntry(rec engine.FileRecord, key string) Entry {
	return Entry{
		RelativePath:   rec.RelativePath,
		Classification: AmbiguousMatch,
		SizeBytes:      rec.SizeBytes,
		Detail:         fmt.Sprintf("multiple target files normalize to %q", key),
	}
}

// forwardPass classifies every source file against the target index,
// claiming the keys it touches.
func (m *Matcher) forwardPass(report *Report, source []engine.FileRecord, srcResults []digest.JobResult, index map[string]*targetState, ambiguous map[string]bool) {
	for i, rec := range source {
		sres := srcResults[i]
		key := pathnorm.Normalize(rec.RelativePath)

		if sres.Err != nil {
			// The path correspondence still holds even though the digest is
			// unknown, so claim the twin rather than double-reporting it as
			// missing-source later.
			if ts, ok := index[key]; ok {
				ts.claimed = true
			}
			report.add(Entry{
				RelativePath:   rec.RelativePath,
				Classification: ProcessingError,
				SizeBytes:      rec.SizeBytes,
				Detail:         "source: " + sres.Err.Error(),
			})
			continue
		}

		if ambiguous[key] {
			report.add(Entry{
				RelativePath:   rec.RelativePath,
				Classification: AmbiguousMatch,
				SizeBytes:      rec.SizeBytes,
				SourceDigest:   sres.Result.HexDigest,
				Detail:         fmt.Sprintf("multiple target files normalize to %q", key),
			})
			continue
		}

		ts, ok := index[key]
		if !ok {
			report.add(Entry{
				RelativePath:   rec.RelativePath,
				Classification: MissingTarget,
				SizeBytes:      rec.SizeBytes,
				SourceDigest:   sres.Result.HexDigest,
			})
			event.Emit(m.Events, event.Event{Type: event.VerifyMissing, Path: rec.RelativePath})
			continue
		}
		ts.claimed = true

		if ts.res.Err != nil {
			report.add(Entry{
				RelativePath:   rec.RelativePath,
				Classification: ProcessingError,
				SizeBytes:      rec.SizeBytes,
				SourceDigest:   sres.Result.HexDigest,
				Detail:         "target: " + ts.res.Err.Error(),
			})
			continue
		}

		if sres.Result.HexDigest == ts.res.Result.HexDigest {
			if m.Stats != nil {
				m.Stats.AddFilesMatched(1)
			}
			report.add(Entry{
				RelativePath:   rec.RelativePath,
				Classification: Match,
				SizeBytes:      rec.SizeBytes,
				SourceDigest:   sres.Result.HexDigest,
				TargetDigest:   ts.res.Result.HexDigest,
			})
			event.Emit(m.Events, event.Event{
				Type:   event.VerifyMatch,
				Path:   rec.RelativePath,
				Digest: sres.Result.HexDigest,
			})
		} else {
			if m.Stats != nil {
				m.Stats.AddFilesMismatch(1)
			}
			report.add(Entry{
				RelativePath:   rec.RelativePath,
				Classification: HashMismatch,
				SizeBytes:      rec.SizeBytes,
				SourceDigest:   sres.Result.HexDigest,
				TargetDigest:   ts.res.Result.HexDigest,
				Detail: fmt.Sprintf("source %s target %s",
					shortDigest(sres.Result.HexDigest), shortDigest(ts.res.Result.HexDigest)),
			})
			event.Emit(m.Events, event.Event{Type: event.VerifyMismatch, Path: rec.RelativePath})
		}
	}
}

// backwardPass reports every target file no source claimed.
func (m *Matcher) backwardPass(report *Report, target []engine.FileRecord, index map[string]*targetState, ambiguous map[string]bool) {
	for _, rec := range target {
		key := pathnorm.Normalize(rec.RelativePath)
		if ambiguous[key] {
			continue
		}
		ts, ok := index[key]
		if !ok || ts.claimed || ts.rec.RelativePath != rec.RelativePath {
			continue
		}
		ts.claimed = true

		if ts.res.Err != nil {
			report.add(Entry{
				RelativePath:   rec.RelativePath,
				Classification: ProcessingError,
				SizeBytes:      rec.SizeBytes,
				Detail:         "target: " + ts.res.Err.Error(),
			})
			continue
		}
		report.add(Entry{
			RelativePath:   rec.RelativePath,
			Classification: MissingSource,
			SizeBytes:      rec.SizeBytes,
			TargetDigest:   ts.res.Result.HexDigest,
		})
		event.Emit(m.Events, event.Event{Type: event.VerifyMissing, Path: rec.RelativePath})
	}
}

// shortDigest truncates a hex digest for human-facing detail strings; the
// full values stay on the entry.
func shortDigest(d string) string {
	if len(d) > 16 {
		return d[:16] + "..."
	}
	return d
}
