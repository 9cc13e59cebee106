// Package engine copies file trees with per-file integrity verification.
// Every file is hashed once on the way in and once on an independent
// destination read-back after a durability barrier; the two digests must
// agree before a copy counts as successful.
package engine

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/robwhited/intact/internal/bufsize"
	"github.com/robwhited/intact/internal/control"
	"github.com/robwhited/intact/internal/digest"
	"github.com/robwhited/intact/internal/event"
	"github.com/robwhited/intact/internal/filter"
	"github.com/robwhited/intact/internal/stats"
)

// ErrSkipped marks files that were never attempted because the run stopped
// early, after cancellation or a fail-fast failure.
var ErrSkipped = errors.New("skipped after earlier stop")

// Config describes one batch copy run.
type Config struct {
	Source      string
	Destination string
	Algorithm   digest.Algorithm
	Thresholds  bufsize.Thresholds
	// Workers is the copy fan-out. Zero or negative means sequential.
	Workers       int
	FailFast      bool
	PreserveTimes bool
	Filter        *filter.Chain
	Control       *control.Controller
	Stats         *stats.Collector
	Events        chan<- event.Event
}

// FileOutcome pairs one enumerated file with its copy result.
type FileOutcome struct {
	Record  FileRecord
	Outcome CopyOutcome
	Err     error
}

// Result holds per-file outcomes in enumeration order.
type Result struct {
	Outcomes  []FileOutcome
	Cancelled bool
}

// Failed counts files that ended in an error other than ErrSkipped.
func (r *Result) Failed() int {
	var n int
	for _, o := range r.Outcomes {
		if o.Err != nil && !errors.Is(o.Err, ErrSkipped) && !errors.Is(o.Err, control.ErrCancelled) {
			n++
		}
	}
	return n
}

// FirstError returns the first per-file failure, or nil.
func (r *Result) FirstError() error {
	for _, o := range r.Outcomes {
		if o.Err != nil && !errors.Is(o.Err, ErrSkipped) && !errors.Is(o.Err, control.ErrCancelled) {
			return o.Err
		}
	}
	return nil
}

// Run enumerates cfg.Source, copies every included file under
// cfg.Destination preserving relative paths, and returns per-file outcomes.
// Per-file failures do not abort the run unless FailFast is set; the
// returned error is non-nil only for enumeration failures and cancellation.
func Run(cfg Config) (*Result, error) {
	event.Emit(cfg.Events, event.Event{Type: event.ScanStarted, Path: cfg.Source})
	scanner := &Scanner{Root: cfg.Source, Filter: cfg.Filter}
	records, err := scanner.Scan()
	if err != nil {
		return nil, err
	}

	var totalBytes int64
	for _, rec := range records {
		totalBytes += rec.SizeBytes
	}
	if cfg.Stats != nil {
		cfg.Stats.SetTotals(int64(len(records)), totalBytes)
	}
	event.Emit(cfg.Events, event.Event{
		Type:      event.ScanComplete,
		Total:     int64(len(records)),
		TotalSize: totalBytes,
	})

	copier := &Copier{
		Algorithm:     cfg.Algorithm,
		Thresholds:    cfg.Thresholds,
		PreserveTimes: cfg.PreserveTimes,
		Control:       cfg.Control,
		Stats:         cfg.Stats,
		Events:        cfg.Events,
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(records) {
		workers = len(records)
	}

	result := &Result{Outcomes: make([]FileOutcome, len(records))}
	var stop atomic.Bool
	var wg sync.WaitGroup
	idx := make(chan int)

	for w := 0; w < max(workers, 1); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				rec := records[i]
				if stop.Load() {
					result.Outcomes[i] = FileOutcome{Record: rec, Err: ErrSkipped}
					continue
				}
				out, copyErr := copier.Copy(rec.AbsolutePath, destinationPath(cfg.Destination, rec))
				result.Outcomes[i] = FileOutcome{Record: rec, Outcome: out, Err: copyErr}
				if copyErr != nil && (cfg.FailFast || errors.Is(copyErr, control.ErrCancelled)) {
					stop.Store(true)
				}
			}
		}()
	}
	for i := range records {
		idx <- i
	}
	close(idx)
	wg.Wait()

	if cfg.Control.Cancelled() {
		result.Cancelled = true
		event.Emit(cfg.Events, event.Event{Type: event.Cancelled})
		return result, control.ErrCancelled
	}
	return result, nil
}
