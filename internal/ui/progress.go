// Package ui renders live progress for interactive runs: a byte-accurate
// progress bar fed by engine events, plus an end-of-run summary.
package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/cheggaaa/pb/v3"

	"github.com/robwhited/intact/internal/event"
	"github.com/robwhited/intact/internal/stats"
)

const eventBuffer = 256

// Presenter consumes engine events on its own goroutine and drives a
// progress bar. It never blocks the engine: the event channel is buffered
// and emission is drop-on-full.
type Presenter struct {
	out   io.Writer
	st    *stats.Collector
	quiet bool

	bar    *pb.ProgressBar
	events chan event.Event
	done   chan struct{}

	failures []string
}

// NewPresenter creates a presenter writing to out. When quiet is set the
// bar is suppressed and events are only counted.
func NewPresenter(out io.Writer, st *stats.Collector, quiet bool) *Presenter {
	return &Presenter{out: out, st: st, quiet: quiet}
}

// Start launches the consumer goroutine and returns the channel to hand to
// the engine.
func (p *Presenter) Start() chan<- event.Event {
	p.events = make(chan event.Event, eventBuffer)
	p.done = make(chan struct{})
	go p.loop()
	return p.events
}

// Stop closes the event stream and waits for the consumer to drain it.
func (p *Presenter) Stop() {
	close(p.events)
	<-p.done
}

func (p *Presenter) loop() {
	defer close(p.done)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-p.events:
			if !ok {
				p.finish()
				return
			}
			p.handle(e)
		case <-ticker.C:
			if p.st != nil {
				p.st.Tick()
			}
		}
	}
}

func (p *Presenter) handle(e event.Event) {
	switch e.Type {
	case event.ScanComplete:
		if !p.quiet && p.bar == nil && e.TotalSize > 0 {
			p.bar = pb.Full.Start64(e.TotalSize)
			p.bar.SetWriter(p.out)
			p.bar.Set(pb.Bytes, true)
		}
	case event.FileCopied, event.HashComplete:
		if p.bar != nil {
			p.bar.Add64(e.Size)
		}
	case event.FileFailed:
		msg := e.Path
		if e.Error != nil {
			msg = fmt.Sprintf("%s: %v", e.Path, e.Error)
		}
		p.failures = append(p.failures, msg)
	case event.IntegrityFailed:
		p.failures = append(p.failures, fmt.Sprintf("%s: integrity failure", e.Path))
	}
}

func (p *Presenter) finish() {
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
	for _, msg := range p.failures {
		fmt.Fprintf(p.out, "failed: %s\n", msg)
	}
}

// Summary prints the end-of-run counters.
func (p *Presenter) Summary() {
	if p.st == nil {
		return
	}
	snap := p.st.Snapshot()

	fmt.Fprintf(p.out, "\n")
	if snap.FilesCopied > 0 || snap.FilesTotal > 0 {
		fmt.Fprintf(p.out, "  Copied:   %d/%d files, %s\n",
			snap.FilesCopied, snap.FilesTotal, stats.FormatBytes(snap.BytesCopied))
	}
	if snap.FilesHashed > 0 {
		fmt.Fprintf(p.out, "  Hashed:   %d files, %s\n",
			snap.FilesHashed, stats.FormatBytes(snap.BytesHashed))
	}
	if snap.FilesMatched > 0 || snap.FilesMismatch > 0 {
		fmt.Fprintf(p.out, "  Matched:  %d files (%d mismatched)\n",
			snap.FilesMatched, snap.FilesMismatch)
	}
	if snap.FilesFailed > 0 {
		fmt.Fprintf(p.out, "  Failed:   %d files\n", snap.FilesFailed)
	}
	if snap.SmallFiles+snap.MediumFiles+snap.LargeFiles > 0 {
		fmt.Fprintf(p.out, "  Tiers:    %d small, %d medium, %d large\n",
			snap.SmallFiles, snap.MediumFiles, snap.LargeFiles)
	}
	fmt.Fprintf(p.out, "  Elapsed:  %s\n", snap.Elapsed.Round(time.Millisecond))
}
