// Package event carries typed progress events from the engine to a
// presenter. Emission is non-blocking: a slow consumer drops events rather
// than stalling the copy or verification path.
package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	ScanStarted Type = iota + 1
	ScanComplete
	FileStarted
	FileCopied
	FileFailed
	IntegrityFailed
	HashStarted
	HashComplete
	VerifyStarted
	VerifyMatch
	VerifyMismatch
	VerifyMissing
	VerifyComplete
	Cancelled
)

var typeNames = [...]string{
	ScanStarted:     "ScanStarted",
	ScanComplete:    "ScanComplete",
	FileStarted:     "FileStarted",
	FileCopied:      "FileCopied",
	FileFailed:      "FileFailed",
	IntegrityFailed: "IntegrityFailed",
	HashStarted:     "HashStarted",
	HashComplete:    "HashComplete",
	VerifyStarted:   "VerifyStarted",
	VerifyMatch:     "VerifyMatch",
	VerifyMismatch:  "VerifyMismatch",
	VerifyMissing:   "VerifyMissing",
	VerifyComplete:  "VerifyComplete",
	Cancelled:       "Cancelled",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event is a single progress event.
type Event struct {
	Type      Type
	Timestamp time.Time
	Path      string // relative path as discovered
	Size      int64  // file size or bytes-so-far
	Total     int64  // total files (ScanComplete, VerifyComplete)
	TotalSize int64  // total bytes (ScanComplete)
	Digest    string // hex digest, when one is known
	Error     error
}

// Emit sends e on ch without blocking, stamping the time. A nil channel or
// a full buffer drops the event.
func Emit(ch chan<- Event, e Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
	default:
	}
}
