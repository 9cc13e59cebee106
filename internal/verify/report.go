package verify

import (
	"time"

	"github.com/robwhited/intact/internal/digest"
)

// Classification labels one verification finding.
type Classification int

const (
	// Match means a target twin exists and both digests agree.
	Match Classification = iota + 1
	// HashMismatch means the twin exists but its content differs.
	HashMismatch
	// MissingTarget means the source file has no twin in the target tree.
	MissingTarget
	// MissingSource means the target file has no twin in the source tree.
	MissingSource
	// AmbiguousMatch means multiple target files normalize to the same
	// matching key, so no single twin can be chosen.
	AmbiguousMatch
	// ProcessingError means a file could not be hashed; its comparison is
	// unknown, not assumed.
	ProcessingError
)

var classificationNames = [...]string{
	Match:           "match",
	HashMismatch:    "hash_mismatch",
	MissingTarget:   "missing_target",
	MissingSource:   "missing_source",
	AmbiguousMatch:  "ambiguous_match",
	ProcessingError: "processing_error",
}

func (c Classification) String() string {
	if c > 0 && int(c) < len(classificationNames) {
		return classificationNames[c]
	}
	return "unknown"
}

// Entry is one finding. RelativePath is the path exactly as enumerated;
// normalization is used only for matching and never shown here.
type Entry struct {
	RelativePath   string
	Classification Classification
	SizeBytes      int64
	SourceDigest   string
	TargetDigest   string
	Detail         string
}

// Totals counts entries per classification.
type Totals struct {
	Match           int
	HashMismatch    int
	MissingTarget   int
	MissingSource   int
	AmbiguousMatch  int
	ProcessingError int
}

// Entries returns the total finding count.
func (t Totals) Entries() int {
	return t.Match + t.HashMismatch + t.MissingTarget +
		t.MissingSource + t.AmbiguousMatch + t.ProcessingError
}

// Report is the outcome of one verification run. Entries appear in a
// stable order: ambiguous target groups first (target enumeration order),
// then one entry per source file (source order), then unmatched target
// files (target order).
type Report struct {
	ID        string
	Algorithm digest.Algorithm
	StartedAt time.Time
	Duration  time.Duration
	// Partial is set when the run was cancelled before both trees were
	// fully hashed; the entries cover only the completed phases.
	Partial bool
	Entries []Entry
	Totals  Totals
}

// Clean reports whether every finding is a Match.
func (r *Report) Clean() bool {
	return !r.Partial && r.Totals.Entries() == r.Totals.Match
}

func (r *Report) add(e Entry) {
	r.Entries = append(r.Entries, e)
	switch e.Classification {
	case Match:
		r.Totals.Match++
	case HashMismatch:
		r.Totals.HashMismatch++
	case MissingTarget:
		r.Totals.MissingTarget++
	case MissingSource:
		r.Totals.MissingSource++
	case AmbiguousMatch:
		r.Totals.AmbiguousMatch++
	case ProcessingError:
		r.Totals.ProcessingError++
	}
}
