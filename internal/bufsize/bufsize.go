// Package bufsize selects I/O buffer sizes from a small set of tiers
// keyed to file size, balancing syscall overhead against memory use.
package bufsize

// Tier classifies a file by size.
type Tier int

const (
	Small Tier = iota
	Medium
	Large
)

var tierNames = [...]string{
	Small:  "small",
	Medium: "medium",
	Large:  "large",
}

func (t Tier) String() string {
	if int(t) < len(tierNames) {
		return tierNames[t]
	}
	return "unknown"
}

// Buffer sizes per tier.
const (
	SmallBuffer  = 256 * 1024
	MediumBuffer = 2 * 1024 * 1024
	LargeBuffer  = 10 * 1024 * 1024
)

// Thresholds holds the tier boundaries. Files smaller than Small are
// small-tier, smaller than Large are medium-tier, everything else is
// large-tier. Overridable for testing and tuning.
type Thresholds struct {
	Small int64
	Large int64
}

// DefaultThresholds are the production tier boundaries: 1 MB and 100 MB.
var DefaultThresholds = Thresholds{
	Small: 1_000_000,
	Large: 100_000_000,
}

// Profile is the buffer decision for one file. Produced once before any
// I/O and never mutated.
type Profile struct {
	Tier        Tier
	BufferBytes int
}

// For classifies size using the default thresholds.
func For(size int64) Profile {
	return DefaultThresholds.For(size)
}

// For classifies size into a tier and returns the matching buffer size.
// Total over all non-negative sizes; size 0 maps to the small tier.
func (t Thresholds) For(size int64) Profile {
	switch {
	case size < t.Small:
		return Profile{Tier: Small, BufferBytes: SmallBuffer}
	case size < t.Large:
		return Profile{Tier: Medium, BufferBytes: MediumBuffer}
	default:
		return Profile{Tier: Large, BufferBytes: LargeBuffer}
	}
}

// Valid reports whether the thresholds are usable (positive and ordered).
func (t Thresholds) Valid() bool {
	return t.Small > 0 && t.Large > t.Small
}
