package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSize parses a human size string like "512", "100K", "2M", "1G".
// Suffixes are binary multiples and case-insensitive; an optional trailing
// "B" or "iB" is accepted ("100KiB").
func ParseSize(s string) (int64, error) {
	trimmed := strings.TrimSpace(strings.ToUpper(s))
	if trimmed == "" {
		return 0, fmt.Errorf("empty size")
	}

	trimmed = strings.TrimSuffix(trimmed, "IB")
	trimmed = strings.TrimSuffix(trimmed, "B")

	multiplier := int64(1)
	if n := len(trimmed); n > 0 {
		switch trimmed[n-1] {
		case 'K':
			multiplier = 1 << 10
			trimmed = trimmed[:n-1]
		case 'M':
			multiplier = 1 << 20
			trimmed = trimmed[:n-1]
		case 'G':
			multiplier = 1 << 30
			trimmed = trimmed[:n-1]
		case 'T':
			multiplier = 1 << 40
			trimmed = trimmed[:n-1]
		}
	}

	value, err := strconv.ParseInt(strings.TrimSpace(trimmed), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("negative size %q", s)
	}
	return value * multiplier, nil
}
