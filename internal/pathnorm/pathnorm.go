// Package pathnorm canonicalizes relative paths so two independently
// enumerated file trees can be matched despite incidental differences:
// case on case-insensitive filesystems, separator conventions, and the
// cosmetic suffixes naive copy tools append to duplicated names.
//
// Normalized keys are used only for matching. The path as discovered is
// always what gets reported; normalization never rewrites display output.
package pathnorm

import (
	"path/filepath"
	"regexp"
	"strings"
)

// copySuffixes is the allow-list of cosmetic duplicate markers stripped
// from the final path segment. Longer variants first so " - copy" wins
// over " copy".
var copySuffixes = []string{
	" - copy",
	" (copy)",
	"- copy",
	"_copy",
	" copy",
}

// numberedSuffix matches Explorer-style duplicate counters like " (1)".
var numberedSuffix = regexp.MustCompile(`\s\(\d+\)$`)

// Normalize derives the comparison key for a relative path: lower-cased,
// forward-slash separators, and cosmetic duplicate suffixes stripped from
// the stem of the final segment ("Photo - Copy.jpg" keys the same as
// "photo.jpg").
func Normalize(rel string) string {
	// Rewrite both separator conventions explicitly: the enumeration may
	// come from a foreign filesystem, not just the host OS.
	norm := strings.ToLower(strings.ReplaceAll(rel, `\`, "/"))
	norm = strings.Trim(norm, "/")
	if norm == "" {
		return ""
	}

	dir, base := splitLast(norm)
	base = stripCopySuffix(base)
	if dir == "" {
		return base
	}
	return dir + "/" + base
}

func splitLast(p string) (dir, base string) {
	idx := strings.LastIndexByte(p, '/')
	if idx < 0 {
		return "", p
	}
	return p[:idx], p[idx+1:]
}

// stripCopySuffix removes one cosmetic suffix from the stem of a segment,
// leaving any file extension in place.
func stripCopySuffix(segment string) string {
	ext := filepath.Ext(segment)
	stem := strings.TrimSuffix(segment, ext)

	if m := numberedSuffix.FindString(stem); m != "" {
		return strings.TrimSuffix(stem, m) + ext
	}
	for _, suffix := range copySuffixes {
		if trimmed := strings.TrimSuffix(stem, suffix); trimmed != stem && trimmed != "" {
			return trimmed + ext
		}
	}
	return segment
}
