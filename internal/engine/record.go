package engine

import "path/filepath"

// FileRecord describes one regular file found by tree enumeration. The
// relative path is kept exactly as discovered; matching-time normalization
// never rewrites it.
type FileRecord struct {
	AbsolutePath string
	RelativePath string
	SizeBytes    int64
}

// destinationPath maps a record under the destination root, preserving its
// relative position.
func destinationPath(root string, rec FileRecord) string {
	return filepath.Join(root, filepath.FromSlash(rec.RelativePath))
}
