package engine

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/robwhited/intact/internal/filter"
)

// Scanner enumerates regular files under a root. Symlinks, devices, and
// other special files are skipped; entries that vanish or cannot be read
// mid-walk are skipped rather than aborting the enumeration.
type Scanner struct {
	Root   string
	Filter *filter.Chain
}

// Scan walks Root and returns one FileRecord per included regular file,
// with slash-separated relative paths. A Root that is itself a regular file
// yields a single record keyed by its basename.
func (s *Scanner) Scan() ([]FileRecord, error) {
	info, err := os.Stat(s.Root)
	if err != nil {
		return nil, ioError(s.Root, err)
	}

	if info.Mode().IsRegular() {
		if s.Filter != nil && !s.Filter.Match(filepath.Base(s.Root), false, info.Size()) {
			return nil, nil
		}
		abs, err := filepath.Abs(s.Root)
		if err != nil {
			return nil, ioError(s.Root, err)
		}
		return []FileRecord{{
			AbsolutePath: abs,
			RelativePath: filepath.Base(s.Root),
			SizeBytes:    info.Size(),
		}}, nil
	}
	if !info.IsDir() {
		return nil, ioError(s.Root, fmt.Errorf("not a regular file or directory"))
	}

	var records []FileRecord
	walkErr := filepath.WalkDir(s.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == s.Root {
				return err
			}
			return nil
		}
		if p == s.Root {
			return nil
		}

		rel, relErr := filepath.Rel(s.Root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if s.Filter != nil && !s.Filter.Match(rel, true, 0) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		fi, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		if s.Filter != nil && !s.Filter.Match(rel, false, fi.Size()) {
			return nil
		}
		records = append(records, FileRecord{
			AbsolutePath: p,
			RelativePath: rel,
			SizeBytes:    fi.Size(),
		})
		return nil
	})
	if walkErr != nil {
		return nil, ioError(s.Root, walkErr)
	}
	return records, nil
}
