// Package filter selects which files an enumeration visits, using ordered
// include/exclude glob rules plus optional size bounds.
package filter

import (
	"fmt"
	"path"
	"strings"
)

// rule is one include or exclude glob.
type rule struct {
	pattern string
	include bool
}

// Chain holds an ordered list of rules plus size bounds. Rules are checked
// in the order they were added; the first match wins and the default is to
// include.
type Chain struct {
	rules   []rule
	minSize int64
	maxSize int64
}

// NewChain creates an empty filter chain.
func NewChain() *Chain {
	return &Chain{}
}

// AddExclude adds an exclude rule for the given glob pattern.
func (c *Chain) AddExclude(pattern string) error {
	return c.add(pattern, false)
}

// AddInclude adds an include rule for the given glob pattern.
func (c *Chain) AddInclude(pattern string) error {
	return c.add(pattern, true)
}

func (c *Chain) add(pattern string, include bool) error {
	if pattern == "" {
		return fmt.Errorf("empty filter pattern")
	}
	// Validate the glob up front so a bad pattern fails at flag-parse time.
	if _, err := path.Match(strings.TrimPrefix(pattern, "/"), "probe"); err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	c.rules = append(c.rules, rule{pattern: pattern, include: include})
	return nil
}

// SetMinSize skips files smaller than n bytes.
func (c *Chain) SetMinSize(n int64) { c.minSize = n }

// SetMaxSize skips files larger than n bytes.
func (c *Chain) SetMaxSize(n int64) { c.maxSize = n }

// Empty reports whether the chain has no rules and no size bounds.
func (c *Chain) Empty() bool {
	return len(c.rules) == 0 && c.minSize == 0 && c.maxSize == 0
}

// Match reports whether relPath should be included. Size bounds apply only
// to regular files.
func (c *Chain) Match(relPath string, isDir bool, size int64) bool {
	if !isDir {
		if c.minSize > 0 && size < c.minSize {
			return false
		}
		if c.maxSize > 0 && size > c.maxSize {
			return false
		}
	}

	relPath = strings.TrimPrefix(path.Clean("/"+relPath), "/")
	for _, r := range c.rules {
		if matchGlob(r.pattern, relPath) {
			return r.include
		}
	}
	return true
}

// matchGlob matches pattern against relPath. A pattern containing a slash
// is matched against the whole relative path; otherwise it is matched
// against the basename and every path segment, so "*.log" excludes logs at
// any depth.
func matchGlob(pattern, relPath string) bool {
	if strings.ContainsRune(pattern, '/') {
		ok, _ := path.Match(strings.TrimPrefix(pattern, "/"), relPath)
		return ok
	}
	for _, segment := range strings.Split(relPath, "/") {
		if ok, _ := path.Match(pattern, segment); ok {
			return true
		}
	}
	return false
}
