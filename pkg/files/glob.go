// Package files resolves the set of files a waymark command operates on.
package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// ExpandGlobs expands a list of file paths and glob patterns into a deduplicated,
// sorted list of paths. Patterns may use "**" to cross directories. Patterns that
// match nothing are returned as-is so the caller reports file-not-found later.
func ExpandGlobs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var result []string

	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			result = append(result, path)
		}
	}

	for _, pattern := range patterns {
		if !doublestar.ValidatePathPattern(pattern) {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, doublestar.ErrBadPattern)
		}

		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}

		if len(matches) == 0 {
			add(pattern)
			continue
		}
		for _, match := range matches {
			add(match)
		}
	}

	sort.Strings(result)
	return result, nil
}

// Options controls Collect and Walk.
type Options struct {
	// Include restricts walked files to those whose path relative to the walk
	// root matches one of these patterns. Empty includes everything.
	Include []string

	// Ignore lists extra patterns, in ignore-file syntax, applied at every root.
	Ignore []string

	// Cache supplies ignore-file rules per directory. Nil disables ignore files.
	Cache *IgnoreCache
}

// Collect resolves sources into files. Directories are walked; anything else is
// expanded as a glob. The result is deduplicated and sorted.
func Collect(sources []string, opts Options) ([]string, error) {
	var patterns []string
	seen := make(map[string]bool)
	var walked []string

	for _, src := range sources {
		info, err := os.Stat(src)
		if err != nil || !info.IsDir() {
			patterns = append(patterns, src)
			continue
		}
		found, err := Walk(src, opts)
		if err != nil {
			return nil, err
		}
		walked = append(walked, found...)
	}

	expanded, err := ExpandGlobs(patterns)
	if err != nil {
		return nil, err
	}

	var result []string
	for _, path := range append(walked, expanded...) {
		clean := filepath.Clean(path)
		if !seen[clean] {
			seen[clean] = true
			result = append(result, clean)
		}
	}
	sort.Strings(result)
	return result, nil
}
