// Package query filters and groups parsed annotations by marker and file.
package query

import (
	"sort"
	"strings"

	"github.com/ccollicutt/waymark/pkg/parser"
)

// SearchResult is one annotation plus, optionally, the raw lines around it.
// Context is for display only.
type SearchResult struct {
	Annotation parser.Annotation `json:"annotation"`
	Context    *parser.Context   `json:"context,omitempty"`
}

// Group is an ordered bucket of results sharing a key.
type Group struct {
	Key     string         `json:"key"`
	Results []SearchResult `json:"results"`
}

// Wrap turns annotations into results without context.
func Wrap(annotations []parser.Annotation) []SearchResult {
	results := make([]SearchResult, 0, len(annotations))
	for _, a := range annotations {
		results = append(results, SearchResult{Annotation: a})
	}
	return results
}

// MatchesMarker reports whether m equals marker or is marker with an argument
// list, so "owner" matches "owner(@alice)".
func MatchesMarker(m, marker string) bool {
	return m == marker || strings.HasPrefix(m, marker+"(")
}

// FindByMarker returns the annotations carrying marker, in input order.
func FindByMarker(annotations []parser.Annotation, marker string) []parser.Annotation {
	found := make([]parser.Annotation, 0)
	for _, a := range annotations {
		if carries(a, marker) {
			found = append(found, a)
		}
	}
	return found
}

func carries(a parser.Annotation, marker string) bool {
	for _, m := range a.Markers {
		if MatchesMarker(m, marker) {
			return true
		}
	}
	return false
}

// UniqueMarkers returns every marker carried by results, deduplicated and
// sorted.
func UniqueMarkers(results []SearchResult) []string {
	seen := make(map[string]bool)
	markers := make([]string, 0)
	for _, r := range results {
		for _, m := range r.Annotation.Markers {
			if !seen[m] {
				seen[m] = true
				markers = append(markers, m)
			}
		}
	}
	sort.Strings(markers)
	return markers
}

// GroupByMarker buckets results by marker. A result with several markers
// appears once under each; a marker repeated on one annotation counts once.
func GroupByMarker(results []SearchResult) map[string][]SearchResult {
	groups := make(map[string][]SearchResult)
	for _, r := range results {
		seen := make(map[string]bool, len(r.Annotation.Markers))
		for _, m := range r.Annotation.Markers {
			if seen[m] {
				continue
			}
			seen[m] = true
			groups[m] = append(groups[m], r)
		}
	}
	return groups
}

// GroupByFile buckets results by file in order of first appearance.
func GroupByFile(results []SearchResult) []Group {
	index := make(map[string]int)
	groups := make([]Group, 0)
	for _, r := range results {
		i, ok := index[r.Annotation.File]
		if !ok {
			i = len(groups)
			index[r.Annotation.File] = i
			groups = append(groups, Group{Key: r.Annotation.File})
		}
		groups[i].Results = append(groups[i].Results, r)
	}
	return groups
}

// ExtractContext returns up to n lines strictly before and after the 1-based
// line, clamped to the buffer. A line outside the buffer yields empty context.
func ExtractContext(lines []string, line, n int) parser.Context {
	ctx := parser.Context{Before: []string{}, After: []string{}}
	if n <= 0 || line < 1 || line > len(lines) {
		return ctx
	}
	idx := line - 1
	ctx.Before = append(ctx.Before, lines[max(0, idx-n):idx]...)
	ctx.After = append(ctx.After, lines[idx+1:min(len(lines), idx+1+n)]...)
	return ctx
}
