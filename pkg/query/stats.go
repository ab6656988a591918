package query

import (
	"sort"

	"github.com/ccollicutt/waymark/pkg/marker"
)

// Count is a named tally.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Inventory summarises a set of results.
type Inventory struct {
	Annotations int     `json:"annotations"`
	Files       int     `json:"files"`
	Markers     []Count `json:"markers"`
	ByFile      []Count `json:"by_file"`
}

// Stats tallies results by marker base name and by file. Counts are ordered
// by descending count, then name.
func Stats(results []SearchResult) Inventory {
	markers := make(map[string]int)
	files := make(map[string]int)
	for _, r := range results {
		files[r.Annotation.File]++
		seen := make(map[string]bool)
		for _, m := range r.Annotation.Markers {
			base := marker.Base(m)
			if !seen[base] {
				seen[base] = true
				markers[base]++
			}
		}
	}

	return Inventory{
		Annotations: len(results),
		Files:       len(files),
		Markers:     sortedCounts(markers),
		ByFile:      sortedCounts(files),
	}
}

func sortedCounts(m map[string]int) []Count {
	counts := make([]Count, 0, len(m))
	for name, n := range m {
		counts = append(counts, Count{Name: name, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Name < counts[j].Name
	})
	return counts
}
