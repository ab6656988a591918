package query

import (
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/ccollicutt/waymark/pkg/apperror"
	"github.com/ccollicutt/waymark/pkg/marker"
	"github.com/ccollicutt/waymark/pkg/parser"
)

// Options selects annotations. Empty fields match everything.
type Options struct {
	// Markers keeps annotations carrying any of these markers.
	Markers []string

	// Files keeps annotations whose file matches any of these glob patterns.
	Files []string

	// Text keeps annotations whose prose contains this text, ignoring case.
	Text string

	// MaxResults caps the result count. Zero means no cap.
	MaxResults int
}

// Validate checks the options before a search runs.
func (o Options) Validate() error {
	if o.MaxResults < 0 {
		return apperror.New(apperror.CodeValidation, "max results must not be negative, got %d", o.MaxResults)
	}
	for _, m := range o.Markers {
		if strings.TrimSpace(m) == "" {
			return apperror.New(apperror.CodeValidation, "marker filter must not be empty")
		}
	}
	for _, f := range o.Files {
		if !doublestar.ValidatePattern(f) {
			return apperror.New(apperror.CodeValidation, "invalid file pattern %q", f)
		}
	}
	return nil
}

// Search filters annotations by opts.
//
// No match is a search.noResults error carrying "suggestions" for marker
// filters that look like typos of known markers. More matches than MaxResults
// return the first MaxResults results together with a search.tooManyResults
// error.
func Search(annotations []parser.Annotation, opts Options) ([]SearchResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	text := strings.ToLower(opts.Text)
	results := make([]SearchResult, 0)
	for _, a := range annotations {
		if !matchesAny(a, opts.Markers) || !matchesFile(a.File, opts.Files) {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(a.ProseText()), text) {
			continue
		}
		results = append(results, SearchResult{Annotation: a})
	}

	if len(results) == 0 {
		err := apperror.New(apperror.CodeSearchNoResults, "no annotations matched %s", describe(opts))
		if suggestions := suggestAll(opts.Markers, annotations); len(suggestions) > 0 {
			err = err.WithDetail("suggestions", suggestions)
		}
		return results, err
	}

	if opts.MaxResults > 0 && len(results) > opts.MaxResults {
		err := apperror.New(apperror.CodeSearchTooManyResults,
			"%d annotations matched, showing the first %d", len(results), opts.MaxResults).
			WithDetail("count", len(results)).
			WithDetail("limit", opts.MaxResults)
		return results[:opts.MaxResults], err
	}

	return results, nil
}

func matchesAny(a parser.Annotation, markers []string) bool {
	if len(markers) == 0 {
		return true
	}
	for _, m := range markers {
		if carries(a, m) {
			return true
		}
	}
	return false
}

func matchesFile(file string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, _ := doublestar.PathMatch(p, file); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, file[strings.LastIndexAny(file, `/\`)+1:]); ok {
			return true
		}
	}
	return false
}

func describe(opts Options) string {
	var parts []string
	if len(opts.Markers) > 0 {
		parts = append(parts, "markers "+strings.Join(opts.Markers, ", "))
	}
	if len(opts.Files) > 0 {
		parts = append(parts, "files "+strings.Join(opts.Files, ", "))
	}
	if opts.Text != "" {
		parts = append(parts, "text "+`"`+opts.Text+`"`)
	}
	if len(parts) == 0 {
		return "the search"
	}
	return strings.Join(parts, " and ")
}

// Suggest returns the known names that resemble query, best first.
func Suggest(query string, known []string, limit int) []string {
	if query == "" || len(known) == 0 {
		return nil
	}
	for _, k := range known {
		if k == query {
			return nil
		}
	}

	ranks := fuzzy.RankFindFold(query, known)
	sort.Sort(ranks)
	var out []string
	for _, r := range ranks {
		if r.Target != query {
			out = append(out, r.Target)
		}
	}

	// Transpositions and typos are not subsequences; fall back to edit distance.
	if len(out) == 0 {
		for _, k := range known {
			if k != query && fuzzy.LevenshteinDistance(strings.ToLower(query), strings.ToLower(k)) <= 2 {
				out = append(out, k)
			}
		}
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func suggestAll(queries []string, annotations []parser.Annotation) []string {
	if len(queries) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var known []string
	for _, a := range annotations {
		for _, m := range a.Markers {
			base := marker.Base(m)
			if !seen[base] {
				seen[base] = true
				known = append(known, base)
			}
		}
	}
	sort.Strings(known)

	var out []string
	for _, q := range queries {
		out = append(out, Suggest(q, known, 3)...)
	}
	return out
}

// LineLoader reads and caches file lines for context extraction.
// Context captured while streaming a file is preferred over re-reading it.
type LineLoader struct {
	mu       sync.Mutex
	lines    map[string][]string
	captured map[string]map[int]parser.Context
	read     func(string) ([]byte, error)
}

// NewLineLoader creates a loader reading from the file system.
func NewLineLoader() *LineLoader {
	return &LineLoader{
		lines:    make(map[string][]string),
		captured: make(map[string]map[int]parser.Context),
		read:     os.ReadFile,
	}
}

// Preload registers context already captured for annotation lines, keyed by
// file and then line, as produced by parser.BatchResult.Contexts.
func (l *LineLoader) Preload(contexts map[string]map[int]parser.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for file, byLine := range contexts {
		l.captured[file] = byLine
	}
}

func (l *LineLoader) preloaded(file string, line int) (parser.Context, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	byLine, ok := l.captured[file]
	if !ok {
		return parser.Context{}, false
	}
	ctx, ok := byLine[line]
	return ctx, ok
}

// Lines returns the lines of file.
func (l *LineLoader) Lines(file string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lines, ok := l.lines[file]; ok {
		return lines, nil
	}
	data, err := l.read(file)
	if err != nil {
		return nil, apperror.FromIO(file, err)
	}
	lines := parser.SplitLines(string(data))
	l.lines[file] = lines
	return lines, nil
}

// AttachContext fills in n lines of context for every result. Results whose
// file cannot be read are left without context and the first error is
// returned after all results have been processed.
func AttachContext(results []SearchResult, n int, loader *LineLoader) error {
	if n <= 0 {
		return nil
	}
	var firstErr error
	for i := range results {
		if ctx, ok := loader.preloaded(results[i].Annotation.File, results[i].Annotation.Line); ok {
			ctx = trimContext(ctx, n)
			results[i].Context = &ctx
			continue
		}
		lines, err := loader.Lines(results[i].Annotation.File)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		ctx := ExtractContext(lines, results[i].Annotation.Line, n)
		results[i].Context = &ctx
	}
	return firstErr
}

// trimContext keeps at most n lines on each side, nearest the annotation.
func trimContext(ctx parser.Context, n int) parser.Context {
	out := parser.Context{Before: []string{}, After: []string{}}
	out.Before = append(out.Before, ctx.Before[max(0, len(ctx.Before)-n):]...)
	out.After = append(out.After, ctx.After[:min(len(ctx.After), n)]...)
	return out
}
