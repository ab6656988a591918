// Package output renders command reports as text, JSON or CSV.
package output

import (
	"time"

	"github.com/ccollicutt/waymark/pkg/lint"
	"github.com/ccollicutt/waymark/pkg/parser"
	"github.com/ccollicutt/waymark/pkg/query"
)

// Kind names the command that produced a report.
type Kind string

const (
	// KindSearch reports annotations selected by a search.
	KindSearch Kind = "search"

	// KindList reports the markers in use.
	KindList Kind = "list"

	// KindAudit reports an inventory by marker and by file.
	KindAudit Kind = "audit"

	// KindLint reports policy violations.
	KindLint Kind = "lint"
)

// Report is the complete output of one command.
type Report struct {
	// Kind selects which sections formatters render.
	Kind Kind `json:"kind"`

	// Summary provides aggregate counts.
	Summary Summary `json:"summary"`

	// Results holds annotations selected by search.
	Results []query.SearchResult `json:"results,omitempty"`

	// Groups holds the annotations of a verbose audit, bucketed by GroupBy.
	Groups  []query.Group `json:"groups,omitempty"`
	GroupBy string        `json:"group_by,omitempty"`

	// Violations holds lint failures.
	Violations []lint.Violation `json:"violations,omitempty"`

	// Markers counts annotations per marker base name.
	Markers []query.Count `json:"markers,omitempty"`

	// Files counts annotations per file.
	Files []query.Count `json:"files,omitempty"`

	// ParseErrors are line defects, shown as warnings.
	ParseErrors []parser.ParseError `json:"parse_errors,omitempty"`

	// FileErrors are files that could not be read.
	FileErrors []parser.FileError `json:"file_errors,omitempty"`

	// Metadata provides context about the run.
	Metadata Metadata `json:"metadata"`
}

// Summary provides aggregate counts.
type Summary struct {
	// Files is the number of files scanned.
	Files int `json:"files"`

	// Annotations is the number of annotations parsed.
	Annotations int `json:"annotations"`

	// Results is the number of annotations reported.
	Results int `json:"results"`

	// Violations is the number of lint violations.
	Violations int `json:"violations"`

	ParseErrors int `json:"parse_errors"`
	FileErrors  int `json:"file_errors"`

	// Passed is false when lint found violations.
	Passed bool `json:"passed"`
}

// Metadata provides context about the run.
type Metadata struct {
	// ConfigFile is the configuration used, empty for the defaults.
	ConfigFile string `json:"config_file,omitempty"`

	// Grammar is the grammar annotations were parsed with.
	Grammar parser.Grammar `json:"grammar"`

	// Sources lists the paths and patterns given.
	Sources []string `json:"sources,omitempty"`

	// Truncated is set when results were capped.
	Truncated bool `json:"truncated,omitempty"`

	// GeneratedAt is when the report was built.
	GeneratedAt time.Time `json:"generated_at"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration"`
}

// NewReport creates a report of kind over a parsed batch.
func NewReport(kind Kind, batch *parser.BatchResult) *Report {
	report := &Report{
		Kind:    kind,
		Summary: Summary{Passed: true},
		Metadata: Metadata{
			GeneratedAt: time.Now(),
		},
	}
	if batch == nil {
		return report
	}

	report.Summary.Files = batch.Files
	report.FileErrors = batch.FileErrors
	report.Summary.FileErrors = len(batch.FileErrors)
	if batch.Result != nil {
		report.ParseErrors = batch.Result.Errors
		report.Summary.Annotations = len(batch.Result.Annotations)
		report.Summary.ParseErrors = len(batch.Result.Errors)
	}
	return report
}

// SetResults records the annotations to report.
func (r *Report) SetResults(results []query.SearchResult) {
	r.Results = results
	r.Summary.Results = len(results)
}

// SetGroups records annotations bucketed by file or marker. A result in
// several marker groups counts once.
func (r *Report) SetGroups(by string, groups []query.Group, total int) {
	r.GroupBy = by
	r.Groups = groups
	r.Summary.Results = total
}

// SetLint records a lint outcome.
func (r *Report) SetLint(result *lint.Result) {
	r.Violations = result.Violations
	r.Summary.Violations = len(result.Violations)
	r.Summary.Passed = result.Passed
}

// SetInventory records marker and file counts.
func (r *Report) SetInventory(inv query.Inventory) {
	r.Markers = inv.Markers
	r.Files = inv.ByFile
}

// HasIssues returns true if lint found violations.
func (r *Report) HasIssues() bool {
	return r.Summary.Violations > 0
}
