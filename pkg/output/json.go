package output

import (
	"context"
	"encoding/json"
	"io"

	"github.com/ccollicutt/waymark/pkg/lint"
	"github.com/ccollicutt/waymark/pkg/parser"
	"github.com/ccollicutt/waymark/pkg/query"
)

// JSONFormatter formats reports as JSON. The sections a report kind owns are
// always present, empty or not, so consumers never need to tell a missing
// key from zero results. Raw annotation lines are written without HTML
// escaping, so "<!-- todo ::: x -->" stays readable.
type JSONFormatter struct {
	opts FormatOptions
}

// NewJSONFormatter creates a new JSON formatter with the given options.
func NewJSONFormatter(opts FormatOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Name returns the format name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// jsonSummary is the quiet form: the kind and the counts.
type jsonSummary struct {
	Kind      Kind    `json:"kind"`
	Summary   Summary `json:"summary"`
	Truncated bool    `json:"truncated,omitempty"`
}

// jsonReport mirrors Report with pointer sections, set only for the kinds
// that own them.
type jsonReport struct {
	Kind        Kind                  `json:"kind"`
	Summary     Summary               `json:"summary"`
	Results     *[]query.SearchResult `json:"results,omitempty"`
	Violations  *[]lint.Violation     `json:"violations,omitempty"`
	Markers     *[]query.Count        `json:"markers,omitempty"`
	Files       *[]query.Count        `json:"files,omitempty"`
	GroupBy     string                `json:"group_by,omitempty"`
	Groups      []query.Group         `json:"groups,omitempty"`
	ParseErrors []parser.ParseError   `json:"parse_errors"`
	FileErrors  []parser.FileError    `json:"file_errors"`
	Metadata    Metadata              `json:"metadata"`
}

// Format renders the report as JSON.
func (f *JSONFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)

	if f.opts.Quiet {
		return encoder.Encode(jsonSummary{
			Kind:      report.Kind,
			Summary:   report.Summary,
			Truncated: report.Metadata.Truncated,
		})
	}
	return encoder.Encode(sections(report))
}

func sections(report *Report) jsonReport {
	out := jsonReport{
		Kind:     report.Kind,
		Summary:  report.Summary,
		GroupBy:  report.GroupBy,
		Groups:   report.Groups,
		Metadata: report.Metadata,

		ParseErrors: nonNil(report.ParseErrors),
		FileErrors:  nonNil(report.FileErrors),
	}
	switch report.Kind {
	case KindSearch:
		out.Results = ptr(nonNil(report.Results))
	case KindLint:
		out.Violations = ptr(nonNil(report.Violations))
	case KindList:
		out.Markers = ptr(nonNil(report.Markers))
	case KindAudit:
		out.Markers = ptr(nonNil(report.Markers))
		out.Files = ptr(nonNil(report.Files))
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func ptr[T any](v T) *T {
	return &v
}
