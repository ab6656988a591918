package output

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ccollicutt/waymark/pkg/lint"
	"github.com/ccollicutt/waymark/pkg/marker"
	"github.com/ccollicutt/waymark/pkg/query"
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions

	heading  *color.Color
	location *color.Color
	marker   *color.Color
	warn     *color.Color
	fail     *color.Color
	pass     *color.Color
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	f := &TextFormatter{
		opts:     opts,
		heading:  color.New(color.Bold),
		location: color.New(color.FgHiBlack),
		marker:   color.New(color.FgCyan),
		warn:     color.New(color.FgYellow),
		fail:     color.New(color.FgRed, color.Bold),
		pass:     color.New(color.FgGreen, color.Bold),
	}
	if opts.NoColor {
		for _, c := range []*color.Color{f.heading, f.location, f.marker, f.warn, f.fail, f.pass} {
			c.DisableColor()
		}
	}
	return f
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	s := report.Summary
	switch report.Kind {
	case KindLint:
		fmt.Fprintf(w, "waymark lint: %d annotations checked, %d violations\n", s.Annotations, s.Violations)
	case KindList:
		fmt.Fprintf(w, "waymark list: %d markers in %d annotations\n", len(report.Markers), s.Annotations)
	case KindAudit:
		fmt.Fprintf(w, "waymark audit: %d annotations in %d files\n", s.Annotations, len(report.Files))
	default:
		fmt.Fprintf(w, "waymark %s: %d results\n", report.Kind, s.Results)
	}
	return nil
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	switch report.Kind {
	case KindLint:
		f.formatViolations(report, w)
	case KindList:
		f.formatCounts("Markers", report.Markers, w)
	case KindAudit:
		f.formatAudit(report, w)
		f.formatGroups(report, w)
	default:
		f.formatResults(report.Results, w)
	}

	f.formatWarnings(report, w)

	// Summary
	fmt.Fprintln(w, "---")
	s := report.Summary
	switch report.Kind {
	case KindLint:
		status := f.pass.Sprint("PASSED")
		if !s.Passed {
			status = f.fail.Sprint("FAILED")
		}
		fmt.Fprintf(w, "Summary: %d annotations checked, %d violations, %s\n", s.Annotations, s.Violations, status)
	case KindSearch:
		fmt.Fprintf(w, "Summary: %d results from %d annotations\n", s.Results, s.Annotations)
	default:
		fmt.Fprintf(w, "Summary: %d annotations, %d markers\n", s.Annotations, len(report.Markers))
	}
	if report.Metadata.Truncated {
		fmt.Fprintln(w, f.warn.Sprint("Results were truncated"))
	}

	if f.opts.Verbose {
		fmt.Fprintf(w, "Files scanned: %d\n", s.Files)
		fmt.Fprintf(w, "Grammar: %s\n", report.Metadata.Grammar)
		fmt.Fprintf(w, "Duration: %s\n", report.Metadata.Duration.Round(1e6))
	}

	return nil
}

func (f *TextFormatter) formatResults(results []query.SearchResult, w io.Writer) {
	for _, r := range results {
		a := r.Annotation
		fmt.Fprintf(w, "%s %s", f.location.Sprintf("%s:%d:%d", a.File, a.Line, a.Column), f.marker.Sprint(marker.Join(a.Markers)))
		if prose := a.ProseText(); prose != "" {
			fmt.Fprintf(w, " %s", prose)
		}
		fmt.Fprintln(w)

		if r.Context == nil {
			continue
		}
		for i, line := range r.Context.Before {
			fmt.Fprintf(w, "  %5d | %s\n", a.Line-len(r.Context.Before)+i, line)
		}
		fmt.Fprintf(w, "  %5d > %s\n", a.Line, strings.TrimRight(a.Raw, "\r"))
		for i, line := range r.Context.After {
			fmt.Fprintf(w, "  %5d | %s\n", a.Line+1+i, line)
		}
	}
}

func (f *TextFormatter) formatViolations(report *Report, w io.Writer) {
	if len(report.Violations) == 0 {
		fmt.Fprintln(w, "No violations detected")
		return
	}

	counts := lint.Result{Violations: report.Violations}
	byRule := counts.CountByRule()
	for _, rule := range lint.RuleOrder {
		if byRule[rule] > 0 {
			fmt.Fprintf(w, "[%s] %d violation(s)\n", strings.ToUpper(string(rule)), byRule[rule])
		}
	}
	fmt.Fprintln(w)

	for _, v := range report.Violations {
		a := v.Annotation
		fmt.Fprintf(w, "%s %s %s\n",
			f.location.Sprintf("%s:%d:%d", a.File, a.Line, a.Column),
			f.fail.Sprintf("[%s]", v.Rule),
			v.Message)
		if f.opts.Verbose {
			fmt.Fprintf(w, "    %s\n", strings.TrimSpace(a.Raw))
		}
	}
}

func (f *TextFormatter) formatCounts(title string, counts []query.Count, w io.Writer) {
	fmt.Fprintln(w, f.heading.Sprint(title))
	if len(counts) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	width := 0
	for _, c := range counts {
		if len(c.Name) > width {
			width = len(c.Name)
		}
	}
	for _, c := range counts {
		fmt.Fprintf(w, "  %s%s %d\n", f.marker.Sprint(c.Name), strings.Repeat(" ", width-len(c.Name)), c.Count)
	}
}

func (f *TextFormatter) formatAudit(report *Report, w io.Writer) {
	fmt.Fprintln(w, f.heading.Sprint("=== Waymark Audit ==="))
	fmt.Fprintf(w, "Annotations: %d\n", report.Summary.Annotations)
	fmt.Fprintf(w, "Files with annotations: %d of %d scanned\n", len(report.Files), report.Summary.Files)
	fmt.Fprintln(w)
	f.formatCounts("Markers", report.Markers, w)
	fmt.Fprintln(w)
	f.formatCounts("Files", report.Files, w)
}

func (f *TextFormatter) formatGroups(report *Report, w io.Writer) {
	if len(report.Groups) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, f.heading.Sprintf("Annotations by %s", report.GroupBy))
	for _, g := range report.Groups {
		fmt.Fprintf(w, "%s (%d)\n", f.heading.Sprint(g.Key), len(g.Results))
		f.formatResults(g.Results, w)
	}
}

func (f *TextFormatter) formatWarnings(report *Report, w io.Writer) {
	if len(report.ParseErrors) == 0 && len(report.FileErrors) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, e := range report.ParseErrors {
		fmt.Fprintf(w, "%s %s:%d:%d: %s\n", f.warn.Sprint("warning:"), e.File, e.Line, e.Column, e.Message)
	}
	for _, e := range report.FileErrors {
		fmt.Fprintf(w, "%s %s: %s\n", f.fail.Sprint("error:"), e.File, e.Err)
	}
}
