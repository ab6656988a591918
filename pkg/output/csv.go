package output

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
)

// CSVFormatter formats the main section of a report as CSV with a header row.
type CSVFormatter struct {
	opts FormatOptions
}

// NewCSVFormatter creates a new CSV formatter with the given options.
func NewCSVFormatter(opts FormatOptions) *CSVFormatter {
	return &CSVFormatter{opts: opts}
}

// Name returns the format name.
func (f *CSVFormatter) Name() string {
	return "csv"
}

// Format renders the report as CSV. Markers within a cell are separated by
// semicolons.
func (f *CSVFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	cw := csv.NewWriter(w)

	var rows [][]string
	switch report.Kind {
	case KindLint:
		rows = append(rows, []string{"file", "line", "column", "rule", "marker", "message"})
		for _, v := range report.Violations {
			a := v.Annotation
			rows = append(rows, []string{a.File, strconv.Itoa(a.Line), strconv.Itoa(a.Column), string(v.Rule), v.Marker, v.Message})
		}
	case KindList:
		rows = append(rows, []string{"marker", "count"})
		for _, c := range report.Markers {
			rows = append(rows, []string{c.Name, strconv.Itoa(c.Count)})
		}
	case KindAudit:
		rows = append(rows, []string{"scope", "name", "count"})
		for _, c := range report.Markers {
			rows = append(rows, []string{"marker", c.Name, strconv.Itoa(c.Count)})
		}
		for _, c := range report.Files {
			rows = append(rows, []string{"file", c.Name, strconv.Itoa(c.Count)})
		}
	default:
		rows = append(rows, []string{"file", "line", "column", "markers", "prose"})
		for _, r := range report.Results {
			a := r.Annotation
			rows = append(rows, []string{a.File, strconv.Itoa(a.Line), strconv.Itoa(a.Column), strings.Join(a.Markers, ";"), a.ProseText()})
		}
	}

	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
