package output

import (
	"context"
	"io"
	"strings"

	"github.com/ccollicutt/waymark/pkg/apperror"
)

// Formatter renders reports in a specific format.
type Formatter interface {
	// Format renders the report to the given writer.
	Format(ctx context.Context, report *Report, w io.Writer) error

	// Name returns the format name (text, json, csv).
	Name() string
}

// FormatOptions controls formatter behavior.
type FormatOptions struct {
	// Verbose adds context lines, durations and file counts.
	Verbose bool

	// Quiet enables minimal summary-only output.
	Quiet bool

	// NoColor disables ANSI colors in text output.
	NoColor bool
}

// Formats lists the supported format names.
func Formats() []string {
	return []string{"text", "json", "csv"}
}

// New returns the formatter registered under name.
func New(name string, opts FormatOptions) (Formatter, error) {
	switch strings.ToLower(name) {
	case "", "text":
		return NewTextFormatter(opts), nil
	case "json":
		return NewJSONFormatter(opts), nil
	case "csv":
		return NewCSVFormatter(opts), nil
	default:
		return nil, apperror.New(apperror.CodeValidation,
			"unknown output format %q (must be one of %s)", name, strings.Join(Formats(), ", "))
	}
}
