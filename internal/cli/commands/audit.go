package commands

import (
	"github.com/spf13/cobra"

	"github.com/ccollicutt/waymark/pkg/apperror"
	"github.com/ccollicutt/waymark/pkg/output"
	"github.com/ccollicutt/waymark/pkg/parser"
	"github.com/ccollicutt/waymark/pkg/query"
)

// Grouping keys for audit --group-by.
const (
	GroupByFile   = "file"
	GroupByMarker = "marker"
)

// AuditOptions holds command-line options for the audit command.
type AuditOptions struct {
	ScanOptions
	ReportOptions

	Markers []string
	GroupBy string
}

// NewAuditCommand creates the audit command.
func NewAuditCommand() *cobra.Command {
	opts := &AuditOptions{}

	cmd := &cobra.Command{
		Use:   "audit [paths...]",
		Short: "Summarise annotations by marker and file",
		Long: `Audit annotations: totals, counts per marker and counts per file,
with parse errors and unreadable files listed as warnings.

With --marker the inventory covers only annotations carrying those markers.
With --verbose the annotations themselves are listed, grouped by file or by
marker.

Example:
  waymark audit
  waymark audit -m todo -m fix -o json
  waymark audit -v --group-by marker src/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, args, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Markers, "marker", "m", nil, "Restrict the audit to a marker (can be repeated)")
	cmd.Flags().StringVar(&opts.GroupBy, "group-by", GroupByFile, "Grouping of listed annotations with --verbose (file|marker)")
	addScanFlags(cmd, &opts.ScanOptions)
	addReportFlags(cmd, &opts.ReportOptions)

	return cmd
}

func runAudit(cmd *cobra.Command, args []string, opts *AuditOptions) error {
	if opts.GroupBy != GroupByFile && opts.GroupBy != GroupByMarker {
		return apperror.New(apperror.CodeValidation,
			"unknown --group-by %q (must be %s or %s)", opts.GroupBy, GroupByFile, GroupByMarker)
	}

	s, err := runScan(commandContext(cmd), args, &opts.ScanOptions)
	if err != nil {
		return err
	}

	results := query.Wrap(s.batch.Result.Annotations)
	if len(opts.Markers) > 0 {
		results, err = query.Search(s.batch.Result.Annotations, query.Options{Markers: opts.Markers})
		if err != nil && !apperror.HasCode(err, apperror.CodeSearchNoResults) {
			return err
		}
	}

	report := s.report(output.KindAudit)
	report.SetInventory(query.Stats(results))
	if opts.Verbose {
		groups := groupResults(results, opts.GroupBy)
		if opts.GroupBy == GroupByMarker && len(opts.Markers) > 0 {
			groups = groupRequested(s.batch.Result.Annotations, opts.Markers)
		}
		report.SetGroups(opts.GroupBy, groups, len(results))
	}

	return s.finish(cmd, report, &opts.ScanOptions, &opts.ReportOptions)
}

// groupResults buckets results by file in order of appearance, or by marker
// in name order.
func groupResults(results []query.SearchResult, by string) []query.Group {
	if by == GroupByFile {
		return query.GroupByFile(results)
	}
	byMarker := query.GroupByMarker(results)
	groups := make([]query.Group, 0, len(byMarker))
	for _, m := range query.UniqueMarkers(results) {
		groups = append(groups, query.Group{Key: m, Results: byMarker[m]})
	}
	return groups
}

// groupRequested gives each requested marker its own group, so "owner"
// collects owner(@alice) and owner(@bob) together.
func groupRequested(annotations []parser.Annotation, markers []string) []query.Group {
	groups := make([]query.Group, 0, len(markers))
	for _, m := range markers {
		groups = append(groups, query.Group{Key: m, Results: query.Wrap(query.FindByMarker(annotations, m))})
	}
	return groups
}
