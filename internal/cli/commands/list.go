package commands

import (
	"github.com/spf13/cobra"

	"github.com/ccollicutt/waymark/pkg/output"
	"github.com/ccollicutt/waymark/pkg/query"
)

// ListOptions holds command-line options for the list command.
type ListOptions struct {
	ScanOptions
	ReportOptions
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	opts := &ListOptions{}

	cmd := &cobra.Command{
		Use:   "list [paths...]",
		Short: "List the markers in use",
		Long: `List every marker in use with the number of annotations carrying it.

Markers with arguments are counted under their base name, so owner(@alice)
and owner(@bob) both count as owner.

Example:
  waymark list
  waymark list -o csv src/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, args, opts)
		},
	}

	addScanFlags(cmd, &opts.ScanOptions)
	addReportFlags(cmd, &opts.ReportOptions)

	return cmd
}

func runList(cmd *cobra.Command, args []string, opts *ListOptions) error {
	s, err := runScan(commandContext(cmd), args, &opts.ScanOptions)
	if err != nil {
		return err
	}

	report := s.report(output.KindList)
	report.SetInventory(query.Stats(query.Wrap(s.batch.Result.Annotations)))

	return s.finish(cmd, report, &opts.ScanOptions, &opts.ReportOptions)
}
