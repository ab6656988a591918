package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ccollicutt/waymark/pkg/apperror"
	"github.com/ccollicutt/waymark/pkg/config"
	"github.com/ccollicutt/waymark/pkg/output"
	"github.com/ccollicutt/waymark/pkg/parser"
	"github.com/ccollicutt/waymark/pkg/query"
)

// SearchOptions holds command-line options for the search command.
type SearchOptions struct {
	ScanOptions
	ReportOptions

	Markers      []string
	Files        []string
	Text         string
	ContextLines int
	MaxResults   int
}

// NewSearchCommand creates the search command.
func NewSearchCommand() *cobra.Command {
	opts := &SearchOptions{}

	cmd := &cobra.Command{
		Use:   "search [paths...]",
		Short: "Find annotations by marker, file or text",
		Long: `Search annotations in files and directories.

Paths default to the sources in the config file. Filters combine: an
annotation must carry one of the markers, live in a matching file and
contain the text.

Exit codes:
  0 - Annotations found
  1 - No annotations matched
  2 - Configuration or runtime error

Example:
  waymark search -m todo
  waymark search -m todo -m fix --text cache -C 2 src/
  waymark search --file "**/*_test.go" -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Markers, "marker", "m", nil, "Marker to match (can be repeated)")
	cmd.Flags().StringSliceVarP(&opts.Files, "file", "f", nil, "Glob the file must match (can be repeated)")
	cmd.Flags().StringVarP(&opts.Text, "text", "t", "", "Text the prose must contain, ignoring case")
	cmd.Flags().IntVarP(&opts.ContextLines, "context", "C", 0, "Lines of context around each result (default: config)")
	cmd.Flags().IntVar(&opts.MaxResults, "max", 0, "Maximum results (default: config, 0 for no limit)")
	addScanFlags(cmd, &opts.ScanOptions)
	addReportFlags(cmd, &opts.ReportOptions)

	return cmd
}

func runSearch(cmd *cobra.Command, args []string, opts *SearchOptions) error {
	ctx := commandContext(cmd)

	var contextLines, maxResults int
	opts.stream = func(cfg *config.Config) parser.StreamOptions {
		contextLines = cfg.Search.ContextLines
		if cmd.Flags().Changed("context") {
			contextLines = opts.ContextLines
		}
		maxResults = cfg.Search.MaxResults
		if cmd.Flags().Changed("max") {
			maxResults = opts.MaxResults
		}
		return searchStreamOptions(opts, contextLines, maxResults)
	}

	s, err := runScan(ctx, args, &opts.ScanOptions)
	if err != nil {
		return err
	}

	report := s.report(output.KindSearch)

	results, err := query.Search(s.batch.Result.Annotations, query.Options{
		Markers:    opts.Markers,
		Files:      opts.Files,
		Text:       opts.Text,
		MaxResults: maxResults,
	})
	switch {
	case err == nil:
	case apperror.HasCode(err, apperror.CodeSearchTooManyResults):
		report.Metadata.Truncated = true
		Logger.Warn("Results truncated", zap.Int("limit", maxResults))
	case apperror.HasCode(err, apperror.CodeSearchNoResults):
		ExitCode = 1
		printSuggestions(cmd, err)
	default:
		return err
	}

	if len(s.batch.Capped) > 0 {
		Logger.Debug("Stopped reading early", zap.Strings("files", s.batch.Capped))
	}

	loader := query.NewLineLoader()
	loader.Preload(s.batch.Contexts)
	if err := query.AttachContext(results, contextLines, loader); err != nil {
		Logger.Warn("Context unavailable", zap.Error(err))
	}
	report.SetResults(results)

	return s.finish(cmd, report, &opts.ScanOptions, &opts.ReportOptions)
}

// searchStreamOptions captures context while large files stream. Reading a
// file can only stop early when no filter is set: the first max+1
// annotations of each file are then enough to find the first max overall
// and to detect truncation.
func searchStreamOptions(opts *SearchOptions, contextLines, maxResults int) parser.StreamOptions {
	stream := parser.StreamOptions{ContextLines: max(contextLines, 0)}
	if maxResults > 0 && len(opts.Markers) == 0 && len(opts.Files) == 0 && opts.Text == "" {
		stream.MaxAnnotations = maxResults + 1
	}
	return stream
}

func printSuggestions(cmd *cobra.Command, err error) {
	var ae *apperror.Error
	if !errors.As(err, &ae) {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", ae.Message)
	if suggestions, ok := ae.Details["suggestions"].([]string); ok && len(suggestions) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Did you mean: %s?\n", strings.Join(suggestions, ", "))
	}
}
