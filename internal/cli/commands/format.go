package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/waymark/pkg/parser"
	"github.com/ccollicutt/waymark/pkg/rewrite"
)

// FormatOptions holds command-line options for the format command.
type FormatOptions struct {
	Dialect string
	Write   bool
	Check   bool
}

// NewFormatCommand creates the format command.
func NewFormatCommand() *cobra.Command {
	opts := &FormatOptions{}

	cmd := &cobra.Command{
		Use:   "format [paths...]",
		Short: "Fix spacing in annotations",
		Long: `Normalise annotation spacing: one space before a separator sigil,
exactly one space after it and ", " between markers.

Without --write, files that would change are listed and nothing is modified.

Exit codes:
  0 - Nothing to change, or changes written
  1 - Files need formatting (with --check)
  2 - Configuration or runtime error

Example:
  waymark format src/
  waymark format --write .`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFormat(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "Annotation dialect, overriding the config")
	cmd.Flags().BoolVarP(&opts.Write, "write", "w", false, "Write changes back to the files")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "Exit 1 when any file needs formatting")

	return cmd
}

func runFormat(cmd *cobra.Command, args []string, opts *FormatOptions) error {
	cfg, _, err := loadConfig(commandContext(cmd))
	if err != nil {
		return err
	}
	g, err := resolveGrammar(cfg, opts.Dialect)
	if err != nil {
		return err
	}
	_, paths, err := collectFiles(cfg, args)
	if err != nil {
		return err
	}

	sum, err := applyRewrite(cmd, paths, cfg.MaxFileSize, opts.Write, func(content string) (string, int, []parser.ParseError) {
		out, changed := rewrite.FormatContent(content, g)
		return out, changed, nil
	})
	if err != nil {
		return err
	}

	if sum.Changed == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%d file(s) already formatted\n", sum.Files)
	}
	if opts.Check && !opts.Write && sum.Changed > 0 {
		ExitCode = 1
	}
	return nil
}
