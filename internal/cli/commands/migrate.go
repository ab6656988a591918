package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/waymark/pkg/apperror"
	"github.com/ccollicutt/waymark/pkg/parser"
	"github.com/ccollicutt/waymark/pkg/rewrite"
)

// MigrateOptions holds command-line options for the migrate command.
type MigrateOptions struct {
	From  string
	To    string
	Write bool
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	opts := &MigrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate --from <dialect> [paths...]",
		Short: "Convert annotations between dialects",
		Long: `Rewrite annotations from one dialect to another.

Prefix dialects also accept their compact legacy payloads, so
":ga:tldr", ":ga:[fix,todo]" and ':ga:{"token":"fix"}' all migrate.
Lines that cannot be read are reported and left untouched.

The target defaults to the configured grammar.

Exit codes:
  0 - Migration complete
  1 - Some lines could not be migrated
  2 - Configuration or runtime error

Example:
  waymark migrate --from ga src/
  waymark migrate --from anchor --to waymark --write .`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "Dialect to migrate from (required)")
	cmd.Flags().StringVar(&opts.To, "to", "", "Dialect to migrate to (default: config)")
	cmd.Flags().BoolVarP(&opts.Write, "write", "w", false, "Write changes back to the files")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func runMigrate(cmd *cobra.Command, args []string, opts *MigrateOptions) error {
	cfg, _, err := loadConfig(commandContext(cmd))
	if err != nil {
		return err
	}

	from, err := resolveGrammar(cfg, opts.From)
	if err != nil {
		return err
	}
	to, err := resolveGrammar(cfg, opts.To)
	if err != nil {
		return err
	}
	if from == to {
		return apperror.New(apperror.CodeValidation, "source and target dialects are both %s", from)
	}

	_, paths, err := collectFiles(cfg, args)
	if err != nil {
		return err
	}

	sum, err := applyRewrite(cmd, paths, cfg.MaxFileSize, opts.Write, func(content string) (string, int, []parser.ParseError) {
		out, report := rewrite.MigrateContent(content, from, to)
		return out, report.Changed, report.Failed
	})
	if err != nil {
		return err
	}

	verb := "Migrated"
	if !opts.Write {
		verb = "Would migrate"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d line(s) in %d of %d file(s) from %s to %s\n",
		verb, sum.Lines, sum.Changed, sum.Files, from, to)
	if sum.Failed > 0 {
		ExitCode = 1
	}
	return nil
}
