package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/waymark/pkg/config"
	"github.com/ccollicutt/waymark/pkg/lint"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate a configuration file",
		Long: `Validate a waymark configuration file without scanning anything.

Checks:
  - YAML syntax and unknown keys
  - Grammar selection (dialect, or sigil and style)
  - Lint policy values
  - Webhook URLs and triggers
  - Source file existence (warning only)

Without an argument the --config flag or .waymark.yaml is validated.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	w := cmd.OutOrStdout()

	configPath := ConfigFile
	if len(args) == 1 {
		configPath = args[0]
	}

	cfg, used, err := config.Discover(ctx, configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if used == "" {
		used = "built-in defaults"
	}
	fmt.Fprintf(w, "Validating %s...\n", used)

	grammar, err := cfg.Grammar.Resolve()
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	linter, err := lint.New(cfg.Lint)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	// Report what we found
	fmt.Fprintf(w, "\nConfiguration valid!\n")
	fmt.Fprintf(w, "  Grammar:  %s\n", grammar)
	fmt.Fprintf(w, "  Sources:  %d pattern(s)\n", len(cfg.Sources))
	fmt.Fprintf(w, "  Webhooks: %d\n", len(cfg.Webhooks))

	rules := make([]string, 0, len(linter.Rules()))
	for _, r := range linter.Rules() {
		rules = append(rules, string(r))
	}
	fmt.Fprintf(w, "\nLint rules: %s\n", strings.Join(rules, ", "))
	if len(cfg.Lint.ForbiddenMarkers) > 0 {
		fmt.Fprintf(w, "  Forbidden: %s\n", strings.Join(cfg.Lint.ForbiddenMarkers, ", "))
	}
	if len(cfg.Lint.AllowedMarkers) > 0 {
		fmt.Fprintf(w, "  Allowed:   %s\n", strings.Join(cfg.Lint.AllowedMarkers, ", "))
	}
	if cfg.Lint.MaxAgeDays > 0 {
		fmt.Fprintf(w, "  Max age:   %d days (field %q)\n", cfg.Lint.MaxAgeDays, cfg.Lint.VersionField)
	}

	// Check if sources exist (warnings only)
	_, found, err := collectFiles(cfg, nil)
	if err != nil {
		fmt.Fprintf(w, "\nWarning: Error resolving sources: %v\n", err)
	} else if len(found) == 0 {
		fmt.Fprintf(w, "\nWarning: No files match the sources\n")
	} else {
		fmt.Fprintf(w, "\nFiles matched: %d\n", len(found))
	}

	return nil
}
