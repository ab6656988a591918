package commands

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/waymark/pkg/config"
	"github.com/ccollicutt/waymark/pkg/detector"
	"github.com/ccollicutt/waymark/pkg/files"
	"github.com/ccollicutt/waymark/pkg/lint"
	"github.com/ccollicutt/waymark/pkg/parser"
)

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	Verbose bool
}

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string // "ok", "warning", "error"
	Message  string
	Details  []string
	Suggests []string
}

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose [config-file]",
		Short: "Diagnose common configuration issues",
		Long: `Diagnose common configuration issues.

This command checks your configuration for common problems:
- Config file syntax and structure
- Grammar selection
- Source paths and the files they match
- Whether the configured dialect matches the annotations on disk
- Lint policy and webhook settings

Without an argument the --config flag or .waymark.yaml is checked.

Example:
  waymark diagnose
  waymark diagnose -v .waymark.yaml  # verbose output`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ConfigFile
			if len(args) == 1 {
				path = args[0]
			}
			return runDiagnose(commandContext(cmd), cmd.OutOrStdout(), path, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show detailed diagnostic output")

	return cmd
}

func runDiagnose(ctx context.Context, w io.Writer, configPath string, opts *DiagnoseOptions) error {
	results := []DiagnosticResult{}

	// 1. Check config file existence
	result := checkConfigExists(configPath)
	results = append(results, result)
	if result.Status == "error" {
		finishDiagnostics(w, results, opts)
		return nil
	}

	// 2. Parse config file
	cfg, result := checkConfigParseable(ctx, configPath)
	results = append(results, result)
	if result.Status == "error" {
		finishDiagnostics(w, results, opts)
		return nil
	}

	// 3. Check grammar
	grammar, result := checkGrammar(cfg)
	results = append(results, result)

	// 4. Check sources
	sourceResults, paths := checkSources(cfg)
	results = append(results, sourceResults...)

	// 5. Check the dialect against annotations on disk
	if result.Status == "ok" && len(paths) > 0 {
		results = append(results, checkDialect(ctx, grammar, paths, opts))
	}

	// 6. Check lint policy
	results = append(results, checkLintPolicy(cfg))

	// 7. Check webhooks configuration
	results = append(results, checkWebhooks(cfg, opts)...)

	finishDiagnostics(w, results, opts)
	return nil
}

func checkConfigExists(path string) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Config File",
	}

	if path == "" {
		if _, err := os.Stat(config.DefaultConfigFile); err != nil {
			result.Status = "ok"
			result.Message = "No config file, using built-in defaults"
			result.Suggests = []string{
				"Use 'waymark detect <path> --write-config " + config.DefaultConfigFile + "' to generate a starter config",
			}
			return result
		}
		path = config.DefaultConfigFile
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = "error"
		result.Message = fmt.Sprintf("Config file not found: %s", path)
		result.Suggests = []string{
			"Check the file path is correct",
			"Use 'waymark detect <path> --write-config " + config.DefaultConfigFile + "' to generate a starter config",
		}
		return result
	}
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot access config file: %v", err)
		result.Suggests = []string{"Check file permissions"}
		return result
	}
	if info.IsDir() {
		result.Status = "error"
		result.Message = "Path is a directory, not a file"
		return result
	}
	if info.Size() == 0 {
		result.Status = "warning"
		result.Message = "Config file is empty, defaults apply"
		return result
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("Found: %s (%d bytes)", path, info.Size())
	return result
}

func checkConfigParseable(ctx context.Context, path string) (*config.Config, DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Config Syntax",
	}

	cfg, used, err := config.Discover(ctx, path)
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Failed to parse config: %v", err)
		if strings.Contains(err.Error(), "yaml") {
			result.Suggests = []string{
				"Check YAML syntax - ensure proper indentation (use spaces, not tabs)",
				"Check for misspelled keys; unknown keys are rejected",
			}
		}
		return nil, result
	}

	result.Status = "ok"
	if used == "" {
		result.Message = "Built-in defaults are valid"
	} else {
		result.Message = "Config file parsed successfully"
	}
	result.Details = []string{
		fmt.Sprintf("Sources: %d", len(cfg.Sources)),
		fmt.Sprintf("Webhooks: %d", len(cfg.Webhooks)),
	}
	return cfg, result
}

func checkGrammar(cfg *config.Config) (parser.Grammar, DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Grammar",
	}

	g, err := cfg.Grammar.Resolve()
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Grammar does not resolve: %v", err)
		result.Suggests = []string{
			fmt.Sprintf("Use one of the built-in dialects: %s", strings.Join(parser.Dialects(), ", ")),
			"Or set both grammar.sigil and grammar.style",
		}
		return g, result
	}

	result.Status = "ok"
	name := cfg.Grammar.Dialect
	if name == "" && cfg.Grammar.Sigil == "" {
		name = config.DefaultDialect
	}
	if name != "" {
		result.Message = fmt.Sprintf("Dialect %s: %s", name, g)
	} else {
		result.Message = fmt.Sprintf("Custom grammar: %s", g)
	}
	return g, result
}

// checkSources reports on each configured source and returns every file
// they resolve to.
func checkSources(cfg *config.Config) ([]DiagnosticResult, []string) {
	results := []DiagnosticResult{}

	if len(cfg.Sources) == 0 {
		results = append(results, DiagnosticResult{
			Check:   "Sources",
			Status:  "error",
			Message: "No sources defined",
			Suggests: []string{
				"Add a sources section to your config",
				"Example: sources:\n  - src/\n  - \"**/*.go\"",
			},
		})
		return results, nil
	}

	cache := files.NewIgnoreCache()
	var all []string
	for _, source := range cfg.Sources {
		result := DiagnosticResult{
			Check: fmt.Sprintf("Source: %s", source),
		}

		matched, err := files.Collect([]string{source}, files.Options{
			Include: cfg.Include,
			Ignore:  cfg.Ignore,
			Cache:   cache,
		})
		matched = existingFiles(matched)
		switch {
		case err != nil:
			result.Status = "error"
			result.Message = fmt.Sprintf("Cannot resolve source: %v", err)
			result.Suggests = []string{
				"Check the path exists and is readable",
				"Verify the glob pattern syntax",
			}
		case len(matched) == 0:
			result.Status = "warning"
			result.Message = "Source matches no files"
			result.Suggests = []string{
				"Check the include and ignore patterns",
			}
		default:
			result.Status = "ok"
			result.Message = fmt.Sprintf("Matches %d file(s)", len(matched))
			result.Details = append(result.Details, matched...)
			all = append(all, matched...)
		}
		results = append(results, result)
	}

	if len(all) == 0 {
		results = append(results, DiagnosticResult{
			Check:   "Files Summary",
			Status:  "error",
			Message: "No readable files found",
			Suggests: []string{
				"Ensure at least one source resolves to a file",
			},
		})
	}

	return results, all
}

// existingFiles drops paths that are not readable regular files. Collect
// passes unmatched patterns through unchanged.
func existingFiles(paths []string) []string {
	var out []string
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			out = append(out, p)
		}
	}
	return out
}

func checkDialect(ctx context.Context, g parser.Grammar, paths []string, opts *DiagnoseOptions) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Dialect Detection",
	}

	d := detector.New()
	detected, err := d.DetectFromFiles(ctx, paths)
	if err != nil {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Cannot sample files: %v", err)
		return result
	}

	best := detected.BestMatch()
	if best == nil {
		result.Status = "warning"
		result.Message = fmt.Sprintf("No annotations found in %d sampled line(s)", detected.SampledLines)
		return result
	}

	if best.Format.Grammar != g {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Configured grammar %s but files mostly use %s", g, best.Format.Name)
		result.Details = []string{
			fmt.Sprintf("Sample: %s", truncate(best.SampleLine, 80)),
		}
		result.Suggests = []string{
			fmt.Sprintf("Set grammar.dialect: %s", best.Format.Name),
			fmt.Sprintf("Or convert the files with 'waymark migrate --from %s --write'", best.Format.Name),
		}
		return result
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("Files use the configured grammar (%.0f%% well formed)", best.Confidence*100)
	if detected.AmbiguityNote != "" {
		result.Status = "warning"
		result.Details = []string{detected.AmbiguityNote}
	} else if opts.Verbose {
		result.Details = []string{
			fmt.Sprintf("Sample: %s", truncate(best.SampleLine, 80)),
		}
	}
	return result
}

func checkLintPolicy(cfg *config.Config) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Lint Policy",
	}

	linter, err := lint.New(cfg.Lint)
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Invalid lint policy: %v", err)
		return result
	}

	warnings := []string{}
	allowed := make(map[string]bool, len(cfg.Lint.AllowedMarkers))
	for _, m := range cfg.Lint.AllowedMarkers {
		allowed[m] = true
	}
	for _, m := range cfg.Lint.ForbiddenMarkers {
		if allowed[m] {
			warnings = append(warnings, fmt.Sprintf("Marker %q is both allowed and forbidden", m))
		}
	}

	rules := make([]string, 0, len(linter.Rules()))
	for _, r := range linter.Rules() {
		rules = append(rules, string(r))
	}

	if len(warnings) > 0 {
		result.Status = "warning"
		result.Message = fmt.Sprintf("%d warning(s)", len(warnings))
		result.Details = warnings
		return result
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("Rules: %s", strings.Join(rules, ", "))
	return result
}

func checkWebhooks(cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.Webhooks) == 0 {
		// Webhooks are optional, just note they're not configured
		if opts.Verbose {
			results = append(results, DiagnosticResult{
				Check:   "Webhooks",
				Status:  "ok",
				Message: "No webhooks configured (optional)",
			})
		}
		return results
	}

	for _, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		result := DiagnosticResult{
			Check: fmt.Sprintf("Webhook: %s", name),
		}

		issues := []string{}
		warnings := []string{}

		if u, err := url.Parse(wh.URL); err != nil {
			issues = append(issues, fmt.Sprintf("Invalid URL: %v", err))
		} else if u.Scheme == "http" && u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1" {
			warnings = append(warnings, "URL uses plain http; reports are sent unencrypted")
		}

		// Check if token looks like an unexpanded env var
		if strings.HasPrefix(wh.Token, "$") {
			warnings = append(warnings, fmt.Sprintf("Token appears to be an unresolved env var: %s", wh.Token))
		}

		if len(issues) > 0 {
			result.Status = "error"
			result.Message = fmt.Sprintf("%d configuration issue(s)", len(issues))
			result.Details = issues
		} else if len(warnings) > 0 {
			result.Status = "warning"
			result.Message = fmt.Sprintf("%d warning(s)", len(warnings))
			result.Details = warnings
		} else {
			result.Status = "ok"
			result.Message = fmt.Sprintf("Trigger: %s", wh.Trigger)
			if opts.Verbose {
				result.Details = []string{
					fmt.Sprintf("URL: %s", wh.URL),
					fmt.Sprintf("Timeout: %s", wh.Timeout),
				}
				if wh.Token != "" {
					result.Details = append(result.Details, "Token: configured")
				}
			}
		}

		results = append(results, result)
	}

	return results
}

// finishDiagnostics prints the results and sets the exit code when any
// check failed.
func finishDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) {
	if printDiagnostics(w, results, opts) > 0 {
		ExitCode = 1
	}
}

// printDiagnostics writes the results and returns the number of errors.
func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) int {
	fmt.Fprintln(w, "=== Waymark Configuration Diagnostics ===")
	fmt.Fprintln(w)

	okCount := 0
	warnCount := 0
	errCount := 0

	for _, r := range results {
		var icon string
		switch r.Status {
		case "ok":
			icon = "PASS"
			okCount++
		case "warning":
			icon = "WARN"
			warnCount++
		case "error":
			icon = "FAIL"
			errCount++
		}

		fmt.Fprintf(w, "[%s] %s\n", icon, r.Check)
		fmt.Fprintf(w, "    %s\n", r.Message)

		if opts.Verbose || r.Status != "ok" {
			for _, d := range r.Details {
				fmt.Fprintf(w, "      - %s\n", d)
			}
		}

		for _, s := range r.Suggests {
			fmt.Fprintf(w, "      Hint: %s\n", s)
		}

		fmt.Fprintln(w)
	}

	// Summary
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

	switch {
	case errCount > 0:
		fmt.Fprintln(w, "\nFix the errors above before running waymark.")
	case warnCount > 0:
		fmt.Fprintln(w, "\nConfiguration is usable but has warnings.")
	default:
		fmt.Fprintln(w, "\nConfiguration looks good!")
	}
	return errCount
}

// truncate shortens s to n characters.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
