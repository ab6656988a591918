package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/waymark/pkg/detector"
)

// DetectOptions holds command-line options for the detect command.
type DetectOptions struct {
	Output      string
	SampleSize  int
	ShowAll     bool
	WriteConfig string
}

// NewDetectCommand creates the detect command.
func NewDetectCommand() *cobra.Command {
	opts := &DetectOptions{}

	cmd := &cobra.Command{
		Use:   "detect <paths...>",
		Short: "Detect the annotation dialect in use",
		Long: `Sample annotated lines and work out which dialect they are written in.

Each dialect is scored by the lines carrying its sigil and the share of those
that are well formed. Reports the best match with a confidence score and a
ready-to-use grammar section for the config file.

Optionally generates a starter config file with --write-config.

Supports:
  - waymark   todo ::: prose
  - ga        :ga: tldr prose, and the compact :ga:tldr / :ga:[a,b] forms
  - anchor    :A: todo prose
  - magic     :M: perf prose

Example:
  waymark detect src/
  waymark detect --sample 500 .
  waymark detect --write-config .waymark.yaml src/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVarP(&opts.SampleSize, "sample", "n", 200, "Number of annotated lines to sample")
	cmd.Flags().BoolVar(&opts.ShowAll, "all", false, "Show all detected dialects, not just the best match")
	cmd.Flags().StringVarP(&opts.WriteConfig, "write-config", "w", "", "Write starter config to file (will not overwrite)")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string, opts *DetectOptions) error {
	ctx := commandContext(cmd)

	cfg, _, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	_, paths, err := collectFiles(cfg, args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no files matched %v", args)
	}

	d := detector.New(detector.WithSampleSize(opts.SampleSize))

	result, err := d.DetectFromFiles(ctx, paths)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	out := cmd.OutOrStdout()

	// Write config file if requested
	if opts.WriteConfig != "" {
		if err := writeStarterConfig(result, opts.WriteConfig); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote starter config to: %s\n\n", opts.WriteConfig)
	}

	switch opts.Output {
	case "json":
		return outputDetectJSON(out, result, opts)
	case "text":
		return outputDetectText(out, result, opts)
	default:
		return fmt.Errorf("unknown output format %q (use text or json)", opts.Output)
	}
}

func outputDetectText(w io.Writer, result *detector.DetectionResult, opts *DetectOptions) error {
	fmt.Fprintln(w, "=== Dialect Detection ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Lines sampled: %d\n", result.SampledLines)
	fmt.Fprintf(w, "Lines with a sigil: %d\n", result.AnnotatedLines)
	fmt.Fprintln(w)

	if !result.HasMatch() {
		fmt.Fprintln(w, "No annotation dialect detected.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Tip: The files may not carry annotations yet.")
		fmt.Fprintln(w, "Add one such as '// todo ::: describe the work' and run detect again.")
		return nil
	}

	best := result.BestMatch()
	fmt.Fprintf(w, "Detected Dialect: %s (%s)\n", best.Format.Name, best.Format.Grammar)
	fmt.Fprintf(w, "Confidence: %.1f%% (%d/%d lines well formed)\n",
		best.Confidence*100, best.MatchCount, best.SigilLines)
	if best.LegacyCount > 0 {
		fmt.Fprintf(w, "Legacy compact forms: %d\n", best.LegacyCount)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Sample match:\n  %s\n", best.SampleLine)
	fmt.Fprintln(w)

	if result.AmbiguityNote != "" {
		fmt.Fprintf(w, "Note: %s\n", result.AmbiguityNote)
		fmt.Fprintln(w)
	}

	snippet, err := best.SuggestedConfig()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "--- Configuration snippet (copy to your config file) ---")
	fmt.Fprintln(w)
	fmt.Fprint(w, snippet)
	fmt.Fprintln(w)

	if opts.ShowAll && len(result.Matches) > 1 {
		fmt.Fprintln(w, "--- Alternative dialects detected ---")
		for i, m := range result.Matches[1:] {
			fmt.Fprintf(w, "%d. %s (%.1f%% confidence, %d/%d lines)\n",
				i+2, m.Format.Name, m.Confidence*100, m.MatchCount, m.SigilLines)
		}
		fmt.Fprintln(w)
	}

	return nil
}

// JSONMatch represents a dialect match in JSON output.
type JSONMatch struct {
	Name        string  `json:"name"`
	Sigil       string  `json:"sigil"`
	Style       string  `json:"style"`
	Confidence  float64 `json:"confidence"`
	SigilLines  int     `json:"sigil_lines"`
	MatchCount  int     `json:"match_count"`
	LegacyCount int     `json:"legacy_count,omitempty"`
	SampleLine  string  `json:"sample_line,omitempty"`
}

// JSONOutput represents the full JSON output.
type JSONOutput struct {
	Matches        []JSONMatch `json:"matches"`
	SampledLines   int         `json:"sampled_lines"`
	AnnotatedLines int         `json:"annotated_lines"`
	AmbiguityNote  string      `json:"ambiguity_note,omitempty"`
}

func outputDetectJSON(w io.Writer, result *detector.DetectionResult, opts *DetectOptions) error {
	output := JSONOutput{
		SampledLines:   result.SampledLines,
		AnnotatedLines: result.AnnotatedLines,
		AmbiguityNote:  result.AmbiguityNote,
		Matches:        make([]JSONMatch, 0),
	}

	matches := result.Matches
	if !opts.ShowAll && len(matches) > 1 {
		matches = matches[:1] // Only show best match
	}

	for _, m := range matches {
		output.Matches = append(output.Matches, JSONMatch{
			Name:        m.Format.Name,
			Sigil:       m.Format.Grammar.Sigil,
			Style:       string(m.Format.Grammar.Style),
			Confidence:  m.Confidence,
			SigilLines:  m.SigilLines,
			MatchCount:  m.MatchCount,
			LegacyCount: m.LegacyCount,
			SampleLine:  m.SampleLine,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// writeStarterConfig generates a starter config file with the detected dialect.
func writeStarterConfig(result *detector.DetectionResult, configPath string) error {
	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (will not overwrite)", configPath)
	}

	// Need a detected dialect to generate config
	if !result.HasMatch() {
		return fmt.Errorf("cannot generate config: no annotation dialect detected")
	}

	config, err := generateStarterConfig(result.BestMatch())
	if err != nil {
		return err
	}

	// #nosec G306 - config file doesn't need restrictive permissions
	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateStarterConfig creates a YAML config template.
func generateStarterConfig(match *detector.DialectMatch) (string, error) {
	grammar, err := match.SuggestedConfig()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`# Waymark Configuration
# Generated by: waymark detect
# Detected dialect: %s (%.0f%% confidence)

%s
sources:
  - .

# Extra ignore patterns, on top of .gitignore and .waymarkignore:
# ignore:
#   - vendor/
#   - "**/*.min.js"

search:
  context_lines: 0
  max_results: 0

lint:
  # Markers that must not be committed
  forbidden_markers: []
  # When set, only these markers are allowed
  # allowed_markers: [todo, fix, note, tldr, sec, perf]
  # Flag dated markers older than this many days
  # max_age_days: 180
  # disallow_duplicates: true
`, match.Format.Name, match.Confidence*100, grammar), nil
}
