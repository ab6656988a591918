package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/waymark/pkg/apperror"
	"github.com/ccollicutt/waymark/pkg/config"
	"github.com/ccollicutt/waymark/pkg/lint"
	"github.com/ccollicutt/waymark/pkg/output"
	"github.com/ccollicutt/waymark/pkg/webhook"
)

// LintOptions holds command-line options for the lint command.
type LintOptions struct {
	ScanOptions
	ReportOptions

	Forbid       []string
	Allow        []string
	MaxAgeDays   int
	VersionField string
	Duplicates   bool
	Rules        []string

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewLintCommand creates the lint command.
func NewLintCommand() *cobra.Command {
	opts := &LintOptions{}

	cmd := &cobra.Command{
		Use:   "lint [paths...]",
		Short: "Check annotations against marker policy",
		Long: `Lint annotations against the policy in the config file's lint section.

Rules, in the order they run for each annotation:
  forbidden  - marker listed in forbidden_markers
  outdated   - payload date older than max_age_days
  invalid    - no marker, or only blank ones
  unknown    - marker missing from allowed_markers (when set)
  duplicate  - marker repeated on one annotation (when enabled)

Flags override the config file for this run.

Exit codes:
  0 - No violations
  1 - Violations found (or parse errors with --strict)
  2 - Configuration or runtime error`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(cmd, args, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Forbid, "forbid", nil, "Forbidden marker (can be repeated)")
	cmd.Flags().StringSliceVar(&opts.Allow, "allow", nil, "Allowed marker; enables the unknown rule (can be repeated)")
	cmd.Flags().IntVar(&opts.MaxAgeDays, "max-age", 0, "Maximum age in days of dated markers; enables the outdated rule")
	cmd.Flags().StringVar(&opts.VersionField, "version-field", "", "Payload property holding the date (default: since)")
	cmd.Flags().BoolVar(&opts.Duplicates, "duplicates", false, "Flag markers repeated on one annotation")
	cmd.Flags().StringSliceVar(&opts.Rules, "rule", nil, "Run specific rule(s) only (can be repeated)")
	addScanFlags(cmd, &opts.ScanOptions)
	addReportFlags(cmd, &opts.ReportOptions)

	// Webhook flags
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", "on_issues", "When to fire webhook (on_issues|always|never)")

	return cmd
}

func runLint(cmd *cobra.Command, args []string, opts *LintOptions) error {
	ctx := commandContext(cmd)

	trigger, err := config.ParseWebhookTrigger(opts.WebhookTrigger)
	if err != nil {
		return apperror.Wrap(apperror.CodeValidation, err, "invalid --webhook-trigger")
	}
	opts.WebhookTrigger = string(trigger)

	s, err := runScan(ctx, args, &opts.ScanOptions)
	if err != nil {
		return err
	}

	linter, err := lint.New(s.cfg.Lint.Merge(opts.policy()), lint.WithRuleFilter(opts.Rules))
	if err != nil {
		return fmt.Errorf("creating linter: %w", err)
	}

	report := s.report(output.KindLint)
	report.SetLint(linter.Lint(s.batch.Result.Annotations))

	if err := s.finish(cmd, report, &opts.ScanOptions, &opts.ReportOptions); err != nil {
		return err
	}

	// Send webhooks (errors logged but don't fail lint)
	sendWebhooks(ctx, collectWebhooks(s.cfg, opts), report)

	if report.HasIssues() {
		ExitCode = 1
	}
	return nil
}

// policy returns the lint settings given as flags.
func (o *LintOptions) policy() lint.Config {
	return lint.Config{
		ForbiddenMarkers:   o.Forbid,
		AllowedMarkers:     o.Allow,
		MaxAgeDays:         o.MaxAgeDays,
		VersionField:       o.VersionField,
		DisallowDuplicates: o.Duplicates,
	}
}

func sendWebhooks(ctx context.Context, hooks []config.WebhookConfig, report *output.Report) {
	if len(hooks) == 0 {
		return
	}
	client := webhook.NewClient(webhook.WithLogger(Logger), webhook.WithUserAgent("waymark/"+Version))
	client.Dispatch(ctx, hooks, report)
}

// collectWebhooks merges config file webhooks with CLI webhook.
func collectWebhooks(cfg *config.Config, opts *LintOptions) []config.WebhookConfig {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)

	// Add config file webhooks
	webhooks = append(webhooks, cfg.Webhooks...)

	// Add CLI webhook if specified
	if opts.WebhookURL != "" {
		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: config.WebhookTrigger(opts.WebhookTrigger),
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks
}
