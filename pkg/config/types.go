// Package config provides configuration loading and validation for waymark.
package config

import (
	"time"

	"github.com/ccollicutt/waymark/pkg/lint"
	"github.com/ccollicutt/waymark/pkg/parser"
)

// Config is the root configuration structure loaded from YAML.
type Config struct {
	Grammar GrammarConfig `yaml:"grammar"`

	// Sources are the files, directories and globs scanned when a command is
	// given no paths.
	Sources []string `yaml:"sources"`

	// Include restricts directory walks to matching files.
	Include []string `yaml:"include,omitempty"`

	// Ignore adds ignore-file style patterns to every walk.
	Ignore []string `yaml:"ignore,omitempty"`

	// MaxFileSize is the largest file parsed, in bytes.
	MaxFileSize int64 `yaml:"max_file_size"`

	// StreamThreshold is the size above which files are streamed, in bytes.
	StreamThreshold int64 `yaml:"stream_threshold"`

	// Workers bounds concurrent file parsing. Zero uses the CPU count.
	Workers int `yaml:"workers,omitempty"`

	Search   SearchConfig    `yaml:"search"`
	Lint     lint.Config     `yaml:"lint"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`
}

// GrammarConfig selects the annotation grammar, either by dialect name or by
// an explicit sigil and style.
type GrammarConfig struct {
	// Dialect names a built-in grammar: waymark, ga, anchor or magic.
	Dialect string `yaml:"dialect,omitempty"`

	// Sigil and Style define a custom grammar. Both are required together.
	Sigil string       `yaml:"sigil,omitempty"`
	Style parser.Style `yaml:"style,omitempty"`
}

// SearchConfig holds defaults for the search command.
type SearchConfig struct {
	// ContextLines is the number of lines shown around each result.
	ContextLines int `yaml:"context_lines"`

	// MaxResults caps search output. Zero means no cap.
	MaxResults int `yaml:"max_results"`
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnIssues fires only when violations are found (default).
	WebhookTriggerOnIssues WebhookTrigger = "on_issues"
	// WebhookTriggerAlways fires after every run.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for sending lint reports.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url"`

	// Token is an optional bearer token for authentication.
	Token string `yaml:"token,omitempty"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_issues" if not specified.
	Trigger WebhookTrigger `yaml:"trigger,omitempty"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}
