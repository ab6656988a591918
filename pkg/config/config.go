package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/waymark/pkg/apperror"
	"github.com/ccollicutt/waymark/pkg/parser"
)

// Load reads and validates a configuration file. Unknown keys are rejected.
func Load(_ context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", apperror.FromIO(path, err))
	}

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config file: %w",
			apperror.Wrap(apperror.CodeValidationSchema, err, "%s is not a valid config", path))
	}

	return finish(cfg)
}

// Discover loads path when given, otherwise DefaultConfigFile from the working
// directory when it exists, otherwise the defaults. It returns the path used,
// empty for the defaults.
func Discover(ctx context.Context, path string) (*Config, string, error) {
	if path != "" {
		cfg, err := Load(ctx, path)
		return cfg, path, err
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		cfg, err := Load(ctx, DefaultConfigFile)
		return cfg, DefaultConfigFile, err
	}
	cfg, err := finish(DefaultConfig())
	return cfg, "", err
}

func finish(cfg *Config) (*Config, error) {
	if err := cfg.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks a configuration for errors and fills in webhook defaults.
// Failures are validation.schema errors naming the offending field.
func Validate(cfg *Config) error {
	if _, err := cfg.Grammar.Resolve(); err != nil {
		return schemaError("grammar", err)
	}

	if len(cfg.Sources) == 0 {
		return schemaError("sources", errors.New("at least one source is required"))
	}

	for i, p := range cfg.Include {
		if !doublestar.ValidatePattern(p) {
			return schemaError(fmt.Sprintf("include[%d]", i), fmt.Errorf("invalid pattern %q", p))
		}
	}
	for i, p := range cfg.Ignore {
		if !doublestar.ValidatePattern(strings.TrimPrefix(p, "!")) {
			return schemaError(fmt.Sprintf("ignore[%d]", i), fmt.Errorf("invalid pattern %q", p))
		}
	}

	if cfg.MaxFileSize <= 0 {
		return schemaError("max_file_size", fmt.Errorf("must be positive, got %d", cfg.MaxFileSize))
	}
	if cfg.StreamThreshold < 0 {
		return schemaError("stream_threshold", fmt.Errorf("must not be negative, got %d", cfg.StreamThreshold))
	}
	if cfg.Workers < 0 {
		return schemaError("workers", fmt.Errorf("must not be negative, got %d", cfg.Workers))
	}

	if cfg.Search.ContextLines < 0 {
		return schemaError("search.context_lines", fmt.Errorf("must not be negative, got %d", cfg.Search.ContextLines))
	}
	if cfg.Search.MaxResults < 0 {
		return schemaError("search.max_results", fmt.Errorf("must not be negative, got %d", cfg.Search.MaxResults))
	}

	if err := cfg.Lint.Validate(); err != nil {
		return schemaError("lint", err)
	}

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return schemaError(fmt.Sprintf("webhooks[%d] (%s)", i, name), err)
		}
	}

	return nil
}

func schemaError(field string, err error) error {
	msg := err.Error()
	var ae *apperror.Error
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	return apperror.Wrap(apperror.CodeValidationSchema, err, "%s: %s", field, msg)
}

// Resolve returns the grammar the section selects.
func (g GrammarConfig) Resolve() (parser.Grammar, error) {
	if g.Sigil != "" || g.Style != "" {
		if g.Dialect != "" {
			return parser.Grammar{}, errors.New("dialect cannot be combined with sigil or style")
		}
		grammar := parser.Grammar{Sigil: g.Sigil, Style: g.Style}
		return grammar, grammar.Validate()
	}

	name := g.Dialect
	if name == "" {
		name = DefaultDialect
	}
	grammar, ok := parser.Dialect(name)
	if !ok {
		return parser.Grammar{}, fmt.Errorf("unknown dialect %q (must be one of %s)",
			name, strings.Join(parser.Dialects(), ", "))
	}
	return grammar, nil
}

// ParserOptions returns the parser settings the config selects.
func (c *Config) ParserOptions() (parser.Options, error) {
	g, err := c.Grammar.Resolve()
	if err != nil {
		return parser.Options{}, err
	}
	return parser.Options{
		Grammar:         g,
		MaxFileSize:     c.MaxFileSize,
		StreamThreshold: c.StreamThreshold,
	}, nil
}

// ParseWebhookTrigger checks a trigger name. Empty means on_issues.
func ParseWebhookTrigger(s string) (WebhookTrigger, error) {
	switch t := WebhookTrigger(s); t {
	case "":
		return WebhookTriggerOnIssues, nil
	case WebhookTriggerOnIssues, WebhookTriggerAlways, WebhookTriggerNever:
		return t, nil
	default:
		return "", fmt.Errorf("invalid trigger %q (must be on_issues, always, or never)", s)
	}
}

func validateWebhook(wh *WebhookConfig) error {
	if wh.URL == "" {
		return errors.New("url is required")
	}

	// Validate URL format
	u, err := url.Parse(wh.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}

	// Expand environment variables in token
	wh.Token = expandEnvVar(wh.Token)

	trigger, err := ParseWebhookTrigger(string(wh.Trigger))
	if err != nil {
		return err
	}
	wh.Trigger = trigger

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	// Handle ${VAR} format
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		varName := s[2 : len(s)-1]
		return os.Getenv(varName)
	}

	// Handle $VAR format (no braces)
	if strings.HasPrefix(s, "$") && !strings.HasPrefix(s, "${") {
		varName := s[1:]
		return os.Getenv(varName)
	}

	return s
}
