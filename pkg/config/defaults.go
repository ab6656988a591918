package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ccollicutt/waymark/pkg/apperror"
	"github.com/ccollicutt/waymark/pkg/lint"
	"github.com/ccollicutt/waymark/pkg/parser"
)

// Default values for configuration.
const (
	DefaultDialect        = "waymark"
	DefaultWebhookTimeout = 10 * time.Second
	DefaultConfigFile     = ".waymark.yaml"
)

// Environment variable names.
const (
	EnvSigil       = "WAYMARK_SIGIL"
	EnvStyle       = "WAYMARK_STYLE"
	EnvMaxFileSize = "WAYMARK_MAX_FILE_SIZE"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Sources:         []string{"."},
		MaxFileSize:     parser.DefaultMaxFileSize,
		StreamThreshold: parser.DefaultStreamThreshold,
		Lint:            lint.Config{VersionField: lint.DefaultVersionField},
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// A sigil or style from the environment turns the grammar into a custom one,
// taking the missing half from the grammar already selected.
func (c *Config) applyEnvironmentOverrides() error {
	if sigil := os.Getenv(EnvSigil); sigil != "" {
		style := c.Grammar.Style
		if cur, err := c.Grammar.Resolve(); err == nil && style == "" {
			style = cur.Style
		}
		c.Grammar = GrammarConfig{Sigil: sigil, Style: style}
	}

	if style := os.Getenv(EnvStyle); style != "" {
		if c.Grammar.Sigil == "" {
			if cur, err := c.Grammar.Resolve(); err == nil {
				c.Grammar = GrammarConfig{Sigil: cur.Sigil}
			}
		}
		c.Grammar.Style = parser.Style(strings.ToLower(style))
	}

	if size := os.Getenv(EnvMaxFileSize); size != "" {
		n, err := strconv.ParseInt(size, 10, 64)
		if err != nil {
			return apperror.Wrap(apperror.CodeValidation, err, "%s must be a byte count, got %q", EnvMaxFileSize, size)
		}
		c.MaxFileSize = n
	}
	return nil
}
