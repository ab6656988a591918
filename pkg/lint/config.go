package lint

import (
	"strings"

	"github.com/ccollicutt/waymark/pkg/apperror"
)

// DefaultVersionField is the payload property read by the outdated rule.
const DefaultVersionField = "since"

// Config holds lint policy. It is a value: Merge returns a new Config.
type Config struct {
	// ForbiddenMarkers are markers that must not appear, matched exactly.
	ForbiddenMarkers []string `yaml:"forbidden_markers" json:"forbidden_markers,omitempty"`

	// AllowedMarkers, when non-empty, lists the only marker names permitted.
	AllowedMarkers []string `yaml:"allowed_markers" json:"allowed_markers,omitempty"`

	// MaxAgeDays enables the outdated rule when positive.
	MaxAgeDays int `yaml:"max_age_days" json:"max_age_days,omitempty"`

	// VersionField is the payload property holding the date. Defaults to "since".
	VersionField string `yaml:"version_field" json:"version_field,omitempty"`

	// DisallowDuplicates enables the duplicate rule.
	DisallowDuplicates bool `yaml:"disallow_duplicates" json:"disallow_duplicates,omitempty"`
}

// Merge returns a copy of c with the set fields of override applied.
// Slices in override replace those in c when non-nil.
func (c Config) Merge(override Config) Config {
	out := c
	out.ForbiddenMarkers = cloneStrings(c.ForbiddenMarkers)
	out.AllowedMarkers = cloneStrings(c.AllowedMarkers)

	if override.ForbiddenMarkers != nil {
		out.ForbiddenMarkers = cloneStrings(override.ForbiddenMarkers)
	}
	if override.AllowedMarkers != nil {
		out.AllowedMarkers = cloneStrings(override.AllowedMarkers)
	}
	if override.MaxAgeDays != 0 {
		out.MaxAgeDays = override.MaxAgeDays
	}
	if override.VersionField != "" {
		out.VersionField = override.VersionField
	}
	if override.DisallowDuplicates {
		out.DisallowDuplicates = true
	}
	return out
}

// Validate checks the policy values.
func (c Config) Validate() error {
	if c.MaxAgeDays < 0 {
		return apperror.New(apperror.CodeValidation, "max_age_days must not be negative, got %d", c.MaxAgeDays)
	}
	if strings.ContainsAny(c.VersionField, " \t\"") {
		return apperror.New(apperror.CodeValidation, "version_field %q is not a valid property name", c.VersionField)
	}
	for _, m := range c.ForbiddenMarkers {
		if strings.TrimSpace(m) == "" {
			return apperror.New(apperror.CodeValidation, "forbidden_markers must not contain empty entries")
		}
	}
	for _, m := range c.AllowedMarkers {
		if strings.TrimSpace(m) == "" {
			return apperror.New(apperror.CodeValidation, "allowed_markers must not contain empty entries")
		}
	}
	return nil
}

func (c Config) versionField() string {
	if c.VersionField == "" {
		return DefaultVersionField
	}
	return c.VersionField
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}
