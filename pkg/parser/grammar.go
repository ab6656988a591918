package parser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ccollicutt/waymark/pkg/apperror"
)

// Style is where the sigil sits relative to the markers.
type Style string

const (
	// StylePrefix places the sigil before the payload: ":A: todo fix this".
	StylePrefix Style = "prefix"

	// StyleSeparator places the sigil between markers and prose: "todo ::: fix this".
	StyleSeparator Style = "separator"
)

// Grammar selects the sigil and where it sits.
type Grammar struct {
	Sigil string `yaml:"sigil" json:"sigil"`
	Style Style  `yaml:"style" json:"style"`
}

// Built-in dialects.
var (
	Waymark = Grammar{Sigil: ":::", Style: StyleSeparator}
	GA      = Grammar{Sigil: ":ga:", Style: StylePrefix}
	Anchor  = Grammar{Sigil: ":A:", Style: StylePrefix}
	Magic   = Grammar{Sigil: ":M:", Style: StylePrefix}
)

var dialects = map[string]Grammar{
	"waymark": Waymark,
	"ga":      GA,
	"anchor":  Anchor,
	"magic":   Magic,
}

// Dialect returns the built-in grammar registered under name.
func Dialect(name string) (Grammar, bool) {
	g, ok := dialects[strings.ToLower(name)]
	return g, ok
}

// Dialects returns the names of the built-in dialects, sorted.
func Dialects() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that the grammar can be used for parsing.
func (g Grammar) Validate() error {
	if strings.TrimSpace(g.Sigil) == "" {
		return apperror.New(apperror.CodeValidation, "sigil is required")
	}
	if strings.ContainsAny(g.Sigil, " \t\r\n") {
		return apperror.New(apperror.CodeValidation, "sigil %q must not contain whitespace", g.Sigil)
	}
	switch g.Style {
	case StylePrefix, StyleSeparator:
		return nil
	default:
		return apperror.New(apperror.CodeValidation,
			"invalid style %q (must be prefix or separator)", g.Style)
	}
}

// String renders the grammar for diagnostics.
func (g Grammar) String() string {
	return fmt.Sprintf("%s (%s)", g.Sigil, g.Style)
}
