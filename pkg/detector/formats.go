package detector

import (
	"github.com/ccollicutt/waymark/pkg/parser"
)

// DialectFormat is a known annotation dialect to detect.
type DialectFormat struct {
	Name     string         // Dialect name as accepted by grammar.dialect
	Grammar  parser.Grammar // Sigil and style
	Examples []string       // Example annotations

	// Legacy dialects also accept compact payloads glued to the sigil.
	Legacy bool
}

// DefaultFormats returns the built-in dialects to detect, most specific sigil
// first.
func DefaultFormats() []*DialectFormat {
	return []*DialectFormat{
		{
			Name:     "ga",
			Grammar:  parser.GA,
			Examples: []string{"// :ga: tldr entry point", "// :ga:[fix,todo]"},
			Legacy:   true,
		},
		{
			Name:     "anchor",
			Grammar:  parser.Anchor,
			Examples: []string{"// :A: todo fix the parser"},
			Legacy:   true,
		},
		{
			Name:     "magic",
			Grammar:  parser.Magic,
			Examples: []string{"# :M: perf hot loop"},
			Legacy:   true,
		},
		{
			Name:     "waymark",
			Grammar:  parser.Waymark,
			Examples: []string{"// todo ::: implement validation", "// sec, perf ::: check bounds"},
		},
	}
}
