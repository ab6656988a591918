// Package rewrite normalises and converts annotation lines.
package rewrite

import (
	"strings"

	"github.com/ccollicutt/waymark/pkg/marker"
	"github.com/ccollicutt/waymark/pkg/parser"
)

// FormatLine fixes the spacing of an annotation written in g: one space
// before a separator, exactly one after the sigil, and ", " between markers.
// Lines without the sigil, or whose markers cannot be found, are returned
// unchanged. changed reports whether the result differs from line.
func FormatLine(line string, g parser.Grammar) (out string, changed bool) {
	idx := strings.Index(line, g.Sigil)
	if idx < 0 {
		return line, false
	}
	after := line[idx+len(g.Sigil):]

	if g.Style == parser.StyleSeparator {
		prefix := parser.CommentPrefix(line, idx)
		list := strings.TrimSpace(line[len(prefix):idx])
		markers := marker.Split(list)
		if len(markers) == 0 {
			return line, false
		}
		prose := strings.TrimLeft(after, " \t")
		out = parser.Render(g, prefix, markers, &prose)
		return out, out != line
	}

	payload := strings.TrimSpace(after)
	if payload == "" || payload[0] == '[' || payload[0] == '{' {
		// Empty payloads cannot be fixed; compact legacy forms are a migration.
		return line, false
	}
	markers, prose := marker.SplitLeading(payload)
	if len(markers) == 0 {
		return line, false
	}
	out = parser.Render(g, line[:idx], markers, &prose)
	return out, out != line
}

// FormatContent formats every line of content and returns the result with
// the number of lines changed. Line endings are preserved.
func FormatContent(content string, g parser.Grammar) (string, int) {
	lines := strings.Split(content, "\n")
	changes := 0
	for i, line := range lines {
		body, cr := strings.CutSuffix(line, "\r")
		out, changed := FormatLine(body, g)
		if !changed {
			continue
		}
		if cr {
			out += "\r"
		}
		lines[i] = out
		changes++
	}
	return strings.Join(lines, "\n"), changes
}
