package rewrite

import (
	"errors"
	"strings"

	"github.com/ccollicutt/waymark/pkg/apperror"
	"github.com/ccollicutt/waymark/pkg/marker"
	"github.com/ccollicutt/waymark/pkg/parser"
)

// MigrateLine rewrites an annotation from one grammar to another, keeping the
// indentation and comment opener. Prefix-style sources also accept the
// compact legacy payloads ":ga:tldr", ":ga:[fix,todo]" and
// `:ga:{"token":"fix"}`.
//
// Lines without the source sigil are returned unchanged with a nil error. A
// line that carries the sigil but cannot be read returns the line and an
// error classified with the parse defect code.
func MigrateLine(line string, from, to parser.Grammar) (string, bool, error) {
	idx := strings.Index(line, from.Sigil)
	if idx < 0 {
		return line, false, nil
	}

	a, perr := parser.ParseLine(line, 1, from)
	if perr != nil {
		markers, prose, ok := legacyPayload(line, idx, from)
		if !ok {
			return line, false, apperror.New(perr.Code, "%s", perr.Message).WithDetail("column", perr.Column)
		}
		a = &parser.Annotation{Markers: markers, Prose: prose}
	}

	prefix := line[:idx]
	if from.Style == parser.StyleSeparator {
		prefix = parser.CommentPrefix(line, idx)
	}
	if to.Style == parser.StyleSeparator {
		prefix = separatorPrefix(prefix)
	}

	out := parser.Render(to, prefix, a.Markers, a.Prose)
	return out, out != line, nil
}

// separatorPrefix ensures a comment opener is followed by a space so the
// markers do not run into it.
func separatorPrefix(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, " ") || strings.HasSuffix(prefix, "\t") {
		return prefix
	}
	return prefix + " "
}

// legacyPayload reads a compact payload glued to a prefix sigil. The payload
// runs to the first whitespace; what follows is prose.
func legacyPayload(line string, idx int, g parser.Grammar) ([]string, *string, bool) {
	if g.Style != parser.StylePrefix {
		return nil, nil, false
	}
	rest := line[idx+len(g.Sigil):]
	if rest == "" || rest[0] == ' ' || rest[0] == '\t' {
		return nil, nil, false
	}

	field, tail, _ := strings.Cut(rest, " ")
	tokens := marker.ExtractTokens(g.Sigil+field, g.Sigil)
	if len(tokens) == 0 {
		return nil, nil, false
	}

	var prose *string
	if tail = strings.TrimSpace(tail); tail != "" {
		prose = &tail
	}
	return tokens, prose, true
}

// Report summarises a content migration.
type Report struct {
	// Changed counts rewritten lines.
	Changed int `json:"changed"`

	// Failed lists lines that carried the sigil but could not be migrated.
	Failed []parser.ParseError `json:"failed"`
}

// MigrateContent migrates every line of content. Line endings are preserved
// and lines that fail are left as they were.
func MigrateContent(content string, from, to parser.Grammar) (string, Report) {
	report := Report{Failed: make([]parser.ParseError, 0)}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		body, cr := strings.CutSuffix(line, "\r")
		out, changed, err := MigrateLine(body, from, to)
		if err != nil {
			column, _ := apperrorDetail(err, "column").(int)
			report.Failed = append(report.Failed, parser.ParseError{
				Line:    i + 1,
				Column:  column,
				Message: messageOf(err),
				Code:    apperror.CodeOf(err),
				Raw:     body,
			})
			continue
		}
		if !changed {
			continue
		}
		if cr {
			out += "\r"
		}
		lines[i] = out
		report.Changed++
	}
	return strings.Join(lines, "\n"), report
}

func apperrorDetail(err error, key string) any {
	var ae *apperror.Error
	if errors.As(err, &ae) {
		return ae.Details[key]
	}
	return nil
}

func messageOf(err error) string {
	var ae *apperror.Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
