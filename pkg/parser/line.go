package parser

import (
	"strings"

	"github.com/ccollicutt/waymark/pkg/apperror"
	"github.com/ccollicutt/waymark/pkg/marker"
)

// Defect messages. Each embeds the sigil in use.
const (
	msgMissingSpace = "Missing required space after "
	msgExtraSpace   = "Unexpected extra space after "
	msgEmptyPayload = "Empty anchor payload"
	msgNoMarker     = "No marker found before "
)

// commentPrefixes are stripped from the text before a separator. Order matters:
// "<!--" must be tried before shorter prefixes.
var commentPrefixes = []string{"<!--", "//", "/*", "#", "*"}

// ParseLine parses a single line. It returns (nil, nil) when the line carries
// no sigil, an annotation when the line is well formed, or a ParseError
// describing the first defect found.
func ParseLine(line string, lineNumber int, g Grammar) (*Annotation, *ParseError) {
	idx := strings.Index(line, g.Sigil)
	if idx < 0 {
		return nil, nil
	}

	if g.Style == StyleSeparator {
		return parseSeparator(line, lineNumber, idx, g.Sigil)
	}
	return parsePrefix(line, lineNumber, idx, g.Sigil)
}

func parsePrefix(line string, lineNumber, idx int, sigil string) (*Annotation, *ParseError) {
	afterSigil := line[idx+len(sigil):]
	column := idx + len(sigil) + 1

	if !strings.HasPrefix(afterSigil, " ") {
		return nil, lineError(line, lineNumber, column, msgMissingSpace+sigil, apperror.CodeParseMissingSpace)
	}

	payload := afterSigil[1:]
	if strings.TrimSpace(payload) == "" {
		return nil, lineError(line, lineNumber, column, msgEmptyPayload, apperror.CodeParseEmptyPayload)
	}
	if startsWithSpace(payload) {
		return nil, lineError(line, lineNumber, column+1, msgExtraSpace+sigil, apperror.CodeParseInvalidSyntax)
	}

	markers, prose := marker.SplitLeading(strings.TrimSpace(payload))
	if len(markers) == 0 {
		return nil, lineError(line, lineNumber, column, msgEmptyPayload, apperror.CodeParseEmptyPayload)
	}

	a := &Annotation{
		Line:    lineNumber,
		Column:  idx + 1,
		Raw:     line,
		Markers: markers,
	}
	if prose != "" {
		a.Prose = &prose
	}
	return a, nil
}

func parseSeparator(line string, lineNumber, idx int, sigil string) (*Annotation, *ParseError) {
	afterSeparator := line[idx+len(sigil):]

	if !strings.HasPrefix(afterSeparator, " ") {
		return nil, lineError(line, lineNumber, idx+len(sigil), msgMissingSpace+sigil, apperror.CodeParseMissingSpace)
	}
	rest := afterSeparator[1:]
	if startsWithSpace(rest) {
		return nil, lineError(line, lineNumber, idx+len(sigil)+2, msgExtraSpace+sigil, apperror.CodeParseInvalidSyntax)
	}

	beforeSeparator := stripCommentPrefix(line[:idx])
	markers := marker.Split(beforeSeparator)
	if len(markers) == 0 {
		return nil, lineError(line, lineNumber, idx, msgNoMarker+sigil, apperror.CodeParseEmptyPayload)
	}

	// Prose may be empty here: the payload requirement is on the marker side.
	prose := strings.TrimSpace(rest)
	return &Annotation{
		Line:    lineNumber,
		Column:  idx + 1,
		Raw:     line,
		Markers: markers,
		Prose:   &prose,
	}, nil
}

// stripCommentPrefix removes one leading comment opener and surrounding space.
func stripCommentPrefix(s string) string {
	s = strings.TrimSpace(s)
	for _, p := range commentPrefixes {
		if strings.HasPrefix(s, p) {
			return strings.TrimSpace(s[len(p):])
		}
	}
	return s
}

// CommentPrefix returns the leading part of a separator-style line that
// precedes its markers, including the comment opener and indentation.
func CommentPrefix(line string, idx int) string {
	before := strings.TrimRight(line[:idx], " \t")
	stripped := stripCommentPrefix(before)
	return before[:len(before)-len(stripped)]
}

func startsWithSpace(s string) bool {
	return s != "" && (s[0] == ' ' || s[0] == '\t')
}

func lineError(line string, lineNumber, column int, message string, code apperror.Code) *ParseError {
	return &ParseError{
		Line:    lineNumber,
		Column:  column,
		Message: message,
		Code:    code,
		Raw:     line,
	}
}

// Render builds an annotation line in grammar g. prefix is placed verbatim
// before the annotation (indentation and comment opener).
func Render(g Grammar, prefix string, markers []string, prose *string) string {
	var b strings.Builder
	b.WriteString(prefix)
	if g.Style == StyleSeparator {
		b.WriteString(marker.Join(markers))
		b.WriteString(" ")
		b.WriteString(g.Sigil)
		b.WriteString(" ")
		if prose != nil {
			b.WriteString(*prose)
		}
		return b.String()
	}

	b.WriteString(g.Sigil)
	b.WriteString(" ")
	b.WriteString(marker.Join(markers))
	if prose != nil && *prose != "" {
		b.WriteString(" ")
		b.WriteString(*prose)
	}
	return b.String()
}
