package marker

import (
	"strings"
	"unicode"
)

// Split breaks a comma-separated marker list into markers. Commas nested inside
// parentheses or brackets never split, at any depth. Segments are trimmed,
// empty segments dropped, and order and duplicates preserved.
func Split(list string) []string {
	markers := []string{}
	var (
		current      strings.Builder
		parens, brks int
	)

	flush := func() {
		if m := strings.TrimSpace(current.String()); m != "" {
			markers = append(markers, m)
		}
		current.Reset()
	}

	for _, r := range list {
		switch r {
		case '(':
			parens++
		case ')':
			if parens > 0 {
				parens--
			}
		case '[':
			brks++
		case ']':
			if brks > 0 {
				brks--
			}
		case ',':
			if parens == 0 && brks == 0 {
				flush()
				continue
			}
		}
		current.WriteRune(r)
	}
	flush()

	return markers
}

// Join renders markers back into a list that Split reproduces.
func Join(markers []string) string {
	return strings.Join(markers, ", ")
}

// SplitLeading separates a prefix-style payload into its leading marker list
// and the prose that follows. The marker list ends at the first whitespace
// outside any nesting that does not directly follow a comma.
func SplitLeading(payload string) (markers []string, prose string) {
	var (
		parens, brks int
		afterComma   bool
	)

	for i, r := range payload {
		switch {
		case r == '(':
			parens++
		case r == ')' && parens > 0:
			parens--
		case r == '[':
			brks++
		case r == ']' && brks > 0:
			brks--
		case r == ',' && parens == 0 && brks == 0:
			afterComma = true
			continue
		case unicode.IsSpace(r) && parens == 0 && brks == 0:
			if afterComma {
				continue
			}
			return Split(payload[:i]), strings.TrimSpace(payload[i:])
		}
		afterComma = false
	}

	return Split(payload), ""
}

// Base returns the marker name without its argument list or property value,
// e.g. "owner" for "owner(@alice)" and "blocked" for "blocked:[4,7]".
func Base(m string) string {
	if i := strings.IndexAny(m, "([{:"); i >= 0 {
		return m[:i]
	}
	return m
}
