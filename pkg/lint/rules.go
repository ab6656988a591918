package lint

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ccollicutt/waymark/pkg/marker"
	"github.com/ccollicutt/waymark/pkg/parser"
)

// ForbiddenRule flags markers present in a deny list.
type ForbiddenRule struct {
	forbidden map[string]bool
}

// NewForbiddenRule creates a rule matching markers exactly.
func NewForbiddenRule(markers []string) *ForbiddenRule {
	r := &ForbiddenRule{forbidden: make(map[string]bool, len(markers))}
	for _, m := range markers {
		r.forbidden[m] = true
	}
	return r
}

func (r *ForbiddenRule) Type() RuleType { return RuleForbidden }

func (r *ForbiddenRule) Check(a parser.Annotation) []Violation {
	var out []Violation
	for _, m := range a.Markers {
		if r.forbidden[m] {
			out = append(out, Violation{
				Rule:       RuleForbidden,
				Marker:     m,
				Message:    fmt.Sprintf("marker %q is forbidden", m),
				Annotation: a,
			})
		}
	}
	return out
}

// OutdatedRule flags markers whose payload dates them older than a threshold.
// Values that do not parse as dates are skipped.
type OutdatedRule struct {
	field   string
	maxDays int
	now     func() time.Time
}

// NewOutdatedRule creates a rule reading field from marker payloads.
func NewOutdatedRule(field string, maxDays int, now func() time.Time) *OutdatedRule {
	if now == nil {
		now = time.Now
	}
	return &OutdatedRule{field: field, maxDays: maxDays, now: now}
}

func (r *OutdatedRule) Type() RuleType { return RuleOutdated }

func (r *OutdatedRule) Check(a parser.Annotation) []Violation {
	var out []Violation
	now := r.now()
	for _, m := range a.Markers {
		value, ok := PayloadField(m, r.field)
		if !ok {
			continue
		}
		since, err := ParseSince(value)
		if err != nil {
			continue
		}
		if age := since.AgeDays(now); age > r.maxDays {
			out = append(out, Violation{
				Rule:   RuleOutdated,
				Marker: m,
				Message: fmt.Sprintf("%s %s is %d days old (limit %d)",
					r.field, since, age, r.maxDays),
				Annotation: a,
			})
		}
	}
	return out
}

// PayloadField returns the string property field of the JSON object embedded
// in m, as in `deprecated({"since":"2024-01-01"})`.
func PayloadField(m, field string) (string, bool) {
	start := strings.IndexByte(m, '{')
	end := strings.LastIndexByte(m, '}')
	if start < 0 || end <= start {
		return "", false
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(m[start:end+1]), &payload); err != nil {
		return "", false
	}
	value, ok := payload[field].(string)
	return value, ok
}

// InvalidRule flags annotations carrying no marker, or only markers that are
// blank once trimmed. Marker names are not checked against the token syntax
// here, so "fix-me" and "wip_2" pass; UnknownRule polices names.
type InvalidRule struct{}

func (InvalidRule) Type() RuleType { return RuleInvalid }

func (InvalidRule) Check(a parser.Annotation) []Violation {
	for _, m := range a.Markers {
		if strings.TrimSpace(m) != "" {
			return nil
		}
	}
	return []Violation{{
		Rule:       RuleInvalid,
		Message:    "annotation has no marker",
		Annotation: a,
	}}
}

// UnknownRule flags markers whose name is not in an allow list.
type UnknownRule struct {
	allowed map[string]bool
}

// NewUnknownRule creates a rule comparing marker names case-insensitively.
func NewUnknownRule(allowed []string) *UnknownRule {
	r := &UnknownRule{allowed: make(map[string]bool, len(allowed))}
	for _, m := range allowed {
		r.allowed[marker.NormalizeToken(m)] = true
	}
	return r
}

func (r *UnknownRule) Type() RuleType { return RuleUnknown }

func (r *UnknownRule) Check(a parser.Annotation) []Violation {
	var out []Violation
	for _, m := range a.Markers {
		name := marker.NormalizeToken(marker.Base(m))
		if strings.HasPrefix(name, "@") || strings.HasPrefix(name, "#") {
			continue
		}
		if !r.allowed[name] {
			out = append(out, Violation{
				Rule:       RuleUnknown,
				Marker:     m,
				Message:    fmt.Sprintf("marker %q is not in the allowed list", name),
				Annotation: a,
			})
		}
	}
	return out
}

// DuplicateRule flags markers repeated on one annotation, once per marker.
type DuplicateRule struct{}

func (DuplicateRule) Type() RuleType { return RuleDuplicate }

func (DuplicateRule) Check(a parser.Annotation) []Violation {
	counts := make(map[string]int, len(a.Markers))
	var out []Violation
	for _, m := range a.Markers {
		counts[m]++
		if counts[m] == 2 {
			out = append(out, Violation{
				Rule:       RuleDuplicate,
				Marker:     m,
				Message:    fmt.Sprintf("marker %q appears more than once", m),
				Annotation: a,
			})
		}
	}
	return out
}
