package lint

import (
	"fmt"
	"time"

	"github.com/ccollicutt/waymark/pkg/parser"
)

// Linter applies a fixed, ordered set of rules to annotations.
type Linter struct {
	cfg   Config
	rules []Rule

	// Options
	now        func() time.Time
	ruleFilter map[RuleType]bool // nil means all rules
}

// Option configures a Linter.
type Option func(*Linter)

// WithNow sets the clock used by the outdated rule.
func WithNow(now func() time.Time) Option {
	return func(l *Linter) {
		l.now = now
	}
}

// WithRuleFilter limits linting to the named rules.
func WithRuleFilter(rules []string) Option {
	return func(l *Linter) {
		if len(rules) > 0 {
			l.ruleFilter = make(map[RuleType]bool)
			for _, r := range rules {
				l.ruleFilter[RuleType(r)] = true
			}
		}
	}
}

// New creates a Linter for cfg. Rules run in RuleOrder; the outdated,
// unknown and duplicate rules are enabled only when configured.
func New(cfg Config, opts ...Option) (*Linter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &Linter{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}

	for name := range l.ruleFilter {
		if !knownRule(name) {
			return nil, fmt.Errorf("unknown lint rule %q", name)
		}
	}

	for _, name := range RuleOrder {
		if l.ruleFilter != nil && !l.ruleFilter[name] {
			continue
		}
		if rule := l.createRule(name); rule != nil {
			l.rules = append(l.rules, rule)
		}
	}
	return l, nil
}

func knownRule(name RuleType) bool {
	for _, r := range RuleOrder {
		if r == name {
			return true
		}
	}
	return false
}

func (l *Linter) createRule(name RuleType) Rule {
	switch name {
	case RuleForbidden:
		return NewForbiddenRule(l.cfg.ForbiddenMarkers)
	case RuleOutdated:
		if l.cfg.MaxAgeDays > 0 {
			return NewOutdatedRule(l.cfg.versionField(), l.cfg.MaxAgeDays, l.now)
		}
	case RuleInvalid:
		return InvalidRule{}
	case RuleUnknown:
		if len(l.cfg.AllowedMarkers) > 0 {
			return NewUnknownRule(l.cfg.AllowedMarkers)
		}
	case RuleDuplicate:
		if l.cfg.DisallowDuplicates {
			return DuplicateRule{}
		}
	}
	return nil
}

// Rules returns the active rule names in evaluation order.
func (l *Linter) Rules() []RuleType {
	names := make([]RuleType, 0, len(l.rules))
	for _, r := range l.rules {
		names = append(names, r.Type())
	}
	return names
}

// Lint checks every annotation. Violations are ordered by annotation, then by
// rule, then by marker.
func (l *Linter) Lint(annotations []parser.Annotation) *Result {
	result := &Result{Violations: make([]Violation, 0)}
	for _, a := range annotations {
		for _, rule := range l.rules {
			result.Violations = append(result.Violations, rule.Check(a)...)
		}
		result.Checked++
	}
	result.Passed = len(result.Violations) == 0
	return result
}

// Lint checks annotations against cfg using the current time.
func Lint(annotations []parser.Annotation, cfg Config) (*Result, error) {
	l, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return l.Lint(annotations), nil
}
