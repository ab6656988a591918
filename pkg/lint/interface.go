package lint

import (
	"github.com/ccollicutt/waymark/pkg/parser"
)

// Rule checks a single annotation. Rules hold only configuration and are
// safe to reuse across annotations.
type Rule interface {
	// Type returns the rule name for reporting.
	Type() RuleType

	// Check returns the violations found on a, in marker order.
	Check(a parser.Annotation) []Violation
}
