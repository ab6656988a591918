// Package lint evaluates policy rules over parsed annotations.
package lint

import (
	"github.com/ccollicutt/waymark/pkg/parser"
)

// RuleType names a lint rule.
type RuleType string

const (
	// RuleForbidden flags markers listed in ForbiddenMarkers.
	RuleForbidden RuleType = "forbidden"

	// RuleOutdated flags markers whose version field is older than MaxAgeDays.
	RuleOutdated RuleType = "outdated"

	// RuleInvalid flags annotations with no non-blank marker.
	RuleInvalid RuleType = "invalid"

	// RuleUnknown flags markers outside AllowedMarkers.
	RuleUnknown RuleType = "unknown"

	// RuleDuplicate flags a marker repeated on one annotation.
	RuleDuplicate RuleType = "duplicate"
)

// RuleOrder is the order rules run in for each annotation.
var RuleOrder = []RuleType{RuleForbidden, RuleOutdated, RuleInvalid, RuleUnknown, RuleDuplicate}

// Violation is one rule failure on one annotation.
type Violation struct {
	// Rule is the rule that failed.
	Rule RuleType `json:"rule"`

	// Marker is the offending marker, empty for annotation-level failures.
	Marker string `json:"marker,omitempty"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Annotation is the annotation the violation refers to.
	Annotation parser.Annotation `json:"annotation"`
}

// Result is the outcome of linting a set of annotations.
type Result struct {
	// Passed is true iff there are no violations.
	Passed bool `json:"passed"`

	// Violations in annotation order, then rule order.
	Violations []Violation `json:"violations"`

	// Checked counts the annotations examined.
	Checked int `json:"checked"`
}

// CountByRule tallies violations per rule.
func (r *Result) CountByRule() map[RuleType]int {
	counts := make(map[RuleType]int)
	for _, v := range r.Violations {
		counts[v.Rule]++
	}
	return counts
}
