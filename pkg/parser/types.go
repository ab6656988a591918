// Package parser locates and parses waymark annotations in text.
package parser

import "github.com/ccollicutt/waymark/pkg/apperror"

// Annotation is one parsed waymark.
type Annotation struct {
	// Line is the 1-based line number within the source text.
	Line int `json:"line"`

	// Column is the 1-based column where the sigil begins.
	Column int `json:"column"`

	// Raw is the original line content.
	Raw string `json:"raw"`

	// Markers lists the marker tokens in order. Never empty.
	Markers []string `json:"markers"`

	// Prose is the free text after the markers; nil when there was none.
	Prose *string `json:"prose,omitempty"`

	// File is the originating path, when known.
	File string `json:"file,omitempty"`
}

// ProseText returns the prose or the empty string when absent.
func (a *Annotation) ProseText() string {
	if a.Prose == nil {
		return ""
	}
	return *a.Prose
}

// HasMarker reports whether the annotation carries m exactly.
func (a *Annotation) HasMarker(m string) bool {
	for _, candidate := range a.Markers {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseError is a defect found on a single line.
type ParseError struct {
	// Line is the 1-based line number of the defect.
	Line int `json:"line"`

	// Column is the column the defect points at.
	Column int `json:"column"`

	// Message describes the defect.
	Message string `json:"message"`

	// Code classifies the defect.
	Code apperror.Code `json:"code"`

	// Raw is the offending line.
	Raw string `json:"raw"`

	// File is the originating path, when known.
	File string `json:"file,omitempty"`
}

// ParseResult holds everything found by one parse invocation.
type ParseResult struct {
	Annotations []Annotation `json:"annotations"`
	Errors      []ParseError `json:"errors"`
}

func newParseResult() *ParseResult {
	return &ParseResult{
		Annotations: make([]Annotation, 0),
		Errors:      make([]ParseError, 0),
	}
}

// Append adds other's annotations and errors after r's.
func (r *ParseResult) Append(other *ParseResult) {
	if other == nil {
		return
	}
	r.Annotations = append(r.Annotations, other.Annotations...)
	r.Errors = append(r.Errors, other.Errors...)
}

// Context holds the raw lines surrounding an annotation.
type Context struct {
	Before []string `json:"before"`
	After  []string `json:"after"`
}

// Line is a raw line read from a source before parsing.
type Line struct {
	// Content is the raw line text without its trailing newline.
	Content string

	// Source is the file path this line came from.
	Source string

	// LineNum is the 1-based line number in the source.
	LineNum int
}
