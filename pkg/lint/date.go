package lint

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-version"
)

// Since is a parsed version-field value.
type Since struct {
	// Date is the moment the value refers to.
	Date time.Time

	// Version is set for the "vX.Y.Z (YYYY-MM-DD)" form.
	Version *version.Version
}

// dateExtractor pulls a date out of a version-field value with a regular
// expression and parses the first capture group with layout.
type dateExtractor struct {
	pattern *regexp.Regexp
	layout  string

	// versioned extractors capture the release version before the date.
	versioned bool
}

var dateExtractors = []dateExtractor{
	{pattern: regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})$`), layout: "2006-01-02"},
	{pattern: regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\S+)$`), layout: time.RFC3339},
	{
		pattern:   regexp.MustCompile(`^(v?\d+\.\d+\.\d+)\s*\((\d{4}-\d{2}-\d{2})\)$`),
		layout:    "2006-01-02",
		versioned: true,
	},
}

// ParseSince parses an ISO date, an RFC 3339 timestamp, or a
// "vMAJOR.MINOR.PATCH (YYYY-MM-DD)" release marker.
func ParseSince(value string) (Since, error) {
	value = strings.TrimSpace(value)
	for _, e := range dateExtractors {
		s, err := e.extract(value)
		if err == nil {
			return s, nil
		}
	}
	return Since{}, fmt.Errorf("unrecognised date %q", value)
}

func (e dateExtractor) extract(value string) (Since, error) {
	matches := e.pattern.FindStringSubmatch(value)
	if matches == nil {
		return Since{}, fmt.Errorf("date pattern did not match")
	}

	if !e.versioned {
		ts, err := time.Parse(e.layout, matches[1])
		if err != nil {
			return Since{}, fmt.Errorf("parsing date %q: %w", matches[1], err)
		}
		return Since{Date: ts}, nil
	}

	v, err := version.NewVersion(matches[1])
	if err != nil {
		return Since{}, fmt.Errorf("parsing version %q: %w", matches[1], err)
	}
	ts, err := time.Parse(e.layout, matches[2])
	if err != nil {
		return Since{}, fmt.Errorf("parsing date %q: %w", matches[2], err)
	}
	return Since{Date: ts, Version: v}, nil
}

// AgeDays returns the whole days elapsed between s and now.
func (s Since) AgeDays(now time.Time) int {
	return int(now.Sub(s.Date).Hours() / 24)
}

// String renders the value the way it is written in payloads.
func (s Since) String() string {
	date := s.Date.Format("2006-01-02")
	if s.Version != nil {
		return fmt.Sprintf("v%s (%s)", s.Version.String(), date)
	}
	return date
}
