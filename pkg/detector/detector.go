// Package detector identifies which annotation dialect a codebase uses.
package detector

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/waymark/pkg/marker"
	"github.com/ccollicutt/waymark/pkg/parser"
)

// DetectionResult holds the result of analyzing sampled lines.
type DetectionResult struct {
	Matches        []DialectMatch // Dialects seen, best first
	SampledLines   int            // Number of lines read
	AnnotatedLines int            // Number of lines carrying any known sigil
	AmbiguityNote  string         // Set when more than one dialect is in use
}

// DialectMatch is one dialect with its evidence.
type DialectMatch struct {
	Format      *DialectFormat
	Confidence  float64 // Well-formed lines / lines carrying the sigil
	SigilLines  int     // Lines carrying the sigil
	MatchCount  int     // Well-formed lines, including legacy compact forms
	LegacyCount int     // Lines in a legacy compact form
	SampleLine  string  // First well-formed line
}

// Detector samples files for annotation sigils.
type Detector struct {
	formats    []*DialectFormat
	sampleSize int
}

// Option configures the Detector.
type Option func(*Detector)

// WithSampleSize sets the number of annotated lines to sample (default 200).
func WithSampleSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

// WithFormats replaces the dialects to detect.
func WithFormats(formats []*DialectFormat) Option {
	return func(d *Detector) {
		if len(formats) > 0 {
			d.formats = formats
		}
	}
}

// New creates a new Detector with the built-in dialects.
func New(opts ...Option) *Detector {
	d := &Detector{
		formats:    DefaultFormats(),
		sampleSize: 200,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectFromFiles samples annotated lines from files in order until the
// sample is full.
func (d *Detector) DetectFromFiles(ctx context.Context, paths []string) (*DetectionResult, error) {
	src := parser.NewFileSource(paths, 0)
	defer src.Close()

	var lines []string
	scanned := 0
	for len(lines) < d.sampleSize {
		line, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		scanned++
		if d.annotated(line.Content) {
			lines = append(lines, line.Content)
		}
	}

	result := d.DetectFromLines(lines)
	result.SampledLines = scanned
	return result, nil
}

// DetectFromLines scores every dialect against lines.
func (d *Detector) DetectFromLines(lines []string) *DetectionResult {
	result := &DetectionResult{SampledLines: len(lines)}

	stats := make(map[string]*DialectMatch)
	for _, line := range lines {
		annotated := false
		for _, f := range d.formats {
			idx := strings.Index(line, f.Grammar.Sigil)
			if idx < 0 {
				continue
			}
			annotated = true

			s := stats[f.Name]
			if s == nil {
				s = &DialectMatch{Format: f}
				stats[f.Name] = s
			}
			s.SigilLines++

			a, _ := parser.ParseLine(line, 1, f.Grammar)
			legacy := a == nil && f.Legacy && isLegacy(line[idx+len(f.Grammar.Sigil):], f.Grammar.Sigil)
			if a == nil && !legacy {
				continue
			}
			s.MatchCount++
			if legacy {
				s.LegacyCount++
			}
			if s.SampleLine == "" {
				s.SampleLine = strings.TrimSpace(line)
			}
		}
		if annotated {
			result.AnnotatedLines++
		}
	}

	for _, s := range stats {
		s.Confidence = float64(s.MatchCount) / float64(s.SigilLines)
		result.Matches = append(result.Matches, *s)
	}

	// Most well-formed lines first, then highest confidence, then longest sigil
	sort.Slice(result.Matches, func(i, j int) bool {
		a, b := result.Matches[i], result.Matches[j]
		if a.MatchCount != b.MatchCount {
			return a.MatchCount > b.MatchCount
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return len(a.Format.Grammar.Sigil) > len(b.Format.Grammar.Sigil)
	})

	inUse := 0
	for _, m := range result.Matches {
		if m.MatchCount > 0 {
			inUse++
		}
	}
	if inUse > 1 {
		result.AmbiguityNote = fmt.Sprintf("%d dialects are in use. "+
			"Consider converting to one with `waymark migrate --from <dialect> --to %s`.",
			inUse, result.Matches[0].Format.Name)
	}

	return result
}

// isLegacy reports whether the text after a prefix sigil is a compact payload
// such as "tldr", "[fix,todo]" or `{"token":"fix"}`.
func isLegacy(rest, sigil string) bool {
	if rest == "" || rest[0] == ' ' || rest[0] == '\t' {
		return false
	}
	field, _, _ := strings.Cut(rest, " ")
	return len(marker.ExtractTokens(sigil+field, sigil)) > 0
}

// annotated reports whether line carries any known sigil.
func (d *Detector) annotated(line string) bool {
	for _, f := range d.formats {
		if strings.Contains(line, f.Grammar.Sigil) {
			return true
		}
	}
	return false
}

// BestMatch returns the dialect with the most well-formed lines, or nil.
func (r *DetectionResult) BestMatch() *DialectMatch {
	if len(r.Matches) == 0 || r.Matches[0].MatchCount == 0 {
		return nil
	}
	return &r.Matches[0]
}

// HasMatch returns true if at least one dialect has a well-formed line.
func (r *DetectionResult) HasMatch() bool {
	return r.BestMatch() != nil
}

// suggestedGrammar mirrors the grammar section of the config file.
type suggestedGrammar struct {
	Grammar struct {
		Dialect string `yaml:"dialect"`
	} `yaml:"grammar"`
}

// SuggestedConfig renders the grammar section selecting m's dialect.
func (m *DialectMatch) SuggestedConfig() (string, error) {
	var s suggestedGrammar
	s.Grammar.Dialect = m.Format.Name
	out, err := yaml.Marshal(&s)
	if err != nil {
		return "", fmt.Errorf("rendering config snippet: %w", err)
	}
	return string(out), nil
}
