package parser

import (
	"context"
	"os"
	"strings"

	"github.com/ccollicutt/waymark/pkg/apperror"
)

// Default limits.
const (
	// DefaultMaxFileSize is the largest input accepted, in UTF-8 bytes.
	DefaultMaxFileSize int64 = 10 * 1024 * 1024

	// DefaultStreamThreshold is the file size above which ParseFile streams.
	DefaultStreamThreshold int64 = 1024 * 1024
)

// Options configures a Parser.
type Options struct {
	// Grammar selects the sigil and style. Defaults to the waymark dialect.
	Grammar Grammar

	// MaxFileSize is the input size limit in bytes. Defaults to DefaultMaxFileSize.
	MaxFileSize int64

	// StreamThreshold is the file size above which ParseFile streams.
	// Defaults to DefaultStreamThreshold.
	StreamThreshold int64
}

// Parser turns text into annotations and parse errors for one grammar.
// A Parser holds no state between calls and is safe for concurrent use.
type Parser struct {
	opts Options
}

// New creates a Parser, filling in defaults and validating the grammar.
func New(opts Options) (*Parser, error) {
	if opts.Grammar == (Grammar{}) {
		opts.Grammar = Waymark
	}
	if err := opts.Grammar.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.StreamThreshold <= 0 {
		opts.StreamThreshold = DefaultStreamThreshold
	}
	return &Parser{opts: opts}, nil
}

// Grammar returns the grammar in use.
func (p *Parser) Grammar() Grammar {
	return p.opts.Grammar
}

// MaxFileSize returns the input size limit in bytes.
func (p *Parser) MaxFileSize() int64 {
	return p.opts.MaxFileSize
}

// Parse parses every line of content. Content larger than the size limit is
// rejected with a file.tooLarge error before any line is examined. Malformed
// annotations never fail the call; they are returned as ParseErrors.
func (p *Parser) Parse(content, filename string) (*ParseResult, error) {
	if size := int64(len(content)); size > p.opts.MaxFileSize {
		return nil, apperror.FileTooLarge(size, p.opts.MaxFileSize).WithDetail("path", filename)
	}

	result := newParseResult()
	for i, line := range SplitLines(content) {
		p.collect(result, line, i+1, filename)
	}
	return result, nil
}

// collect parses one line into result.
func (p *Parser) collect(result *ParseResult, line string, lineNumber int, filename string) {
	a, perr := ParseLine(line, lineNumber, p.opts.Grammar)
	switch {
	case perr != nil:
		perr.File = filename
		result.Errors = append(result.Errors, *perr)
	case a != nil:
		a.File = filename
		result.Annotations = append(result.Annotations, *a)
	}
}

// ParseFile parses the file at path, streaming when it is larger than the
// stream threshold.
func (p *Parser) ParseFile(ctx context.Context, path string) (*ParseResult, error) {
	out, err := p.ParseFileStream(ctx, path, StreamOptions{})
	if err != nil {
		return nil, err
	}
	return out.Result, nil
}

// ParseFileStream is ParseFile with stream options. Files above the stream
// threshold are read line by line, with context captured from the sliding
// window and reading stopped early at opts.MaxAnnotations; Streamed is set on
// the result. Smaller files are parsed whole and opts is ignored.
func (p *Parser) ParseFileStream(ctx context.Context, path string, opts StreamOptions) (*StreamResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperror.FromIO(path, err)
	}
	if info.IsDir() {
		return nil, apperror.New(apperror.CodeFileReadError, "%s is a directory", path)
	}
	if info.Size() > p.opts.MaxFileSize {
		return nil, apperror.FileTooLarge(info.Size(), p.opts.MaxFileSize).WithDetail("path", path)
	}

	if info.Size() > p.opts.StreamThreshold {
		f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
		if err != nil {
			return nil, apperror.FromIO(path, err)
		}
		defer f.Close()

		out, err := p.ParseReader(ctx, f, path, opts)
		if err != nil {
			return nil, err
		}
		out.Streamed = true
		return out, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return nil, apperror.FromIO(path, err)
	}
	result, err := p.Parse(string(data), path)
	if err != nil {
		return nil, err
	}
	return &StreamResult{Result: result, LinesRead: len(SplitLines(string(data)))}, nil
}

// SplitLines splits content on '\n'. A trailing newline does not produce an
// extra empty line, and '\r' is left in place.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

