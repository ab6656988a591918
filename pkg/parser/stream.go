package parser

import (
	"context"
	"io"
)

// StreamOptions configures ParseReader.
type StreamOptions struct {
	// ContextLines is the number of raw lines captured before and after each
	// annotation. Zero disables context capture.
	ContextLines int

	// MaxAnnotations stops reading once this many annotations have been found
	// and their context completed. Zero means no cap.
	MaxAnnotations int
}

// StreamResult is the outcome of ParseReader.
type StreamResult struct {
	// Result holds the annotations and errors, identical to what Parse returns
	// for the same input.
	Result *ParseResult

	// Contexts is parallel to Result.Annotations when ContextLines > 0.
	Contexts []Context

	// Capped is true when reading stopped early at MaxAnnotations.
	Capped bool

	// LinesRead counts the lines consumed.
	LinesRead int

	// Streamed is set by ParseFileStream when the file was read line by line.
	Streamed bool
}

// ParseReader parses r line by line without holding the whole input in memory.
// Only a window of 2*ContextLines+1 recent lines is retained.
func (p *Parser) ParseReader(ctx context.Context, r io.Reader, filename string, opts StreamOptions) (*StreamResult, error) {
	src := NewReaderSource(r, filename, p.opts.MaxFileSize)
	return p.ParseSource(ctx, src, opts)
}

// ParseSource parses every line produced by src. Lines from a multi-file
// source are attributed to the file they came from.
func (p *Parser) ParseSource(ctx context.Context, src LineSource, opts StreamOptions) (*StreamResult, error) {
	out := &StreamResult{Result: newParseResult()}
	win := newWindow(opts.ContextLines)

	for {
		line, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		out.LinesRead++

		if win.source != line.Source {
			// Context never spans files.
			win.flush(out)
			win.reset(line.Source)
		}
		win.push(line)

		if !out.Capped {
			before := len(out.Result.Annotations)
			p.collect(out.Result, line.Content, line.LineNum, line.Source)
			if len(out.Result.Annotations) > before && opts.ContextLines > 0 {
				win.await(line.LineNum, len(out.Contexts))
				out.Contexts = append(out.Contexts, Context{})
			}
			if opts.MaxAnnotations > 0 && len(out.Result.Annotations) >= opts.MaxAnnotations {
				out.Capped = true
			}
		}

		win.resolve(out, line.LineNum)
		if out.Capped && win.idle() {
			break
		}
	}

	win.flush(out)
	return out, nil
}

// window retains the most recent lines of one source and resolves the
// context of annotations once their trailing lines have been read.
type window struct {
	size    int
	n       int
	source  string
	lines   []string
	first   int // line number of lines[0]
	pending []pendingContext
}

type pendingContext struct {
	line  int
	index int
}

func newWindow(n int) *window {
	return &window{size: 2*n + 1, n: n}
}

func (w *window) reset(source string) {
	w.source = source
	w.lines = w.lines[:0]
	w.first = 0
	w.pending = w.pending[:0]
}

func (w *window) push(line *Line) {
	if w.n == 0 {
		return
	}
	if len(w.lines) == 0 {
		w.first = line.LineNum
	}
	w.lines = append(w.lines, line.Content)
	if len(w.lines) > w.size {
		drop := len(w.lines) - w.size
		w.lines = append(w.lines[:0], w.lines[drop:]...)
		w.first += drop
	}
}

func (w *window) await(line, index int) {
	w.pending = append(w.pending, pendingContext{line: line, index: index})
}

func (w *window) idle() bool {
	return len(w.pending) == 0
}

// resolve completes every pending context whose trailing lines are all in.
func (w *window) resolve(out *StreamResult, current int) {
	kept := w.pending[:0]
	for _, pc := range w.pending {
		if current >= pc.line+w.n {
			out.Contexts[pc.index] = w.context(pc.line, current)
			continue
		}
		kept = append(kept, pc)
	}
	w.pending = kept
}

// flush completes every pending context with whatever trailing lines exist.
func (w *window) flush(out *StreamResult) {
	last := w.first + len(w.lines) - 1
	for _, pc := range w.pending {
		out.Contexts[pc.index] = w.context(pc.line, last)
	}
	w.pending = w.pending[:0]
}

func (w *window) context(line, last int) Context {
	ctx := Context{Before: []string{}, After: []string{}}
	for n := max(line-w.n, w.first); n < line; n++ {
		ctx.Before = append(ctx.Before, w.lines[n-w.first])
	}
	for n := line + 1; n <= min(line+w.n, last); n++ {
		ctx.After = append(ctx.After, w.lines[n-w.first])
	}
	return ctx
}
