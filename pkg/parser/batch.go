package parser

import (
	"context"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ccollicutt/waymark/pkg/apperror"
)

// FileError records a file that could not be parsed at all.
type FileError struct {
	File string        `json:"file"`
	Code apperror.Code `json:"code"`
	Err  string        `json:"error"`
}

// BatchResult is the merged outcome of ParseFiles.
type BatchResult struct {
	// Result concatenates the per-file results in input order.
	Result *ParseResult

	// FileErrors lists files that failed to read or exceeded the size limit.
	FileErrors []FileError

	// Files counts the files attempted.
	Files int

	// Contexts holds the context captured while streaming, by file and then
	// annotation line. Files parsed whole have no entry.
	Contexts map[string]map[int]Context

	// Capped lists streamed files that stopped early at Stream.MaxAnnotations.
	Capped []string
}

// BatchOptions configures ParseFiles.
type BatchOptions struct {
	// Workers bounds the number of files parsed at once. Defaults to NumCPU.
	Workers int

	// Logger receives per-file failures. Nil disables logging.
	Logger *zap.Logger

	// OnFileDone is called after each file, from the worker goroutine.
	OnFileDone func(path string)

	// Stream applies to files above the parser's stream threshold.
	Stream StreamOptions
}

// ParseFiles parses files concurrently. A file that cannot be read is
// recorded in FileErrors and does not stop the others.
func (p *Parser) ParseFiles(ctx context.Context, paths []string, opts BatchOptions) (*BatchResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]*StreamResult, len(paths))
	failures := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := p.ParseFileStream(gctx, path, opts.Stream)
			if err != nil {
				logger.Warn("Error parsing file", zap.String("file", path), zap.Error(err))
				failures[i] = err
			} else {
				results[i] = res
			}
			if opts.OnFileDone != nil {
				opts.OnFileDone(path)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := &BatchResult{
		Result:     newParseResult(),
		FileErrors: make([]FileError, 0),
		Files:      len(paths),
		Contexts:   make(map[string]map[int]Context),
	}
	for i, path := range paths {
		if failures[i] != nil {
			batch.FileErrors = append(batch.FileErrors, FileError{
				File: path,
				Code: apperror.CodeOf(failures[i]),
				Err:  failures[i].Error(),
			})
			continue
		}
		res := results[i]
		batch.Result.Append(res.Result)
		if res.Capped {
			batch.Capped = append(batch.Capped, path)
		}
		if res.Streamed && len(res.Contexts) > 0 {
			byLine := make(map[int]Context, len(res.Contexts))
			for j, c := range res.Contexts {
				byLine[res.Result.Annotations[j].Line] = c
			}
			batch.Contexts[path] = byLine
		}
	}

	return batch, nil
}
