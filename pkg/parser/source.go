package parser

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ccollicutt/waymark/pkg/apperror"
)

// ReaderSource implements LineSource over a single reader. It enforces a byte
// limit on the total input.
type ReaderSource struct {
	name    string
	counter *countingReader
	scanner *bufio.Scanner
	limit   int64
	lineNum int
	closer  io.Closer
}

// NewReaderSource creates a LineSource reading newline-delimited lines from r.
// A limit <= 0 disables the size check.
func NewReaderSource(r io.Reader, name string, limit int64) *ReaderSource {
	counter := &countingReader{r: r}
	scanner := bufio.NewScanner(counter)
	maxLine := 1024 * 1024
	if limit > 0 && limit+1 > int64(maxLine) {
		maxLine = int(limit + 1)
	}
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	scanner.Split(scanLines)

	src := &ReaderSource{
		name:    name,
		counter: counter,
		scanner: scanner,
		limit:   limit,
	}
	if c, ok := r.(io.Closer); ok {
		src.closer = c
	}
	return src
}

// Next returns the next line.
func (s *ReaderSource) Next(ctx context.Context) (*Line, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if s.scanner.Scan() {
		if s.limit > 0 && s.counter.n > s.limit {
			return nil, apperror.FileTooLarge(s.counter.n, s.limit)
		}
		s.lineNum++
		return &Line{
			Content: s.scanner.Text(),
			Source:  s.name,
			LineNum: s.lineNum,
		}, nil
	}

	if err := s.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) && s.limit > 0 {
			return nil, apperror.FileTooLarge(s.counter.n, s.limit)
		}
		return nil, fmt.Errorf("reading %s: %w", s.name, err)
	}
	if s.limit > 0 && s.counter.n > s.limit {
		return nil, apperror.FileTooLarge(s.counter.n, s.limit)
	}
	return nil, io.EOF
}

// Close releases the underlying reader if it is closable.
func (s *ReaderSource) Close() error {
	if s.closer != nil {
		err := s.closer.Close()
		s.closer = nil
		return err
	}
	return nil
}

// FileSource implements LineSource for reading from several files in turn.
type FileSource struct {
	files []string
	limit int64

	currentFile   *os.File
	currentReader *ReaderSource
	fileIndex     int
}

// NewFileSource creates a LineSource that reads the given files in order.
// Each file is subject to limit independently.
func NewFileSource(files []string, limit int64) *FileSource {
	return &FileSource{
		files:     files,
		limit:     limit,
		fileIndex: -1,
	}
}

// Next returns the next line, moving on to the next file when one is exhausted.
// Returns io.EOF when all files have been exhausted.
func (s *FileSource) Next(ctx context.Context) (*Line, error) {
	for {
		if s.currentReader == nil {
			if err := s.openNextFile(); err != nil {
				return nil, err
			}
		}

		line, err := s.currentReader.Next(ctx)
		if err == nil {
			return line, nil
		}
		if err != io.EOF {
			return nil, err
		}

		// Current file exhausted, try next
		if err := s.closeCurrentFile(); err != nil {
			return nil, err
		}
	}
}

// Close releases resources.
func (s *FileSource) Close() error {
	return s.closeCurrentFile()
}

func (s *FileSource) openNextFile() error {
	s.fileIndex++
	if s.fileIndex >= len(s.files) {
		return io.EOF
	}

	path := s.files[s.fileIndex]
	f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return apperror.FromIO(path, err)
	}

	s.currentFile = f
	s.currentReader = NewReaderSource(f, path, s.limit)
	return nil
}

func (s *FileSource) closeCurrentFile() error {
	if s.currentFile != nil {
		err := s.currentFile.Close()
		s.currentFile = nil
		s.currentReader = nil
		return err
	}
	return nil
}

// countingReader tracks how many bytes have been read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// scanLines is bufio.ScanLines without the carriage-return stripping: a '\r'
// before the newline stays part of the line.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
