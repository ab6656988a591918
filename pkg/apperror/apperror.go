// Package apperror defines the typed error taxonomy shared by the waymark tools.
//
// Per-line parse defects are not errors in this sense; they are collected as
// parser.ParseError values. An *Error terminates the operation that produced it
// (one parse call, one file, one search) without aborting a batch.
package apperror

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Code classifies an error for callers and for machine-readable output.
type Code string

const (
	CodeUnknown Code = "unknown"

	CodeParseInvalidSyntax  Code = "parse.invalidSyntax"
	CodeParseMissingSpace   Code = "parse.missingSpace"
	CodeParseEmptyPayload   Code = "parse.emptyPayload"
	CodeParseInvalidContext Code = "parse.invalidContext"

	CodeFileTooLarge     Code = "file.tooLarge"
	CodeFileNotFound     Code = "file.notFound"
	CodeFileReadError    Code = "file.readError"
	CodeFileAccessDenied Code = "file.accessDenied"

	CodeSearchNoResults      Code = "search.noResults"
	CodeSearchTooManyResults Code = "search.tooManyResults"

	CodeValidation       Code = "validation"
	CodeValidationSchema Code = "validation.schema"
)

// Error is a classified error.
type Error struct {
	// Code classifies the failure.
	Code Code

	// Message is a human-readable description.
	Message string

	// Details carries structured values relevant to the code (sizes, limits, paths).
	Details map[string]any

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.Err == nil
}

// New creates an error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error with the given code that wraps err.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithDetail returns the error after recording a structured detail.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// HasCode reports whether err's chain contains an *Error with the given code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

const bytesPerMB = 1024 * 1024

// FileTooLarge reports content that exceeds the configured size limit.
// Both sizes are in bytes.
func FileTooLarge(size, limit int64) *Error {
	e := New(CodeFileTooLarge, "File too large: %.2f MB exceeds limit of %.2f MB",
		float64(size)/bytesPerMB, float64(limit)/bytesPerMB)
	return e.WithDetail("size", size).WithDetail("limit", limit)
}

// FromIO classifies a file system error for path.
func FromIO(path string, err error) *Error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Wrap(CodeFileNotFound, err, "file not found: %s", path).WithDetail("path", path)
	case errors.Is(err, fs.ErrPermission):
		return Wrap(CodeFileAccessDenied, err, "access denied: %s", path).WithDetail("path", path)
	}
	var perr *os.PathError
	if errors.As(err, &perr) {
		return Wrap(CodeFileReadError, err, "reading %s", perr.Path).WithDetail("path", path)
	}
	return Wrap(CodeFileReadError, err, "reading %s", path).WithDetail("path", path)
}
