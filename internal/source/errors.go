package source

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/roach88/fitmerge/internal/record"
)

// Code classifies a load failure.
type Code string

const (
	CodeMissingSource    Code = "MISSING_SOURCE"
	CodeMalformedSource  Code = "MALFORMED_SOURCE"
	CodeUnreadableSource Code = "UNREADABLE_SOURCE"
)

// Sentinels for errors.Is. A *LoadError matches the sentinel of its code.
var (
	ErrMissingSource    = errors.New("source not found")
	ErrMalformedSource  = errors.New("source is malformed")
	ErrUnreadableSource = errors.New("source is unreadable")
)

// LoadError reports why a source file produced no records.
type LoadError struct {
	Code Code
	Path string
	Kind record.Kind // empty for whole-file JSON failures
	Err  error
}

func (e *LoadError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s: %s (%s): %v", e.Code, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's code.
func (e *LoadError) Is(target error) bool {
	switch e.Code {
	case CodeMissingSource:
		return target == ErrMissingSource
	case CodeMalformedSource:
		return target == ErrMalformedSource
	case CodeUnreadableSource:
		return target == ErrUnreadableSource
	}
	return false
}

// CodeOf returns the load code carried by err, or "" if err is not a
// *LoadError.
func CodeOf(err error) Code {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

func openError(path string, kind record.Kind, err error) *LoadError {
	code := CodeUnreadableSource
	if errors.Is(err, fs.ErrNotExist) {
		code = CodeMissingSource
	}
	return &LoadError{Code: code, Path: path, Kind: kind, Err: err}
}
