package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the input path does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrNotLoaded indicates an operation ran before a successful Load.
	ErrNotLoaded = errors.New("no data loaded")
)

// ParseError indicates the input could not be read as a table.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("error reading %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// WriteError indicates a report or table could not be written to Path.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("write failed: %v", e.Err)
	}
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
