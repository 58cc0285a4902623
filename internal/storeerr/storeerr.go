// Package storeerr defines the error taxonomy shared by every layer of the
// quiz store. Callers match kinds with errors.Is; the concrete messages are
// for humans only.
package storeerr

import (
	"errors"
	"fmt"
)

var (
	// ErrIO is returned when a data file cannot be read or written. The
	// operation did not happen and is not retried.
	ErrIO = errors.New("i/o failure")

	// ErrMalformedRecord is returned when a row cannot be decoded.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrDuplicateID is returned when a write would create a second live
	// record with an existing id.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrNotFound is returned by update-style operations on an unknown id.
	ErrNotFound = errors.New("not found")

	// ErrOrphanedReference is returned when an attempt points at an item id
	// that has no live record.
	ErrOrphanedReference = errors.New("orphaned reference")

	// ErrLocked is returned when the advisory lock on the data directory
	// could not be acquired before the timeout.
	ErrLocked = errors.New("could not acquire lock on data directory - another process may be using quizstore")
)

// RecordError describes a row that failed to decode. It matches
// ErrMalformedRecord under errors.Is as well as its underlying cause.
type RecordError struct {
	// Line is the 1-based line number in the source file, or 0 when unknown.
	Line int
	// Column is the offending column name, empty when the whole row is bad.
	Column string
	// Err is the underlying cause.
	Err error
}

func (e *RecordError) Error() string {
	var where string
	switch {
	case e.Line > 0 && e.Column != "":
		where = fmt.Sprintf("line %d, column %s", e.Line, e.Column)
	case e.Line > 0:
		where = fmt.Sprintf("line %d", e.Line)
	case e.Column != "":
		where = fmt.Sprintf("column %s", e.Column)
	}
	if where == "" {
		return fmt.Sprintf("malformed record: %v", e.Err)
	}
	return fmt.Sprintf("malformed record at %s: %v", where, e.Err)
}

// Unwrap exposes both the taxonomy kind and the cause.
func (e *RecordError) Unwrap() []error {
	return []error{ErrMalformedRecord, e.Err}
}

// Malformed builds a RecordError for the given position.
func Malformed(line int, column string, format string, args ...any) error {
	return &RecordError{Line: line, Column: column, Err: fmt.Errorf(format, args...)}
}
