package segment

import (
	"errors"
	"fmt"

	"github.com/hupe1980/rtseg/internal/chunked"
	"github.com/hupe1980/rtseg/internal/dictionary"
)

var (
	// ErrDocIDOutOfRange is returned when a docID is not below NumDocs.
	ErrDocIDOutOfRange = errors.New("docID out of range")

	// ErrDictionarySaturated is returned when a column dictionary reached its
	// maximum size. The segment stops accepting rows.
	ErrDictionarySaturated = dictionary.ErrSaturated

	// ErrAllocationFailed is returned when index memory could not be
	// reserved. The segment stops accepting rows.
	ErrAllocationFailed = chunked.ErrAllocationFailed

	// ErrSegmentDestroyed is returned by every operation after Destroy.
	ErrSegmentDestroyed = errors.New("segment destroyed")

	// ErrSegmentNotWritable is returned by Index after a fatal ingestion
	// error. Reads keep working.
	ErrSegmentNotWritable = errors.New("segment not writable")

	// ErrColumnNotFound is returned for columns missing from the schema.
	ErrColumnNotFound = errors.New("column not found")

	// ErrNotDictionaryEncoded is returned when dictionary ids are requested
	// from a raw column.
	ErrNotDictionaryEncoded = errors.New("column is not dictionary encoded")

	// ErrNotMultiValue is returned when a single-value column is read as a
	// multi-value column or the other way round.
	ErrNotMultiValue = errors.New("column value arity mismatch")

	// ErrTypeMismatch is returned when a row value does not fit the column's
	// data type. The row is rejected; the segment stays writable.
	ErrTypeMismatch = errors.New("type mismatch")
)

// ColumnError reports a failure on a single column.
type ColumnError struct {
	Column string
	Op     string
	Err    error
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("column %q: %s: %v", e.Column, e.Op, e.Err)
}

func (e *ColumnError) Unwrap() error { return e.Err }

// fatal reports whether err leaves the segment unable to accept rows.
func fatal(err error) bool {
	return errors.Is(err, ErrDictionarySaturated) || errors.Is(err, ErrAllocationFailed)
}
