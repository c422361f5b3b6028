package rtseg

import (
	"errors"

	"github.com/hupe1980/rtseg/schema"
	"github.com/hupe1980/rtseg/segment"
	"github.com/hupe1980/rtseg/transform"
)

// Errors returned by segments. See the segment package for details.
var (
	ErrDocIDOutOfRange      = segment.ErrDocIDOutOfRange
	ErrDictionarySaturated  = segment.ErrDictionarySaturated
	ErrAllocationFailed     = segment.ErrAllocationFailed
	ErrSegmentDestroyed     = segment.ErrSegmentDestroyed
	ErrSegmentNotWritable   = segment.ErrSegmentNotWritable
	ErrColumnNotFound       = segment.ErrColumnNotFound
	ErrNotDictionaryEncoded = segment.ErrNotDictionaryEncoded
	ErrNotMultiValue        = segment.ErrNotMultiValue
	ErrTypeMismatch         = segment.ErrTypeMismatch
)

var (
	// ErrInvalidSchema is returned for schemas and table configurations
	// that fail validation.
	ErrInvalidSchema = schema.ErrInvalidSchema

	// ErrMalformedRow is returned for raw records the pipeline cannot
	// convert under the strict error policy.
	ErrMalformedRow = transform.ErrMalformedRow

	// ErrClosed is returned by an Ingester after Close.
	ErrClosed = errors.New("ingester closed")

	// ErrNoRows is returned by QueryBuilder.First when nothing matches.
	ErrNoRows = errors.New("no matching rows")
)

// rowRejected reports whether err rejected a single row and left the
// segment writable.
func rowRejected(err error) bool {
	return errors.Is(err, segment.ErrTypeMismatch) && !errors.Is(err, segment.ErrSegmentNotWritable)
}
