package transform

import (
	"github.com/hupe1980/rtseg/row"
	"github.com/hupe1980/rtseg/schema"
)

// Transformer rewrites one row in place.
//
// Transform returns false when the row must be dropped without error (for
// example because a filter matched). A returned error skips the row.
type Transformer interface {
	Name() string
	Transform(r *row.Row, c *Context) (bool, error)
}

// Context carries the per-row outcome through the transformers of a
// pipeline.
type Context struct {
	Policy schema.ErrorPolicy

	// Incomplete is set when a failed value was substituted.
	Incomplete bool
	// Errors collects the substituted failures.
	Errors []error
	// Sanitized counts values that were truncated.
	Sanitized int
}

// Fail records a failure of transformer on column. Under the lenient policy
// the error is kept, the row is flagged incomplete and Fail returns nil so
// the caller substitutes a default. Otherwise the error is returned and the
// row is skipped.
func (c *Context) Fail(transformer, column string, err error) error {
	re := &RowError{Transformer: transformer, Column: column, Err: err}
	if c.Policy.Lenient() {
		c.Incomplete = true
		c.Errors = append(c.Errors, re)
		return nil
	}
	return re
}

func (c *Context) reset(policy schema.ErrorPolicy) {
	c.Policy = policy
	c.Incomplete = false
	c.Errors = nil
	c.Sanitized = 0
}

// nullify drops the value of column and marks it null; the null-value
// transformer later stores the default.
func nullify(r *row.Row, column string) {
	r.Remove(column)
	r.AddNullField(column)
}
