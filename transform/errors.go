package transform

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRow is returned when a value cannot be coerced to its
	// column's data type.
	ErrMalformedRow = errors.New("malformed row")

	// ErrExpression is returned when a derived-column or filter expression
	// fails to evaluate.
	ErrExpression = errors.New("expression evaluation failed")

	// ErrInvalidExpression is returned by New when an expression does not
	// compile.
	ErrInvalidExpression = errors.New("invalid expression")
)

// RowError reports a failure of one transformer on one row.
type RowError struct {
	Transformer string
	Column      string
	Err         error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("transform %s: %v", e.Transformer, e.Err)
	}
	return fmt.Sprintf("transform %s: column %q: %v", e.Transformer, e.Column, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }
