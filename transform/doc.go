// Package transform converts raw records into rows that match a schema.
//
// A Pipeline chains the transformers of the ingestion path:
//
//   - ComplexType flattens nested maps and unnests configured arrays
//   - Expression computes derived columns with expr-lang expressions
//   - Filter drops rows matching a boolean expression
//   - DataType coerces values to their column's stored type
//   - SpecialValue normalizes -0.0 and NaN
//   - NullValue fills missing columns with their defaults
//   - Sanitization cuts strings at NUL and bounds their length
//
// Usage:
//
//	p, err := transform.New(s, tableConfig)
//	res := p.Process(raw)
//	for _, r := range res.Rows {
//		if err := seg.Index(r); err != nil {
//			...
//		}
//	}
//
// A value that cannot be converted is handled by the table's error policy:
// strict skips the row, lenient stores the column default, marks the column
// null and counts the row as incomplete.
package transform
