// Package row provides the record model shared by ingestion, transformation and
// the mutable segment.
//
// A Row maps column names to typed Values and carries an explicit set of null
// columns:
//
//	r := row.New()
//	r.PutValue("city", row.String("berlin"))
//	r.PutDefaultNullValue("zip", row.Int(math.MinInt32)) // placeholder, marked null
//
//	r.IsNull("zip")    // true
//	r.NullFields()     // [zip]
//
// Rows are designed for reuse: the ingestion driver fills one Row per record,
// passes it through the pipeline into the segment, and calls Clear before the
// next record. The segment never retains a Row it was given.
package row
