// Package rtseg provides an in-memory, real-time column segment for a
// streaming analytics store.
//
// Raw records flow through a transform pipeline into a mutable segment that
// indexes every row on arrival. Queries run concurrently with ingestion and
// see every document as soon as it is fully indexed.
//
// # Quick Start
//
//	s, _ := schema.New("events",
//	    schema.FieldSpec{Name: "user", DataType: schema.DataTypeString},
//	    schema.FieldSpec{Name: "clicks", DataType: schema.DataTypeLong, FieldType: schema.FieldTypeMetric},
//	)
//	in, _ := rtseg.Table(s).
//	    InvertedIndex("user").
//	    RangeIndex("clicks").
//	    Build()
//	defer in.Close()
//
//	in.IngestRow(ctx, row.FromMap(map[string]row.Value{"user": row.String("alice")}))
//
// # Ingestion
//
// IngestRow runs one raw record through the pipeline and indexes the rows it
// produces. IngestReader does the same for every record of a reader.Reader,
// for example newline-delimited JSON:
//
//	stats, err := in.IngestReader(ctx, reader.NewJSONReader(os.Stdin))
//
// Malformed records and rows that do not fit the schema are counted and
// skipped. Errors that make the segment read-only, such as a refused memory
// reservation, stop ingestion and are returned.
//
// # Queries
//
//	resp, _ := in.Select("user", "clicks").
//	    Where(predicate.GreaterThan("clicks", row.Long(10))).
//	    Limit(100).
//	    Execute(ctx)
//
// The response carries the matching rows together with the execution
// statistics of a broker response.
//
// # Conversion
//
// Before a segment is destroyed its content can be exported to a blob store
// with the export package.
package rtseg
