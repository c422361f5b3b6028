// Package segment implements the mutable, in-memory column segment that
// real-time ingestion writes into.
//
// A MutableSegment accepts one row at a time from a single writer and keeps,
// per column, a dictionary, a chunked forward index, an optional null-value
// vector and optional inverted, range and text indexes. All structures grow
// by appending fixed-size chunks, so readers holding a chunk are never
// invalidated.
//
// # Visibility
//
// Index writes every structure of every column first and then stores the
// new document count. Readers load the count first, so a visible docID
// always has complete data:
//
//	seg, _ := segment.New(s, segment.WithChunkSize(4096))
//	_ = seg.Index(r)
//
//	n := seg.NumDocs()
//	ds, _ := seg.DataSource("user")
//	for d := range n {
//		v, _ := ds.ForwardIndex().Value(d)
//		...
//	}
//
// # Failure model
//
// A value that does not fit its column rejects the row with ErrTypeMismatch
// and leaves the segment untouched. A saturated dictionary or a refused
// memory reservation is fatal: the row is not published and later Index
// calls fail with ErrSegmentNotWritable. Reads keep working until Destroy.
package segment
