// Package export writes a consistent snapshot of a mutable segment to a
// blob store and reads it back.
//
// An export named "seg" consists of two blobs:
//
//	seg/rows.jsonl.<zst|lz4|none>   one JSON object per document, in docID order
//	seg/metadata.json               Manifest: statistics, codec and checksum
//
// The manifest is written last and marks the export complete. Rows are
// encoded with the type-preserving row.Value JSON form, so a read returns
// rows equal to the segment's records, including their null sets.
package export
