// Package forward implements the docID-keyed forward indexes of a mutable
// segment column.
//
// Every index separates growth from writes: Grow reserves the chunks a new
// document needs and may fail; Set never allocates. Entries are written
// before the document count is published and are never modified afterwards.
package forward

import (
	"sync/atomic"

	"github.com/hupe1980/rtseg/internal/chunked"
)

// DictSV stores one dictionary id per document.
type DictSV struct {
	ids *chunked.Array[int32]
}

// NewDictSV creates a single-value dictionary-encoded forward index.
func NewDictSV(chunkSize int, alloc chunked.Allocator) *DictSV {
	return &DictSV{ids: chunked.New[int32](chunkSize, alloc)}
}

// Grow reserves room for numDocs documents.
func (f *DictSV) Grow(numDocs int) error { return f.ids.Grow(numDocs) }

// Set writes the id of docID. Capacity must have been reserved by Grow.
func (f *DictSV) Set(docID int, id int32) {
	f.ids.Set(docID, id)
	f.ids.SetLen(docID + 1)
}

// DictID returns the id stored for docID. docID must be published.
func (f *DictSV) DictID(docID int) int32 { return f.ids.At(docID) }

// Len returns the number of written documents.
func (f *DictSV) Len() int { return f.ids.Len() }

// ChunkSize returns the documents per chunk.
func (f *DictSV) ChunkSize() int { return f.ids.ChunkSize() }

// Bytes returns the reserved memory.
func (f *DictSV) Bytes() int64 { return f.ids.Bytes() }

// Free releases all chunks.
func (f *DictSV) Free() { f.ids.Free() }

// DictMV stores an ordered list of dictionary ids per document.
//
// Ids of all documents are concatenated in one chunked array; ends holds the
// exclusive end offset of each document's run.
type DictMV struct {
	values *chunked.Array[int32]
	ends   *chunked.Array[int64]
	maxLen atomic.Int32
}

// NewDictMV creates a multi-value dictionary-encoded forward index.
func NewDictMV(chunkSize int, alloc chunked.Allocator) *DictMV {
	return &DictMV{
		values: chunked.New[int32](chunkSize, alloc),
		ends:   chunked.New[int64](chunkSize, alloc),
	}
}

// Grow reserves room for numDocs documents and numValues more ids.
func (f *DictMV) Grow(numDocs, numValues int) error {
	if err := f.ends.Grow(numDocs); err != nil {
		return err
	}
	return f.values.Grow(f.values.Len() + numValues)
}

// Set writes the ids of docID. Capacity must have been reserved by Grow.
func (f *DictMV) Set(docID int, ids []int32) {
	start := f.values.Len()
	for i, id := range ids {
		f.values.Set(start+i, id)
	}
	f.values.SetLen(start + len(ids))
	f.ends.Set(docID, int64(start+len(ids)))
	f.ends.SetLen(docID + 1)
	if n := int32(len(ids)); n > f.maxLen.Load() {
		f.maxLen.Store(n)
	}
}

func (f *DictMV) bounds(docID int) (int, int) {
	end := int(f.ends.At(docID))
	if docID == 0 {
		return 0, end
	}
	return int(f.ends.At(docID - 1)), end
}

// DictIDs appends the ids of docID to buf and returns it.
func (f *DictMV) DictIDs(docID int, buf []int32) []int32 {
	start, end := f.bounds(docID)
	for i := start; i < end; i++ {
		buf = append(buf, f.values.At(i))
	}
	return buf
}

// NumValues returns the number of ids of docID.
func (f *DictMV) NumValues(docID int) int {
	start, end := f.bounds(docID)
	return end - start
}

// MaxNumValues returns the longest list written so far.
func (f *DictMV) MaxNumValues() int { return int(f.maxLen.Load()) }

// TotalValues returns the number of ids across all documents.
func (f *DictMV) TotalValues() int { return f.values.Len() }

// Len returns the number of written documents.
func (f *DictMV) Len() int { return f.ends.Len() }

// Bytes returns the reserved memory.
func (f *DictMV) Bytes() int64 { return f.values.Bytes() + f.ends.Bytes() }

// Free releases all chunks.
func (f *DictMV) Free() {
	f.values.Free()
	f.ends.Free()
}

// Raw stores values directly for columns without a dictionary.
type Raw[K any] struct {
	values *chunked.Array[K]
}

// NewRaw creates a raw single-value forward index.
func NewRaw[K any](chunkSize int, alloc chunked.Allocator) *Raw[K] {
	return &Raw[K]{values: chunked.New[K](chunkSize, alloc)}
}

// Grow reserves room for numDocs documents.
func (f *Raw[K]) Grow(numDocs int) error { return f.values.Grow(numDocs) }

// Set writes the value of docID. Capacity must have been reserved by Grow.
func (f *Raw[K]) Set(docID int, v K) {
	f.values.Set(docID, v)
	f.values.SetLen(docID + 1)
}

// Value returns the value of docID. docID must be published.
func (f *Raw[K]) Value(docID int) K { return f.values.At(docID) }

// Len returns the number of written documents.
func (f *Raw[K]) Len() int { return f.values.Len() }

// ChunkSize returns the documents per chunk.
func (f *Raw[K]) ChunkSize() int { return f.values.ChunkSize() }

// Bytes returns the reserved memory.
func (f *Raw[K]) Bytes() int64 { return f.values.Bytes() }

// Free releases all chunks.
func (f *Raw[K]) Free() { f.values.Free() }
