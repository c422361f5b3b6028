// Package inverted implements the realtime inverted index: one posting list
// per dictionary id.
package inverted

import (
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/rtseg/internal/chunked"
	"github.com/hupe1980/rtseg/internal/postings"
)

// Index maps dictionary ids to the documents holding them.
//
// Lists are addressed densely by id through a chunked array of pointers, so
// readers never take a lock.
type Index struct {
	alloc     chunked.Allocator
	listChunk int
	lists     *chunked.Array[*postings.List]
	listBytes atomic.Int64
}

// New creates an index. chunkSize sizes the id table; listChunkSize the
// posting lists.
func New(chunkSize, listChunkSize int, alloc chunked.Allocator) *Index {
	return &Index{
		alloc:     alloc,
		listChunk: listChunkSize,
		lists:     chunked.New[*postings.List](chunkSize, alloc),
	}
}

// Reserve creates the list of dictID if needed and makes room for one more
// document in it, so that a following Add does not allocate.
func (x *Index) Reserve(dictID int32) error {
	for x.lists.Len() <= int(dictID) {
		if _, err := x.lists.Append(postings.NewList(x.listChunk, x.alloc)); err != nil {
			return err
		}
	}
	l := x.lists.At(int(dictID))
	before := l.Bytes()
	if err := l.Reserve(); err != nil {
		return err
	}
	x.listBytes.Add(l.Bytes() - before)
	return nil
}

// Add records that docID holds dictID.
func (x *Index) Add(dictID int32, docID uint32) error {
	if err := x.Reserve(dictID); err != nil {
		return err
	}
	l := x.lists.At(int(dictID))
	before := l.Bytes()
	if err := l.Add(docID); err != nil {
		return err
	}
	x.listBytes.Add(l.Bytes() - before)
	return nil
}

// DocIDs returns the documents below limit holding dictID.
func (x *Index) DocIDs(dictID int32, limit uint32) *roaring.Bitmap {
	l, ok := x.lists.Get(int(dictID))
	if !ok {
		return roaring.New()
	}
	return l.Snapshot(limit)
}

// Union returns the documents below limit holding any of ids.
func (x *Index) Union(ids []int32, limit uint32) *roaring.Bitmap {
	rb := roaring.New()
	for _, id := range ids {
		if l, ok := x.lists.Get(int(id)); ok {
			l.AddTo(rb, limit)
		}
	}
	return rb
}

// NumIDs returns the number of posting lists.
func (x *Index) NumIDs() int { return x.lists.Len() }

// Bytes returns the reserved memory.
func (x *Index) Bytes() int64 { return x.lists.Bytes() + x.listBytes.Load() }

// Free releases all lists.
func (x *Index) Free() {
	for i := range x.lists.Len() {
		x.lists.At(i).Free()
	}
	x.lists.Free()
	x.listBytes.Store(0)
}
