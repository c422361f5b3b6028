// Package postings provides append-only docID lists shared by the realtime
// inverted and text indexes.
package postings

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/rtseg/internal/chunked"
)

// DefaultChunkSize keeps rare values cheap while frequent values grow in
// reasonably large steps.
const DefaultChunkSize = 256

// List is an ascending list of docIDs with one writer and lock-free
// readers. The length is published after the docID is written.
type List struct {
	docs *chunked.Array[uint32]
}

// NewList creates an empty list.
func NewList(chunkSize int, alloc chunked.Allocator) *List {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &List{docs: chunked.New[uint32](chunkSize, alloc)}
}

// Add appends docID. Adding the last docID again is a no-op, so a document
// holding a value twice is listed once.
func (l *List) Add(docID uint32) error {
	if n := l.docs.Len(); n > 0 && l.docs.At(n-1) == docID {
		return nil
	}
	_, err := l.docs.Append(docID)
	return err
}

// Reserve makes sure one more docID can be added without allocating.
func (l *List) Reserve() error { return l.docs.Grow(l.docs.Len() + 1) }

// Len returns the number of published docIDs.
func (l *List) Len() int { return l.docs.Len() }

// AddTo adds every docID below limit to rb and returns how many were added.
func (l *List) AddTo(rb *roaring.Bitmap, limit uint32) int {
	n := l.docs.Len()
	added := 0
	for c := 0; c*l.docs.ChunkSize() < n; c++ {
		chunk := l.docs.Chunk(c)
		for _, d := range chunk {
			if d >= limit {
				return added
			}
			rb.Add(d)
			added++
		}
	}
	return added
}

// Snapshot returns the docIDs below limit as a bitmap.
func (l *List) Snapshot(limit uint32) *roaring.Bitmap {
	rb := roaring.New()
	l.AddTo(rb, limit)
	return rb
}

// Bytes returns the reserved memory.
func (l *List) Bytes() int64 { return l.docs.Bytes() }

// Free releases the list.
func (l *List) Free() { l.docs.Free() }
