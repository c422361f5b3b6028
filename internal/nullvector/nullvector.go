// Package nullvector provides the per-column null-value vector of a mutable
// segment.
//
// Architecture:
//   - Bits live in atomic.Uint64 words held in a chunked array, so growth
//     never moves a word a reader may be loading
//   - The single writer sets bits with atomic Or; readers Load
//   - A bit is set if and only if the document's value is null
package nullvector

import (
	"math/bits"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/rtseg/internal/chunked"
)

const wordBits = 64

// Vector is a growable, lock-free null bitmap indexed by docID.
type Vector struct {
	words *chunked.Array[atomic.Uint64]
	count atomic.Int64
}

// New creates a Vector sized in chunks of chunkSize documents.
func New(chunkSize int, alloc chunked.Allocator) *Vector {
	return &Vector{
		words: chunked.New[atomic.Uint64](max(1, chunkSize/wordBits), alloc),
	}
}

// Grow makes sure bits for docIDs below numDocs can be set without
// allocating.
func (v *Vector) Grow(numDocs int) error {
	return v.words.Grow((numDocs + wordBits - 1) / wordBits)
}

// Set marks docID null.
func (v *Vector) Set(docID int) error {
	if err := v.Grow(docID + 1); err != nil {
		return err
	}
	w := v.words.Ptr(docID / wordBits)
	mask := uint64(1) << (docID % wordBits)
	if w.Or(mask)&mask == 0 {
		v.count.Add(1)
	}
	return nil
}

// IsNull reports whether docID is marked null. DocIDs beyond the allocated
// words are not null.
func (v *Vector) IsNull(docID int) bool {
	if docID < 0 {
		return false
	}
	w := v.words.Ptr(docID / wordBits)
	if w == nil {
		return false
	}
	return w.Load()&(uint64(1)<<(docID%wordBits)) != 0
}

// Cardinality returns the number of null documents.
func (v *Vector) Cardinality() int { return int(v.count.Load()) }

// Bitmap returns a snapshot of the null docIDs below limit.
func (v *Vector) Bitmap(limit int) *roaring.Bitmap {
	rb := roaring.New()
	for wi := 0; wi*wordBits < limit; wi++ {
		w := v.words.Ptr(wi)
		if w == nil {
			break
		}
		word := w.Load()
		base := wi * wordBits
		for word != 0 {
			doc := base + bits.TrailingZeros64(word)
			if doc >= limit {
				break
			}
			rb.Add(uint32(doc))
			word &= word - 1
		}
	}
	return rb
}

// Bytes returns the reserved memory.
func (v *Vector) Bytes() int64 { return v.words.Bytes() }

// Free releases all words.
func (v *Vector) Free() {
	v.words.Free()
	v.count.Store(0)
}
