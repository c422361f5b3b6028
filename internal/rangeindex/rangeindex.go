// Package rangeindex implements the realtime range index of a mutable
// segment column: a zone map holding the min and max value of every
// document chunk.
//
// A range query skips chunks whose zone lies outside the bounds, takes whole
// chunks whose zone lies inside, and scans the forward index of the rest.
package rangeindex

import (
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/rtseg/internal/chunked"
)

const zonesPerChunk = 64

type zone[K any] struct {
	min, max K
}

// Index is a zone map over fixed-size document chunks.
type Index[K any] struct {
	bits    uint
	compare func(a, b K) int
	value   func(docID int) K
	zones   *chunked.Array[atomic.Pointer[zone[K]]]
}

// New creates a range index over chunks of 2^docBits documents. value reads
// the forward index; compare orders values.
func New[K any](docBits uint, compare func(a, b K) int, value func(docID int) K, alloc chunked.Allocator) *Index[K] {
	return &Index[K]{
		bits:    docBits,
		compare: compare,
		value:   value,
		zones:   chunked.New[atomic.Pointer[zone[K]]](zonesPerChunk, alloc),
	}
}

// Grow reserves zones for numDocs documents.
func (x *Index[K]) Grow(numDocs int) error {
	return x.zones.Grow(((numDocs - 1) >> x.bits) + 1)
}

// Add widens the zone of docID's chunk to include v. Capacity must have
// been reserved by Grow.
func (x *Index[K]) Add(docID int, v K) {
	p := x.zones.Ptr(docID >> x.bits)
	cur := p.Load()
	switch {
	case cur == nil:
		p.Store(&zone[K]{min: v, max: v})
	case x.compare(v, cur.min) < 0:
		p.Store(&zone[K]{min: v, max: cur.max})
	case x.compare(v, cur.max) > 0:
		p.Store(&zone[K]{min: cur.min, max: v})
	}
}

// Result carries the matching documents and scan statistics.
type Result struct {
	Docs           *roaring.Bitmap
	EntriesScanned int
	ChunksPruned   int
}

// Matching returns the documents below limit whose value lies within the
// bounds. A nil bound is unbounded.
func (x *Index[K]) Matching(lo, hi *K, incLo, incHi bool, limit int) Result {
	res := Result{Docs: roaring.New()}
	size := 1 << x.bits
	for c := 0; c*size < limit; c++ {
		p := x.zones.Ptr(c)
		if p == nil {
			break
		}
		z := p.Load()
		if z == nil {
			// No value was added to this chunk yet.
			res.ChunksPruned++
			continue
		}
		start := c * size
		end := min(start+size, limit)

		if !x.overlaps(z, lo, hi, incLo, incHi) {
			res.ChunksPruned++
			continue
		}
		// A zone may include docs at or above limit, so only a full chunk
		// below limit can be taken without scanning.
		if end-start == size && x.contains(z, lo, hi, incLo, incHi) {
			res.Docs.AddRange(uint64(start), uint64(end))
			continue
		}
		for d := start; d < end; d++ {
			res.EntriesScanned++
			if x.inRange(x.value(d), lo, hi, incLo, incHi) {
				res.Docs.Add(uint32(d))
			}
		}
	}
	return res
}

func (x *Index[K]) inRange(v K, lo, hi *K, incLo, incHi bool) bool {
	if lo != nil {
		c := x.compare(v, *lo)
		if c < 0 || (c == 0 && !incLo) {
			return false
		}
	}
	if hi != nil {
		c := x.compare(v, *hi)
		if c > 0 || (c == 0 && !incHi) {
			return false
		}
	}
	return true
}

func (x *Index[K]) overlaps(z *zone[K], lo, hi *K, incLo, incHi bool) bool {
	if lo != nil {
		c := x.compare(z.max, *lo)
		if c < 0 || (c == 0 && !incLo) {
			return false
		}
	}
	if hi != nil {
		c := x.compare(z.min, *hi)
		if c > 0 || (c == 0 && !incHi) {
			return false
		}
	}
	return true
}

func (x *Index[K]) contains(z *zone[K], lo, hi *K, incLo, incHi bool) bool {
	return x.inRange(z.min, lo, hi, incLo, incHi) && x.inRange(z.max, lo, hi, incLo, incHi)
}

// NumZones returns the number of chunks with a zone.
func (x *Index[K]) NumZones() int {
	n := 0
	for c := 0; ; c++ {
		p := x.zones.Ptr(c)
		if p == nil || p.Load() == nil {
			return n
		}
		n++
	}
}

// Bytes returns the reserved memory.
func (x *Index[K]) Bytes() int64 { return x.zones.Bytes() }

// Free releases the zone map.
func (x *Index[K]) Free() { x.zones.Free() }
