// Package chunked implements append-only arrays that grow in fixed-size
// chunks without moving existing elements.
package chunked

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"
	"unsafe"
)

// DefaultChunkSize is the number of elements per chunk (2^16).
const DefaultChunkSize = 1 << 16

// ErrAllocationFailed is returned when the allocator refuses a chunk.
var ErrAllocationFailed = errors.New("chunk allocation failed")

// Allocator accounts for chunk memory. Reserve must not block.
type Allocator interface {
	Reserve(bytes int64) error
	Release(bytes int64)
}

// Array is an append-only array of chunks.
//
// One writer appends; any number of readers call Get concurrently. The chunk
// table is republished by atomic pointer swap on growth and chunks are never
// copied, so a reader holding an old table still sees valid elements. The
// element count is stored after the element is written.
type Array[T any] struct {
	bits  uint
	mask  int
	size  int
	elem  int64
	alloc Allocator

	mu       sync.Mutex // growth
	chunks   atomic.Pointer[[][]T]
	n        atomic.Int64
	reserved atomic.Int64
}

// New creates an Array with the given chunk size, rounded up to a power of
// two. alloc may be nil.
func New[T any](chunkSize int, alloc Allocator) *Array[T] {
	b := ChunkBits(chunkSize)
	var zero T
	a := &Array[T]{
		bits:  b,
		size:  1 << b,
		mask:  1<<b - 1,
		elem:  int64(unsafe.Sizeof(zero)),
		alloc: alloc,
	}
	t := make([][]T, 0, 16)
	a.chunks.Store(&t)
	return a
}

// ChunkBits returns log2 of chunkSize rounded up to a power of two. A
// non-positive size selects DefaultChunkSize.
func ChunkBits(chunkSize int) uint {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return uint(bits.Len(uint(chunkSize - 1)))
}

// ChunkSize returns the number of elements per chunk.
func (a *Array[T]) ChunkSize() int { return a.size }

// ChunkBits returns log2 of the chunk size.
func (a *Array[T]) ChunkBits() uint { return a.bits }

// Len returns the number of published elements.
func (a *Array[T]) Len() int { return int(a.n.Load()) }

// Cap returns the number of elements the allocated chunks can hold.
func (a *Array[T]) Cap() int { return len(*a.chunks.Load()) * a.size }

// NumChunks returns the number of allocated chunks.
func (a *Array[T]) NumChunks() int { return len(*a.chunks.Load()) }

// Bytes returns the chunk memory reserved by the array.
func (a *Array[T]) Bytes() int64 { return a.reserved.Load() }

// Grow makes sure capacity covers n elements, allocating chunks as needed.
// On failure no chunk is added and the array is unchanged.
func (a *Array[T]) Grow(n int) error {
	if n <= a.Cap() {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	table := *a.chunks.Load()
	need := (n + a.mask) >> a.bits
	add := need - len(table)
	if add <= 0 {
		return nil
	}

	bytes := int64(add) * int64(a.size) * a.elem
	if a.alloc != nil {
		if err := a.alloc.Reserve(bytes); err != nil {
			return fmt.Errorf("%w: %d chunk(s) of %d bytes: %w", ErrAllocationFailed, add, int64(a.size)*a.elem, err)
		}
	}
	a.reserved.Add(bytes)

	grown := table
	if need > cap(table) {
		grown = make([][]T, len(table), max(need, 2*cap(table)))
		copy(grown, table)
	}
	for range add {
		grown = append(grown, make([]T, a.size))
	}
	a.chunks.Store(&grown)
	return nil
}

// Append writes v at Len and publishes it.
func (a *Array[T]) Append(v T) (int, error) {
	i := a.Len()
	if err := a.Grow(i + 1); err != nil {
		return 0, err
	}
	table := *a.chunks.Load()
	table[i>>a.bits][i&a.mask] = v
	a.n.Store(int64(i + 1))
	return i, nil
}

// Set writes v at i without publishing it. i must be below Cap; the caller
// publishes through SetLen or its own counter.
func (a *Array[T]) Set(i int, v T) {
	table := *a.chunks.Load()
	table[i>>a.bits][i&a.mask] = v
}

// SetLen publishes n elements. It must only move forward.
func (a *Array[T]) SetLen(n int) { a.n.Store(int64(n)) }

// Get returns the element at i if it is published.
func (a *Array[T]) Get(i int) (T, bool) {
	if i < 0 || i >= a.Len() {
		var zero T
		return zero, false
	}
	table := *a.chunks.Load()
	return table[i>>a.bits][i&a.mask], true
}

// At returns the element at i without checking Len. Slots of unallocated
// chunks read as the zero value.
func (a *Array[T]) At(i int) T {
	table := *a.chunks.Load()
	if c := i >> a.bits; i >= 0 && c < len(table) {
		return table[c][i&a.mask]
	}
	var zero T
	return zero
}

// Ptr returns a pointer to the slot at i, or nil if its chunk is not
// allocated. Used for element types with atomic fields.
func (a *Array[T]) Ptr(i int) *T {
	table := *a.chunks.Load()
	c := i >> a.bits
	if i < 0 || c >= len(table) {
		return nil
	}
	return &table[c][i&a.mask]
}

// Chunk returns the published elements of chunk c.
func (a *Array[T]) Chunk(c int) []T {
	table := *a.chunks.Load()
	n := a.Len()
	if c < 0 || c >= len(table) {
		return nil
	}
	lo := c << a.bits
	if lo >= n {
		return nil
	}
	return table[c][:min(a.size, n-lo)]
}

// Free drops all chunks and returns their memory to the allocator.
// Readers racing with Free observe an empty array.
func (a *Array[T]) Free() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.n.Store(0)
	empty := make([][]T, 0)
	a.chunks.Store(&empty)
	if b := a.reserved.Swap(0); b > 0 && a.alloc != nil {
		a.alloc.Release(b)
	}
}
