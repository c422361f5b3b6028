// Package dictionary implements the growable value dictionary of a mutable
// segment column.
//
// Ids are dense int32 surrogates assigned in first-seen order and never
// reused or reassigned. Lookups by id go through a chunked array; lookups by
// value go through a sync.Map whose entries are published after the value is
// readable by id.
package dictionary

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/rtseg/internal/chunked"
)

// ErrSaturated is returned when the dictionary reached its maximum size.
var ErrSaturated = errors.New("dictionary saturated")

// DefaultMaxSize is the largest number of ids a dictionary hands out.
const DefaultMaxSize = math.MaxInt32

// Options configures a Dictionary.
type Options[K comparable] struct {
	// ChunkSize of the id → value array.
	ChunkSize int
	// MaxSize bounds the id space; 0 means DefaultMaxSize.
	MaxSize int
	// Allocator accounts chunk and payload memory. May be nil.
	Allocator chunked.Allocator
	// Compare orders keys for Min/Max and range lookups.
	Compare func(a, b K) int
	// Size returns the payload bytes of a key beyond its fixed size
	// (string contents). May be nil.
	Size func(K) int64
}

// Dictionary maps distinct values to ids.
//
// Index must be called by a single writer. All other methods are safe for
// concurrent use with the writer.
type Dictionary[K comparable] struct {
	opts   Options[K]
	ids    sync.Map // K → int32
	values *chunked.Array[K]

	min, max atomic.Pointer[K]
	payload  atomic.Int64
	// credit is payload memory reserved by Prepare and not yet used.
	credit atomic.Int64

	planned []K
}

// New creates an empty dictionary.
func New[K comparable](opts Options[K]) *Dictionary[K] {
	if opts.MaxSize <= 0 || opts.MaxSize > DefaultMaxSize {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.Compare == nil {
		panic("dictionary: Compare is required")
	}
	return &Dictionary[K]{
		opts:   opts,
		values: chunked.New[K](opts.ChunkSize, opts.Allocator),
	}
}

// NewOrdered creates a dictionary for an ordered key type.
func NewOrdered[K cmp.Ordered](chunkSize, maxSize int, alloc chunked.Allocator) *Dictionary[K] {
	return New(Options[K]{
		ChunkSize: chunkSize,
		MaxSize:   maxSize,
		Allocator: alloc,
		Compare:   cmp.Compare[K],
	})
}

// NewString creates a string dictionary that accounts string payloads.
func NewString(chunkSize, maxSize int, alloc chunked.Allocator) *Dictionary[string] {
	return New(Options[string]{
		ChunkSize: chunkSize,
		MaxSize:   maxSize,
		Allocator: alloc,
		Compare:   cmp.Compare[string],
		Size:      func(s string) int64 { return int64(len(s)) },
	})
}

// Prepare appends to ids the id each key of keys will have once indexed,
// without inserting anything. Keys not yet present get consecutive ids after
// Len in order of first occurrence.
//
// Prepare fails with ErrSaturated when the new keys do not fit and with
// chunked.ErrAllocationFailed when memory cannot be reserved. Otherwise
// indexing the same keys next cannot fail. Capacity reserved by a Prepare
// whose keys are never indexed is kept for later inserts.
func (d *Dictionary[K]) Prepare(keys []K, ids []int32) ([]int32, error) {
	n := d.values.Len()
	d.planned = d.planned[:0]
	var extra int64
	for _, k := range keys {
		if v, ok := d.ids.Load(k); ok {
			ids = append(ids, v.(int32))
			continue
		}
		if j := slices.Index(d.planned, k); j >= 0 {
			ids = append(ids, int32(n+j))
			continue
		}
		if n+len(d.planned) >= d.opts.MaxSize {
			return ids, fmt.Errorf("%w: %d entries", ErrSaturated, n)
		}
		ids = append(ids, int32(n+len(d.planned)))
		d.planned = append(d.planned, k)
		if d.opts.Size != nil {
			extra += d.opts.Size(k)
		}
	}
	if len(d.planned) == 0 {
		return ids, nil
	}
	if err := d.values.Grow(n + len(d.planned)); err != nil {
		return ids, err
	}
	if err := d.reservePayload(extra); err != nil {
		return ids, err
	}
	return ids, nil
}

// reservePayload makes sure credit covers n bytes.
func (d *Dictionary[K]) reservePayload(n int64) error {
	need := n - d.credit.Load()
	if need <= 0 || d.opts.Allocator == nil {
		return nil
	}
	if err := d.opts.Allocator.Reserve(need); err != nil {
		return fmt.Errorf("%w: %w", chunked.ErrAllocationFailed, err)
	}
	d.credit.Add(need)
	return nil
}

// Index returns the id of k, inserting it if absent. added reports whether
// k was new.
func (d *Dictionary[K]) Index(k K) (id int32, added bool, err error) {
	if v, ok := d.ids.Load(k); ok {
		return v.(int32), false, nil
	}

	n := d.values.Len()
	if n >= d.opts.MaxSize {
		return 0, false, fmt.Errorf("%w: %d entries", ErrSaturated, n)
	}

	var extra int64
	if d.opts.Size != nil && d.opts.Allocator != nil {
		extra = d.opts.Size(k)
		if err := d.reservePayload(extra); err != nil {
			return 0, false, err
		}
	}

	i, err := d.values.Append(k)
	if err != nil {
		return 0, false, err
	}
	d.credit.Add(-extra)
	d.payload.Add(extra)

	id = int32(i)
	d.ids.Store(k, id)
	d.updateMinMax(k)
	return id, true, nil
}

func (d *Dictionary[K]) updateMinMax(k K) {
	if cur := d.min.Load(); cur == nil || d.opts.Compare(k, *cur) < 0 {
		v := k
		d.min.Store(&v)
	}
	if cur := d.max.Load(); cur == nil || d.opts.Compare(k, *cur) > 0 {
		v := k
		d.max.Store(&v)
	}
}

// IndexOf returns the id of k without inserting.
func (d *Dictionary[K]) IndexOf(k K) (int32, bool) {
	v, ok := d.ids.Load(k)
	if !ok {
		return 0, false
	}
	return v.(int32), true
}

// Get returns the value of an id.
func (d *Dictionary[K]) Get(id int32) (K, bool) {
	return d.values.Get(int(id))
}

// Len returns the number of ids handed out.
func (d *Dictionary[K]) Len() int { return d.values.Len() }

// Min returns the smallest key.
func (d *Dictionary[K]) Min() (K, bool) {
	if p := d.min.Load(); p != nil {
		return *p, true
	}
	var zero K
	return zero, false
}

// Max returns the largest key.
func (d *Dictionary[K]) Max() (K, bool) {
	if p := d.max.Load(); p != nil {
		return *p, true
	}
	var zero K
	return zero, false
}

// Compare orders two keys with the dictionary's comparator.
func (d *Dictionary[K]) Compare(a, b K) int { return d.opts.Compare(a, b) }

// IDsInRange returns the ids whose value lies between lo and hi. A nil bound
// is unbounded.
func (d *Dictionary[K]) IDsInRange(lo, hi *K, incLo, incHi bool) []int32 {
	var out []int32
	n := d.values.Len()
	for i := range n {
		v := d.values.At(i)
		if lo != nil {
			c := d.opts.Compare(v, *lo)
			if c < 0 || (c == 0 && !incLo) {
				continue
			}
		}
		if hi != nil {
			c := d.opts.Compare(v, *hi)
			if c > 0 || (c == 0 && !incHi) {
				continue
			}
		}
		out = append(out, int32(i))
	}
	return out
}

// SortedIDs returns all ids ordered by value.
func (d *Dictionary[K]) SortedIDs() []int32 {
	n := d.values.Len()
	ids := make([]int32, n)
	for i := range ids {
		ids[i] = int32(i)
	}
	slices.SortFunc(ids, func(a, b int32) int {
		return d.opts.Compare(d.values.At(int(a)), d.values.At(int(b)))
	})
	return ids
}

// Bytes returns the reserved memory.
func (d *Dictionary[K]) Bytes() int64 {
	return d.values.Bytes() + d.payload.Load() + d.credit.Load()
}

// Free releases all memory. The dictionary is empty afterwards.
func (d *Dictionary[K]) Free() {
	d.values.Free()
	d.ids.Clear()
	d.min.Store(nil)
	d.max.Store(nil)
	if b := d.payload.Swap(0) + d.credit.Swap(0); b > 0 && d.opts.Allocator != nil {
		d.opts.Allocator.Release(b)
	}
}
