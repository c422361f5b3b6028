// Package stats tracks incremental per-column statistics of a mutable
// segment: value range, entry counts, multi-value lengths and, for columns
// without a dictionary, a HyperLogLog cardinality estimate.
package stats

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"

	"github.com/retailnext/hllpp"

	"github.com/hupe1980/rtseg/row"
)

// Column accumulates statistics for one column. Observe is called by the
// single writer; getters are safe for concurrent use.
type Column struct {
	min, max atomic.Pointer[row.Value]
	total    atomic.Int64
	maxMV    atomic.Int32

	mu  sync.Mutex // guards hll
	hll *hllpp.HLLPP
	buf []byte
}

// New creates a Column. estimate enables the cardinality sketch.
func New(estimate bool) *Column {
	c := &Column{}
	if estimate {
		c.hll = hllpp.New()
	}
	return c
}

// Observe records a single non-null value.
func (c *Column) Observe(v row.Value) {
	c.observe(v)
	c.total.Add(1)
}

// ObserveMulti records the values of one multi-value entry.
func (c *Column) ObserveMulti(vs []row.Value) {
	for _, v := range vs {
		c.observe(v)
	}
	c.total.Add(int64(len(vs)))
	if n := int32(len(vs)); n > c.maxMV.Load() {
		c.maxMV.Store(n)
	}
}

// ObserveNull counts an entry without touching the value range.
func (c *Column) ObserveNull() { c.total.Add(1) }

func (c *Column) observe(v row.Value) {
	if cur := c.min.Load(); cur == nil || v.Compare(*cur) < 0 {
		m := v
		c.min.Store(&m)
	}
	if cur := c.max.Load(); cur == nil || v.Compare(*cur) > 0 {
		m := v
		c.max.Store(&m)
	}
	if c.hll != nil {
		c.mu.Lock()
		c.buf = appendKey(c.buf[:0], v)
		c.hll.Add(c.buf)
		c.mu.Unlock()
	}
}

// appendKey encodes v so that equal values produce equal bytes.
func appendKey(dst []byte, v row.Value) []byte {
	dst = append(dst, byte(v.Kind))
	switch v.Kind {
	case row.KindInt, row.KindLong:
		return binary.LittleEndian.AppendUint64(dst, uint64(v.I64))
	case row.KindFloat, row.KindDouble:
		return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v.F64))
	case row.KindBytes:
		b, _ := v.AsBytes()
		return append(dst, b...)
	}
	return append(dst, v.String()...)
}

// Min returns the smallest observed value.
func (c *Column) Min() (row.Value, bool) {
	if p := c.min.Load(); p != nil {
		return *p, true
	}
	return row.Null(), false
}

// Max returns the largest observed value.
func (c *Column) Max() (row.Value, bool) {
	if p := c.max.Load(); p != nil {
		return *p, true
	}
	return row.Null(), false
}

// TotalEntries returns the number of observed entries, counting every
// element of a multi-value entry.
func (c *Column) TotalEntries() int64 { return c.total.Load() }

// MaxMultiValues returns the longest multi-value entry.
func (c *Column) MaxMultiValues() int { return int(c.maxMV.Load()) }

// EstimatedCardinality returns the sketch estimate, or false when the
// column does not keep a sketch.
func (c *Column) EstimatedCardinality() (int, bool) {
	if c.hll == nil {
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(c.hll.Count()), true
}
