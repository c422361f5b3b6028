package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/hupe1980/rtseg/row"
	"github.com/hupe1980/rtseg/schema"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Int63 returns a non-negative pseudo-random 63-bit integer.
func (r *RNG) Int63() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Int63()
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Zipf returns a Zipfian-distributed value in [0, n).
// s=1.0 gives standard Zipf, s=1.5 gives a heavy tail.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}
	return n - 1
}

// Presence returns n flags, each false with probability missingRate.
func (r *RNG) Presence(n int, missingRate float64) []bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	present := make([]bool, n)
	for i := range n {
		present[i] = r.rand.Float64() >= missingRate
	}
	return present
}

// GeneratorOption configures a RowGenerator.
type GeneratorOption func(*RowGenerator)

// WithNullRate sets the probability that a column is left out of a row.
func WithNullRate(rate float64) GeneratorOption {
	return func(g *RowGenerator) { g.nullRate = rate }
}

// WithCardinality bounds the distinct values per column. Values are drawn
// with a Zipf skew so that a few values dominate.
func WithCardinality(n int) GeneratorOption {
	return func(g *RowGenerator) { g.cardinality = n }
}

// WithMaxMultiValues bounds the length of multi-value entries.
func WithMaxMultiValues(n int) GeneratorOption {
	return func(g *RowGenerator) { g.maxMulti = n }
}

// RowGenerator produces rows matching a schema. Generated values already
// have the column's stored type, so they index without conversion.
type RowGenerator struct {
	rng         *RNG
	schema      *schema.Schema
	nullRate    float64
	cardinality int
	maxMulti    int
}

// NewRowGenerator creates a generator for s.
func NewRowGenerator(rng *RNG, s *schema.Schema, opts ...GeneratorOption) *RowGenerator {
	g := &RowGenerator{
		rng:         rng,
		schema:      s,
		cardinality: 100,
		maxMulti:    4,
	}
	for _, fn := range opts {
		fn(g)
	}
	return g
}

// Next returns a new random row. Columns are absent with the configured
// null rate.
func (g *RowGenerator) Next() *row.Row {
	r := row.New()
	g.Fill(r)
	return r
}

// Fill clears r and fills it with a random row.
func (g *RowGenerator) Fill(r *row.Row) {
	r.Clear()
	for i := range g.schema.Fields {
		f := &g.schema.Fields[i]
		if g.nullRate > 0 && g.rng.Float64() < g.nullRate {
			continue
		}
		r.PutValue(f.Name, g.Value(f))
	}
}

// Rows returns n random rows.
func (g *RowGenerator) Rows(n int) []*row.Row {
	out := make([]*row.Row, n)
	for i := range out {
		out[i] = g.Next()
	}
	return out
}

// Value returns a random value for f.
func (g *RowGenerator) Value(f *schema.FieldSpec) row.Value {
	if f.MultiValue {
		n := 1 + g.rng.Intn(g.maxMulti)
		vals := make([]row.Value, n)
		for i := range vals {
			vals[i] = g.scalar(f.DataType)
		}
		return row.Array(vals)
	}
	return g.scalar(f.DataType)
}

func (g *RowGenerator) scalar(dt schema.DataType) row.Value {
	k := g.rng.Zipf(g.cardinality, 1.1)
	switch dt.StoredType() {
	case schema.DataTypeInt:
		return row.Int(int32(k))
	case schema.DataTypeLong:
		if dt == schema.DataTypeTimestamp {
			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
			return row.Long(base + int64(k)*1000)
		}
		return row.Long(int64(k) * 1000)
	case schema.DataTypeFloat:
		return row.Float(float32(k) / 4)
	case schema.DataTypeDouble:
		return row.Double(float64(k) / 8)
	case schema.DataTypeBigDecimal:
		return row.BigDecimal(decimal.New(int64(k), -2))
	case schema.DataTypeBytes:
		return row.Bytes([]byte{byte(k), byte(k >> 8)})
	}
	if dt == schema.DataTypeJSON {
		return row.String(fmt.Sprintf(`{"k":%d}`, k))
	}
	return row.String(fmt.Sprintf("value-%04d", k))
}

// RowDiff returns a human-readable diff of two rows, or "" when they hold
// the same values and null set. Null columns are compared by presence only.
func RowDiff(want, got *row.Row) string {
	return cmp.Diff(snapshot(want), snapshot(got))
}

type rowSnapshot struct {
	Values map[string]any
	Nulls  []string
}

func snapshot(r *row.Row) rowSnapshot {
	if r == nil {
		return rowSnapshot{}
	}
	s := rowSnapshot{Values: make(map[string]any, r.Len())}
	r.Range(func(column string, v row.Value) bool {
		if r.IsNull(column) {
			return true
		}
		n := v.Native()
		if d, ok := n.(decimal.Decimal); ok {
			n = d.String()
		}
		s.Values[column] = n
		return true
	})
	s.Nulls = append(s.Nulls, r.NullFields()...)
	sort.Strings(s.Nulls)
	return s
}
