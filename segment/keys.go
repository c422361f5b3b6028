package segment

import (
	"cmp"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/hupe1980/rtseg/row"
	"github.com/hupe1980/rtseg/schema"
)

// keyCodec maps row values of one stored type to comparable index keys.
type keyCodec[K comparable] struct {
	kind    row.Kind
	integer bool
	toKey   func(row.Value) K
	fromKey func(K) row.Value
	compare func(a, b K) int
	size    func(K) int64
}

var (
	intKeys = keyCodec[int64]{
		kind:    row.KindInt,
		integer: true,
		toKey:   func(v row.Value) int64 { return v.I64 },
		fromKey: func(k int64) row.Value { return row.Int(int32(k)) },
		compare: cmp.Compare[int64],
	}
	longKeys = keyCodec[int64]{
		kind:    row.KindLong,
		integer: true,
		toKey:   func(v row.Value) int64 { return v.I64 },
		fromKey: row.Long,
		compare: cmp.Compare[int64],
	}
	floatKeys = keyCodec[float64]{
		kind:    row.KindFloat,
		toKey:   func(v row.Value) float64 { return v.F64 },
		fromKey: func(k float64) row.Value { return row.Float(float32(k)) },
		compare: cmp.Compare[float64],
	}
	doubleKeys = keyCodec[float64]{
		kind:    row.KindDouble,
		toKey:   func(v row.Value) float64 { return v.F64 },
		fromKey: row.Double,
		compare: cmp.Compare[float64],
	}
	// Decimals are keyed by their canonical string so that equal values
	// with different scales share one dictionary id.
	decimalKeys = keyCodec[string]{
		kind: row.KindBigDecimal,
		toKey: func(v row.Value) string {
			d, _ := v.AsDecimal()
			return d.String()
		},
		fromKey: func(k string) row.Value { return row.BigDecimal(decimal.RequireFromString(k)) },
		compare: func(a, b string) int {
			return decimal.RequireFromString(a).Cmp(decimal.RequireFromString(b))
		},
		size: func(k string) int64 { return int64(len(k)) },
	}
	stringKeys = keyCodec[string]{
		kind: row.KindString,
		toKey: func(v row.Value) string {
			s, _ := v.AsString()
			return s
		},
		fromKey: row.String,
		compare: cmp.Compare[string],
		size:    func(k string) int64 { return int64(len(k)) },
	}
	bytesKeys = keyCodec[string]{
		kind: row.KindBytes,
		toKey: func(v row.Value) string {
			b, _ := v.AsBytes()
			return string(b)
		},
		fromKey: func(k string) row.Value { return row.Bytes([]byte(k)) },
		compare: cmp.Compare[string],
		size:    func(k string) int64 { return int64(len(k)) },
	}
)

// normalize makes v carry the codec's kind. Numeric kinds convert with range
// checks; anything else is a type mismatch.
func (c *keyCodec[K]) normalize(v row.Value, dt schema.DataType) (row.Value, error) {
	if v.Kind == c.kind {
		if c.kind == row.KindFloat || c.kind == row.KindDouble {
			if math.IsNaN(v.F64) {
				return v, fmt.Errorf("%w: NaN is not indexable", ErrTypeMismatch)
			}
			if v.F64 == 0 {
				v.F64 = 0 // drop the sign of -0.0
			}
		}
		return v, nil
	}
	if v.Kind.IsNumeric() && c.kind.IsNumeric() {
		out, err := schema.Convert(v, dt.StoredType())
		if err != nil {
			return v, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
		}
		return c.normalize(out, dt)
	}
	return v, fmt.Errorf("%w: %s value for %s column", ErrTypeMismatch, v.Kind, dt)
}

// bound converts a predicate bound to a key. Fractional bounds on integer
// columns are rounded inward and become inclusive.
func (c *keyCodec[K]) bound(v *row.Value, dt schema.DataType, inclusive, upper bool) (*K, bool, error) {
	if v == nil {
		return nil, inclusive, nil
	}
	b := *v
	if c.integer && (b.Kind == row.KindFloat || b.Kind == row.KindDouble) && b.F64 != math.Trunc(b.F64) {
		if upper {
			b = row.Double(math.Floor(b.F64))
		} else {
			b = row.Double(math.Ceil(b.F64))
		}
		inclusive = true
	}
	if c.kind == row.KindString && b.Kind != row.KindString {
		// String columns compare against the rendered bound.
		b = row.String(b.String())
	}
	n, err := c.normalize(b, dt)
	if err != nil {
		return nil, inclusive, err
	}
	k := c.toKey(n)
	return &k, inclusive, nil
}
