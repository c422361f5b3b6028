package transform

import (
	"math"

	"github.com/hupe1980/rtseg/row"
	"github.com/hupe1980/rtseg/schema"
)

// SpecialValue normalizes floating point values: -0.0 becomes 0.0 and NaN
// becomes null. NaN elements are removed from multi-value entries.
type SpecialValue struct {
	columns []string
}

// NewSpecialValue creates the transformer for the FLOAT and DOUBLE columns
// of s.
func NewSpecialValue(s *schema.Schema) *SpecialValue {
	t := &SpecialValue{}
	for _, f := range s.Fields {
		if f.DataType == schema.DataTypeFloat || f.DataType == schema.DataTypeDouble {
			t.columns = append(t.columns, f.Name)
		}
	}
	return t
}

// Name implements Transformer.
func (t *SpecialValue) Name() string { return "special_value" }

// Transform implements Transformer.
func (t *SpecialValue) Transform(r *row.Row, _ *Context) (bool, error) {
	for _, col := range t.columns {
		v, ok := r.Value(col)
		if !ok || r.IsNull(col) {
			continue
		}
		switch v.Kind {
		case row.KindFloat, row.KindDouble:
			if math.IsNaN(v.F64) {
				nullify(r, col)
			} else if v.F64 == 0 && math.Signbit(v.F64) {
				v.F64 = 0
				r.PutValue(col, v)
			}
		case row.KindArray:
			out := make([]row.Value, 0, len(v.A))
			for _, e := range v.A {
				if (e.Kind == row.KindFloat || e.Kind == row.KindDouble) && math.IsNaN(e.F64) {
					continue
				}
				if e.F64 == 0 {
					e.F64 = 0
				}
				out = append(out, e)
			}
			if len(out) == 0 {
				nullify(r, col)
				continue
			}
			r.PutValue(col, row.Array(out))
		}
	}
	return true, nil
}
