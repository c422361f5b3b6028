package transform

import (
	"github.com/hupe1980/rtseg/row"
	"github.com/hupe1980/rtseg/schema"
)

// NullValue fills every declared column. A missing or null value is replaced
// by the column default; the column is marked null unless it is declared
// not-null. Columns the schema does not declare are removed.
type NullValue struct {
	schema *schema.Schema
}

// NewNullValue creates the transformer for s.
func NewNullValue(s *schema.Schema) *NullValue {
	return &NullValue{schema: s}
}

// Name implements Transformer.
func (t *NullValue) Name() string { return "null_value" }

// Transform implements Transformer.
func (t *NullValue) Transform(r *row.Row, _ *Context) (bool, error) {
	for _, col := range r.Columns() {
		if !t.schema.HasColumn(col) {
			r.Remove(col)
		}
	}
	for _, col := range r.NullFields() {
		if !t.schema.HasColumn(col) {
			r.RemoveNullField(col)
		}
	}

	for i := range t.schema.Fields {
		f := &t.schema.Fields[i]
		v, ok := r.Value(f.Name)
		null := !ok || v.IsNull() || r.IsNull(f.Name)
		if !null && f.MultiValue {
			if a, isArray := v.AsArray(); isArray && len(a) == 0 {
				null = true
			}
		}
		if !null {
			continue
		}

		def, _ := t.schema.DefaultNullValue(f.Name)
		if f.NotNull {
			r.PutValue(f.Name, def)
			r.RemoveNullField(f.Name)
			continue
		}
		r.PutDefaultNullValue(f.Name, def)
	}
	return true, nil
}
