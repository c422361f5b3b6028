package transform

import (
	"fmt"

	"github.com/hupe1980/rtseg/row"
	"github.com/hupe1980/rtseg/schema"
)

// DataType coerces every declared column to its stored type. Single-value
// columns accept one-element arrays; multi-value columns accept scalars as
// one-element arrays. Null array elements are dropped.
type DataType struct {
	fields []schema.FieldSpec
}

// NewDataType creates the transformer for s.
func NewDataType(s *schema.Schema) *DataType {
	return &DataType{fields: s.Fields}
}

// Name implements Transformer.
func (t *DataType) Name() string { return "data_type" }

// Transform implements Transformer.
func (t *DataType) Transform(r *row.Row, c *Context) (bool, error) {
	for i := range t.fields {
		f := &t.fields[i]
		v, ok := r.Value(f.Name)
		if !ok || v.IsNull() || r.IsNull(f.Name) {
			continue
		}

		out, err := t.convert(f, v)
		if err != nil {
			if err := c.Fail(t.Name(), f.Name, fmt.Errorf("%w: %v", ErrMalformedRow, err)); err != nil {
				return false, err
			}
			nullify(r, f.Name)
			continue
		}
		if out.IsNull() {
			nullify(r, f.Name)
			continue
		}
		r.PutValue(f.Name, out)
	}
	return true, nil
}

func (t *DataType) convert(f *schema.FieldSpec, v row.Value) (row.Value, error) {
	if f.MultiValue {
		elems, ok := v.AsArray()
		if !ok {
			elems = []row.Value{v}
		}
		out := make([]row.Value, 0, len(elems))
		for _, e := range elems {
			if e.IsNull() {
				continue
			}
			if e.Kind == row.KindArray || e.Kind == row.KindMap {
				return row.Null(), fmt.Errorf("nested %s in multi-value column", e.Kind)
			}
			ce, err := schema.Convert(e, f.DataType)
			if err != nil {
				return row.Null(), err
			}
			out = append(out, ce)
		}
		if len(out) == 0 {
			return row.Null(), nil
		}
		return row.Array(out), nil
	}

	if elems, ok := v.AsArray(); ok && f.DataType != schema.DataTypeJSON {
		switch len(elems) {
		case 0:
			return row.Null(), nil
		case 1:
			v = elems[0]
		default:
			return row.Null(), fmt.Errorf("%d values for single-value column", len(elems))
		}
	}
	return schema.Convert(v, f.DataType)
}
