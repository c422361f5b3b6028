package transform

import (
	"maps"
	"slices"

	json "github.com/goccy/go-json"

	"github.com/hupe1980/rtseg/row"
	"github.com/hupe1980/rtseg/schema"
)

// ComplexType flattens nested maps into delimited column names and expands
// configured array fields into one row per element.
//
// Given {"a": {"b": 1}, "items": [{"x": 1}, {"x": 2}]} with "items" unnested,
// it produces two rows {"a.b": 1, "items.x": 1} and {"a.b": 1, "items.x": 2}.
// Arrays of maps that are not unnested are serialized to JSON strings.
type ComplexType struct {
	unnest    []string
	delimiter string
}

// NewComplexType creates the transformer from cfg.
func NewComplexType(cfg *schema.ComplexTypeConfig) *ComplexType {
	ct := &ComplexType{delimiter: cfg.EffectiveDelimiter()}
	if cfg != nil {
		ct.unnest = slices.Clone(cfg.UnnestFields)
	}
	return ct
}

// Name returns the transformer name used in errors and logs.
func (t *ComplexType) Name() string { return "complex_type" }

// Expand returns the rows derived from r. When nothing is unnested the only
// row is r itself, flattened in place.
func (t *ComplexType) Expand(r *row.Row) []*row.Row {
	t.flatten(r)

	rows := []*row.Row{r}
	for _, field := range t.unnest {
		var next []*row.Row
		for _, cur := range rows {
			next = append(next, t.unnestField(cur, field)...)
		}
		rows = next
	}

	for _, cur := range rows {
		t.encodeNestedArrays(cur)
	}
	return rows
}

func (t *ComplexType) flatten(r *row.Row) {
	for _, col := range r.Columns() {
		v, _ := r.Value(col)
		m, ok := v.AsMap()
		if !ok {
			continue
		}
		r.Remove(col)
		t.flattenInto(r, col, m)
	}
}

func (t *ComplexType) flattenInto(r *row.Row, prefix string, m map[string]row.Value) {
	for _, k := range slices.Sorted(maps.Keys(m)) {
		name := prefix + t.delimiter + k
		if nested, ok := m[k].AsMap(); ok {
			t.flattenInto(r, name, nested)
			continue
		}
		r.PutValue(name, m[k])
	}
}

func (t *ComplexType) unnestField(r *row.Row, field string) []*row.Row {
	v, ok := r.Value(field)
	if !ok {
		return []*row.Row{r}
	}
	elems, ok := v.AsArray()
	if !ok {
		return []*row.Row{r}
	}
	if len(elems) == 0 {
		r.Remove(field)
		return []*row.Row{r}
	}

	out := make([]*row.Row, 0, len(elems))
	for i, e := range elems {
		dst := r
		if i < len(elems)-1 {
			dst = r.Clone()
		}
		dst.Remove(field)
		if m, ok := e.AsMap(); ok {
			t.flattenInto(dst, field, m)
		} else {
			dst.PutValue(field, e)
		}
		out = append(out, dst)
	}
	// r is reused for the last element; keep the input order.
	return out
}

func (t *ComplexType) encodeNestedArrays(r *row.Row) {
	for _, col := range r.Columns() {
		v, _ := r.Value(col)
		elems, ok := v.AsArray()
		if !ok || !slices.ContainsFunc(elems, isComplex) {
			continue
		}
		b, err := json.Marshal(v.Native())
		if err != nil {
			continue
		}
		r.PutValue(col, row.String(string(b)))
	}
}

func isComplex(v row.Value) bool {
	return v.Kind == row.KindMap || v.Kind == row.KindArray
}
