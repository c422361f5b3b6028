package transform

import (
	"strings"

	"github.com/hupe1980/rtseg/row"
	"github.com/hupe1980/rtseg/schema"
)

// Sanitization bounds STRING, JSON and BYTES values: strings are cut at the
// first NUL character, and all three are truncated to the column's maximum
// length. Strings are cut on a rune boundary.
type Sanitization struct {
	fields []schema.FieldSpec
}

// NewSanitization creates the transformer for the variable-length columns of
// s.
func NewSanitization(s *schema.Schema) *Sanitization {
	t := &Sanitization{}
	for _, f := range s.Fields {
		switch f.DataType {
		case schema.DataTypeString, schema.DataTypeJSON, schema.DataTypeBytes:
			t.fields = append(t.fields, f)
		}
	}
	return t
}

// Name implements Transformer.
func (t *Sanitization) Name() string { return "sanitization" }

// Transform implements Transformer.
func (t *Sanitization) Transform(r *row.Row, c *Context) (bool, error) {
	for i := range t.fields {
		f := &t.fields[i]
		v, ok := r.Value(f.Name)
		if !ok {
			continue
		}
		limit := f.EffectiveMaxLength()
		if elems, isArray := v.AsArray(); isArray {
			var changed bool
			out := make([]row.Value, len(elems))
			for j, e := range elems {
				var ch bool
				out[j], ch = sanitize(e, limit)
				changed = changed || ch
			}
			if changed {
				r.PutValue(f.Name, row.Array(out))
				c.Sanitized++
			}
			continue
		}
		if out, changed := sanitize(v, limit); changed {
			r.PutValue(f.Name, out)
			c.Sanitized++
		}
	}
	return true, nil
}

// sanitize returns the bounded value and whether it changed.
func sanitize(v row.Value, limit int) (row.Value, bool) {
	switch v.Kind {
	case row.KindString:
		s, _ := v.AsString()
		out := s
		if i := strings.IndexByte(out, 0); i >= 0 {
			out = out[:i]
		}
		out = truncateString(out, limit)
		if len(out) == len(s) {
			return v, false
		}
		return row.String(out), true
	case row.KindBytes:
		b, _ := v.AsBytes()
		if len(b) <= limit {
			return v, false
		}
		return row.Bytes(b[:limit]), true
	}
	return v, false
}

// truncateString cuts s to at most limit runes.
func truncateString(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
