package row

import (
	"maps"
	"slices"
	"strings"
)

// Row is a reusable, schema-shaped record.
//
// A Row holds column values plus the ordered set of columns whose value is
// null for this instance. A column in the null set carries a placeholder
// value that must not be interpreted.
//
// Rows are not safe for concurrent mutation. The ingestion driver owns a Row,
// fills it, hands it to the transform pipeline and the segment, and calls
// Clear before reusing it.
type Row struct {
	fields     map[string]Value
	nullFields []string
}

// New creates an empty Row.
func New() *Row {
	return &Row{fields: make(map[string]Value)}
}

// FromMap creates a Row holding the given values.
func FromMap(values map[string]Value) *Row {
	r := &Row{fields: make(map[string]Value, len(values))}
	maps.Copy(r.fields, values)
	return r
}

// PutValue stores a value for a column. The null set is not modified.
func (r *Row) PutValue(column string, v Value) {
	if r.fields == nil {
		r.fields = make(map[string]Value)
	}
	r.fields[column] = v
}

// PutDefaultNullValue stores the placeholder value for a column and marks
// the column null.
func (r *Row) PutDefaultNullValue(column string, v Value) {
	r.PutValue(column, v)
	r.AddNullField(column)
}

// AddNullField marks a column null.
func (r *Row) AddNullField(column string) {
	if !slices.Contains(r.nullFields, column) {
		r.nullFields = append(r.nullFields, column)
	}
}

// RemoveNullField clears the null marker of a column.
func (r *Row) RemoveNullField(column string) {
	if i := slices.Index(r.nullFields, column); i >= 0 {
		r.nullFields = slices.Delete(r.nullFields, i, i+1)
	}
}

// Value returns the stored value of a column.
func (r *Row) Value(column string) (Value, bool) {
	v, ok := r.fields[column]
	return v, ok
}

// Has reports whether a value is stored for the column.
func (r *Row) Has(column string) bool {
	_, ok := r.fields[column]
	return ok
}

// IsNull reports whether the column is in the null set.
func (r *Row) IsNull(column string) bool {
	return slices.Contains(r.nullFields, column)
}

// HasNullFields reports whether any column is marked null.
func (r *Row) HasNullFields() bool { return len(r.nullFields) > 0 }

// NullFields returns the null columns in the order they were marked.
func (r *Row) NullFields() []string {
	return slices.Clone(r.nullFields)
}

// Columns returns the stored column names in sorted order.
func (r *Row) Columns() []string {
	return slices.Sorted(maps.Keys(r.fields))
}

// Len returns the number of stored columns.
func (r *Row) Len() int { return len(r.fields) }

// Remove deletes a column value and its null marker.
func (r *Row) Remove(column string) {
	delete(r.fields, column)
	r.RemoveNullField(column)
}

// Range calls fn for each stored column until fn returns false.
// Iteration order is unspecified.
func (r *Row) Range(fn func(column string, v Value) bool) {
	for k, v := range r.fields {
		if !fn(k, v) {
			return
		}
	}
}

// Clear empties the row for reuse while keeping allocated capacity.
func (r *Row) Clear() {
	clear(r.fields)
	r.nullFields = r.nullFields[:0]
}

// CopyTo overwrites dst with a shallow copy of r.
func (r *Row) CopyTo(dst *Row) {
	dst.Clear()
	if dst.fields == nil {
		dst.fields = make(map[string]Value, len(r.fields))
	}
	maps.Copy(dst.fields, r.fields)
	dst.nullFields = append(dst.nullFields, r.nullFields...)
}

// Clone returns a deep copy of the row.
func (r *Row) Clone() *Row {
	c := &Row{
		fields:     make(map[string]Value, len(r.fields)),
		nullFields: slices.Clone(r.nullFields),
	}
	for k, v := range r.fields {
		c.fields[k] = v.Clone()
	}
	return c
}

// Equal reports whether two rows hold the same values and the same null set.
// The order in which columns were marked null is ignored.
func (r *Row) Equal(o *Row) bool {
	if len(r.fields) != len(o.fields) || len(r.nullFields) != len(o.nullFields) {
		return false
	}
	for k, v := range r.fields {
		ov, ok := o.fields[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	for _, c := range r.nullFields {
		if !o.IsNull(c) {
			return false
		}
	}
	return true
}

// String renders the row for logs and debugging.
func (r *Row) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, c := range r.Columns() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(c)
		sb.WriteByte('=')
		if r.IsNull(c) {
			sb.WriteString("<null>")
			continue
		}
		sb.WriteString(r.fields[c].String())
	}
	sb.WriteByte('}')
	return sb.String()
}
