package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"

	"github.com/hupe1980/rtseg/row"
)

// ErrInvalidSchema is returned when a schema or table config fails
// validation.
var ErrInvalidSchema = errors.New("invalid schema")

// Schema is the ordered list of columns of a table.
//
// Call Validate (or use Parse/Load, which validate) before handing a Schema to
// the segment or the transform pipeline; it resolves the per-column defaults.
type Schema struct {
	Name   string      `json:"schemaName" toml:"name"`
	Fields []FieldSpec `json:"fields" toml:"fields"`

	byName   map[string]int
	defaults []row.Value
}

// New builds and validates a schema.
func New(name string, fields ...FieldSpec) (*Schema, error) {
	s := &Schema{Name: name, Fields: fields}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// MustNew is like New but panics on error. Intended for tests and static
// definitions.
func MustNew(name string, fields ...FieldSpec) *Schema {
	s, err := New(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks the schema and resolves the default null values.
func (s *Schema) Validate() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("%w: no fields", ErrInvalidSchema)
	}
	byName := make(map[string]int, len(s.Fields))
	defaults := make([]row.Value, len(s.Fields))
	for i := range s.Fields {
		f := &s.Fields[i]
		if err := f.validate(); err != nil {
			return err
		}
		if _, dup := byName[f.Name]; dup {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidSchema, f.Name)
		}
		byName[f.Name] = i
		defaults[i], _ = f.DefaultNull()
	}
	s.byName = byName
	s.defaults = defaults
	return nil
}

// Field returns the spec of a column.
func (s *Schema) Field(name string) (*FieldSpec, bool) {
	i, ok := s.index(name)
	if !ok {
		return nil, false
	}
	return &s.Fields[i], true
}

// HasColumn reports whether the schema declares the column.
func (s *Schema) HasColumn(name string) bool {
	_, ok := s.index(name)
	return ok
}

// Columns returns the column names in schema order.
func (s *Schema) Columns() []string {
	out := make([]string, len(s.Fields))
	for i := range s.Fields {
		out[i] = s.Fields[i].Name
	}
	return out
}

// DefaultNullValue returns the resolved placeholder for a column.
func (s *Schema) DefaultNullValue(name string) (row.Value, bool) {
	i, ok := s.index(name)
	if !ok {
		return row.Null(), false
	}
	if s.defaults == nil {
		v, err := s.Fields[i].DefaultNull()
		return v, err == nil
	}
	return s.defaults[i], true
}

// IsNullable reports whether nulls are tracked for the column.
func (s *Schema) IsNullable(name string) bool {
	f, ok := s.Field(name)
	return ok && !f.NotNull
}

func (s *Schema) index(name string) (int, bool) {
	if s.byName != nil {
		i, ok := s.byName[name]
		return i, ok
	}
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return i, true
		}
	}
	return 0, false
}

// Parse decodes and validates a JSON schema. Numbers in default values keep
// their full precision.
func Parse(data []byte) (*Schema, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads and validates a JSON schema.
func Decode(r io.Reader) (*Schema, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var s Schema
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads a JSON schema file.
func Load(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}
