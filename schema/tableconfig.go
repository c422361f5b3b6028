package schema

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	json "github.com/goccy/go-json"
)

// ErrorPolicy controls what the transform pipeline does with a row that has
// a value it cannot coerce or compute.
type ErrorPolicy string

const (
	// ErrorPolicyStrict drops the row and reports it as skipped.
	ErrorPolicyStrict ErrorPolicy = "strict"
	// ErrorPolicyLenient replaces the offending value with the column's
	// default, marks it null, and reports the row as incomplete.
	ErrorPolicyLenient ErrorPolicy = "lenient"
)

// Valid reports whether p is a known policy. The empty policy is valid and
// means strict.
func (p ErrorPolicy) Valid() bool {
	switch p {
	case "", ErrorPolicyStrict, ErrorPolicyLenient:
		return true
	}
	return false
}

// Lenient reports whether failed values are substituted instead of dropping
// the row.
func (p ErrorPolicy) Lenient() bool { return p == ErrorPolicyLenient }

// IndexingConfig selects the per-column index structures.
type IndexingConfig struct {
	NoDictionaryColumns  []string `json:"noDictionaryColumns,omitempty" toml:"no_dictionary_columns"`
	InvertedIndexColumns []string `json:"invertedIndexColumns,omitempty" toml:"inverted_index_columns"`
	RangeIndexColumns    []string `json:"rangeIndexColumns,omitempty" toml:"range_index_columns"`
	TextIndexColumns     []string `json:"textIndexColumns,omitempty" toml:"text_index_columns"`

	// NullHandlingEnabled toggles null-value vectors. Nil means enabled.
	NullHandlingEnabled *bool `json:"nullHandlingEnabled,omitempty" toml:"null_handling_enabled"`
}

// NullHandling reports whether null-value vectors are maintained.
func (c *IndexingConfig) NullHandling() bool {
	return c.NullHandlingEnabled == nil || *c.NullHandlingEnabled
}

// HasDictionary reports whether the column is dictionary encoded.
func (c *IndexingConfig) HasDictionary(column string) bool {
	return !slices.Contains(c.NoDictionaryColumns, column)
}

// HasInvertedIndex reports whether the column has an inverted index.
func (c *IndexingConfig) HasInvertedIndex(column string) bool {
	return slices.Contains(c.InvertedIndexColumns, column)
}

// HasRangeIndex reports whether the column has a range index.
func (c *IndexingConfig) HasRangeIndex(column string) bool {
	return slices.Contains(c.RangeIndexColumns, column)
}

// HasTextIndex reports whether the column has a text index.
func (c *IndexingConfig) HasTextIndex(column string) bool {
	return slices.Contains(c.TextIndexColumns, column)
}

// TransformConfig derives a column from an expression over the raw row.
type TransformConfig struct {
	Column     string `json:"columnName" toml:"column"`
	Expression string `json:"transformFunction" toml:"expression"`
}

// ComplexTypeConfig controls flattening of nested values.
type ComplexTypeConfig struct {
	// UnnestFields are array fields expanded into one row per element.
	UnnestFields []string `json:"fieldsToUnnest,omitempty" toml:"unnest_fields"`
	// Delimiter joins parent and child names of flattened maps. Default ".".
	Delimiter string `json:"delimiter,omitempty" toml:"delimiter"`
}

// EffectiveDelimiter returns Delimiter or ".".
func (c *ComplexTypeConfig) EffectiveDelimiter() string {
	if c == nil || c.Delimiter == "" {
		return "."
	}
	return c.Delimiter
}

// IngestionConfig configures the transform pipeline.
type IngestionConfig struct {
	Transforms       []TransformConfig  `json:"transformConfigs,omitempty" toml:"transforms"`
	FilterExpression string             `json:"filterFunction,omitempty" toml:"filter"`
	ComplexType      *ComplexTypeConfig `json:"complexTypeConfig,omitempty" toml:"complex_type"`
	ErrorPolicy      ErrorPolicy        `json:"errorPolicy,omitempty" toml:"error_policy"`
}

// TableConfig bundles the indexing and ingestion configuration of a table.
type TableConfig struct {
	Name      string          `json:"tableName" toml:"name"`
	Indexing  IndexingConfig  `json:"tableIndexConfig" toml:"indexing"`
	Ingestion IngestionConfig `json:"ingestionConfig" toml:"ingestion"`
}

// Validate checks the config against a schema.
func (c *TableConfig) Validate(s *Schema) error {
	if !c.Ingestion.ErrorPolicy.Valid() {
		return fmt.Errorf("%w: unknown error policy %q", ErrInvalidSchema, c.Ingestion.ErrorPolicy)
	}

	check := func(kind string, cols []string, ok func(*FieldSpec) error) error {
		for _, col := range cols {
			f, found := s.Field(col)
			if !found {
				return fmt.Errorf("%w: %s column %q not in schema", ErrInvalidSchema, kind, col)
			}
			if ok == nil {
				continue
			}
			if err := ok(f); err != nil {
				return fmt.Errorf("%w: %s column %q: %v", ErrInvalidSchema, kind, col, err)
			}
		}
		return nil
	}

	if err := check("no-dictionary", c.Indexing.NoDictionaryColumns, nil); err != nil {
		return err
	}
	if err := check("inverted index", c.Indexing.InvertedIndexColumns, func(f *FieldSpec) error {
		if !c.Indexing.HasDictionary(f.Name) && f.IsSingleValue() {
			return fmt.Errorf("requires a dictionary")
		}
		return nil
	}); err != nil {
		return err
	}
	if err := check("range index", c.Indexing.RangeIndexColumns, func(f *FieldSpec) error {
		if !f.DataType.IsNumeric() && f.DataType.StoredType() != DataTypeString {
			return fmt.Errorf("unsupported type %s", f.DataType)
		}
		if f.MultiValue {
			return fmt.Errorf("multi-value columns are not supported")
		}
		return nil
	}); err != nil {
		return err
	}
	if err := check("text index", c.Indexing.TextIndexColumns, func(f *FieldSpec) error {
		if f.DataType.StoredType() != DataTypeString || f.MultiValue {
			return fmt.Errorf("requires a single-value STRING column")
		}
		return nil
	}); err != nil {
		return err
	}

	for _, t := range c.Ingestion.Transforms {
		if !s.HasColumn(t.Column) {
			return fmt.Errorf("%w: transform column %q not in schema", ErrInvalidSchema, t.Column)
		}
		if strings.TrimSpace(t.Expression) == "" {
			return fmt.Errorf("%w: transform column %q has no expression", ErrInvalidSchema, t.Column)
		}
	}
	return nil
}

// ParseTableConfig decodes a JSON table config.
func ParseTableConfig(data []byte) (*TableConfig, error) {
	return DecodeTableConfig(bytes.NewReader(data))
}

// DecodeTableConfig reads a JSON table config.
func DecodeTableConfig(r io.Reader) (*TableConfig, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var c TableConfig
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: table config: %v", ErrInvalidSchema, err)
	}
	return &c, nil
}

// LoadTableConfig reads a JSON table config file.
func LoadTableConfig(path string) (*TableConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeTableConfig(f)
}
