package schema

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/hupe1980/rtseg/row"
)

// DefaultMaxLength is the maximum length of STRING/JSON/BYTES values when a
// field does not specify one.
const DefaultMaxLength = 512

// FieldSpec describes one column.
type FieldSpec struct {
	Name      string    `json:"name" toml:"name"`
	DataType  DataType  `json:"dataType" toml:"data_type"`
	FieldType FieldType `json:"fieldType,omitempty" toml:"field_type"`

	// MultiValue marks the column as holding an ordered list of values per
	// row.
	MultiValue bool `json:"multiValue,omitempty" toml:"multi_value"`

	// NotNull disables null tracking for the column; missing values are
	// replaced by the default null value and are not marked null.
	NotNull bool `json:"notNull,omitempty" toml:"not_null"`

	// DefaultNullValue overrides the built-in placeholder used when the
	// column is null. It is coerced to DataType during validation.
	DefaultNullValue any `json:"defaultNullValue,omitempty" toml:"default_null_value"`

	// MaxLength bounds STRING/JSON/BYTES values; 0 means DefaultMaxLength.
	MaxLength int `json:"maxLength,omitempty" toml:"max_length"`
}

// IsSingleValue reports whether the column holds one value per row.
func (f *FieldSpec) IsSingleValue() bool { return !f.MultiValue }

// EffectiveMaxLength returns MaxLength or DefaultMaxLength.
func (f *FieldSpec) EffectiveMaxLength() int {
	if f.MaxLength > 0 {
		return f.MaxLength
	}
	return DefaultMaxLength
}

// DefaultNull resolves the placeholder stored for a null entry of this
// column. For multi-value columns it is a one-element array.
func (f *FieldSpec) DefaultNull() (row.Value, error) {
	var v row.Value
	if f.DefaultNullValue != nil {
		raw, err := row.FromNative(f.DefaultNullValue)
		if err != nil {
			return row.Null(), fmt.Errorf("column %q: default null value: %w", f.Name, err)
		}
		v, err = Convert(raw, f.DataType)
		if err != nil {
			return row.Null(), fmt.Errorf("column %q: default null value: %w", f.Name, err)
		}
	} else {
		v = builtinDefault(f.DataType, f.FieldType)
	}
	if f.MultiValue {
		return row.Array([]row.Value{v}), nil
	}
	return v, nil
}

// builtinDefault returns the type's placeholder. Metrics default to zero;
// dimensions and time columns to a sentinel distinguishable from real data.
func builtinDefault(dt DataType, ft FieldType) row.Value {
	if ft == FieldTypeMetric {
		switch dt {
		case DataTypeInt:
			return row.Int(0)
		case DataTypeLong:
			return row.Long(0)
		case DataTypeFloat:
			return row.Float(0)
		case DataTypeDouble:
			return row.Double(0)
		case DataTypeBigDecimal:
			return row.BigDecimal(decimal.Zero)
		case DataTypeBytes:
			return row.Bytes([]byte{})
		}
	}
	switch dt {
	case DataTypeInt:
		return row.Int(math.MinInt32)
	case DataTypeLong:
		return row.Long(math.MinInt64)
	case DataTypeFloat:
		return row.Float(float32(math.Inf(-1)))
	case DataTypeDouble:
		return row.Double(math.Inf(-1))
	case DataTypeBigDecimal:
		return row.BigDecimal(decimal.Zero)
	case DataTypeBoolean:
		return row.Int(0)
	case DataTypeTimestamp:
		return row.Long(0)
	case DataTypeString, DataTypeJSON:
		return row.String("null")
	case DataTypeBytes:
		return row.Bytes([]byte{})
	}
	return row.Null()
}

func (f *FieldSpec) validate() error {
	if f.Name == "" {
		return fmt.Errorf("%w: field without name", ErrInvalidSchema)
	}
	if f.DataType == DataTypeUnknown {
		return fmt.Errorf("%w: column %q has no data type", ErrInvalidSchema, f.Name)
	}
	if f.FieldType == FieldTypeMetric && f.MultiValue {
		return fmt.Errorf("%w: metric column %q cannot be multi-value", ErrInvalidSchema, f.Name)
	}
	if f.FieldType == FieldTypeMetric && !f.DataType.IsNumeric() && f.DataType != DataTypeBytes {
		return fmt.Errorf("%w: metric column %q must be numeric", ErrInvalidSchema, f.Name)
	}
	if f.MaxLength < 0 {
		return fmt.Errorf("%w: column %q has negative max length", ErrInvalidSchema, f.Name)
	}
	if _, err := f.DefaultNull(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return nil
}
