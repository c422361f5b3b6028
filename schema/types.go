package schema

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/hupe1980/rtseg/row"
)

// DataType is the logical type of a column.
type DataType uint8

const (
	DataTypeUnknown DataType = iota
	DataTypeInt
	DataTypeLong
	DataTypeFloat
	DataTypeDouble
	DataTypeBigDecimal
	DataTypeBoolean
	DataTypeTimestamp
	DataTypeString
	DataTypeJSON
	DataTypeBytes
)

var dataTypeNames = map[DataType]string{
	DataTypeInt:        "INT",
	DataTypeLong:       "LONG",
	DataTypeFloat:      "FLOAT",
	DataTypeDouble:     "DOUBLE",
	DataTypeBigDecimal: "BIG_DECIMAL",
	DataTypeBoolean:    "BOOLEAN",
	DataTypeTimestamp:  "TIMESTAMP",
	DataTypeString:     "STRING",
	DataTypeJSON:       "JSON",
	DataTypeBytes:      "BYTES",
}

// String returns the canonical upper-case name.
func (t DataType) String() string {
	if n, ok := dataTypeNames[t]; ok {
		return n
	}
	return "UNKNOWN"
}

// ParseDataType parses a canonical data type name (case-insensitive).
func ParseDataType(s string) (DataType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for t, n := range dataTypeNames {
		if n == s {
			return t, nil
		}
	}
	return DataTypeUnknown, fmt.Errorf("unknown data type %q", s)
}

// StoredType returns the physical type used by indexes: BOOLEAN is stored as
// INT, TIMESTAMP as LONG and JSON as STRING.
func (t DataType) StoredType() DataType {
	switch t {
	case DataTypeBoolean:
		return DataTypeInt
	case DataTypeTimestamp:
		return DataTypeLong
	case DataTypeJSON:
		return DataTypeString
	}
	return t
}

// Kind returns the row.Kind carried by values of this type after the
// transform pipeline has run.
func (t DataType) Kind() row.Kind {
	switch t.StoredType() {
	case DataTypeInt:
		return row.KindInt
	case DataTypeLong:
		return row.KindLong
	case DataTypeFloat:
		return row.KindFloat
	case DataTypeDouble:
		return row.KindDouble
	case DataTypeBigDecimal:
		return row.KindBigDecimal
	case DataTypeString:
		return row.KindString
	case DataTypeBytes:
		return row.KindBytes
	}
	return row.KindNull
}

// IsNumeric reports whether values of the type are ordered numbers.
func (t DataType) IsNumeric() bool {
	switch t.StoredType() {
	case DataTypeInt, DataTypeLong, DataTypeFloat, DataTypeDouble, DataTypeBigDecimal:
		return true
	}
	return false
}

// IsFixedWidth reports whether the stored type has a fixed binary width.
func (t DataType) IsFixedWidth() bool {
	switch t.StoredType() {
	case DataTypeInt, DataTypeLong, DataTypeFloat, DataTypeDouble:
		return true
	}
	return false
}

// MarshalJSON implements json.Marshaler.
func (t DataType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *DataType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dt, err := ParseDataType(s)
	if err != nil {
		return err
	}
	*t = dt
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler (TOML, flags).
func (t *DataType) UnmarshalText(text []byte) error {
	dt, err := ParseDataType(string(text))
	if err != nil {
		return err
	}
	*t = dt
	return nil
}

// FieldType is the role of a column in the schema.
type FieldType uint8

const (
	FieldTypeDimension FieldType = iota
	FieldTypeMetric
	FieldTypeDateTime
)

// String returns the canonical upper-case name.
func (f FieldType) String() string {
	switch f {
	case FieldTypeMetric:
		return "METRIC"
	case FieldTypeDateTime:
		return "DATE_TIME"
	default:
		return "DIMENSION"
	}
}

// MarshalJSON implements json.Marshaler.
func (f FieldType) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FieldType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return f.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler (TOML, flags).
func (f *FieldType) UnmarshalText(text []byte) error {
	switch s := string(text); strings.ToUpper(s) {
	case "", "DIMENSION":
		*f = FieldTypeDimension
	case "METRIC":
		*f = FieldTypeMetric
	case "DATE_TIME", "DATETIME", "TIME":
		*f = FieldTypeDateTime
	default:
		return fmt.Errorf("unknown field type %q", s)
	}
	return nil
}
