package schema

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rtseg/row"
)

const eventsSchema = `{
  "schemaName": "events",
  "fields": [
    {"name": "user", "dataType": "STRING"},
    {"name": "tags", "dataType": "STRING", "multiValue": true},
    {"name": "clicks", "dataType": "LONG", "fieldType": "METRIC"},
    {"name": "score", "dataType": "INT", "notNull": true, "defaultNullValue": 0},
    {"name": "big", "dataType": "LONG", "defaultNullValue": 9007199254740993},
    {"name": "ts", "dataType": "TIMESTAMP", "fieldType": "DATE_TIME"}
  ]
}`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(eventsSchema))
	require.NoError(t, err)

	assert.Equal(t, "events", s.Name)
	assert.Equal(t, []string{"user", "tags", "clicks", "score", "big", "ts"}, s.Columns())

	f, ok := s.Field("tags")
	require.True(t, ok)
	assert.False(t, f.IsSingleValue())
	assert.Equal(t, DataTypeString, f.DataType)

	assert.True(t, s.IsNullable("user"))
	assert.False(t, s.IsNullable("score"))
	assert.False(t, s.IsNullable("missing"))

	v, ok := s.DefaultNullValue("big")
	require.True(t, ok)
	assert.True(t, row.Long(9007199254740993).Equal(v), "got %s", v)
}

func TestDefaultNullValues(t *testing.T) {
	tests := []struct {
		name string
		spec FieldSpec
		want row.Value
	}{
		{"int dimension", FieldSpec{Name: "c", DataType: DataTypeInt}, row.Int(math.MinInt32)},
		{"long dimension", FieldSpec{Name: "c", DataType: DataTypeLong}, row.Long(math.MinInt64)},
		{"double dimension", FieldSpec{Name: "c", DataType: DataTypeDouble}, row.Double(math.Inf(-1))},
		{"float dimension", FieldSpec{Name: "c", DataType: DataTypeFloat}, row.Float(float32(math.Inf(-1)))},
		{"string dimension", FieldSpec{Name: "c", DataType: DataTypeString}, row.String("null")},
		{"json dimension", FieldSpec{Name: "c", DataType: DataTypeJSON}, row.String("null")},
		{"boolean", FieldSpec{Name: "c", DataType: DataTypeBoolean}, row.Int(0)},
		{"timestamp", FieldSpec{Name: "c", DataType: DataTypeTimestamp, FieldType: FieldTypeDateTime}, row.Long(0)},
		{"bytes", FieldSpec{Name: "c", DataType: DataTypeBytes}, row.Bytes([]byte{})},
		{"big decimal", FieldSpec{Name: "c", DataType: DataTypeBigDecimal}, row.BigDecimal(decimal.Zero)},
		{"long metric", FieldSpec{Name: "c", DataType: DataTypeLong, FieldType: FieldTypeMetric}, row.Long(0)},
		{"double metric", FieldSpec{Name: "c", DataType: DataTypeDouble, FieldType: FieldTypeMetric}, row.Double(0)},
		{"explicit", FieldSpec{Name: "c", DataType: DataTypeInt, DefaultNullValue: "42"}, row.Int(42)},
		{"explicit boolean", FieldSpec{Name: "c", DataType: DataTypeBoolean, DefaultNullValue: true}, row.Int(1)},
		{"multi value", FieldSpec{Name: "c", DataType: DataTypeString, MultiValue: true}, row.Array([]row.Value{row.String("null")})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.spec.DefaultNull()
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		fields []FieldSpec
	}{
		{"empty", nil},
		{"no name", []FieldSpec{{DataType: DataTypeInt}}},
		{"no type", []FieldSpec{{Name: "a"}}},
		{"duplicate", []FieldSpec{{Name: "a", DataType: DataTypeInt}, {Name: "a", DataType: DataTypeLong}}},
		{"mv metric", []FieldSpec{{Name: "a", DataType: DataTypeInt, FieldType: FieldTypeMetric, MultiValue: true}}},
		{"string metric", []FieldSpec{{Name: "a", DataType: DataTypeString, FieldType: FieldTypeMetric}}},
		{"bad default", []FieldSpec{{Name: "a", DataType: DataTypeInt, DefaultNullValue: "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("t", tt.fields...)
			assert.ErrorIs(t, err, ErrInvalidSchema)
		})
	}
}

func TestParse_UnknownType(t *testing.T) {
	_, err := Parse([]byte(`{"schemaName":"x","fields":[{"name":"a","dataType":"UUID"}]}`))
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestDataType(t *testing.T) {
	assert.Equal(t, DataTypeInt, DataTypeBoolean.StoredType())
	assert.Equal(t, DataTypeLong, DataTypeTimestamp.StoredType())
	assert.Equal(t, DataTypeString, DataTypeJSON.StoredType())
	assert.Equal(t, row.KindInt, DataTypeBoolean.Kind())
	assert.True(t, DataTypeBigDecimal.IsNumeric())
	assert.False(t, DataTypeBigDecimal.IsFixedWidth())

	dt, err := ParseDataType("big_decimal")
	require.NoError(t, err)
	assert.Equal(t, DataTypeBigDecimal, dt)
}
