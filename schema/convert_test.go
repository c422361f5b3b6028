package schema

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rtseg/row"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name string
		in   row.Value
		dt   DataType
		want row.Value
	}{
		{"string to int", row.String(" 12 "), DataTypeInt, row.Int(12)},
		{"float string to long", row.String("3.0"), DataTypeLong, row.Long(3)},
		{"double to int truncates", row.Double(7.9), DataTypeInt, row.Int(7)},
		{"bool to long", row.Bool(true), DataTypeLong, row.Long(1)},
		{"long to float rounds", row.Double(0.1), DataTypeFloat, row.Float(0.1)},
		{"string to double", row.String("-2.5"), DataTypeDouble, row.Double(-2.5)},
		{"string to decimal", row.String("1.10"), DataTypeBigDecimal, row.BigDecimal(decimal.RequireFromString("1.1"))},
		{"string to boolean", row.String("true"), DataTypeBoolean, row.Int(1)},
		{"long to boolean", row.Long(0), DataTypeBoolean, row.Int(0)},
		{"rfc3339 to timestamp", row.String("2024-01-02T03:04:05Z"), DataTypeTimestamp,
			row.Long(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli())},
		{"millis to timestamp", row.Long(1700000000000), DataTypeTimestamp, row.Long(1700000000000)},
		{"long to string", row.Long(5), DataTypeString, row.String("5")},
		{"bytes to string", row.Bytes([]byte{0xca, 0xfe}), DataTypeString, row.String("cafe")},
		{"hex to bytes", row.String("cafe"), DataTypeBytes, row.Bytes([]byte{0xca, 0xfe})},
		{"map to json", row.Map(map[string]row.Value{"a": row.Long(1)}), DataTypeJSON, row.String(`{"a":1}`)},
		{"plain string to json", row.String("hi"), DataTypeJSON, row.String(`"hi"`)},
		{"json string kept", row.String(`[1,2]`), DataTypeJSON, row.String(`[1,2]`)},
		{"null stays null", row.Null(), DataTypeInt, row.Null()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.in, tt.dt)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestConvert_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   row.Value
		dt   DataType
	}{
		{"int overflow", row.Long(math.MaxInt32 + 1), DataTypeInt},
		{"not a number", row.String("abc"), DataTypeLong},
		{"nan to long", row.Double(math.NaN()), DataTypeLong},
		{"bad boolean", row.String("maybe"), DataTypeBoolean},
		{"bad hex", row.String("zz"), DataTypeBytes},
		{"array to scalar", row.Array([]row.Value{row.Long(1)}), DataTypeLong},
		{"float overflow", row.Double(math.MaxFloat64), DataTypeFloat},
		{"bad timestamp", row.String("yesterday"), DataTypeTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Convert(tt.in, tt.dt)
			assert.ErrorIs(t, err, ErrConversion)
		})
	}
}
