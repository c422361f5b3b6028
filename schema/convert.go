package schema

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/hupe1980/rtseg/row"
)

// ErrConversion is returned when a value cannot be represented in the
// requested data type.
var ErrConversion = errors.New("value conversion failed")

// Convert coerces a scalar value to the stored representation of dt.
// Null stays null. Arrays and maps are rejected; callers convert multi-value
// entries element-wise.
func Convert(v row.Value, dt DataType) (row.Value, error) {
	if v.IsNull() {
		return v, nil
	}
	if v.Kind == row.KindArray || v.Kind == row.KindMap {
		if dt == DataTypeJSON {
			return toJSON(v)
		}
		return row.Null(), fmt.Errorf("%w: %s to %s", ErrConversion, v.Kind, dt)
	}

	switch dt {
	case DataTypeInt:
		i, err := toInt64(v)
		if err != nil {
			return row.Null(), err
		}
		if i < math.MinInt32 || i > math.MaxInt32 {
			return row.Null(), fmt.Errorf("%w: %d overflows INT", ErrConversion, i)
		}
		return row.Int(int32(i)), nil
	case DataTypeLong:
		i, err := toInt64(v)
		if err != nil {
			return row.Null(), err
		}
		return row.Long(i), nil
	case DataTypeFloat:
		f, err := toFloat64(v)
		if err != nil {
			return row.Null(), err
		}
		if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
			return row.Null(), fmt.Errorf("%w: %g overflows FLOAT", ErrConversion, f)
		}
		return row.Float(float32(f)), nil
	case DataTypeDouble:
		f, err := toFloat64(v)
		if err != nil {
			return row.Null(), err
		}
		return row.Double(f), nil
	case DataTypeBigDecimal:
		d, err := toDecimal(v)
		if err != nil {
			return row.Null(), err
		}
		return row.BigDecimal(d), nil
	case DataTypeBoolean:
		b, err := toBool(v)
		if err != nil {
			return row.Null(), err
		}
		if b {
			return row.Int(1), nil
		}
		return row.Int(0), nil
	case DataTypeTimestamp:
		ms, err := toMillis(v)
		if err != nil {
			return row.Null(), err
		}
		return row.Long(ms), nil
	case DataTypeString:
		return row.String(toString(v)), nil
	case DataTypeJSON:
		if v.Kind == row.KindString {
			s, _ := v.AsString()
			if !json.Valid([]byte(s)) {
				// Plain strings are stored as JSON string literals.
				return toJSON(v)
			}
			return v, nil
		}
		return toJSON(v)
	case DataTypeBytes:
		return toBytes(v)
	}
	return row.Null(), fmt.Errorf("%w: unknown data type %s", ErrConversion, dt)
}

func toInt64(v row.Value) (int64, error) {
	switch v.Kind {
	case row.KindInt, row.KindLong:
		return v.I64, nil
	case row.KindFloat, row.KindDouble:
		return floatToInt64(v.F64)
	case row.KindBigDecimal:
		d, _ := v.AsDecimal()
		if !d.Equal(d.Truncate(0)) {
			return floatToInt64(d.InexactFloat64())
		}
		if d.LessThan(decimal.NewFromInt(math.MinInt64)) || d.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
			return 0, fmt.Errorf("%w: %s overflows LONG", ErrConversion, d)
		}
		return d.IntPart(), nil
	case row.KindBool:
		if v.B {
			return 1, nil
		}
		return 0, nil
	case row.KindString:
		s, _ := v.AsString()
		s = strings.TrimSpace(s)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrConversion, s)
		}
		return floatToInt64(f)
	}
	return 0, fmt.Errorf("%w: %s to integer", ErrConversion, v.Kind)
}

func floatToInt64(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %g is not a representable integer", ErrConversion, f)
	}
	return int64(f), nil
}

func toFloat64(v row.Value) (float64, error) {
	if v.Kind == row.KindString {
		s, _ := v.AsString()
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrConversion, s)
		}
		return f, nil
	}
	if f, ok := v.Float64(); ok {
		return f, nil
	}
	return 0, fmt.Errorf("%w: %s to floating point", ErrConversion, v.Kind)
}

func toDecimal(v row.Value) (decimal.Decimal, error) {
	switch v.Kind {
	case row.KindBigDecimal:
		d, _ := v.AsDecimal()
		return d, nil
	case row.KindInt, row.KindLong:
		return decimal.NewFromInt(v.I64), nil
	case row.KindFloat, row.KindDouble:
		if math.IsNaN(v.F64) || math.IsInf(v.F64, 0) {
			return decimal.Zero, fmt.Errorf("%w: %g to BIG_DECIMAL", ErrConversion, v.F64)
		}
		return decimal.NewFromFloat(v.F64), nil
	case row.KindBool:
		if v.B {
			return decimal.NewFromInt(1), nil
		}
		return decimal.Zero, nil
	case row.KindString:
		s, _ := v.AsString()
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %q is not a decimal", ErrConversion, s)
		}
		return d, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s to BIG_DECIMAL", ErrConversion, v.Kind)
}

func toBool(v row.Value) (bool, error) {
	switch v.Kind {
	case row.KindBool:
		return v.B, nil
	case row.KindInt, row.KindLong:
		return v.I64 != 0, nil
	case row.KindFloat, row.KindDouble:
		return v.F64 != 0, nil
	case row.KindString:
		s, _ := v.AsString()
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a boolean", ErrConversion, s)
		}
		return b, nil
	}
	return false, fmt.Errorf("%w: %s to BOOLEAN", ErrConversion, v.Kind)
}

// toMillis accepts epoch milliseconds or an RFC 3339 timestamp.
func toMillis(v row.Value) (int64, error) {
	if v.Kind == row.KindString {
		s, _ := v.AsString()
		s = strings.TrimSpace(s)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999", time.DateOnly} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UnixMilli(), nil
			}
		}
		return 0, fmt.Errorf("%w: %q is not a timestamp", ErrConversion, s)
	}
	return toInt64(v)
}

func toString(v row.Value) string {
	switch v.Kind {
	case row.KindString:
		s, _ := v.AsString()
		return s
	case row.KindBytes:
		b, _ := v.AsBytes()
		return hex.EncodeToString(b)
	}
	return v.String()
}

func toBytes(v row.Value) (row.Value, error) {
	switch v.Kind {
	case row.KindBytes:
		return v, nil
	case row.KindString:
		s, _ := v.AsString()
		b, err := hex.DecodeString(s)
		if err != nil {
			return row.Null(), fmt.Errorf("%w: %q is not hex encoded", ErrConversion, s)
		}
		return row.Bytes(b), nil
	}
	return row.Null(), fmt.Errorf("%w: %s to BYTES", ErrConversion, v.Kind)
}

func toJSON(v row.Value) (row.Value, error) {
	data, err := json.Marshal(jsonNative(v))
	if err != nil {
		return row.Null(), fmt.Errorf("%w: %v", ErrConversion, err)
	}
	return row.String(string(data)), nil
}

func jsonNative(v row.Value) any {
	n := v.Native()
	if d, ok := n.(decimal.Decimal); ok {
		return json.Number(d.String())
	}
	return n
}
