package row

import (
	"bytes"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Kind identifies the concrete type stored in a Value.
type Kind uint8

const (
	// KindNull represents an absent or null value.
	KindNull Kind = iota
	// KindInt represents a 32-bit integer (stored widened to int64).
	KindInt
	// KindLong represents a 64-bit integer.
	KindLong
	// KindFloat represents a 32-bit float (stored widened to float64).
	KindFloat
	// KindDouble represents a 64-bit float.
	KindDouble
	// KindBigDecimal represents an arbitrary precision decimal.
	KindBigDecimal
	// KindBool represents a boolean.
	KindBool
	// KindString represents a UTF-8 string.
	KindString
	// KindBytes represents an opaque byte string.
	KindBytes
	// KindArray represents a multi-value entry.
	KindArray
	// KindMap represents a nested object. Only raw rows carry maps; the
	// transform pipeline flattens them before indexing.
	KindMap
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindBigDecimal:
		return "big_decimal"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "invalid"
	}
}

// IsNumeric reports whether the kind holds a number.
func (k Kind) IsNumeric() bool {
	switch k {
	case KindInt, KindLong, KindFloat, KindDouble, KindBigDecimal:
		return true
	}
	return false
}

// Value is a small typed value stored in rows.
//
// The zero Value is a null value. Values are immutable by convention: the
// array and map payloads must not be mutated after construction.
type Value struct {
	Kind Kind
	I64  int64
	F64  float64
	B    bool
	A    []Value

	str string
	bin []byte
	dec decimal.Decimal
	m   map[string]Value
}

// Null returns a null Value.
func Null() Value { return Value{Kind: KindNull} }

// Int returns a 32-bit integer Value.
func Int(v int32) Value { return Value{Kind: KindInt, I64: int64(v)} }

// Long returns a 64-bit integer Value.
func Long(v int64) Value { return Value{Kind: KindLong, I64: v} }

// Float returns a 32-bit float Value.
func Float(v float32) Value { return Value{Kind: KindFloat, F64: float64(v)} }

// Double returns a 64-bit float Value.
func Double(v float64) Value { return Value{Kind: KindDouble, F64: v} }

// BigDecimal returns a decimal Value.
func BigDecimal(v decimal.Decimal) Value { return Value{Kind: KindBigDecimal, dec: v} }

// Bool returns a boolean Value.
func Bool(v bool) Value { return Value{Kind: KindBool, B: v} }

// String returns a string Value.
func String(v string) Value { return Value{Kind: KindString, str: v} }

// Bytes returns a bytes Value. The slice is retained, not copied.
func Bytes(v []byte) Value { return Value{Kind: KindBytes, bin: v} }

// Array returns a multi-value Value.
func Array(v []Value) Value { return Value{Kind: KindArray, A: v} }

// Map returns a nested object Value.
func Map(v map[string]Value) Value { return Value{Kind: KindMap, m: v} }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// AsInt64 returns the integer value if Kind is KindInt or KindLong.
func (v Value) AsInt64() (int64, bool) {
	if v.Kind != KindInt && v.Kind != KindLong {
		return 0, false
	}
	return v.I64, true
}

// AsFloat64 returns the float value if Kind is KindFloat or KindDouble.
func (v Value) AsFloat64() (float64, bool) {
	if v.Kind != KindFloat && v.Kind != KindDouble {
		return 0, false
	}
	return v.F64, true
}

// AsDecimal returns the decimal value if Kind is KindBigDecimal.
func (v Value) AsDecimal() (decimal.Decimal, bool) {
	if v.Kind != KindBigDecimal {
		return decimal.Zero, false
	}
	return v.dec, true
}

// AsBool returns the boolean value if Kind is KindBool.
func (v Value) AsBool() (bool, bool) {
	if v.Kind != KindBool {
		return false, false
	}
	return v.B, true
}

// AsString returns the string value if Kind is KindString.
func (v Value) AsString() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsBytes returns the byte value if Kind is KindBytes.
func (v Value) AsBytes() ([]byte, bool) {
	if v.Kind != KindBytes {
		return nil, false
	}
	return v.bin, true
}

// AsArray returns the elements if Kind is KindArray.
func (v Value) AsArray() ([]Value, bool) {
	if v.Kind != KindArray {
		return nil, false
	}
	return v.A, true
}

// AsMap returns the object if Kind is KindMap.
func (v Value) AsMap() (map[string]Value, bool) {
	if v.Kind != KindMap {
		return nil, false
	}
	return v.m, true
}

// Float64 converts any numeric value to float64.
func (v Value) Float64() (float64, bool) {
	switch v.Kind {
	case KindInt, KindLong:
		return float64(v.I64), true
	case KindFloat, KindDouble:
		return v.F64, true
	case KindBigDecimal:
		f, _ := v.dec.Float64()
		return f, true
	case KindBool:
		if v.B {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Equal reports whether two values have the same kind and payload.
// NaN compares equal to NaN so that round-trip checks are reflexive.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindInt, KindLong:
		return v.I64 == o.I64
	case KindFloat, KindDouble:
		if math.IsNaN(v.F64) && math.IsNaN(o.F64) {
			return true
		}
		return v.F64 == o.F64
	case KindBigDecimal:
		return v.dec.Equal(o.dec)
	case KindBool:
		return v.B == o.B
	case KindString:
		return v.str == o.str
	case KindBytes:
		return bytes.Equal(v.bin, o.bin)
	case KindArray:
		return slices.EqualFunc(v.A, o.A, Value.Equal)
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, a := range v.m {
			b, ok := o.m[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	}
	return false
}

// Compare orders two values. Numeric kinds compare by magnitude across kinds;
// otherwise values of different kinds order by kind.
func (v Value) Compare(o Value) int {
	if v.Kind.IsNumeric() && o.Kind.IsNumeric() {
		return compareNumeric(v, o)
	}
	if v.Kind != o.Kind {
		return cmpOrdered(v.Kind, o.Kind)
	}
	switch v.Kind {
	case KindBool:
		switch {
		case v.B == o.B:
			return 0
		case !v.B:
			return -1
		default:
			return 1
		}
	case KindString:
		return strings.Compare(v.str, o.str)
	case KindBytes:
		return bytes.Compare(v.bin, o.bin)
	case KindArray:
		return slices.CompareFunc(v.A, o.A, Value.Compare)
	}
	return 0
}

func compareNumeric(a, b Value) int {
	switch {
	case (a.Kind == KindInt || a.Kind == KindLong) && (b.Kind == KindInt || b.Kind == KindLong):
		return cmpOrdered(a.I64, b.I64)
	case a.Kind == KindBigDecimal || b.Kind == KindBigDecimal:
		return toDecimal(a).Cmp(toDecimal(b))
	default:
		af, _ := a.Float64()
		bf, _ := b.Float64()
		return cmpOrdered(af, bf)
	}
}

func toDecimal(v Value) decimal.Decimal {
	switch v.Kind {
	case KindBigDecimal:
		return v.dec
	case KindInt, KindLong:
		return decimal.NewFromInt(v.I64)
	default:
		return decimal.NewFromFloat(v.F64)
	}
}

func cmpOrdered[T int64 | float64 | Kind](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Clone returns a deep copy of the value.
func (v Value) Clone() Value {
	switch v.Kind {
	case KindBytes:
		v.bin = slices.Clone(v.bin)
	case KindArray:
		a := make([]Value, len(v.A))
		for i := range v.A {
			a[i] = v.A[i].Clone()
		}
		v.A = a
	case KindMap:
		m := make(map[string]Value, len(v.m))
		for k, e := range v.m {
			m[k] = e.Clone()
		}
		v.m = m
	}
	return v
}

// String renders the value for logs and debugging.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindInt, KindLong:
		return strconv.FormatInt(v.I64, 10)
	case KindFloat:
		return strconv.FormatFloat(v.F64, 'g', -1, 32)
	case KindDouble:
		return strconv.FormatFloat(v.F64, 'g', -1, 64)
	case KindBigDecimal:
		return v.dec.String()
	case KindBool:
		return strconv.FormatBool(v.B)
	case KindString:
		return v.str
	case KindBytes:
		return fmt.Sprintf("%x", v.bin)
	case KindArray:
		parts := make([]string, len(v.A))
		for i := range v.A {
			parts[i] = v.A[i].String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ":" + v.m[k].String()
		}
		return "{" + strings.Join(parts, ",") + "}"
	}
	return "invalid"
}

// jsonValue is the stable wire form of a Value.
type jsonValue struct {
	Kind Kind             `json:"k"`
	I64  int64            `json:"i,omitempty"`
	F64  *float64         `json:"f,omitempty"`
	B    bool             `json:"b,omitempty"`
	S    string           `json:"s,omitempty"`
	Bin  []byte           `json:"x,omitempty"`
	D    string           `json:"d,omitempty"`
	A    []Value          `json:"a,omitempty"`
	M    map[string]Value `json:"m,omitempty"`
	N    string           `json:"n,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	jv := jsonValue{Kind: v.Kind, I64: v.I64, B: v.B, S: v.str, Bin: v.bin, A: v.A, M: v.m}
	if v.Kind == KindFloat || v.Kind == KindDouble {
		// JSON has no encoding for NaN or infinities.
		switch {
		case math.IsNaN(v.F64):
			jv.N = "nan"
		case math.IsInf(v.F64, 1):
			jv.N = "+inf"
		case math.IsInf(v.F64, -1):
			jv.N = "-inf"
		default:
			f := v.F64
			jv.F64 = &f
		}
	}
	if v.Kind == KindBigDecimal {
		jv.D = v.dec.String()
	}
	return json.Marshal(jv)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var jv jsonValue
	if err := json.Unmarshal(data, &jv); err != nil {
		return err
	}
	*v = Value{Kind: jv.Kind, I64: jv.I64, B: jv.B, str: jv.S, bin: jv.Bin, A: jv.A, m: jv.M}
	if jv.F64 != nil {
		v.F64 = *jv.F64
	}
	switch jv.N {
	case "nan":
		v.F64 = math.NaN()
	case "+inf":
		v.F64 = math.Inf(1)
	case "-inf":
		v.F64 = math.Inf(-1)
	}
	if jv.Kind == KindBigDecimal {
		d, err := decimal.NewFromString(jv.D)
		if err != nil {
			return fmt.Errorf("invalid decimal %q: %w", jv.D, err)
		}
		v.dec = d
	}
	return nil
}

// Native returns the value as a plain Go value: int64, float64, bool, string,
// []byte, decimal.Decimal, []any, map[string]any or nil.
func (v Value) Native() any {
	switch v.Kind {
	case KindInt, KindLong:
		return v.I64
	case KindFloat, KindDouble:
		return v.F64
	case KindBigDecimal:
		return v.dec
	case KindBool:
		return v.B
	case KindString:
		return v.str
	case KindBytes:
		return v.bin
	case KindArray:
		out := make([]any, len(v.A))
		for i := range v.A {
			out[i] = v.A[i].Native()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, e := range v.m {
			out[k] = e.Native()
		}
		return out
	}
	return nil
}

// FromNative converts a plain Go value into a Value. Integers become
// KindLong, floats KindDouble. json.Number is parsed as an integer when
// possible. Unsupported types yield an error.
func FromNative(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Long(int64(t)), nil
	case int8:
		return Long(int64(t)), nil
	case int16:
		return Long(int64(t)), nil
	case int32:
		return Int(t), nil
	case int64:
		return Long(t), nil
	case uint8:
		return Long(int64(t)), nil
	case uint16:
		return Long(int64(t)), nil
	case uint32:
		return Long(int64(t)), nil
	case uint:
		if uint64(t) > math.MaxInt64 {
			return Null(), fmt.Errorf("integer %d overflows long", t)
		}
		return Long(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Null(), fmt.Errorf("integer %d overflows long", t)
		}
		return Long(int64(t)), nil
	case float32:
		return Float(t), nil
	case float64:
		return Double(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Long(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Null(), fmt.Errorf("invalid number %q", t)
		}
		return Double(f), nil
	case decimal.Decimal:
		return BigDecimal(t), nil
	case string:
		return String(t), nil
	case []byte:
		return Bytes(t), nil
	case []any:
		a := make([]Value, len(t))
		for i := range t {
			e, err := FromNative(t[i])
			if err != nil {
				return Null(), err
			}
			a[i] = e
		}
		return Array(a), nil
	case []string:
		a := make([]Value, len(t))
		for i := range t {
			a[i] = String(t[i])
		}
		return Array(a), nil
	case []int64:
		a := make([]Value, len(t))
		for i := range t {
			a[i] = Long(t[i])
		}
		return Array(a), nil
	case []float64:
		a := make([]Value, len(t))
		for i := range t {
			a[i] = Double(t[i])
		}
		return Array(a), nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			ev, err := FromNative(e)
			if err != nil {
				return Null(), err
			}
			m[k] = ev
		}
		return Map(m), nil
	}
	return Null(), fmt.Errorf("unsupported value type %T", x)
}
