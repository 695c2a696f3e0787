package wire

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/savekit/internal/fault"
)

// Native is the closed set of Go types the engine converts directly.
type Native interface {
	string | bool |
		int | int8 | int16 | int32 | int64 |
		uint | uint8 | uint16 | uint32 | uint64 |
		float32 | float64 |
		[]byte
}

// Valuer is implemented by field types that produce their own wire value.
type Valuer interface {
	WireValue() (Value, error)
}

// Scanner is implemented by pointer field types that load their own wire value.
type Scanner interface {
	ScanWire(Value) error
}

// ToWire converts a native value to its wire form.
// []byte becomes a Blob; Valuer implementations convert themselves.
func ToWire(v any) (Value, error) {
	switch val := v.(type) {
	case Value:
		return val, nil
	case Valuer:
		return val.WireValue()
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return uintToWire(uint64(val))
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		return uintToWire(val)
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case []byte:
		return Blob(val), nil
	case nil:
		return nil, fault.Conversion("", "", fmt.Errorf("nil has no wire form"))
	default:
		return nil, fault.Conversion(fmt.Sprintf("%T", v), "", fmt.Errorf("unsupported native type"))
	}
}

func uintToWire(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return nil, fault.Conversion("uint64", "", fmt.Errorf("%d overflows wire int", u))
	}
	return Int(int64(u)), nil
}

// FromWire converts a wire value to T. On failure it returns the zero
// value of T and a Conversion fault.
func FromWire[T Native](v Value) (T, error) {
	var out T
	var err error

	switch p := any(&out).(type) {
	case *string:
		*p, err = AsString(v)
	case *bool:
		*p, err = AsBool(v)
	case *int:
		*p, err = asSigned[int](v, strconv.IntSize)
	case *int8:
		*p, err = asSigned[int8](v, 8)
	case *int16:
		*p, err = asSigned[int16](v, 16)
	case *int32:
		*p, err = asSigned[int32](v, 32)
	case *int64:
		*p, err = AsInt64(v)
	case *uint:
		*p, err = asUnsigned[uint](v, strconv.IntSize)
	case *uint8:
		*p, err = asUnsigned[uint8](v, 8)
	case *uint16:
		*p, err = asUnsigned[uint16](v, 16)
	case *uint32:
		*p, err = asUnsigned[uint32](v, 32)
	case *uint64:
		*p, err = AsUint64(v)
	case *float32:
		var f float64
		f, err = AsFloat64(v)
		if err == nil && !fitsFloat32(f) {
			err = fmt.Errorf("%v overflows float32", f)
		}
		*p = float32(f)
	case *float64:
		*p, err = AsFloat64(v)
	case *[]byte:
		*p, err = AsBytes(v)
	}

	if err != nil {
		var zero T
		return zero, fault.Conversion(fmt.Sprintf("%T", out), "", err)
	}
	return out, nil
}

// AsString coerces any wire value to text.
func AsString(v Value) (string, error) {
	switch val := v.(type) {
	case String:
		return string(val), nil
	case Int:
		return strconv.FormatInt(int64(val), 10), nil
	case Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64), nil
	case Bool:
		return strconv.FormatBool(bool(val)), nil
	case Blob:
		return base64.StdEncoding.EncodeToString(val), nil
	default:
		return "", errUnsupported(v, "string")
	}
}

// AsInt64 coerces a wire value to int64. Floats convert only when integral
// and in range.
func AsInt64(v Value) (int64, error) {
	switch val := v.(type) {
	case Int:
		return int64(val), nil
	case Float:
		return floatToInt64(float64(val))
	case Bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case String:
		s := strings.TrimSpace(string(val))
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", string(val))
		}
		return floatToInt64(f)
	default:
		return 0, errUnsupported(v, "int")
	}
}

// AsUint64 coerces a wire value to uint64, rejecting negatives.
func AsUint64(v Value) (uint64, error) {
	if s, ok := v.(String); ok {
		if u, err := strconv.ParseUint(strings.TrimSpace(string(s)), 10, 64); err == nil {
			return u, nil
		}
	}
	i, err := AsInt64(v)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, fmt.Errorf("%d is negative", i)
	}
	return uint64(i), nil
}

// AsFloat64 coerces a wire value to float64.
func AsFloat64(v Value) (float64, error) {
	switch val := v.(type) {
	case Float:
		return float64(val), nil
	case Int:
		return float64(val), nil
	case Bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case String:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(val)), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", string(val))
		}
		return f, nil
	default:
		return 0, errUnsupported(v, "float")
	}
}

// AsBool coerces a wire value to bool. Numbers are true when non-zero.
func AsBool(v Value) (bool, error) {
	switch val := v.(type) {
	case Bool:
		return bool(val), nil
	case Int:
		return val != 0, nil
	case Float:
		return val != 0, nil
	case String:
		b, err := strconv.ParseBool(strings.TrimSpace(string(val)))
		if err != nil {
			return false, fmt.Errorf("%q is not a boolean", string(val))
		}
		return b, nil
	default:
		return false, errUnsupported(v, "bool")
	}
}

// AsBytes decodes a raw byte sequence. Strings are read as standard
// base64; generic coercion cannot represent arbitrary bytes as text.
func AsBytes(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Blob:
		return []byte(val), nil
	case String:
		b, err := base64.StdEncoding.DecodeString(string(val))
		if err != nil {
			return nil, fmt.Errorf("invalid base64 blob: %w", err)
		}
		return b, nil
	default:
		return nil, errUnsupported(v, "bytes")
	}
}

type signed interface {
	int | int8 | int16 | int32
}

type unsigned interface {
	uint | uint8 | uint16 | uint32
}

func asSigned[T signed](v Value, bits int) (T, error) {
	i, err := AsInt64(v)
	if err != nil {
		return 0, err
	}
	lo, hi := int64(-1)<<(bits-1), int64(1)<<(bits-1)-1
	if i < lo || i > hi {
		return 0, fmt.Errorf("%d overflows int%d", i, bits)
	}
	return T(i), nil
}

func asUnsigned[T unsigned](v Value, bits int) (T, error) {
	u, err := AsUint64(v)
	if err != nil {
		return 0, err
	}
	if bits < 64 && u > uint64(1)<<bits-1 {
		return 0, fmt.Errorf("%d overflows uint%d", u, bits)
	}
	return T(u), nil
}

func floatToInt64(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%v overflows int64", f)
	}
	return int64(f), nil
}

func fitsFloat32(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) <= math.MaxFloat32
}

func errUnsupported(v Value, target string) error {
	if v == nil {
		return fmt.Errorf("no value for %s", target)
	}
	return fmt.Errorf("cannot convert %s to %s", v.Kind(), target)
}
