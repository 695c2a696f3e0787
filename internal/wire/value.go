package wire

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf16"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindString Kind = iota + 1
	KindInt
	KindFloat
	KindBool
	KindBlob
)

// String returns the lowercase kind name, as stored by the key-value backend.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindBlob:
		return "blob"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "string":
		return KindString, nil
	case "int":
		return KindInt, nil
	case "float":
		return KindFloat, nil
	case "bool":
		return KindBool, nil
	case "blob":
		return KindBlob, nil
	default:
		return 0, fmt.Errorf("unknown wire kind %q", s)
	}
}

// Value is a sealed interface over the wire-representable values.
// Only String, Int, Float, Bool and Blob implement it.
type Value interface {
	Kind() Kind
	wireValue() // Sealed
}

// String is a text value.
type String string

func (String) Kind() Kind { return KindString }
func (String) wireValue() {}

// Int is an integer value. Always int64 on the wire.
type Int int64

func (Int) Kind() Kind { return KindInt }
func (Int) wireValue() {}

// Float is a floating point value. NaN and infinities have no JSON form
// and are rejected at marshal time.
type Float float64

func (Float) Kind() Kind { return KindFloat }
func (Float) wireValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) Kind() Kind { return KindBool }
func (Bool) wireValue() {}

// Blob is a raw byte sequence. It travels as standard base64 text.
type Blob []byte

func (Blob) Kind() Kind { return KindBlob }
func (Blob) wireValue() {}

// Object is a flat string-keyed mapping of wire values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysUTF16)
	return keys
}

// compareKeysUTF16 compares strings by UTF-16 code units.
// Go's native string comparison uses UTF-8 bytes, which orders
// supplementary-plane characters differently.
func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// MarshalJSON implements json.Marshaler with canonical key order.
func (obj Object) MarshalJSON() ([]byte, error) {
	return marshalCanonicalObject(obj)
}

// UnmarshalJSON implements json.Unmarshaler for Object.
func (obj *Object) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*obj = make(Object, len(raw))
	for k, v := range raw {
		val, err := UnmarshalValue(v)
		if err != nil {
			return fmt.Errorf("object key %q: %w", k, err)
		}
		(*obj)[k] = val
	}
	return nil
}

// MarshalValue marshals a Value to JSON bytes.
// Blobs become base64 strings; the target type recovers them on load.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case String:
		return marshalString(string(val))
	case Int:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("float %v has no JSON representation", f)
		}
		return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
	case Bool:
		return []byte(strconv.FormatBool(bool(val))), nil
	case Blob:
		return marshalString(base64.StdEncoding.EncodeToString(val))
	case nil:
		return nil, fmt.Errorf("nil wire value")
	default:
		return nil, fmt.Errorf("unknown wire value type: %T", v)
	}
}

// UnmarshalValue decodes a scalar JSON value into a Value.
// Integral numbers become Int, other numbers Float. Arrays, objects and
// null are rejected: the wire namespace is flat.
func UnmarshalValue(data []byte) (Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return String(s), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil
	case 'n':
		return nil, fmt.Errorf("null is not a wire value")
	case '[', '{':
		return nil, fmt.Errorf("nested JSON is not a wire value: %.20s", data)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, err
		}
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %s: %w", data, err)
		}
		return Float(f), nil
	}
}

// Equal reports whether two values hold the same variant and content.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	if ab, ok := a.(Blob); ok {
		return bytes.Equal(ab, b.(Blob))
	}
	return a == b
}

// UnmarshalKind decodes data as a Value of the given kind. Stores that
// record the kind beside the JSON use it to restore Float and Blob values
// that would otherwise come back as Int or String.
func UnmarshalKind(k Kind, data []byte) (Value, error) {
	v, err := UnmarshalValue(data)
	if err != nil {
		return nil, err
	}
	if v.Kind() == k {
		return v, nil
	}
	switch k {
	case KindFloat:
		if i, ok := v.(Int); ok {
			return Float(float64(i)), nil
		}
	case KindBlob:
		if s, ok := v.(String); ok {
			b, err := base64.StdEncoding.DecodeString(string(s))
			if err != nil {
				return nil, fmt.Errorf("blob: %w", err)
			}
			return Blob(b), nil
		}
	}
	return nil, fmt.Errorf("stored %s does not decode as %s", v.Kind(), k)
}
