package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON for files that must be
// byte-stable across saves of unchanged state.
//
// Differences from json.Marshal:
//  1. Object keys sorted by UTF-16 code units
//  2. No HTML escaping
//  3. Object keys are NFC normalized; string values are written byte-exact
//  4. Only wire values, Objects, strings, ints, bools, []any and
//     map[string]any are accepted
func MarshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case Value:
		return MarshalValue(val)
	case Object:
		return marshalCanonicalObject(val)
	case string:
		return marshalString(val)
	case int:
		return MarshalValue(Int(val))
	case int64:
		return MarshalValue(Int(val))
	case bool:
		return MarshalValue(Bool(val))
	case []any:
		return marshalCanonicalArray(val)
	case map[string]any:
		return marshalCanonicalMap(val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// marshalString produces a JSON string without HTML escaping. U+2028 and
// U+2029 are left as literal characters.
func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}

	// json.Encoder adds a trailing newline
	out := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
	return unescapeLineSeparators(out), nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes emitted by
// encoding/json back into literal characters. An escape preceded by an
// odd number of backslashes is literal text and stays as is.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+5 < len(data) && data[i+1] == 'u' &&
			data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			backslashes := 0
			for j := len(out) - 1; j >= 0 && out[j] == '\\'; j-- {
				backslashes++
			}
			if backslashes%2 == 0 {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 5
				continue
			}
		}
		out = append(out, data[i])
	}
	return out
}

func marshalCanonicalArray(arr []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := MarshalCanonical(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalCanonicalObject(obj Object) ([]byte, error) {
	raw := make([]string, 0, len(obj))
	for k := range obj {
		raw = append(raw, k)
	}
	keys, err := canonicalKeys(raw)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshalString(k.norm)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k.raw, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := MarshalValue(obj[k.raw])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k.raw, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalCanonicalMap(m map[string]any) ([]byte, error) {
	raw := make([]string, 0, len(m))
	for k := range m {
		raw = append(raw, k)
	}
	keys, err := canonicalKeys(raw)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshalString(k.norm)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k.raw, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := MarshalCanonical(m[k.raw])
		if err != nil {
			return nil, fmt.Errorf("object[%q]: %w", k.raw, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type objectKey struct {
	raw  string
	norm string
}

// canonicalKeys NFC normalizes keys and orders them by UTF-16 code units.
// Two keys that normalize to the same form are an error.
func canonicalKeys(raw []string) ([]objectKey, error) {
	keys := make([]objectKey, len(raw))
	for i, k := range raw {
		keys[i] = objectKey{raw: k, norm: norm.NFC.String(k)}
	}
	slices.SortFunc(keys, func(a, b objectKey) int {
		return compareKeysUTF16(a.norm, b.norm)
	})
	for i := 1; i < len(keys); i++ {
		if keys[i].norm == keys[i-1].norm {
			return nil, fmt.Errorf("keys %q and %q collide after normalization", keys[i-1].raw, keys[i].raw)
		}
	}
	return keys, nil
}
