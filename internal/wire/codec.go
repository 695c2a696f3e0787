package wire

import (
	"fmt"
	"reflect"
)

var (
	valuerType  = reflect.TypeFor[Valuer]()
	scannerType = reflect.TypeFor[Scanner]()
	bytesType   = reflect.TypeFor[[]byte]()
)

// Codec converts one declared field type to and from wire values.
// Codecs are selected once per field by CodecFor; the per-value path never
// re-inspects the type.
type Codec struct {
	// Type is the declared Go type the codec serves.
	Type reflect.Type

	encode func(reflect.Value) (Value, error)
	decode func(Value, reflect.Value) error
}

// Encode reads field into a wire value.
func (c Codec) Encode(field reflect.Value) (Value, error) {
	return c.encode(field)
}

// Decode writes v into the settable field. On error the field is untouched.
func (c Codec) Decode(v Value, field reflect.Value) error {
	return c.decode(v, field)
}

// CodecFor selects the codec for a declared field type. Named types are
// served by their underlying kind. Types implementing Valuer (and whose
// pointer implements Scanner) take precedence over kind-based codecs.
func CodecFor(t reflect.Type) (Codec, error) {
	if t.Implements(valuerType) && reflect.PointerTo(t).Implements(scannerType) {
		return Codec{Type: t, encode: encodeValuer, decode: decodeScanner}, nil
	}

	switch t.Kind() {
	case reflect.String:
		return Codec{Type: t,
			encode: func(f reflect.Value) (Value, error) { return String(f.String()), nil },
			decode: func(v Value, f reflect.Value) error {
				s, err := AsString(v)
				if err != nil {
					return err
				}
				f.SetString(s)
				return nil
			},
		}, nil

	case reflect.Bool:
		return Codec{Type: t,
			encode: func(f reflect.Value) (Value, error) { return Bool(f.Bool()), nil },
			decode: func(v Value, f reflect.Value) error {
				b, err := AsBool(v)
				if err != nil {
					return err
				}
				f.SetBool(b)
				return nil
			},
		}, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Codec{Type: t,
			encode: func(f reflect.Value) (Value, error) { return Int(f.Int()), nil },
			decode: func(v Value, f reflect.Value) error {
				i, err := AsInt64(v)
				if err != nil {
					return err
				}
				if f.OverflowInt(i) {
					return fmt.Errorf("%d overflows %s", i, f.Type())
				}
				f.SetInt(i)
				return nil
			},
		}, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Codec{Type: t,
			encode: func(f reflect.Value) (Value, error) { return uintToWire(f.Uint()) },
			decode: func(v Value, f reflect.Value) error {
				u, err := AsUint64(v)
				if err != nil {
					return err
				}
				if f.OverflowUint(u) {
					return fmt.Errorf("%d overflows %s", u, f.Type())
				}
				f.SetUint(u)
				return nil
			},
		}, nil

	case reflect.Float32, reflect.Float64:
		return Codec{Type: t,
			encode: func(f reflect.Value) (Value, error) { return Float(f.Float()), nil },
			decode: func(v Value, f reflect.Value) error {
				x, err := AsFloat64(v)
				if err != nil {
					return err
				}
				if f.OverflowFloat(x) {
					return fmt.Errorf("%v overflows %s", x, f.Type())
				}
				f.SetFloat(x)
				return nil
			},
		}, nil

	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return Codec{Type: t,
				encode: func(f reflect.Value) (Value, error) {
					return Blob(f.Convert(bytesType).Interface().([]byte)), nil
				},
				decode: func(v Value, f reflect.Value) error {
					b, err := AsBytes(v)
					if err != nil {
						return err
					}
					f.Set(reflect.ValueOf(b).Convert(t))
					return nil
				},
			}, nil
		}
	}

	return Codec{}, fmt.Errorf("unsupported field type %s", t)
}

func encodeValuer(f reflect.Value) (Value, error) {
	v, err := f.Interface().(Valuer).WireValue()
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("%s produced no wire value", f.Type())
	}
	return v, nil
}

func decodeScanner(v Value, f reflect.Value) error {
	return f.Addr().Interface().(Scanner).ScanWire(v)
}
