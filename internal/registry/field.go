package registry

import (
	"fmt"
	"reflect"

	"github.com/roach88/savekit/internal/fault"
	"github.com/roach88/savekit/internal/wire"
)

// FieldRef is a persistable field of a registered type.
//
// Read and Write check the requested marker before touching the object,
// and recover panics from custom Valuer/Scanner implementations into
// Conversion faults.
type FieldRef struct {
	// Name is the Go field name.
	Name string

	// Key is the wire key: the tag key or field name, with spaces
	// replaced by underscores.
	Key string

	// Declared is the field's declared Go type.
	Declared reflect.Type

	// Markers are the persistence kinds the field opted into.
	Markers Marker

	owner string
	ptr   reflect.Type // *T of the declaring struct
	index []int
	codec wire.Codec
}

// Read harvests the field's wire value from obj under marker m.
func (f FieldRef) Read(obj any, m Marker) (v wire.Value, err error) {
	field, err := f.access(obj, m)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fault.Conversion(f.owner, f.Name, fmt.Errorf("panic: %v", r))
		}
	}()

	v, err = f.codec.Encode(field)
	if err != nil {
		return nil, fault.Conversion(f.owner, f.Name, err)
	}
	return v, nil
}

// Write converts v to the field's declared type and stores it in obj.
// On failure the field keeps its previous value.
func (f FieldRef) Write(obj any, m Marker, v wire.Value) (err error) {
	field, err := f.access(obj, m)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fault.Conversion(f.owner, f.Name, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := f.codec.Decode(v, field); err != nil {
		return fault.Conversion(f.owner, f.Name, err)
	}
	return nil
}

func (f FieldRef) access(obj any, m Marker) (reflect.Value, error) {
	if !f.Markers.Has(m) {
		return reflect.Value{}, fault.Conversion(f.owner, f.Name, fmt.Errorf("field is not marked %s", m))
	}
	rv := reflect.ValueOf(obj)
	if rv.Type() != f.ptr || rv.IsNil() {
		return reflect.Value{}, fault.Conversion(f.owner, f.Name, fmt.Errorf("object %T is not a non-nil %s", obj, f.ptr))
	}
	field, err := rv.Elem().FieldByIndexErr(f.index)
	if err != nil {
		return reflect.Value{}, fault.Conversion(f.owner, f.Name, err)
	}
	return field, nil
}

// collectFields parses `save` tags on the exported fields of struct type t.
func collectFields(owner string, t reflect.Type) ([]FieldRef, error) {
	var fields []FieldRef
	seen := map[Marker]map[string]string{Local: {}, Cloud: {}}

	for _, sf := range reflect.VisibleFields(t) {
		tag, ok := sf.Tag.Lookup("save")
		if !ok {
			continue
		}
		spec, err := parseTag(tag)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		if spec.markers == 0 {
			continue
		}
		if !sf.IsExported() {
			return nil, fault.Conversion(owner, sf.Name, fmt.Errorf("unexported fields cannot be persisted"))
		}
		codec, err := wire.CodecFor(sf.Type)
		if err != nil {
			return nil, fault.Conversion(owner, sf.Name, err)
		}

		key := sf.Name
		if spec.key != "" {
			key = spec.key
		}
		key = wire.NormalizeKey(key)

		for _, m := range []Marker{Local, Cloud} {
			if !spec.markers.Has(m) {
				continue
			}
			if prev, dup := seen[m][key]; dup {
				return nil, fmt.Errorf("fields %s and %s share %s key %q", prev, sf.Name, m, key)
			}
			seen[m][key] = sf.Name
		}

		fields = append(fields, FieldRef{
			Name:     sf.Name,
			Key:      key,
			Declared: sf.Type,
			Markers:  spec.markers,
			owner:    owner,
			ptr:      reflect.PointerTo(t),
			index:    sf.Index,
			codec:    codec,
		})
	}
	return fields, nil
}
