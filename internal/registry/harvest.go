package registry

import (
	"github.com/roach88/savekit/internal/wire"
)

// Harvest reads every field of the instance under marker m. A field that
// fails to read is left out of the result and its error is returned in
// errs; the remaining fields are still harvested.
func (inst Instance) Harvest(m Marker) (fields wire.Object, errs []error) {
	fields = make(wire.Object, len(inst.Fields))
	for _, f := range inst.Fields {
		v, err := f.Read(inst.Object, m)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fields[f.Key] = v
	}
	return fields, errs
}

// Apply writes values into the instance's fields under marker m, matching
// by key. Fields without a value are skipped. Returns the number of
// fields written and the per-field errors.
func (inst Instance) Apply(m Marker, values map[string]wire.Value) (written int, errs []error) {
	for _, f := range inst.Fields {
		v, ok := values[f.Key]
		if !ok {
			continue
		}
		if err := f.Write(inst.Object, m, v); err != nil {
			errs = append(errs, err)
			continue
		}
		written++
	}
	return written, errs
}
