package registry

import (
	"fmt"
	"strings"
)

// Marker is a set of persistence kinds.
type Marker uint8

const (
	// Local marks state persisted by the local file store.
	Local Marker = 1 << iota
	// Cloud marks state persisted by the remote key-value store.
	Cloud
)

// Has reports whether m includes every kind in o.
func (m Marker) Has(o Marker) bool {
	return o != 0 && m&o == o
}

// String returns the comma-separated tag form, e.g. "local,cloud".
func (m Marker) String() string {
	var parts []string
	if m.Has(Local) {
		parts = append(parts, "local")
	}
	if m.Has(Cloud) {
		parts = append(parts, "cloud")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// ParseMarker parses a single marker name.
func ParseMarker(s string) (Marker, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local":
		return Local, nil
	case "cloud":
		return Cloud, nil
	default:
		return 0, fmt.Errorf("unknown marker %q", s)
	}
}

// tagSpec is a parsed `save:"..."` struct tag.
type tagSpec struct {
	markers Marker
	key     string
}

// parseTag parses "local,cloud,key=some name". Returns markers == 0 for "-"
// or an empty tag.
func parseTag(tag string) (tagSpec, error) {
	var spec tagSpec
	if tag == "" || tag == "-" {
		return spec, nil
	}
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if k, ok := strings.CutPrefix(part, "key="); ok {
			if k == "" {
				return tagSpec{}, fmt.Errorf("empty key in tag %q", tag)
			}
			spec.key = k
			continue
		}
		m, err := ParseMarker(part)
		if err != nil {
			return tagSpec{}, err
		}
		spec.markers |= m
	}
	return spec, nil
}
