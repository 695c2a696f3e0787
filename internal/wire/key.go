package wire

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeKey derives a wire key from a field name: NFC normalized,
// spaces replaced by underscores.
func NormalizeKey(name string) string {
	return strings.ReplaceAll(norm.NFC.String(name), " ", "_")
}
