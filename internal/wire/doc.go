// Package wire is the value conversion layer between native Go field
// types and the string/blob wire formats used by the local file store and
// the remote key-value store.
//
// This package imports nothing internal except fault. Every component
// that writes a blob goes through it; nothing else formats wire values.
//
// Key design constraints:
//   - Value is a sealed union: String, Int, Float, Bool, Blob
//   - Conversion is pure and stateless; one function per target kind
//   - []byte targets travel as base64 text, never generic coercion
//   - Object marshaling is canonical (sorted keys, NFC strings) so an
//     unchanged object always produces identical bytes
//   - Failed conversions return the zero value plus a Conversion fault;
//     the zero value means "no value", never a valid default
package wire
