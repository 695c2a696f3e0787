// Package local persists application state as JSON files under a
// per-application root directory, {base}/{company}/{product}.
//
// Each saved entity is one file, {root}/{name}.json. Files hold one of:
//   - plain JSON of an arbitrary value (SaveRaw)
//   - base64 AES ciphertext of that JSON (SaveEncrypted)
//   - an aggregate array of type-tagged records harvested from every
//     Local-marked instance (SaveAuto):
//
//     [{"fields":{"Score":42},"type":"Profile"}]
//
// Aggregates are written as canonical JSON, so saving unchanged state
// twice produces byte-identical files.
//
// Writes go straight to the target file unless Options.AtomicWrites is
// set; a plain write interrupted by a crash or forced pool shutdown can
// leave a truncated file.
//
// Loads never fail past the package boundary: a missing, unreadable or
// unconvertible file yields Loaded{Found: false} and the zero value.
package local
