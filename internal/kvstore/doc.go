// Package kvstore is a SQLite-backed remote key-value namespace store.
//
// Each identity owns one namespace of flat string keys. Values are stored
// as JSON text beside their wire kind so Float and Blob values survive the
// round trip. The store implements cloud.Backend and is what the savekit
// CLI inspects.
//
// The database runs in WAL mode with a single connection: SQLite allows
// one writer at a time, and SaveAll writes a whole batch in one
// transaction.
package kvstore
