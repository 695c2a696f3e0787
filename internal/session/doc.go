// Package session provides the local identity session and secret
// endpoint used when no remote identity provider is configured.
//
// Anonymous mints a time-sortable UUIDv7 identity on sign-in; the
// identity names the remote namespace a player's cloud values live in.
// StaticSecrets serves the encryption material endpoint from config.
package session
