// Package cloud synchronizes Cloud-marked fields with a remote key-value
// namespace owned by the signed-in identity.
//
// The Store discovers participating instances on the caller's context,
// then harvests, converts and performs backend I/O on the worker pool.
// Every operation fails with a NotAuthenticated fault, before any I/O,
// when the session is not set up or nobody is signed in. A load that
// finds an empty namespace fails with NoData so callers can tell
// "nothing to load" from "load failed".
//
// The remote collaborators (identity session, key-value backend, secret
// endpoint) are narrow interfaces; internal/kvstore and internal/session
// provide local implementations.
package cloud
