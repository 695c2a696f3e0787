// Package testutil provides in-memory collaborators for savekit tests.
//
// RecordingBackend records every call so tests can assert that an
// operation performed no I/O. FakeSession and FakeSecrets stand in for
// the remote identity provider and secret endpoint.
package testutil
