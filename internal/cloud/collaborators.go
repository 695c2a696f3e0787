package cloud

import (
	"context"

	"github.com/roach88/savekit/internal/wire"
)

// SecretEndpoint calls a named remote function and returns its keyed results.
type SecretEndpoint interface {
	Call(ctx context.Context, name string, args map[string]any) (map[string]any, error)
}

// Session reports the remote identity state.
type Session interface {
	IsSetup() bool
	IsSignedIn() bool
	CurrentIdentity() string
}

// SignOuter is a Session that can sign out.
type SignOuter interface {
	SignOut(ctx context.Context) error
}

// Backend stores flat key-value namespaces, one per identity.
type Backend interface {
	SaveAll(ctx context.Context, ns string, items map[string]wire.Value) error
	LoadAll(ctx context.Context, ns string) (map[string]wire.Value, error)
	DeleteAll(ctx context.Context, ns string) error
}
