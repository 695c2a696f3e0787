package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrNotSetup is returned by SignIn before Setup.
var ErrNotSetup = errors.New("session is not set up")

// Anonymous is a device-local session. Safe for concurrent use.
type Anonymous struct {
	mu       sync.RWMutex
	gen      IdentityGenerator
	setup    bool
	identity string
	logger   *slog.Logger
}

// Option configures an Anonymous session.
type Option func(*Anonymous)

// WithGenerator sets the identity generator. Defaults to UUIDv7Generator.
func WithGenerator(g IdentityGenerator) Option {
	return func(a *Anonymous) {
		a.gen = g
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Anonymous) {
		a.logger = l
	}
}

// NewAnonymous creates a session that is neither set up nor signed in.
func NewAnonymous(opts ...Option) *Anonymous {
	a := &Anonymous{
		gen:    UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Setup initializes the session. Calling it again is a no-op.
func (a *Anonymous) Setup(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setup = true
	return nil
}

// SignIn signs in anonymously and returns the identity. An existing
// identity is kept.
func (a *Anonymous) SignIn(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.setup {
		return "", ErrNotSetup
	}
	if a.identity == "" {
		a.identity = a.gen.Generate()
		a.logger.Info("signed in", "identity", a.identity)
	}
	return a.identity, nil
}

// SignInAs signs in with a known identity, as when resuming a previous
// anonymous session.
func (a *Anonymous) SignInAs(ctx context.Context, identity string) error {
	if identity == "" {
		return errors.New("sign in: empty identity")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.setup {
		return ErrNotSetup
	}
	a.identity = identity
	a.logger.Info("signed in", "identity", identity)
	return nil
}

// SignOut clears the identity. The session stays set up.
func (a *Anonymous) SignOut(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.identity != "" {
		a.logger.Info("signed out", "identity", a.identity)
	}
	a.identity = ""
	return nil
}

func (a *Anonymous) IsSetup() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.setup
}

func (a *Anonymous) IsSignedIn() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.identity != ""
}

func (a *Anonymous) CurrentIdentity() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.identity
}
