package testutil

import (
	"context"
	"sync"
	"sync/atomic"
)

// FakeSession is a settable identity session.
type FakeSession struct {
	mu       sync.Mutex
	setup    bool
	identity string
}

// SignedIn returns a session that is set up and signed in as identity.
func SignedIn(identity string) *FakeSession {
	return &FakeSession{setup: true, identity: identity}
}

// SignedOut returns a session that is set up with nobody signed in.
func SignedOut() *FakeSession {
	return &FakeSession{setup: true}
}

func (s *FakeSession) IsSetup() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setup
}

func (s *FakeSession) IsSignedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity != ""
}

func (s *FakeSession) CurrentIdentity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *FakeSession) SignOut(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = ""
	return nil
}

// FakeSecrets answers every secret endpoint call with Result or Err and
// counts the calls.
type FakeSecrets struct {
	Result map[string]any
	Err    error

	calls atomic.Int32
}

func (f *FakeSecrets) Call(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	f.calls.Add(1)
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Result, nil
}

// Calls returns how many times Call ran.
func (f *FakeSecrets) Calls() int {
	return int(f.calls.Load())
}
