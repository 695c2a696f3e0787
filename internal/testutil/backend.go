package testutil

import (
	"context"
	"maps"
	"sync"

	"github.com/roach88/savekit/internal/wire"
)

// RecordingBackend is an in-memory key-value backend that records calls.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingBackend struct {
	mu    sync.Mutex
	data  map[string]map[string]wire.Value
	calls []string

	// Err, when set, is returned by every call (after recording it).
	Err error
}

// NewRecordingBackend creates an empty backend.
func NewRecordingBackend() *RecordingBackend {
	return &RecordingBackend{data: make(map[string]map[string]wire.Value)}
}

func (b *RecordingBackend) SaveAll(ctx context.Context, ns string, items map[string]wire.Value) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "SaveAll:"+ns)
	if b.Err != nil {
		return b.Err
	}
	if b.data[ns] == nil {
		b.data[ns] = make(map[string]wire.Value)
	}
	maps.Copy(b.data[ns], items)
	return nil
}

func (b *RecordingBackend) LoadAll(ctx context.Context, ns string) (map[string]wire.Value, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "LoadAll:"+ns)
	if b.Err != nil {
		return nil, b.Err
	}
	out := maps.Clone(b.data[ns])
	if out == nil {
		out = map[string]wire.Value{}
	}
	return out, nil
}

func (b *RecordingBackend) DeleteAll(ctx context.Context, ns string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "DeleteAll:"+ns)
	if b.Err != nil {
		return b.Err
	}
	delete(b.data, ns)
	return nil
}

// Calls returns the recorded calls as "Method:namespace", in order.
func (b *RecordingBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// Namespace returns a copy of the stored namespace.
func (b *RecordingBackend) Namespace(ns string) map[string]wire.Value {
	b.mu.Lock()
	defer b.mu.Unlock()
	return maps.Clone(b.data[ns])
}

// Seed stores items without recording a call.
func (b *RecordingBackend) Seed(ns string, items map[string]wire.Value) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[ns] = maps.Clone(items)
}
