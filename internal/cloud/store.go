package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/savekit/internal/fault"
	"github.com/roach88/savekit/internal/pool"
	"github.com/roach88/savekit/internal/registry"
	"github.com/roach88/savekit/internal/wire"
)

var tracer = otel.Tracer("github.com/roach88/savekit/internal/cloud")

// Options configures a Store.
type Options struct {
	// Registry supplies Cloud-marked instances. Defaults to registry.Default.
	Registry *registry.Registry

	// Pool runs backend I/O. Required.
	Pool *pool.Pool

	// Session gates every operation. Required.
	Session Session

	// Backend holds the namespaces. Required.
	Backend Backend

	// Secrets serves encryption material. Optional; without it
	// EncryptionMaterial fails with a Crypto fault.
	Secrets SecretEndpoint

	Logger *slog.Logger
}

// Store is the remote persistence store. Safe for concurrent use.
type Store struct {
	reg     *registry.Registry
	pool    *pool.Pool
	session Session
	backend Backend
	secrets SecretEndpoint
	logger  *slog.Logger

	mu     sync.Mutex
	loaded map[string]wire.Value // Last namespace fetched by LoadFromCloud
}

// New creates a Store.
func New(opts Options) (*Store, error) {
	switch {
	case opts.Pool == nil:
		return nil, errors.New("cloud: pool is required")
	case opts.Session == nil:
		return nil, errors.New("cloud: session is required")
	case opts.Backend == nil:
		return nil, errors.New("cloud: backend is required")
	}
	s := &Store{
		reg:     opts.Registry,
		pool:    opts.Pool,
		session: opts.Session,
		backend: opts.Backend,
		secrets: opts.Secrets,
		logger:  opts.Logger,
	}
	if s.reg == nil {
		s.reg = registry.Default
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "cloud")
	return s, nil
}

// identity returns the signed-in identity or a NotAuthenticated fault.
func (s *Store) identity(op string) (string, error) {
	if !s.session.IsSetup() {
		return "", fault.New(fault.CodeNotAuthenticated, op, "session is not set up")
	}
	id := s.session.CurrentIdentity()
	if !s.session.IsSignedIn() || id == "" {
		return "", fault.New(fault.CodeNotAuthenticated, op, "no identity is signed in")
	}
	return id, nil
}

// discover runs Cloud discovery on the caller's context. Partial results
// are kept and the discovery fault is logged; only an empty pass fails.
func (s *Store) discover(ctx context.Context, op string) ([]registry.Instance, error) {
	instances, err := s.reg.Discover(ctx, registry.Cloud)
	if len(instances) == 0 {
		if err == nil {
			err = fault.New(fault.CodeDiscovery, op, "no participating instances")
		}
		return nil, err
	}
	if err != nil {
		s.logger.Warn("partial discovery", "op", op, "error", err)
	}
	return instances, nil
}

// SaveToCloud harvests every Cloud-marked field into one batch and writes
// it to the signed-in identity's namespace in a single call.
//
// Per-field harvest failures and key collisions are logged and skipped.
// Concurrent saves race; the last write wins.
func (s *Store) SaveToCloud(ctx context.Context) *pool.Future[struct{}] {
	const op = "cloud.SaveToCloud"

	id, err := s.identity(op)
	if err != nil {
		return pool.Resolved(struct{}{}, err)
	}
	instances, err := s.discover(ctx, op)
	if err != nil {
		return pool.Resolved(struct{}{}, err)
	}

	return pool.Go(s.pool, true, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.save(ctx, op, id, instances)
	})
}

func (s *Store) save(ctx context.Context, op, id string, instances []registry.Instance) error {
	batch := s.harvest(instances)

	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(
		attribute.Int("instances", len(instances)),
		attribute.Int("keys", len(batch)),
	))
	defer span.End()

	if len(batch) == 0 {
		s.logger.Warn("nothing to save", "op", op)
		return nil
	}
	if err := s.backend.SaveAll(ctx, id, batch); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		return fault.Wrap(fault.CodeIO, op, err)
	}
	s.logger.Debug("saved to cloud", "keys", len(batch))
	return nil
}

// harvest builds one flat batch. A key already taken by an earlier field
// is never overwritten; the later field is skipped.
func (s *Store) harvest(instances []registry.Instance) map[string]wire.Value {
	batch := make(map[string]wire.Value)
	owner := make(map[string]string)

	for _, inst := range instances {
		fields, errs := inst.Harvest(registry.Cloud)
		for _, err := range errs {
			s.logger.Warn("skipping field", "type", inst.Type, "error", err)
		}
		for _, key := range fields.SortedKeys() {
			if prev, dup := owner[key]; dup {
				s.logger.Warn("skipping field with colliding key",
					"type", inst.Type, "key", key, "kept", prev)
				continue
			}
			owner[key] = inst.Type
			batch[key] = fields[key]
		}
	}
	return batch
}

// LoadFromCloud fetches the identity's whole namespace and caches it for
// ApplyLoaded. An empty namespace fails with NoData and clears the cache.
func (s *Store) LoadFromCloud(ctx context.Context) *pool.Future[map[string]wire.Value] {
	const op = "cloud.LoadFromCloud"

	id, err := s.identity(op)
	if err != nil {
		return pool.Resolved[map[string]wire.Value](nil, err)
	}

	return pool.Go(s.pool, false, func(ctx context.Context) (map[string]wire.Value, error) {
		ctx, span := tracer.Start(ctx, op)
		defer span.End()

		data, err := s.backend.LoadAll(ctx, id)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load failed")
			return nil, fault.Wrap(fault.CodeIO, op, err)
		}
		span.SetAttributes(attribute.Int("keys", len(data)))

		s.mu.Lock()
		defer s.mu.Unlock()
		if len(data) == 0 {
			s.loaded = nil
			return nil, fault.New(fault.CodeNoData, op, "remote namespace is empty")
		}
		s.loaded = maps.Clone(data)
		return maps.Clone(data), nil
	})
}

// Loaded returns a copy of the namespace cached by the last successful
// LoadFromCloud, or nil.
func (s *Store) Loaded() map[string]wire.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.loaded)
}

// ApplyLoaded writes the cached namespace into every discovered
// Cloud-marked field with a matching key. Fields without a match keep
// their values; conversion failures are logged and skipped. Runs on the
// caller so live instances can be updated from the primary context.
// Returns the number of fields written.
func (s *Store) ApplyLoaded(ctx context.Context) (int, error) {
	const op = "cloud.ApplyLoaded"

	if _, err := s.identity(op); err != nil {
		return 0, err
	}
	data := s.Loaded()
	if len(data) == 0 {
		return 0, fault.New(fault.CodeNoData, op, "nothing loaded; call LoadFromCloud first")
	}
	instances, err := s.discover(ctx, op)
	if err != nil {
		return 0, err
	}

	_, span := tracer.Start(ctx, op)
	defer span.End()

	total := 0
	for _, inst := range instances {
		n, errs := inst.Apply(registry.Cloud, data)
		for _, err := range errs {
			s.logger.Warn("skipping field", "type", inst.Type, "error", err)
		}
		total += n
	}
	span.SetAttributes(attribute.Int("written", total))
	return total, nil
}

// DeleteAll clears the identity's namespace and the local cache.
func (s *Store) DeleteAll(ctx context.Context) *pool.Future[struct{}] {
	const op = "cloud.DeleteAll"

	id, err := s.identity(op)
	if err != nil {
		return pool.Resolved(struct{}{}, err)
	}

	return pool.Go(s.pool, true, func(ctx context.Context) (struct{}, error) {
		ctx, span := tracer.Start(ctx, op)
		defer span.End()

		if err := s.backend.DeleteAll(ctx, id); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "delete failed")
			return struct{}{}, fault.Wrap(fault.CodeIO, op, err)
		}
		s.mu.Lock()
		s.loaded = nil
		s.mu.Unlock()
		return struct{}{}, nil
	})
}

// HasCloudData reports whether the identity's namespace holds any keys.
// It does not touch the cache.
func (s *Store) HasCloudData(ctx context.Context) *pool.Future[bool] {
	const op = "cloud.HasCloudData"

	id, err := s.identity(op)
	if err != nil {
		return pool.Resolved(false, err)
	}

	return pool.Go(s.pool, false, func(ctx context.Context) (bool, error) {
		data, err := s.backend.LoadAll(ctx, id)
		if err != nil {
			return false, fault.Wrap(fault.CodeIO, op, err)
		}
		return len(data) > 0, nil
	})
}

// SaveAndSignOut saves like SaveToCloud, then signs the session out.
// The session must implement SignOuter. A failed save leaves the session
// signed in.
func (s *Store) SaveAndSignOut(ctx context.Context) *pool.Future[struct{}] {
	const op = "cloud.SaveAndSignOut"

	signer, ok := s.session.(SignOuter)
	if !ok {
		return pool.Resolved(struct{}{}, fmt.Errorf("%s: session %T cannot sign out", op, s.session))
	}
	id, err := s.identity(op)
	if err != nil {
		return pool.Resolved(struct{}{}, err)
	}
	instances, err := s.discover(ctx, op)
	if err != nil {
		return pool.Resolved(struct{}{}, err)
	}

	return pool.Go(s.pool, true, func(ctx context.Context) (struct{}, error) {
		if err := s.save(ctx, op, id, instances); err != nil {
			return struct{}{}, err
		}
		if err := signer.SignOut(ctx); err != nil {
			return struct{}{}, fmt.Errorf("%s: sign out: %w", op, err)
		}
		s.mu.Lock()
		s.loaded = nil
		s.mu.Unlock()
		return struct{}{}, nil
	})
}
