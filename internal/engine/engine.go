package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/savekit/internal/cloud"
	"github.com/roach88/savekit/internal/config"
	"github.com/roach88/savekit/internal/kvstore"
	"github.com/roach88/savekit/internal/local"
	"github.com/roach88/savekit/internal/logging"
	"github.com/roach88/savekit/internal/pool"
	"github.com/roach88/savekit/internal/registry"
	"github.com/roach88/savekit/internal/session"
)

// Engine owns the pool, the stores and the session of one process.
type Engine struct {
	cfg    config.Config
	mode   pool.Mode
	logger *slog.Logger

	pool    *pool.Pool
	kv      *kvstore.Store
	session *session.Anonymous
	cloud   *cloud.Store
	local   *local.Store
}

type options struct {
	registry  *registry.Registry
	logger    *slog.Logger
	generator session.IdentityGenerator
}

// Option configures New.
type Option func(*options)

// WithRegistry sets the registry both stores discover from.
// Defaults to registry.Default.
func WithRegistry(r *registry.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithLogger overrides the logger built from cfg.Log.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithGenerator sets the identity generator used when no identity is
// configured.
func WithGenerator(g session.IdentityGenerator) Option {
	return func(o *options) {
		o.generator = g
	}
}

// New validates cfg and starts an Engine. On error everything started so
// far is shut down again.
func New(ctx context.Context, cfg config.Config, opts ...Option) (_ *Engine, err error) {
	o := options{registry: registry.Default}
	for _, opt := range opts {
		opt(&o)
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	mode, err := pool.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	logger := o.logger
	if logger == nil {
		logger, err = logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return nil, err
		}
	}

	e := &Engine{cfg: cfg, mode: mode, logger: logger}
	defer func() {
		if err != nil {
			_ = e.Close(context.Background())
		}
	}()

	e.pool = pool.New(pool.Options{Lanes: cfg.Lanes, Logger: logger})

	kvPath, err := e.kvPath()
	if err != nil {
		return nil, err
	}
	e.kv, err = kvstore.Open(kvPath)
	if err != nil {
		return nil, fmt.Errorf("open namespace store %s: %w", kvPath, err)
	}

	sessOpts := []session.Option{session.WithLogger(logger)}
	if o.generator != nil {
		sessOpts = append(sessOpts, session.WithGenerator(o.generator))
	}
	e.session = session.NewAnonymous(sessOpts...)
	if err := e.signIn(ctx); err != nil {
		return nil, err
	}

	cloudOpts := cloud.Options{
		Registry: o.registry,
		Pool:     e.pool,
		Session:  e.session,
		Backend:  e.kv,
		Logger:   logger,
	}
	if cfg.Secrets.Key != "" {
		iv, err := cfg.Secrets.IVBytes()
		if err != nil {
			return nil, err
		}
		cloudOpts.Secrets = session.StaticSecrets{Key: cfg.Secrets.Key, IV: iv}
	}
	e.cloud, err = cloud.New(cloudOpts)
	if err != nil {
		return nil, err
	}

	e.local, err = local.Open(local.Options{
		BaseDir:      cfg.BaseDir,
		Company:      cfg.Company,
		Product:      cfg.Product,
		Registry:     o.registry,
		Pool:         e.pool,
		Materials:    e.cloud,
		AtomicWrites: cfg.AtomicWrites,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("engine started",
		"root", e.local.Root(),
		"kv", kvPath,
		"lanes", e.pool.Size(),
		"mode", mode.String(),
		"identity", e.session.CurrentIdentity())
	return e, nil
}

// kvPath resolves a relative kv_path against the application directory.
func (e *Engine) kvPath() (string, error) {
	if filepath.IsAbs(e.cfg.KVPath) {
		return e.cfg.KVPath, nil
	}
	base := e.cfg.BaseDir
	if base == "" {
		base = local.DefaultBaseDir()
	}
	root := filepath.Join(base, e.cfg.Company, e.cfg.Product)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", root, err)
	}
	return filepath.Join(root, e.cfg.KVPath), nil
}

func (e *Engine) signIn(ctx context.Context) error {
	if err := e.session.Setup(ctx); err != nil {
		return fmt.Errorf("session setup: %w", err)
	}
	if e.cfg.Identity != "" {
		return e.session.SignInAs(ctx, e.cfg.Identity)
	}
	_, err := e.session.SignIn(ctx)
	return err
}

// Local returns the local file store.
func (e *Engine) Local() *local.Store { return e.local }

// Cloud returns the remote store.
func (e *Engine) Cloud() *cloud.Store { return e.cloud }

// Pool returns the worker pool.
func (e *Engine) Pool() *pool.Pool { return e.pool }

// KV returns the namespace store behind the remote store.
func (e *Engine) KV() *kvstore.Store { return e.kv }

// Session returns the anonymous session.
func (e *Engine) Session() *session.Anonymous { return e.session }

// Mode returns the configured default execution mode.
func (e *Engine) Mode() pool.Mode { return e.mode }

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Close shuts down the pool, waiting at most the configured grace period
// (or until ctx's deadline, if sooner), then closes the namespace store.
func (e *Engine) Close(ctx context.Context) error {
	var errs []error
	if e.pool != nil {
		grace := e.cfg.ShutdownGrace.Std()
		if dl, ok := ctx.Deadline(); ok {
			if left := time.Until(dl); left < grace {
				grace = max(left, 0)
			}
		}
		if err := e.pool.Shutdown(grace); err != nil {
			errs = append(errs, err)
		}
		e.pool = nil
	}
	if e.kv != nil {
		if err := e.kv.Close(); err != nil {
			errs = append(errs, err)
		}
		e.kv = nil
	}
	return errors.Join(errs...)
}
