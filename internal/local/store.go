package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"

	"github.com/roach88/savekit/internal/fault"
	"github.com/roach88/savekit/internal/pool"
	"github.com/roach88/savekit/internal/registry"
	"github.com/roach88/savekit/internal/seal"
)

var tracer = otel.Tracer("github.com/roach88/savekit/internal/local")

const (
	fileExt   = ".json"
	prefsName = "prefs"
)

// MaterialSource fetches encryption material, normally the cloud store's
// secret endpoint.
type MaterialSource interface {
	EncryptionMaterial(ctx context.Context) (seal.Material, error)
}

// Options configures a Store.
type Options struct {
	// BaseDir is the parent of every application's directory.
	// Defaults to DefaultBaseDir().
	BaseDir string

	// Company and Product name the application directory. Required.
	Company string
	Product string

	// Registry supplies Local-marked instances. Defaults to registry.Default.
	Registry *registry.Registry

	// Pool runs file I/O. Required.
	Pool *pool.Pool

	// Materials provides encryption material for SaveEncrypted and
	// encrypted loads. Optional.
	Materials MaterialSource

	// AtomicWrites writes through a temp file and rename.
	AtomicWrites bool

	Logger *slog.Logger
}

// Store is the local file store. Safe for concurrent use; concurrent
// saves to the same name race and the last write wins.
type Store struct {
	root      string
	reg       *registry.Registry
	pool      *pool.Pool
	materials MaterialSource
	atomic    bool
	logger    *slog.Logger

	matMu    sync.Mutex
	material *seal.Material // First successful fetch, never replaced

	prefMu sync.Mutex
}

// DefaultBaseDir returns ~/Documents/My Games, falling back to the
// working directory when no home directory is known.
func DefaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Documents", "My Games")
}

// Open creates the application root if needed and returns a Store.
func Open(opts Options) (*Store, error) {
	if opts.Company == "" || opts.Product == "" {
		return nil, errors.New("local: company and product are required")
	}
	if opts.Pool == nil {
		return nil, errors.New("local: pool is required")
	}
	base := opts.BaseDir
	if base == "" {
		base = DefaultBaseDir()
	}

	root := filepath.Join(base, opts.Company, opts.Product)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fault.Wrap(fault.CodeIO, "local.Open", err)
	}

	s := &Store{
		root:      root,
		reg:       opts.Registry,
		pool:      opts.Pool,
		materials: opts.Materials,
		atomic:    opts.AtomicWrites,
		logger:    opts.Logger,
	}
	if s.reg == nil {
		s.reg = registry.Default
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "local")
	return s, nil
}

// Root returns the application directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the file path for a save name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.root, name+fileExt)
}

func checkName(op, name string) error {
	switch {
	case name == "":
		return fault.New(fault.CodeIO, op, "empty save name")
	case name == prefsName:
		return fault.New(fault.CodeIO, op, fmt.Sprintf("%q is reserved for preferences", name))
	case strings.ContainsAny(name, `/\`) || name == "." || name == "..":
		return fault.New(fault.CodeIO, op, fmt.Sprintf("invalid save name %q", name))
	}
	return nil
}

// Material returns the cached encryption material, fetching it on first
// use. A failed fetch is not cached; the next call tries again.
func (s *Store) Material(ctx context.Context) (seal.Material, error) {
	s.matMu.Lock()
	defer s.matMu.Unlock()

	if s.material != nil {
		return *s.material, nil
	}
	if s.materials == nil {
		return seal.Material{}, fault.New(fault.CodeCrypto, "local.Material", "no material source configured")
	}

	m, err := s.materials.EncryptionMaterial(ctx)
	if err != nil {
		return seal.Material{}, err
	}
	if err := m.Valid(); err != nil {
		return seal.Material{}, err
	}
	s.material = &m
	s.logger.Debug("encryption material cached", "material", m)
	return m, nil
}

func (s *Store) write(path string, data []byte) error {
	if s.atomic {
		return atomicWrite(path, data, 0o644)
	}
	return os.WriteFile(path, data, 0o644)
}

// atomicWrite writes data to path using temp file + rename.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".savekit-tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	tmpFile = nil
	return nil
}
