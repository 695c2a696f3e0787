package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/roach88/savekit/internal/fault"
)

// Strategy identifies how a registered type's instances are acquired.
type Strategy int

const (
	// StrategyFactory builds one fresh instance per pass.
	StrategyFactory Strategy = iota + 1
	// StrategyLive enumerates instances from a primary-context-only index.
	StrategyLive
)

func (s Strategy) String() string {
	switch s {
	case StrategyFactory:
		return "factory"
	case StrategyLive:
		return "live"
	default:
		return "unknown"
	}
}

// Acquirer produces instances of T for a discovery pass.
type Acquirer[T any] struct {
	strategy Strategy
	factory  func() *T
	live     func() []*T
}

// Factory acquires instances through a zero-argument constructor.
func Factory[T any](fn func() *T) Acquirer[T] {
	return Acquirer[T]{strategy: StrategyFactory, factory: fn}
}

// Live acquires every live instance from a host-owned index.
func Live[T any](fn func() []*T) Acquirer[T] {
	return Acquirer[T]{strategy: StrategyLive, live: fn}
}

// TypeInfo describes a registered type.
type TypeInfo struct {
	// Name is the registered type name, used to tag aggregate records.
	Name string

	// GoType is the struct type T.
	GoType reflect.Type

	// Markers are the persistence kinds the type opted into.
	Markers Marker

	// Strategy is how instances are acquired.
	Strategy Strategy

	fields  []FieldRef
	acquire func() []any
}

// Fields returns the fields carrying marker m, in declaration order.
func (ti *TypeInfo) Fields(m Marker) []FieldRef {
	var out []FieldRef
	for _, f := range ti.fields {
		if f.Markers.Has(m) {
			out = append(out, f)
		}
	}
	return out
}

// New returns a fresh zero *T, unrelated to any live instance.
func (ti *TypeInfo) New() any {
	return reflect.New(ti.GoType).Interface()
}

// Instance is one participating object in a discovery pass.
type Instance struct {
	// Object is a *T for the registered T.
	Object any

	// Type is the registered type name.
	Type string

	// Fields are the object's fields carrying the discovery marker.
	Fields []FieldRef
}

// Registry holds the opt-in types of a process.
// Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	types  []*TypeInfo // Registration order; discovery order follows it
	byType map[reflect.Type]*TypeInfo
	byName map[string]*TypeInfo
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for discovery warnings.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		byType: make(map[reflect.Type]*TypeInfo),
		byName: make(map[string]*TypeInfo),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Default is the process-wide registry for hosts that register from init().
var Default = New()

// Register records struct type T under name, opting it into markers.
// Tagged fields are validated here: unsupported field types and duplicate
// keys are rejected before any discovery pass runs.
func Register[T any](r *Registry, name string, markers Marker, acq Acquirer[T]) error {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("register %s: %s is not a struct type", name, t)
	}
	if name == "" {
		return fmt.Errorf("register %s: empty type name", t)
	}
	if markers == 0 {
		return fmt.Errorf("register %s: no markers", name)
	}

	var acquire func() []any
	switch acq.strategy {
	case StrategyFactory:
		if acq.factory == nil {
			return fmt.Errorf("register %s: nil factory", name)
		}
		acquire = func() []any {
			obj := acq.factory()
			if obj == nil {
				return nil
			}
			return []any{obj}
		}
	case StrategyLive:
		if acq.live == nil {
			return fmt.Errorf("register %s: nil live index", name)
		}
		acquire = func() []any {
			found := acq.live()
			out := make([]any, 0, len(found))
			for _, obj := range found {
				if obj != nil {
					out = append(out, obj)
				}
			}
			return out
		}
	default:
		return fmt.Errorf("register %s: no acquirer", name)
	}

	fields, err := collectFields(name, t)
	if err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}

	ti := &TypeInfo{
		Name:     name,
		GoType:   t,
		Markers:  markers,
		Strategy: acq.strategy,
		fields:   fields,
		acquire:  acquire,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("register %s: name already registered", name)
	}
	if _, dup := r.byType[t]; dup {
		return fmt.Errorf("register %s: type %s already registered", name, t)
	}
	r.types = append(r.types, ti)
	r.byType[t] = ti
	r.byName[name] = ti
	return nil
}

// MustRegister is Register that panics on error, for use in init().
func MustRegister[T any](r *Registry, name string, markers Marker, acq Acquirer[T]) {
	if err := Register(r, name, markers, acq); err != nil {
		panic(err)
	}
}

// Lookup returns the registration for struct type t.
func (r *Registry) Lookup(t reflect.Type) (*TypeInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ti, ok := r.byType[t]
	return ti, ok
}

// LookupName returns the registration for a type name.
func (r *Registry) LookupName(name string) (*TypeInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ti, ok := r.byName[name]
	return ti, ok
}

// LookupFor returns the registration for T.
func LookupFor[T any](r *Registry) (*TypeInfo, bool) {
	return r.Lookup(reflect.TypeFor[T]())
}

// Types returns the registered types in registration order.
func (r *Registry) Types() []*TypeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*TypeInfo, len(r.types))
	copy(out, r.types)
	return out
}

// Discover returns every participating instance for marker m.
//
// Live types visited off the primary context are skipped and reported as
// a Discovery fault alongside the instances that were found. A pass with
// no participating instances at all also returns a Discovery fault.
func (r *Registry) Discover(ctx context.Context, m Marker) ([]Instance, error) {
	var (
		out        []Instance
		offPrimary []string
	)

	primary := IsPrimary(ctx)
	for _, ti := range r.Types() {
		if !ti.Markers.Has(m) {
			continue
		}
		if ti.Strategy == StrategyLive && !primary {
			r.logger.Warn("live instances can only be discovered on the primary context",
				"type", ti.Name, "marker", m.String())
			offPrimary = append(offPrimary, ti.Name)
			continue
		}

		fields := ti.Fields(m)
		for _, obj := range ti.acquire() {
			out = append(out, Instance{Object: obj, Type: ti.Name, Fields: fields})
		}
	}

	var errs []error
	if len(offPrimary) > 0 {
		errs = append(errs, &fault.Error{
			Code:    fault.CodeDiscovery,
			Op:      "registry.Discover",
			Type:    strings.Join(offPrimary, ","),
			Message: "live index accessed off the primary context",
		})
	}
	if len(out) == 0 {
		errs = append(errs, fault.New(fault.CodeDiscovery, "registry.Discover",
			fmt.Sprintf("no participating instances for marker %s", m)))
	}
	return out, errors.Join(errs...)
}
