package local

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/savekit/internal/fault"
	"github.com/roach88/savekit/internal/pool"
	"github.com/roach88/savekit/internal/registry"
	"github.com/roach88/savekit/internal/seal"
)

// Loaded is the result of TryLoad. When Found is false, Value is the zero
// value and must not be treated as a valid default.
type Loaded[T any] struct {
	Found bool
	Value T
}

// TryLoad reads {root}/{name}.json into a T.
//
// If the file holds an aggregate and T is a registered type, the record
// tagged with T's type name is written into a fresh T through its Local
// fields; unmarked fields keep their zero values. Otherwise the file is
// decoded as plain JSON.
//
// The future never resolves with an error: every failure is logged and
// reported as Found == false. Encrypted loads always run on the pool.
func TryLoad[T any](ctx context.Context, s *Store, name string, encrypted bool, mode pool.Mode) *pool.Future[Loaded[T]] {
	if encrypted {
		mode = pool.Async
	}
	f := pool.Run(ctx, s.pool, mode, false, func(ctx context.Context) (out Loaded[T], err error) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("load panicked", "name", name, "encrypted", encrypted, "panic", r)
				out, err = Loaded[T]{}, nil
			}
		}()
		v, err := load[T](ctx, s, name, encrypted)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				s.logger.Warn("load failed", "name", name, "encrypted", encrypted, "error", err)
			}
			return Loaded[T]{}, nil
		}
		return Loaded[T]{Found: true, Value: v}, nil
	})
	return pool.Recover(f, func(err error) Loaded[T] {
		s.logger.Warn("load not run", "name", name, "encrypted", encrypted, "error", err)
		return Loaded[T]{}
	})
}

func load[T any](ctx context.Context, s *Store, name string, encrypted bool) (T, error) {
	const op = "local.TryLoad"
	var zero T

	if err := checkName(op, name); err != nil {
		return zero, err
	}
	_, span := tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("name", name),
		attribute.Bool("encrypted", encrypted),
	))
	defer span.End()

	data, err := s.read(ctx, name, encrypted)
	if err != nil {
		return zero, err
	}

	if ti, ok := registry.LookupFor[T](s.reg); ok && isArray(data) {
		return fromAggregate[T](ti, data)
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, fault.Wrap(fault.CodeConversion, op, err)
	}
	return out, nil
}

// read returns the file's JSON payload, decrypting it if asked.
func (s *Store) read(ctx context.Context, name string, encrypted bool) ([]byte, error) {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return nil, err
	}
	if !encrypted {
		return data, nil
	}

	m, err := s.Material(ctx)
	if err != nil {
		return nil, err
	}
	plain, err := seal.Decrypt(string(data), m)
	if err != nil {
		return nil, err
	}
	return []byte(plain), nil
}

// fromAggregate builds a T from the first record tagged with ti's name.
// Any field that fails to convert fails the whole load.
func fromAggregate[T any](ti *registry.TypeInfo, data []byte) (T, error) {
	var zero T

	records, err := UnmarshalAggregate(data)
	if err != nil {
		return zero, fault.Wrap(fault.CodeConversion, "local.TryLoad", err)
	}
	for _, r := range records {
		if r.Type != ti.Name {
			continue
		}
		obj := ti.New().(*T)
		inst := registry.Instance{Object: obj, Type: ti.Name, Fields: ti.Fields(registry.Local)}
		if _, errs := inst.Apply(registry.Local, r.Fields); len(errs) > 0 {
			return zero, errors.Join(errs...)
		}
		return *obj, nil
	}
	return zero, fmt.Errorf("no %s record: %w", ti.Name, os.ErrNotExist)
}

func isArray(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '['
}

// LoadAuto reads an aggregate written by SaveAuto and writes its records
// back into the currently discovered Local instances. The n-th live
// instance of a type receives the n-th record of that type; instances
// without a record are left alone. Discovery runs on the caller's
// context. Resolves to the number of fields written; conversion failures
// are logged and skipped.
func (s *Store) LoadAuto(ctx context.Context, name string, mode pool.Mode) *pool.Future[int] {
	const op = "local.LoadAuto"
	if err := checkName(op, name); err != nil {
		return pool.Resolved(0, err)
	}

	instances, err := s.reg.Discover(ctx, registry.Local)
	if len(instances) == 0 {
		return pool.Resolved(0, err)
	}
	if err != nil {
		s.logger.Warn("partial discovery", "op", op, "error", err)
	}

	return pool.Run(ctx, s.pool, mode, false, func(ctx context.Context) (int, error) {
		data, err := s.read(ctx, name, false)
		if err != nil {
			return 0, fault.Wrap(fault.CodeIO, op, err)
		}
		records, err := UnmarshalAggregate(data)
		if err != nil {
			return 0, fault.Wrap(fault.CodeConversion, op, err)
		}

		byType := make(map[string][]Record)
		for _, r := range records {
			byType[r.Type] = append(byType[r.Type], r)
		}

		written := 0
		for _, inst := range instances {
			queue := byType[inst.Type]
			if len(queue) == 0 {
				continue
			}
			byType[inst.Type] = queue[1:]

			n, errs := inst.Apply(registry.Local, queue[0].Fields)
			for _, err := range errs {
				s.logger.Warn("skipping field", "type", inst.Type, "error", err)
			}
			written += n
		}
		return written, nil
	})
}
