package local

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/savekit/internal/fault"
	"github.com/roach88/savekit/internal/pool"
	"github.com/roach88/savekit/internal/registry"
	"github.com/roach88/savekit/internal/seal"
	"github.com/roach88/savekit/internal/wire"
)

// Record is one instance's entry in an aggregate file.
type Record struct {
	Type   string      `json:"type"`
	Fields wire.Object `json:"fields"`
}

// SaveRaw writes v as indented JSON to {root}/{name}.json, replacing any
// existing file.
func (s *Store) SaveRaw(ctx context.Context, name string, v any, mode pool.Mode) *pool.Future[struct{}] {
	const op = "local.SaveRaw"
	if err := checkName(op, name); err != nil {
		return pool.Resolved(struct{}{}, err)
	}

	return pool.Dispatch(ctx, s.pool, mode, true, func(ctx context.Context) error {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fault.Wrap(fault.CodeConversion, op, err)
		}
		return s.writeTraced(ctx, op, name, data)
	})
}

// SaveEncrypted writes v as base64 AES ciphertext of its JSON. It always
// runs on the pool because the first call fetches encryption material.
func (s *Store) SaveEncrypted(ctx context.Context, name string, v any) *pool.Future[struct{}] {
	const op = "local.SaveEncrypted"
	if err := checkName(op, name); err != nil {
		return pool.Resolved(struct{}{}, err)
	}

	return pool.Dispatch(ctx, s.pool, pool.Async, true, func(ctx context.Context) error {
		m, err := s.Material(ctx)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fault.Wrap(fault.CodeConversion, op, err)
		}
		sealed, err := seal.Encrypt(string(data), m)
		if err != nil {
			return err
		}
		return s.writeTraced(ctx, op, name, []byte(sealed))
	})
}

// SaveAuto harvests every Local-marked instance into an aggregate and
// writes it to {root}/{name}.json.
//
// Discovery runs on the caller's context so live instances can be found
// from the primary context; harvest and write run according to mode.
// Harvest finishes before serialization starts. Fields that fail to read
// are logged and left out; the save still succeeds.
func (s *Store) SaveAuto(ctx context.Context, name string, mode pool.Mode) *pool.Future[struct{}] {
	const op = "local.SaveAuto"
	if err := checkName(op, name); err != nil {
		return pool.Resolved(struct{}{}, err)
	}

	instances, err := s.reg.Discover(ctx, registry.Local)
	if len(instances) == 0 {
		return pool.Resolved(struct{}{}, err)
	}
	if err != nil {
		s.logger.Warn("partial discovery", "op", op, "error", err)
	}

	return pool.Dispatch(ctx, s.pool, mode, true, func(ctx context.Context) error {
		records := s.harvest(instances)
		data, err := MarshalAggregate(records)
		if err != nil {
			return fault.Wrap(fault.CodeConversion, op, err)
		}
		return s.writeTraced(ctx, op, name, data)
	})
}

func (s *Store) harvest(instances []registry.Instance) []Record {
	records := make([]Record, 0, len(instances))
	for _, inst := range instances {
		fields, errs := inst.Harvest(registry.Local)
		for _, err := range errs {
			s.logger.Warn("skipping field", "type", inst.Type, "error", err)
		}
		records = append(records, Record{Type: inst.Type, Fields: fields})
	}
	return records
}

// MarshalAggregate encodes records as canonical JSON.
func MarshalAggregate(records []Record) ([]byte, error) {
	arr := make([]any, len(records))
	for i, r := range records {
		arr[i] = map[string]any{
			"type":   r.Type,
			"fields": r.Fields,
		}
	}
	return wire.MarshalCanonical(arr)
}

// UnmarshalAggregate decodes an aggregate file.
func UnmarshalAggregate(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	for i, r := range records {
		if r.Type == "" {
			return nil, fmt.Errorf("record %d has no type", i)
		}
	}
	return records, nil
}

func (s *Store) writeTraced(ctx context.Context, op, name string, data []byte) error {
	_, span := tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("name", name),
		attribute.Int("bytes", len(data)),
		attribute.Bool("atomic", s.atomic),
	))
	defer span.End()

	if err := s.write(s.Path(name), data); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return fault.Wrap(fault.CodeIO, op, err)
	}
	s.logger.Debug("saved", "op", op, "name", name, "bytes", len(data))
	return nil
}
