package kvstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/savekit/internal/wire"
)

// Entry is one stored key.
type Entry struct {
	Key   string
	Value wire.Value
	Seq   int64
}

// Namespace summarizes one identity's stored keys.
type Namespace struct {
	Name    string
	Keys    int
	LastSeq int64
}

// SaveAll upserts every item into namespace ns in one transaction.
// Keys not in items are left as they are.
func (s *Store) SaveAll(ctx context.Context, ns string, items map[string]wire.Value) (err error) {
	if ns == "" {
		return fmt.Errorf("save all: empty namespace")
	}
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save all: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(updated_seq), 0) + 1 FROM items`).Scan(&seq); err != nil {
		return fmt.Errorf("save all: next seq: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items (namespace, key, kind, value, updated_seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			kind = excluded.kind,
			value = excluded.value,
			updated_seq = excluded.updated_seq
	`)
	if err != nil {
		return fmt.Errorf("save all: prepare: %w", err)
	}
	defer stmt.Close()

	// Sorted so the same batch always writes rows in the same order.
	for _, key := range wire.Object(items).SortedKeys() {
		v := items[key]
		if v == nil {
			return fmt.Errorf("save all: key %q: nil value", key)
		}
		data, err := wire.MarshalValue(v)
		if err != nil {
			return fmt.Errorf("save all: key %q: %w", key, err)
		}
		if _, err := stmt.ExecContext(ctx, ns, key, v.Kind().String(), string(data), seq); err != nil {
			return fmt.Errorf("save all: key %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save all: commit: %w", err)
	}
	return nil
}

// LoadAll returns every key in namespace ns. An empty namespace yields
// an empty, non-nil map.
func (s *Store) LoadAll(ctx context.Context, ns string) (map[string]wire.Value, error) {
	entries, err := s.Entries(ctx, ns)
	if err != nil {
		return nil, err
	}
	out := make(map[string]wire.Value, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	return out, nil
}

// Entries returns namespace ns ordered by key.
func (s *Store) Entries(ctx context.Context, ns string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, kind, value, updated_seq
		FROM items
		WHERE namespace = ?
		ORDER BY key COLLATE BINARY ASC
	`, ns)
	if err != nil {
		return nil, fmt.Errorf("load namespace %q: %w", ns, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("load namespace %q: %w", ns, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load namespace %q: %w", ns, err)
	}
	return out, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e          Entry
		kind, data string
	)
	if err := rows.Scan(&e.Key, &kind, &data, &e.Seq); err != nil {
		return Entry{}, err
	}
	k, err := wire.ParseKind(kind)
	if err != nil {
		return Entry{}, fmt.Errorf("key %q: %w", e.Key, err)
	}
	v, err := wire.UnmarshalKind(k, []byte(data))
	if err != nil {
		return Entry{}, fmt.Errorf("key %q: %w", e.Key, err)
	}
	e.Value = v
	return e, nil
}

// DeleteAll removes every key in namespace ns.
func (s *Store) DeleteAll(ctx context.Context, ns string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE namespace = ?`, ns); err != nil {
		return fmt.Errorf("delete namespace %q: %w", ns, err)
	}
	return nil
}

// Namespaces lists every non-empty namespace ordered by name.
func (s *Store) Namespaces(ctx context.Context) ([]Namespace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT namespace, COUNT(*), MAX(updated_seq)
		FROM items
		GROUP BY namespace
		ORDER BY namespace COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	defer rows.Close()

	var out []Namespace
	for rows.Next() {
		var n Namespace
		if err := rows.Scan(&n.Name, &n.Keys, &n.LastSeq); err != nil {
			return nil, fmt.Errorf("list namespaces: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
