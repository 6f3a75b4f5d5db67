package kv

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
)

var tableNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Txn is a handle to one open transaction. Table handles obtained from it
// are only valid until the enclosing Update or View returns.
type Txn struct {
	tx       *sql.Tx
	writable bool
}

// Writable reports whether the transaction accepts writes.
func (t *Txn) Writable() bool {
	return t.writable
}

// Table opens a named table. Inside a write transaction the table is created
// on first use; inside a read transaction a table that was never created
// behaves as empty.
func (t *Txn) Table(ctx context.Context, name string) (*Table, error) {
	if !tableNamePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTableName, name)
	}

	if t.writable {
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (k TEXT PRIMARY KEY, v BLOB NOT NULL)`, name)
		if _, err := t.tx.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("kv: create table %s: %w", name, err)
		}
		return &Table{txn: t, name: name, exists: true}, nil
	}

	var found string
	err := t.tx.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&found)
	switch {
	case err == sql.ErrNoRows:
		return &Table{txn: t, name: name, exists: false}, nil
	case err != nil:
		return nil, fmt.Errorf("kv: inspect table %s: %w", name, err)
	}
	return &Table{txn: t, name: name, exists: true}, nil
}

// Table is a named key→bytes table bound to one transaction.
type Table struct {
	txn    *Txn
	name   string
	exists bool
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (tbl *Table) Get(ctx context.Context, key string) ([]byte, error) {
	if !tbl.exists {
		return nil, ErrKeyNotFound
	}
	var value []byte
	stmt := fmt.Sprintf(`SELECT v FROM %q WHERE k = ?`, tbl.name)
	err := tbl.txn.tx.QueryRowContext(ctx, stmt, key).Scan(&value)
	switch {
	case err == sql.ErrNoRows:
		return nil, ErrKeyNotFound
	case err != nil:
		return nil, fmt.Errorf("kv: get %s[%s]: %w", tbl.name, key, err)
	}
	return value, nil
}

// Put stores value under key, replacing any previous value.
func (tbl *Table) Put(ctx context.Context, key string, value []byte) error {
	if !tbl.txn.writable {
		return ErrReadOnly
	}
	stmt := fmt.Sprintf(
		`INSERT INTO %q (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
		tbl.name,
	)
	if _, err := tbl.txn.tx.ExecContext(ctx, stmt, key, value); err != nil {
		return fmt.Errorf("kv: put %s[%s]: %w", tbl.name, key, err)
	}
	return nil
}

// Delete removes key and reports whether a value was present.
func (tbl *Table) Delete(ctx context.Context, key string) (bool, error) {
	if !tbl.txn.writable {
		return false, ErrReadOnly
	}
	stmt := fmt.Sprintf(`DELETE FROM %q WHERE k = ?`, tbl.name)
	result, err := tbl.txn.tx.ExecContext(ctx, stmt, key)
	if err != nil {
		return false, fmt.Errorf("kv: delete %s[%s]: %w", tbl.name, key, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("kv: delete %s[%s]: rows affected: %w", tbl.name, key, err)
	}
	return affected > 0, nil
}

// ForEach invokes fn for every entry in ascending key order. The snapshot of
// entries is taken before the first callback, so fn may mutate the table.
func (tbl *Table) ForEach(ctx context.Context, fn func(key string, value []byte) error) error {
	return tbl.scan(ctx, fmt.Sprintf(`SELECT k, v FROM %q ORDER BY k`, tbl.name), nil, fn)
}

// Range invokes fn for every entry whose key starts with prefix, in
// ascending key order.
func (tbl *Table) Range(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	if prefix == "" {
		return tbl.ForEach(ctx, fn)
	}
	upper, bounded := prefixUpperBound(prefix)
	if bounded {
		stmt := fmt.Sprintf(`SELECT k, v FROM %q WHERE k >= ? AND k < ? ORDER BY k`, tbl.name)
		return tbl.scan(ctx, stmt, []any{prefix, upper}, fn)
	}
	stmt := fmt.Sprintf(`SELECT k, v FROM %q WHERE k >= ? ORDER BY k`, tbl.name)
	return tbl.scan(ctx, stmt, []any{prefix}, fn)
}

// Len returns the number of entries in the table.
func (tbl *Table) Len(ctx context.Context) (int, error) {
	if !tbl.exists {
		return 0, nil
	}
	var count int
	stmt := fmt.Sprintf(`SELECT COUNT(*) FROM %q`, tbl.name)
	if err := tbl.txn.tx.QueryRowContext(ctx, stmt).Scan(&count); err != nil {
		return 0, fmt.Errorf("kv: count %s: %w", tbl.name, err)
	}
	return count, nil
}

type entry struct {
	key   string
	value []byte
}

func (tbl *Table) scan(ctx context.Context, stmt string, args []any, fn func(key string, value []byte) error) error {
	if !tbl.exists {
		return nil
	}

	rows, err := tbl.txn.tx.QueryContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("kv: scan %s: %w", tbl.name, err)
	}

	// Drain before invoking callbacks so fn can issue statements on the
	// same transaction.
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.key, &e.value); err != nil {
			rows.Close()
			return fmt.Errorf("kv: scan %s: %w", tbl.name, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("kv: scan %s: %w", tbl.name, err)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("kv: scan %s: %w", tbl.name, err)
	}

	for _, e := range entries {
		if err := fn(e.key, e.value); err != nil {
			return err
		}
	}
	return nil
}

// prefixUpperBound returns the smallest string greater than every string
// with the given prefix, or ok=false when no such bound exists.
func prefixUpperBound(prefix string) (upper string, ok bool) {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1]), true
		}
	}
	return "", false
}
