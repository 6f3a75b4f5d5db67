// Package kv implements the table store underneath the repository: named
// key→bytes tables inside one SQLite database, with atomic multi-table write
// transactions and snapshot reads.
package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

var (
	ErrKeyNotFound      = errors.New("kv: key not found")
	ErrReadOnly         = errors.New("kv: read-only transaction")
	ErrInvalidTableName = errors.New("kv: invalid table name")
)

// Config controls how the underlying SQLite database is opened.
type Config struct {
	// Path is the database file location, or ":memory:" for an in-memory
	// store (which forces a single connection so every caller sees the same
	// database).
	Path string

	BusyTimeout     time.Duration
	JournalMode     string
	Synchronous     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns the production settings for a store at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:            path,
		BusyTimeout:     5 * time.Second,
		JournalMode:     "WAL",
		Synchronous:     "NORMAL",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// Store is the single process-wide handle to the table store. Writes are
// serialized by an internal mutex; reads run on snapshot transactions and
// may overlap each other and the writer.
type Store struct {
	db *sql.DB

	// writeMu serializes Update transactions so multi-table commits never
	// contend inside SQLite itself.
	writeMu sync.Mutex
}

// Open creates (if needed) and opens the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("kv: database path must not be empty")
	}

	memory := cfg.Path == ":memory:" || strings.Contains(cfg.Path, "mode=memory")
	if !memory {
		if err := ensureDatabaseFile(cfg.Path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("kv: open database: %w", err)
	}

	if memory {
		// Pooled connections would each see their own empty database.
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	if err := configurePragmas(db, cfg); err != nil {
		db.Close()
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("kv: ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Update runs fn inside a single atomic write transaction. Exactly one
// Update runs at a time; the transaction commits when fn returns nil and
// rolls back when fn returns an error or panics.
func (s *Store) Update(ctx context.Context, fn func(*Txn) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("kv: begin write transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Txn{tx: tx, writable: true}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("kv: transaction failed: %v (rollback: %w)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("kv: commit transaction: %w", err)
	}
	return nil
}

// View runs fn inside a read-only snapshot transaction. Writes through a
// View transaction fail with ErrReadOnly.
func (s *Store) View(ctx context.Context, fn func(*Txn) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("kv: begin read transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Txn{tx: tx, writable: false}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Rollback()
}

func ensureDatabaseFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("kv: create database directory %s: %w", dir, err)
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("kv: create database file %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("kv: close database file %s: %w", path, err)
	}
	return nil
}

func configurePragmas(db *sql.DB, cfg Config) error {
	pragmas := []struct {
		name  string
		value any
	}{
		{"busy_timeout", int(cfg.BusyTimeout.Milliseconds())},
		{"journal_mode", cfg.JournalMode},
		{"synchronous", cfg.Synchronous},
	}

	for _, pragma := range pragmas {
		var stmt string
		switch v := pragma.value.(type) {
		case string:
			if v == "" {
				continue
			}
			stmt = fmt.Sprintf("PRAGMA %s = %s", pragma.name, v)
		case int:
			if v <= 0 {
				continue
			}
			stmt = fmt.Sprintf("PRAGMA %s = %d", pragma.name, v)
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("kv: set pragma %s: %w", pragma.name, err)
		}
	}
	return nil
}
