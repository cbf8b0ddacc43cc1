// Package sqlite implements storage.Backend in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"kanban/internal/storage"
)

// Store keeps counters, field maps and sets in three SQLite tables.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open initializes a new SQLite store and runs the required migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{db: conn, logger: logger}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Info("opened sqlite store", slog.String("path", dbPath))
	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv_counters (
            key TEXT PRIMARY KEY,
            value INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS kv_fields (
            key TEXT NOT NULL,
            field TEXT NOT NULL,
            value TEXT NOT NULL,
            PRIMARY KEY(key, field)
        );`,
		`CREATE TABLE IF NOT EXISTS kv_members (
            key TEXT NOT NULL,
            member TEXT NOT NULL,
            PRIMARY KEY(key, member)
        );`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// withTx runs fn in a transaction, committing only when fn succeeds.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Unavailable(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return storage.Unavailable(op, err)
	}
	if err := tx.Commit(); err != nil {
		return storage.Unavailable(op, err)
	}
	return nil
}

func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `INSERT INTO kv_counters(key, value) VALUES(?, 1)
        ON CONFLICT(key) DO UPDATE SET value = value + 1
        RETURNING value`, key).Scan(&n)
	if err != nil {
		return 0, storage.Unavailable("incr", err)
	}
	return n, nil
}

func (s *Store) PutRecord(ctx context.Context, recordKey string, fields map[string]string, setKey, member string) error {
	return s.withTx(ctx, "put record", func(tx *sql.Tx) error {
		for field, value := range fields {
			if err := upsertField(ctx, tx, recordKey, field, value); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO kv_members(key, member) VALUES(?, ?)`, setKey, member)
		return err
	})
}

func upsertField(ctx context.Context, tx *sql.Tx, key, field, value string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO kv_fields(key, field, value) VALUES(?, ?, ?)
        ON CONFLICT(key, field) DO UPDATE SET value = excluded.value`, key, field, value)
	return err
}

func (s *Store) Record(ctx context.Context, recordKey string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT field, value FROM kv_fields WHERE key = ?`, recordKey)
	if err != nil {
		return nil, storage.Unavailable("read record", err)
	}
	defer rows.Close()

	rec := map[string]string{}
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, storage.Unavailable("scan field", err)
		}
		rec[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("read record", err)
	}
	return rec, nil
}

func (s *Store) Field(ctx context.Context, recordKey, field string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_fields WHERE key = ? AND field = ?`, recordKey, field).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storage.Unavailable("read field", err)
	}
	return value, true, nil
}

func (s *Store) SetFieldIfExists(ctx context.Context, recordKey, field, value string) (bool, error) {
	var updated bool
	err := s.withTx(ctx, "set field", func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM kv_fields WHERE key = ?)`, recordKey).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return nil
		}
		if err := upsertField(ctx, tx, recordKey, field, value); err != nil {
			return err
		}
		updated = true
		return nil
	})
	return updated, err
}

func (s *Store) RemoveRecord(ctx context.Context, recordKey, setKey, member string) error {
	return s.withTx(ctx, "remove record", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv_fields WHERE key = ?`, recordKey); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM kv_members WHERE key = ? AND member = ?`, setKey, member)
		return err
	})
}

func (s *Store) Members(ctx context.Context, setKey string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT member FROM kv_members WHERE key = ?`, setKey)
	if err != nil {
		return nil, storage.Unavailable("read members", err)
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, storage.Unavailable("scan member", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("read members", err)
	}
	return members, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storage.Unavailable("ping", err)
	}
	return nil
}
