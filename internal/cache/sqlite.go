package cache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// SQLiteStore is the default durable cache backend. Cached provider answers
// survive process restarts, which matters for large library rescans.
type SQLiteStore struct {
	conn *sql.DB
	path string
}

// NewSQLiteStore opens (creating if necessary) the cache database at path
// and runs pending schema migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// SQLite only supports one writer
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.PingContext(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	store := &SQLiteStore{conn: conn, path: path}
	if err := store.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(s.conn, "migrations"); err != nil {
		return fmt.Errorf("failed to run cache migrations: %w", err)
	}
	return nil
}

// Get retrieves a value. Expired entries are deleted and reported as misses.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expiresAt int64

	row := s.conn.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key)
	if err := row.Scan(&value, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache read failed: %w", err)
	}

	if time.Now().Unix() >= expiresAt {
		_, _ = s.conn.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
		return nil, false, nil
	}
	return value, true, nil
}

// Put stores a value with the given TTL. Existing entries are overwritten
// wholesale; last write wins on concurrent refreshes of the same key.
func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now()
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value, created_at, expires_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   value = excluded.value,
		   created_at = excluded.created_at,
		   expires_at = excluded.expires_at`,
		key, value, now.Unix(), now.Add(ttl).Unix())
	if err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}
	return nil
}

// Clear removes all entries.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("cache clear failed: %w", err)
	}
	return nil
}

// SizeEstimate returns the number of stored entries.
func (s *SQLiteStore) SizeEstimate(ctx context.Context) (int64, error) {
	var count int64
	row := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("cache count failed: %w", err)
	}
	return count, nil
}

// Sweep deletes all expired entries and returns how many were removed.
// The janitor calls this periodically so lazily-expired rows do not pile up.
func (s *SQLiteStore) Sweep(ctx context.Context) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("cache sweep failed: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
