// Package sqlite provides a durable cache.Store so a CLI session can reuse
// responses across runs. The driver is pure Go, so nothing beyond the file
// path is required.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/troca-app/troca-go/cache"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates (or reuses) the cache database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite cache: open %s: %w", path, err)
	}
	if _, err := db.Exec("CREATE TABLE IF NOT EXISTS responses (key TEXT PRIMARY KEY, stamp INTEGER NOT NULL, value BLOB NOT NULL)"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite cache: init schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// WithClock overrides the time source (useful for tests).
func (s *Store) WithClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key string, maxAge time.Duration) ([]byte, error) {
	var stamp int64
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT stamp, value FROM responses WHERE key = ?", key).Scan(&stamp, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite cache: get: %w", err)
	}
	if maxAge > 0 && s.now().Sub(time.UnixMilli(stamp)) >= maxAge {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM responses WHERE key = ?", key); err != nil {
			return nil, fmt.Errorf("sqlite cache: purge expired: %w", err)
		}
		return nil, cache.ErrNotFound
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO responses (key, stamp, value) VALUES (?, ?, ?)",
		key, s.now().UnixMilli(), value)
	if err != nil {
		return fmt.Errorf("sqlite cache: set: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM responses WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("sqlite cache: delete: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return cache.ErrNotFound
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM responses"); err != nil {
		return fmt.Errorf("sqlite cache: clear: %w", err)
	}
	return nil
}

func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM responses").Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite cache: count: %w", err)
	}
	return n, nil
}
