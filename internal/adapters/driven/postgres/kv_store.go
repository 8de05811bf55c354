package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/oauth-broker/internal/core/domain"
	"github.com/custodia-labs/oauth-broker/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.KVStore             = (*KVStore)(nil)
	_ driven.ExpiredEntrySweeper = (*KVStore)(nil)
)

// KVStore implements driven.KVStore on the kv_entries table.
// Expired rows are invisible to reads and removed by Cleanup.
type KVStore struct {
	db  *DB
	now func() time.Time
}

// NewKVStore creates a new PostgreSQL-backed KVStore
func NewKVStore(db *DB) *KVStore {
	return &KVStore{db: db, now: time.Now}
}

// Put upserts value under key
func (s *KVStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("put %s: ttl must be positive", key)
	}

	query := `
		INSERT INTO kv_entries (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, s.now().Add(ttl)); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// Get retrieves an unexpired value
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT value FROM kv_entries WHERE key = $1 AND expires_at > $2`

	var value []byte
	err := s.db.QueryRowContext(ctx, query, key, s.now()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

// Delete removes key
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// GetAndDelete atomically deletes the row and returns its value.
// An expired row is deleted too but reported as not found.
func (s *KVStore) GetAndDelete(ctx context.Context, key string) ([]byte, error) {
	query := `DELETE FROM kv_entries WHERE key = $1 RETURNING value, expires_at`

	var value []byte
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume %s: %w", key, err)
	}
	if !s.now().Before(expiresAt) {
		return nil, domain.ErrNotFound
	}
	return value, nil
}

// Ping checks if the database is reachable
func (s *KVStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Cleanup removes expired rows
func (s *KVStore) Cleanup(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE expires_at <= $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up expired entries: %w", err)
	}
	return result.RowsAffected()
}
