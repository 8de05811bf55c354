package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// schemaLockName serializes InitSchema across broker replicas.
const schemaLockName = "schema"

// DB is the connection pool behind the Postgres KV store and advisory lock.
type DB struct {
	*sql.DB
}

// Config holds database connection configuration
type Config struct {
	// URL is a postgres:// URL or a key=value DSN
	URL string

	// ApplicationName is reported to the server unless the URL already sets one
	ApplicationName string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// ConnectAttempts bounds how often the first ping is tried before Connect gives up.
	// The database commonly starts alongside the broker.
	ConnectAttempts int
	RetryInterval   time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns the pool settings the broker runs with.
// Each request touches a handful of short-lived rows, and the sweeper pins
// one extra connection while it holds its advisory lock.
func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		ApplicationName: "oauth-broker",
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectAttempts: 5,
		RetryInterval:   2 * time.Second,
	}
}

// Connect opens the pool and waits for the database to answer a ping.
func Connect(ctx context.Context, cfg Config) (*DB, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("postgres", withApplicationName(cfg.URL, cfg.ApplicationName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	attempts := max(cfg.ConnectAttempts, 1)
	var pingErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if pingErr = db.PingContext(ctx); pingErr == nil {
			return &DB{DB: db}, nil
		}
		if attempt == attempts {
			break
		}
		logger.Warn("database not ready, retrying",
			"attempt", attempt,
			"max_attempts", attempts,
			"error", pingErr,
		)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}

	db.Close()
	return nil, fmt.Errorf("failed to ping database after %d attempts: %w", attempts, pingErr)
}

// withApplicationName adds application_name to a URL or key=value DSN that lacks one.
func withApplicationName(dsn, name string) string {
	if name == "" || strings.Contains(dsn, "application_name") {
		return dsn
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return dsn
		}
		q := u.Query()
		q.Set("application_name", name)
		u.RawQuery = q.Encode()
		return u.String()
	}
	return strings.TrimSpace(dsn + " application_name=" + name)
}

// InitSchema creates the kv_entries table. Replicas starting together take
// a transaction-scoped advisory lock so the DDL runs one at a time.
func (db *DB) InitSchema(ctx context.Context) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", hashLockName(schemaLockName)); err != nil {
		return fmt.Errorf("failed to lock schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return tx.Commit()
}

// Ping checks if the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
