package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/heimdall-sdk/internal/observability"
	"github.com/rafaeljc/heimdall-sdk/internal/validation"
)

const backendPostgres = "postgres"

// PostgresStore implements Store on a single table keyed by cache key. It
// suits deployments that already run PostgreSQL but no Redis.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresStore creates a store writing to table (default "config_cache").
func NewPostgresStore(pool *pgxpool.Pool, table string) *PostgresStore {
	validation.AssertNotNil(pool, "postgres pool")
	if table == "" {
		table = "config_cache"
	}
	return &PostgresStore{pool: pool, table: table}
}

// EnsureSchema creates the cache table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			cache_key  TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, pgx.Identifier{s.table}.Sanitize())

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create cache table: %w", err)
	}
	return nil
}

// Get reads the entry stored under key. A missing row is not an error.
func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE cache_key = $1`, pgx.Identifier{s.table}.Sanitize())

	var value string
	err := s.pool.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		observability.CacheMisses.WithLabelValues(backendPostgres).Inc()
		return "", nil
	}
	if err != nil {
		observability.CacheErrors.WithLabelValues(backendPostgres, "get").Inc()
		return "", fmt.Errorf("failed to read config entry from postgres: %w", err)
	}
	observability.CacheHits.WithLabelValues(backendPostgres).Inc()
	return value, nil
}

// Set upserts the entry stored under key.
func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (cache_key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (cache_key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		pgx.Identifier{s.table}.Sanitize())

	if _, err := s.pool.Exec(ctx, query, key, value); err != nil {
		observability.CacheErrors.WithLabelValues(backendPostgres, "set").Inc()
		return fmt.Errorf("failed to write config entry to postgres: %w", err)
	}
	return nil
}

// Name implements observability.Checker.
func (s *PostgresStore) Name() string {
	return backendPostgres
}

// Check pings the database. Used by the readiness probe.
func (s *PostgresStore) Check(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
