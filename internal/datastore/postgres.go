package datastore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/gatewise/gatewise/migrations"
)

// PostgresAdapter persists spec payloads in a single keyed table backed by a
// pgxpool connection pool. Multiple SDK instances can safely share the table;
// Set is a last-write-wins upsert.
type PostgresAdapter struct {
	pool *pgxpool.Pool
}

// NewPostgresAdapter creates a [PostgresAdapter] on an existing pool. The
// pool's lifecycle belongs to the caller unless Shutdown is used.
func NewPostgresAdapter(pool *pgxpool.Pool) *PostgresAdapter {
	return &PostgresAdapter{pool: pool}
}

// Connect opens a pool for connString, applies migrations, and returns a
// ready adapter.
func Connect(ctx context.Context, connString string) (*PostgresAdapter, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(pool); err != nil {
		pool.Close()
		return nil, err
	}
	return NewPostgresAdapter(pool), nil
}

// RunMigrations applies the embedded goose migrations to the pool's database.
func RunMigrations(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Pool exposes the underlying pool for metrics registration.
func (a *PostgresAdapter) Pool() *pgxpool.Pool {
	return a.pool
}

// Get returns the stored payload for key, or ErrNotFound.
func (a *PostgresAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := a.pool.QueryRow(ctx, `
		SELECT value
		FROM spec_cache
		WHERE key = $1
	`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get spec cache entry: %w", err)
	}
	return value, nil
}

// Set upserts the payload for key.
func (a *PostgresAdapter) Set(ctx context.Context, key string, value []byte) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO spec_cache (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("set spec cache entry: %w", err)
	}
	return nil
}

// Shutdown closes the connection pool.
func (a *PostgresAdapter) Shutdown(ctx context.Context) error {
	a.pool.Close()
	return nil
}
