// Package postgres keeps collection snapshots in a PostgreSQL jsonb table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mikepea/stockpile/pkg/stockpile/backing"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	bucket     TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Backing stores snapshots through a pgx connection pool.
type Backing struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL, verifies the connection and ensures the schema.
func Open(ctx context.Context, databaseURL string) (*Backing, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database url is required")
	}
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Backing{pool: pool}, nil
}

// Load returns the stored snapshot for collection.
func (b *Backing) Load(ctx context.Context, collection string) ([]byte, error) {
	var payload []byte
	err := b.pool.QueryRow(ctx,
		`SELECT payload::text FROM snapshots WHERE bucket = $1`, collection,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, backing.ErrNotFound
		}
		return nil, fmt.Errorf("load %s: %w", collection, err)
	}
	return payload, nil
}

// Save upserts the snapshot for collection.
func (b *Backing) Save(ctx context.Context, collection string, payload []byte) error {
	_, err := b.pool.Exec(ctx, `
		INSERT INTO snapshots (bucket, payload, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (bucket) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		collection, string(payload),
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", collection, err)
	}
	return nil
}

// Close closes the pool.
func (b *Backing) Close() error {
	b.pool.Close()
	return nil
}
