package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of *pgxpool.Pool used by repositories. pgxmock pools satisfy it too.
type DB interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPool creates and pings a new pgx connection pool.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Schema creates the orders table when it is missing.
const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	id                    TEXT PRIMARY KEY,
	restaurant_id         TEXT NOT NULL,
	status                TEXT NOT NULL DEFAULT 'pending',
	pickup_option         TEXT NOT NULL DEFAULT 'asap',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	accepted_at           TIMESTAMPTZ,
	auto_cancel_at        TIMESTAMPTZ,
	estimated_pickup_time TEXT NOT NULL DEFAULT '',
	cancellation_reason   TEXT NOT NULL DEFAULT '',
	customer_name         TEXT NOT NULL DEFAULT '',
	customer_email        TEXT NOT NULL DEFAULT '',
	items                 JSONB NOT NULL DEFAULT '[]',
	total                 NUMERIC(12, 2) NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS orders_restaurant_created_idx ON orders (restaurant_id, created_at DESC);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, db DB) error {
	_, err := db.Exec(ctx, Schema)
	return err
}
