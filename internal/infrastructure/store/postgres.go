package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

// Schema creates the tables the engine needs. Stock counters carry CHECK
// constraints so a bad write can never push them below zero.
const Schema = `
CREATE TABLE IF NOT EXISTS products (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	image           TEXT NOT NULL DEFAULT '',
	price           NUMERIC(12,2) NOT NULL,
	tax_rate        NUMERIC(6,4) NOT NULL DEFAULT 0,
	tracks_quantity BOOLEAN NOT NULL DEFAULT TRUE,
	quantity        INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0)
);

CREATE TABLE IF NOT EXISTS product_sizes (
	product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	size       TEXT NOT NULL,
	quantity   INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
	PRIMARY KEY (product_id, size)
);

CREATE TABLE IF NOT EXISTS orders (
	id               UUID PRIMARY KEY,
	order_number     TEXT NOT NULL UNIQUE,
	user_id          TEXT,
	is_guest_order   BOOLEAN NOT NULL DEFAULT FALSE,
	status           TEXT NOT NULL,
	payment_method   TEXT NOT NULL,
	payment_status   TEXT NOT NULL,
	is_paid          BOOLEAN NOT NULL DEFAULT FALSE,
	gateway_order_id TEXT UNIQUE,
	total_price      NUMERIC(12,2) NOT NULL CHECK (total_price >= 0),
	document         JSONB NOT NULL,
	version          INTEGER NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_stale ON orders (status, is_paid, created_at);

CREATE TABLE IF NOT EXISTS order_status_history (
	order_id   UUID NOT NULL REFERENCES orders(id),
	seq        INTEGER NOT NULL,
	status     TEXT NOT NULL,
	note       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (order_id, seq)
);
`

// PostgresStore implements the catalog, stock and order ports on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema applies Schema. Every statement is idempotent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(ctx context.Context, connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
