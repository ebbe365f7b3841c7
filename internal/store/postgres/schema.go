package postgres

import (
	"context"

	"github.com/pkg/errors"
)

// schemaStatements are idempotent and applied in order.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL,
		email         TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_username_lower_key ON users (lower(username))`,
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id    TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		role       TEXT NOT NULL CHECK (role IN ('admin', 'manager', 'teller')),
		is_active  BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price       NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		status      TEXT NOT NULL CHECK (status IN ('available', 'unavailable')),
		created_by  TEXT NOT NULL REFERENCES users(id),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id               TEXT PRIMARY KEY,
		teller_id        TEXT NOT NULL REFERENCES users(id),
		customer_name    TEXT NOT NULL DEFAULT '',
		total_amount     NUMERIC(12,2) NOT NULL CHECK (total_amount >= 0),
		payment_method   TEXT NOT NULL,
		transaction_date TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_date_idx ON transactions (transaction_date)`,
	`CREATE INDEX IF NOT EXISTS transactions_teller_date_idx ON transactions (teller_id, transaction_date)`,
	`CREATE TABLE IF NOT EXISTS transaction_items (
		id             TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
		product_id     TEXT NOT NULL REFERENCES products(id),
		product_name   TEXT NOT NULL DEFAULT '',
		quantity       INTEGER NOT NULL CHECK (quantity > 0),
		price          NUMERIC(12,2) NOT NULL CHECK (price >= 0)
	)`,
	`CREATE INDEX IF NOT EXISTS transaction_items_transaction_idx ON transaction_items (transaction_id)`,
}

// EnsureSchema creates any missing tables and indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "apply schema statement %d", i+1)
		}
	}
	return nil
}
