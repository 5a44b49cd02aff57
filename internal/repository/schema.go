package repository

import (
	"context"
	"fmt"

	"fastfoot/internal/connections/database"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sales (
		id SERIAL PRIMARY KEY,
		slot TEXT,
		product TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price DECIMAL(10, 2) NOT NULL,
		method TEXT NOT NULL,
		category TEXT DEFAULT 'normal',
		shift_id INTEGER,
		recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS customer_accounts (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS account_entries (
		id SERIAL PRIMARY KEY,
		account_id INTEGER NOT NULL REFERENCES customer_accounts(id) ON DELETE CASCADE,
		label TEXT NOT NULL,
		amount DECIMAL(10, 2) NOT NULL,
		entered_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS shifts (
		id SERIAL PRIMARY KEY,
		till_id INTEGER NOT NULL,
		cashier TEXT NOT NULL,
		opening_balance DECIMAL(10, 2) NOT NULL DEFAULT 0,
		opened_at TIMESTAMP NOT NULL,
		closed_at TIMESTAMP,
		closing_cash DECIMAL(10, 2),
		closing_card DECIMAL(10, 2),
		status TEXT NOT NULL DEFAULT 'open'
	)`,
	`CREATE TABLE IF NOT EXISTS menu (
		id SERIAL PRIMARY KEY,
		category TEXT NOT NULL,
		product TEXT NOT NULL,
		price DECIMAL(10, 2) NOT NULL,
		position INTEGER DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_recorded_at ON sales(recorded_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_shift ON sales(shift_id)`,
	`CREATE INDEX IF NOT EXISTS idx_account_entries_account ON account_entries(account_id)`,
	`CREATE INDEX IF NOT EXISTS idx_menu_category ON menu(category)`,
}

// InitSchema creates every table the repositories use. Idempotent.
func InitSchema(ctx context.Context, db *database.Conn) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
