package repository

import (
	"context"
	"fmt"

	"fastfoot/internal/connections/database"
)

// AccountsRepository is the customer-account (cari) ledger. Accounts come
// into existence on first reference; the balance is the sum of entries,
// positive meaning the customer owes the house.
type AccountsRepository struct {
	db *database.Conn
}

func NewAccountsRepository(db *database.Conn) *AccountsRepository {
	return &AccountsRepository{db: db}
}

func (r *AccountsRepository) getOrCreate(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO customer_accounts (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve account %q: %w", name, err)
	}
	return id, nil
}

func (r *AccountsRepository) PostTransaction(ctx context.Context, name, label string, amount float64) error {
	id, err := r.getOrCreate(ctx, name)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO account_entries (account_id, label, amount) VALUES ($1, $2, $3)
	`, id, label, amount)
	if err != nil {
		return fmt.Errorf("failed to post account entry: %w", err)
	}
	return nil
}

func (r *AccountsRepository) Balance(ctx context.Context, name string) (float64, error) {
	id, err := r.getOrCreate(ctx, name)
	if err != nil {
		return 0, err
	}
	var balance float64
	err = r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM account_entries WHERE account_id = $1
	`, id).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

// ListAccounts returns every account with its balance, sorted by name.
func (r *AccountsRepository) ListAccounts(ctx context.Context) (map[string]float64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.name, COALESCE(SUM(e.amount), 0)
		FROM customer_accounts a
		LEFT JOIN account_entries e ON a.id = e.account_id
		GROUP BY a.name
		ORDER BY a.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var name string
		var balance float64
		if err := rows.Scan(&name, &balance); err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		out[name] = balance
	}
	return out, rows.Err()
}
