package repository

import (
	"context"
	"fmt"

	"fastfoot/internal/connections/database"
	"fastfoot/internal/domain"
	"fastfoot/internal/menu"
)

// MenuRepository keeps the orderable products. The menu.txt file remains
// the operator-facing source; SyncFromFile replaces the table contents with
// the file so both views agree.
type MenuRepository struct {
	db *database.Conn
}

func NewMenuRepository(db *database.Conn) *MenuRepository {
	return &MenuRepository{db: db}
}

func (r *MenuRepository) SyncFromFile(ctx context.Context, path string) (int, error) {
	entries, err := menu.ParseFile(path)
	if err != nil {
		return 0, err
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM menu`); err != nil {
		return 0, fmt.Errorf("failed to clear menu: %w", err)
	}
	for i, e := range entries {
		_, err := tx.Exec(ctx, `
			INSERT INTO menu (category, product, price, position) VALUES ($1, $2, $3, $4)
		`, e.Category, e.Name, e.Price, i)
		if err != nil {
			return 0, fmt.Errorf("failed to insert menu row %q: %w", e.Name, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit menu sync: %w", err)
	}
	return len(entries), nil
}

func (r *MenuRepository) ByCategory(ctx context.Context) (domain.Menu, error) {
	rows, err := r.db.Query(ctx, `SELECT category, product, price FROM menu ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query menu: %w", err)
	}
	defer rows.Close()

	out := make(domain.Menu)
	for rows.Next() {
		var category, product string
		var price float64
		if err := rows.Scan(&category, &product, &price); err != nil {
			return nil, fmt.Errorf("failed to scan menu row: %w", err)
		}
		out[category] = append(out[category], domain.MenuItem{Name: product, Price: price})
	}
	return out, rows.Err()
}
