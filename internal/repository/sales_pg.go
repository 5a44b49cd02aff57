package repository

import (
	"context"
	"fmt"

	"fastfoot/internal/connections/database"
	"fastfoot/internal/domain"
)

type SalesRepository struct {
	db *database.Conn
}

func NewSalesRepository(db *database.Conn) *SalesRepository {
	return &SalesRepository{db: db}
}

// SaveBatch writes every record of a settlement in one transaction. The
// finalizer relies on all-or-nothing here: a half-written sale would make
// the safe-retry contract meaningless.
func (r *SalesRepository) SaveBatch(ctx context.Context, records []domain.SalesRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, rec := range records {
		_, err = tx.Exec(ctx, `
			INSERT INTO sales (slot, product, quantity, unit_price, method, category, shift_id, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, rec.Slot, rec.Product, rec.Quantity, rec.UnitPrice, rec.Method, string(rec.Category), rec.ShiftID, rec.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to insert sale %s: %w", rec.Product, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit sales batch: %w", err)
	}
	return nil
}

// DailySummary aggregates the day's sales per method and category for the
// end-of-shift report.
func (r *SalesRepository) DailySummary(ctx context.Context, day string) (map[string]float64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT method, category, COALESCE(SUM(unit_price * quantity), 0)
		FROM sales
		WHERE DATE(recorded_at) = $1
		GROUP BY method, category
	`, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily summary: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var method, category string
		var total float64
		if err := rows.Scan(&method, &category, &total); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		out[method+"/"+category] = total
	}
	return out, rows.Err()
}
