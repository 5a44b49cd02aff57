package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"fastfoot/internal/connections/database"
	"fastfoot/internal/domain"
)

// ShiftsRepository implements till.ShiftStore on Postgres.
type ShiftsRepository struct {
	db *database.Conn
}

func NewShiftsRepository(db *database.Conn) *ShiftsRepository {
	return &ShiftsRepository{db: db}
}

func (r *ShiftsRepository) Insert(ctx context.Context, s domain.Shift) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO shifts (till_id, cashier, opening_balance, opened_at, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, s.TillID, s.Cashier, s.OpeningBalance, s.OpenedAt, string(s.Status)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert shift: %w", err)
	}
	return id, nil
}

func (r *ShiftsRepository) Close(ctx context.Context, id int64, closedAt time.Time, cash, card float64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE shifts
		SET closed_at = $2, closing_cash = $3, closing_card = $4, status = 'closed'
		WHERE id = $1 AND status = 'open'
	`, id, closedAt, cash, card)
	if err != nil {
		return fmt.Errorf("failed to close shift: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrShiftNotFound
	}
	return nil
}

func (r *ShiftsRepository) ListOpen(ctx context.Context) ([]domain.Shift, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, till_id, cashier, opening_balance, opened_at
		FROM shifts WHERE status = 'open'
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list open shifts: %w", err)
	}
	defer rows.Close()

	var open []domain.Shift
	for rows.Next() {
		s := domain.Shift{Status: domain.ShiftOpen}
		if err := rows.Scan(&s.ID, &s.TillID, &s.Cashier, &s.OpeningBalance, &s.OpenedAt); err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		open = append(open, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list open shifts: %w", err)
	}
	return open, nil
}

func (r *ShiftsRepository) Get(ctx context.Context, id int64) (domain.Shift, error) {
	var s domain.Shift
	var status string
	var closingCash, closingCard *float64
	err := r.db.QueryRow(ctx, `
		SELECT id, till_id, cashier, opening_balance, opened_at, closed_at, closing_cash, closing_card, status
		FROM shifts WHERE id = $1
	`, id).Scan(&s.ID, &s.TillID, &s.Cashier, &s.OpeningBalance, &s.OpenedAt, &s.ClosedAt, &closingCash, &closingCard, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Shift{}, domain.ErrShiftNotFound
	}
	if err != nil {
		return domain.Shift{}, fmt.Errorf("failed to read shift: %w", err)
	}
	if closingCash != nil {
		s.ClosingCash = *closingCash
	}
	if closingCard != nil {
		s.ClosingCard = *closingCard
	}
	s.Status = domain.ShiftStatus(status)
	return s, nil
}
