package till

import (
	"context"
	"sync"
	"time"

	"fastfoot/internal/domain"
)

// MemoryStore keeps shifts in process memory. Used by tests and by
// installations running without Postgres.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	shifts map[int64]domain.Shift
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{shifts: make(map[int64]domain.Shift)}
}

func (m *MemoryStore) Insert(_ context.Context, s domain.Shift) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	m.shifts[s.ID] = s
	return s.ID, nil
}

func (m *MemoryStore) Close(_ context.Context, id int64, closedAt time.Time, cash, card float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shifts[id]
	if !ok {
		return domain.ErrShiftNotFound
	}
	s.ClosedAt = &closedAt
	s.ClosingCash = cash
	s.ClosingCard = card
	s.Status = domain.ShiftClosed
	m.shifts[id] = s
	return nil
}

func (m *MemoryStore) ListOpen(_ context.Context) ([]domain.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var open []domain.Shift
	for _, s := range m.shifts {
		if s.Status == domain.ShiftOpen {
			open = append(open, s)
		}
	}
	return open, nil
}

func (m *MemoryStore) Get(_ context.Context, id int64) (domain.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shifts[id]
	if !ok {
		return domain.Shift{}, domain.ErrShiftNotFound
	}
	return s, nil
}
