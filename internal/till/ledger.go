package till

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fastfoot/internal/domain"
)

// ShiftStore persists register sessions. The Postgres implementation lives
// in internal/repository; NewMemoryStore covers tests and DB-less setups.
type ShiftStore interface {
	Insert(ctx context.Context, s domain.Shift) (int64, error)
	Close(ctx context.Context, id int64, closedAt time.Time, cash, card float64) error
	Get(ctx context.Context, id int64) (domain.Shift, error)
	ListOpen(ctx context.Context) ([]domain.Shift, error)
}

type Publisher interface {
	Publish(ev domain.Envelope)
}

type tillState struct {
	mu   sync.Mutex // serializes open/close per till
	open *domain.Shift
}

// Ledger tracks register sessions and the connection→till bindings the
// finalizer consults. The at-most-one-open-shift invariant is enforced per
// till under that till's lock, so concurrent opens race safely.
type Ledger struct {
	mu       sync.Mutex
	tills    map[int64]*tillState
	byShift  map[int64]int64 // open shift id → till id
	bindings map[string]int64
	store    ShiftStore
	pub      Publisher
}

func NewLedger(store ShiftStore, pub Publisher) *Ledger {
	return &Ledger{
		tills:    make(map[int64]*tillState),
		byShift:  make(map[int64]int64),
		bindings: make(map[string]int64),
		store:    store,
		pub:      pub,
	}
}

// Restore rehydrates open shifts left behind by a previous process. Without
// it a restart would let a till open a second shift while its old one is
// still open in the store, and the old shift could never be closed.
func (l *Ledger) Restore(ctx context.Context) error {
	open, err := l.store.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("list open shifts: %w", err)
	}
	for _, shift := range open {
		shift := shift
		st := l.till(shift.TillID)
		st.mu.Lock()
		if st.open == nil {
			st.open = &shift
			l.mu.Lock()
			l.byShift[shift.ID] = shift.TillID
			l.mu.Unlock()
		}
		st.mu.Unlock()
	}
	return nil
}

func (l *Ledger) till(id int64) *tillState {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.tills[id]
	if !ok {
		st = &tillState{}
		l.tills[id] = st
	}
	return st
}

// RegisterTill makes a till visible in listings before its first shift.
func (l *Ledger) RegisterTill(id int64) {
	l.till(id)
}

// TillStatus is one row of the till overview.
type TillStatus struct {
	ID   int64         `json:"id"`
	Open *domain.Shift `json:"open_shift,omitempty"`
}

// Tills lists every known till with its open shift, ordered by id.
func (l *Ledger) Tills() []TillStatus {
	l.mu.Lock()
	ids := make([]int64, 0, len(l.tills))
	for id := range l.tills {
		ids = append(ids, id)
	}
	l.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]TillStatus, 0, len(ids))
	for _, id := range ids {
		status := TillStatus{ID: id}
		if shift, ok := l.ActiveShift(id); ok {
			status.Open = &shift
		}
		out = append(out, status)
	}
	return out
}

// OpenShift starts a session on a till. Fails with ErrShiftAlreadyOpen while
// a previous session on the same till has not been closed.
func (l *Ledger) OpenShift(ctx context.Context, tillID int64, cashier string, openingBalance float64) (domain.Shift, error) {
	st := l.till(tillID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.open != nil {
		return domain.Shift{}, domain.ErrShiftAlreadyOpen
	}
	shift := domain.Shift{
		TillID:         tillID,
		Cashier:        cashier,
		OpeningBalance: openingBalance,
		OpenedAt:       time.Now().UTC(),
		Status:         domain.ShiftOpen,
	}
	id, err := l.store.Insert(ctx, shift)
	if err != nil {
		return domain.Shift{}, fmt.Errorf("persist shift: %w", err)
	}
	shift.ID = id
	st.open = &shift

	l.mu.Lock()
	l.byShift[id] = tillID
	l.mu.Unlock()

	l.publish(domain.Envelope{Type: domain.EventShiftOpened, Payload: shift})
	return shift, nil
}

// CloseShift ends a session, recording the counted cash and card totals.
func (l *Ledger) CloseShift(ctx context.Context, shiftID int64, closingCash, closingCard float64) (domain.Shift, error) {
	l.mu.Lock()
	tillID, isOpen := l.byShift[shiftID]
	l.mu.Unlock()
	if !isOpen {
		// distinguish "never existed" from "already closed"
		stored, err := l.store.Get(ctx, shiftID)
		if err != nil {
			return domain.Shift{}, domain.ErrShiftNotFound
		}
		if stored.Status == domain.ShiftClosed {
			return domain.Shift{}, domain.ErrShiftAlreadyClosed
		}
		return domain.Shift{}, domain.ErrShiftNotFound
	}

	st := l.till(tillID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.open == nil || st.open.ID != shiftID {
		return domain.Shift{}, domain.ErrShiftAlreadyClosed
	}

	closedAt := time.Now().UTC()
	if err := l.store.Close(ctx, shiftID, closedAt, closingCash, closingCard); err != nil {
		return domain.Shift{}, fmt.Errorf("persist shift close: %w", err)
	}
	shift := *st.open
	shift.ClosedAt = &closedAt
	shift.ClosingCash = closingCash
	shift.ClosingCard = closingCard
	shift.Status = domain.ShiftClosed
	st.open = nil

	l.mu.Lock()
	delete(l.byShift, shiftID)
	l.mu.Unlock()

	l.publish(domain.Envelope{Type: domain.EventShiftClosed, Payload: shift})
	return shift, nil
}

// ActiveShift returns the open shift on a till, if any.
func (l *Ledger) ActiveShift(tillID int64) (domain.Shift, bool) {
	st := l.till(tillID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.open == nil {
		return domain.Shift{}, false
	}
	return *st.open, true
}

// BindSession associates a gateway connection with a till for the lifetime
// of that connection. Bindings are per connection, not global: two
// connections may be bound to two different tills at once.
func (l *Ledger) BindSession(connID string, tillID int64) {
	l.mu.Lock()
	l.bindings[connID] = tillID
	l.mu.Unlock()
}

func (l *Ledger) UnbindSession(connID string) {
	l.mu.Lock()
	delete(l.bindings, connID)
	l.mu.Unlock()
}

// ShiftForSession resolves a connection's binding to the till's open shift
// id. Returns nil when the connection is unbound or the till has no open
// shift; sales recorded then carry no shift id.
func (l *Ledger) ShiftForSession(connID string) *int64 {
	l.mu.Lock()
	tillID, bound := l.bindings[connID]
	l.mu.Unlock()
	if !bound {
		return nil
	}
	shift, ok := l.ActiveShift(tillID)
	if !ok {
		return nil
	}
	id := shift.ID
	return &id
}

func (l *Ledger) publish(ev domain.Envelope) {
	if l.pub != nil {
		l.pub.Publish(ev)
	}
}
