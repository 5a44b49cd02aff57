package registry

import "fastfoot/internal/domain"

// Two-phase settlement. The finalizer resolves and reserves the items first,
// persists the sale, and only then clears them; a persistence failure aborts
// the reservation and leaves the slot untouched, so a retry with the same id
// set is safe. Reserved items cannot be cancelled or resolved into a second
// concurrent settlement.

// BeginSettlement resolves the live items matching ids and marks them as
// reserved. An empty id set resolves every unreserved item in the slot.
func (r *Registry) BeginSettlement(name string, ids []int64) ([]domain.LineItem, error) {
	s, ok := r.get(name)
	if !ok {
		return nil, domain.ErrUnknownSlot
	}
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var resolved []domain.LineItem
	for _, item := range s.items {
		if s.settling[item.ID] {
			continue
		}
		if len(ids) == 0 || want[item.ID] {
			resolved = append(resolved, *item)
		}
	}
	if len(resolved) == 0 {
		return nil, domain.ErrNoSuchItems
	}
	for _, item := range resolved {
		s.settling[item.ID] = true
	}
	return resolved, nil
}

// CommitSettlement removes the reserved items. It returns the remaining
// items and total without broadcasting: the finalizer owns the event order
// (payment-completed first, then the residual slot-update).
func (r *Registry) CommitSettlement(name string, ids []int64) (remaining []domain.LineItem, total float64, err error) {
	s, ok := r.get(name)
	if !ok {
		return nil, 0, domain.ErrUnknownSlot
	}
	settled := make(map[int64]bool, len(ids))
	for _, id := range ids {
		settled[id] = true
	}

	s.mu.Lock()
	kept := s.items[:0]
	for _, item := range s.items {
		if settled[item.ID] {
			delete(s.settling, item.ID)
			continue
		}
		kept = append(kept, item)
	}
	s.items = kept
	remaining, total = copyLocked(s)
	s.mu.Unlock()
	return remaining, total, nil
}

// AbortSettlement releases the reservation after a persistence failure.
func (r *Registry) AbortSettlement(name string, ids []int64) {
	s, ok := r.get(name)
	if !ok {
		return
	}
	s.mu.Lock()
	for _, id := range ids {
		delete(s.settling, id)
	}
	s.mu.Unlock()
}
