package kitchen

import (
	"sync"
	"time"

	"fastfoot/internal/domain"
)

// Readiness per item is owned by the registry; the tracker is the policy
// layer on top. It remembers which gateway session placed each item so a
// kitchen confirmation can be pushed back to exactly the staff who care,
// keeping the registry protocol-agnostic.

type Registry interface {
	MarkReady(slot string, ids []int64) ([]int64, error)
}

type Notifier interface {
	PublishTo(id string, ev domain.Envelope)
}

type origin struct {
	session string
	at      time.Time
}

type Tracker struct {
	registry Registry
	notifier Notifier

	mu      sync.Mutex
	origins map[int64]origin
}

// originTTL bounds the origin index: tickets never live this long.
const originTTL = 12 * time.Hour

func NewTracker(reg Registry, notifier Notifier) *Tracker {
	return &Tracker{registry: reg, notifier: notifier, origins: make(map[int64]origin)}
}

// RecordOrigin ties an item to the gateway session that placed it.
func (t *Tracker) RecordOrigin(itemID int64, sessionID string) {
	t.mu.Lock()
	now := time.Now()
	for id, o := range t.origins {
		if now.Sub(o.at) > originTTL {
			delete(t.origins, id)
		}
	}
	t.origins[itemID] = origin{session: sessionID, at: now}
	t.mu.Unlock()
}

// Forget drops origin entries for items that left the slot without a
// kitchen confirmation (cancelled or settled while pending).
func (t *Tracker) Forget(itemIDs []int64) {
	t.mu.Lock()
	for _, id := range itemIDs {
		delete(t.origins, id)
	}
	t.mu.Unlock()
}

// DropSession clears every origin pointing at a disconnected session.
func (t *Tracker) DropSession(sessionID string) {
	t.mu.Lock()
	for id, o := range t.origins {
		if o.session == sessionID {
			delete(t.origins, id)
		}
	}
	t.mu.Unlock()
}

// MarkReady confirms items through the registry, then notifies the sessions
// that placed them. Ids that never transitioned (unknown or already ready)
// produce no notification, so double reports stay silent.
func (t *Tracker) MarkReady(slot string, itemIDs []int64) ([]int64, error) {
	changed, err := t.registry.MarkReady(slot, itemIDs)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 || t.notifier == nil {
		return changed, nil
	}

	bySession := make(map[string][]int64)
	t.mu.Lock()
	for _, id := range changed {
		if o, ok := t.origins[id]; ok {
			bySession[o.session] = append(bySession[o.session], id)
			delete(t.origins, id)
		}
	}
	t.mu.Unlock()

	for session, ids := range bySession {
		t.notifier.PublishTo(session, domain.Envelope{
			Type:    domain.EventItemReady,
			Slot:    slot,
			Payload: domain.ItemReady{Slot: slot, ItemIDs: ids},
		})
	}
	return changed, nil
}
