package registry

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"fastfoot/internal/domain"
)

// Publisher receives one event per completed mutation. Implementations must
// not block: the hub hands events to observers best-effort.
type Publisher interface {
	Publish(ev domain.Envelope)
}

// ItemDraft is what ingress adapters hand to the registry. The registry owns
// id assignment and timestamps; drafts carry only the order intent.
type ItemDraft struct {
	Product   string
	Quantity  int
	UnitPrice float64
	Category  domain.Category
	Staff     string
}

type slot struct {
	mu    sync.Mutex
	items []*domain.LineItem
	// ids held by an in-flight settlement; invisible to Remove and to
	// id-less settlement resolution until committed or aborted
	settling map[int64]bool
}

// Registry is the single source of truth for open tickets. The slot map is
// append-only after startup (slots are emptied, never destroyed), guarded by
// a read-write mutex; item mutation is serialized per slot so different
// tables proceed in parallel.
type Registry struct {
	mu     sync.RWMutex
	slots  map[string]*slot
	nextID atomic.Int64
	pub    Publisher
}

func New(pub Publisher) *Registry {
	return &Registry{slots: make(map[string]*slot), pub: pub}
}

// CreateSlots declares the configured tables and takeout queues. Idempotent:
// names that already exist keep their items.
func (r *Registry) CreateSlots(names []string) error {
	if len(names) == 0 {
		return domain.ErrInvalidConfiguration
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if _, ok := r.slots[name]; !ok {
			r.slots[name] = &slot{settling: make(map[int64]bool)}
		}
	}
	return nil
}

// EnsureSlot creates a slot on demand. Delivery-platform orders arrive for
// slots that were never pre-declared as tables.
func (r *Registry) EnsureSlot(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.slots[name]; !ok {
		r.slots[name] = &slot{settling: make(map[int64]bool)}
	}
}

func (r *Registry) get(name string) (*slot, bool) {
	r.mu.RLock()
	s, ok := r.slots[name]
	r.mu.RUnlock()
	return s, ok
}

// SlotNames returns every known slot, sorted for stable listings.
func (r *Registry) SlotNames() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.slots))
	for name := range r.slots {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Append adds a batch of items to a slot and pushes a single slot-update for
// the whole batch. Returns the stored items with their assigned ids.
func (r *Registry) Append(name, origin string, drafts []ItemDraft) ([]domain.LineItem, error) {
	s, ok := r.get(name)
	if !ok {
		return nil, domain.ErrUnknownSlot
	}
	if len(drafts) == 0 {
		return nil, domain.ErrMalformedPayload
	}
	for _, d := range drafts {
		if d.Product == "" || d.Quantity <= 0 || d.UnitPrice < 0 {
			return nil, domain.ErrMalformedPayload
		}
	}

	s.mu.Lock()
	added := make([]domain.LineItem, 0, len(drafts))
	now := time.Now().UTC()
	for _, d := range drafts {
		cat := d.Category
		if !cat.Valid() {
			cat = domain.CategoryNormal
		}
		item := &domain.LineItem{
			ID:        r.nextID.Add(1),
			Product:   d.Product,
			Quantity:  d.Quantity,
			UnitPrice: d.UnitPrice,
			Category:  cat,
			Origin:    origin,
			Status:    domain.StatusPending,
			Staff:     d.Staff,
			CreatedAt: now,
		}
		s.items = append(s.items, item)
		added = append(added, *item)
	}
	update := r.updateLocked(name, s, origin)
	s.mu.Unlock()

	r.publish(update)
	return added, nil
}

// AppendItem is the single-item convenience used by the gateway.
func (r *Registry) AppendItem(name, origin string, d ItemDraft) (int64, error) {
	added, err := r.Append(name, origin, []ItemDraft{d})
	if err != nil {
		return 0, err
	}
	return added[0].ID, nil
}

// Remove cancels a pending item. Kitchen-confirmed (ready) items cannot be
// removed here; they leave the slot only through settlement.
func (r *Registry) Remove(name string, id int64) (domain.LineItem, error) {
	s, ok := r.get(name)
	if !ok {
		return domain.LineItem{}, domain.ErrUnknownSlot
	}

	s.mu.Lock()
	idx := -1
	for i, item := range s.items {
		if item.ID == id && !s.settling[id] {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return domain.LineItem{}, domain.ErrItemNotFound
	}
	if s.items[idx].Status == domain.StatusReady {
		s.mu.Unlock()
		return domain.LineItem{}, domain.ErrItemNotCancellable
	}
	removed := *s.items[idx]
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	update := r.updateLocked(name, s, "")
	s.mu.Unlock()

	r.publish(update)
	return removed, nil
}

// MarkReady transitions the matching pending items to ready. Unknown ids are
// ignored so a double-reporting kitchen is harmless. Returns the ids that
// actually transitioned.
func (r *Registry) MarkReady(name string, ids []int64) ([]int64, error) {
	s, ok := r.get(name)
	if !ok {
		return nil, domain.ErrUnknownSlot
	}
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	s.mu.Lock()
	var changed []int64
	for _, item := range s.items {
		if want[item.ID] && item.Status == domain.StatusPending {
			item.Status = domain.StatusReady
			changed = append(changed, item.ID)
		}
	}
	var update domain.Envelope
	if len(changed) > 0 {
		update = r.updateLocked(name, s, "")
	}
	s.mu.Unlock()

	if len(changed) > 0 {
		r.publish(update)
	}
	return changed, nil
}

// Transfer moves every item from source to target atomically, preserving
// item ids. Slot locks are taken in name order so concurrent opposite
// transfers cannot deadlock. A source with a settlement in flight is
// refused: moving reserved items would let them outlive their own sale.
func (r *Registry) Transfer(source, target string) (int, error) {
	if source == target {
		return 0, domain.ErrSameSlot
	}
	src, ok := r.get(source)
	if !ok {
		return 0, domain.ErrUnknownSlot
	}
	dst, ok := r.get(target)
	if !ok {
		return 0, domain.ErrUnknownSlot
	}

	first, second := src, dst
	if source > target {
		first, second = dst, src
	}
	first.mu.Lock()
	second.mu.Lock()

	if len(src.items) == 0 {
		second.mu.Unlock()
		first.mu.Unlock()
		return 0, domain.ErrSlotEmpty
	}
	if len(src.settling) > 0 {
		second.mu.Unlock()
		first.mu.Unlock()
		return 0, domain.ErrSlotSettling
	}
	moved := len(src.items)
	dst.items = append(dst.items, src.items...)
	src.items = nil
	srcUpdate := r.updateLocked(source, src, "")
	dstUpdate := r.updateLocked(target, dst, "")

	second.mu.Unlock()
	first.mu.Unlock()

	r.publish(srcUpdate)
	r.publish(dstUpdate)
	return moved, nil
}

// Items returns a copy of a slot's current items and its total.
func (r *Registry) Items(name string) ([]domain.LineItem, float64, error) {
	s, ok := r.get(name)
	if !ok {
		return nil, 0, domain.ErrUnknownSlot
	}
	s.mu.Lock()
	items, total := copyLocked(s)
	s.mu.Unlock()
	return items, total, nil
}

// Snapshot copies the whole registry, one slot lock at a time. Slots are
// never copied mid-mutation, but the snapshot as a whole is not a global
// point in time; that is fine for crash recovery.
func (r *Registry) Snapshot() map[string][]domain.LineItem {
	out := make(map[string][]domain.LineItem)
	for _, name := range r.SlotNames() {
		s, ok := r.get(name)
		if !ok {
			continue
		}
		s.mu.Lock()
		items, _ := copyLocked(s)
		s.mu.Unlock()
		out[name] = items
	}
	return out
}

// Restore loads a snapshot taken by a previous process. Only slots known to
// the live configuration are overwritten: a shrunk table count must not
// resurrect orphan slots holding money. Returns the dropped slot names.
func (r *Registry) Restore(state map[string][]domain.LineItem) (dropped []string) {
	var maxID int64
	for name, items := range state {
		s, ok := r.get(name)
		if !ok {
			dropped = append(dropped, name)
			continue
		}
		s.mu.Lock()
		s.items = s.items[:0]
		for _, item := range items {
			stored := item
			s.items = append(s.items, &stored)
			if item.ID > maxID {
				maxID = item.ID
			}
		}
		s.mu.Unlock()
	}
	// keep new ids above everything restored
	for {
		cur := r.nextID.Load()
		if cur >= maxID || r.nextID.CompareAndSwap(cur, maxID) {
			break
		}
	}
	sort.Strings(dropped)
	return dropped
}

func (r *Registry) publish(ev domain.Envelope) {
	if r.pub != nil {
		r.pub.Publish(ev)
	}
}

// updateLocked builds the slot-update event inside the caller's critical
// section so the item list and total are consistent.
func (r *Registry) updateLocked(name string, s *slot, source string) domain.Envelope {
	items, total := copyLocked(s)
	return domain.Envelope{
		Type: domain.EventSlotUpdate,
		Slot: name,
		Payload: domain.SlotUpdate{
			Slot:   name,
			Items:  items,
			Total:  total,
			Source: source,
		},
	}
}

func copyLocked(s *slot) ([]domain.LineItem, float64) {
	items := make([]domain.LineItem, 0, len(s.items))
	total := 0.0
	for _, item := range s.items {
		items = append(items, *item)
		total += float64(item.Quantity) * item.UnitPrice
	}
	return items, total
}
