package fanout

import (
	"sync"

	"fastfoot/internal/domain"
	"fastfoot/internal/logger"
)

// Hub pushes registry deltas to every interested observer. Delivery is
// best-effort: each subscriber owns a buffered channel and events are
// dropped when it is full, so a slow client never blocks a producer.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*Subscriber
	lg   *logger.Logger
}

// Subscriber is one observer connection. Watching no slot means watching
// everything (kitchen displays, cashier overview screens).
type Subscriber struct {
	ID string
	C  chan domain.Envelope

	mu       sync.Mutex
	watching map[string]bool
}

const subscriberBuffer = 64

func NewHub(lg *logger.Logger) *Hub {
	return &Hub{subs: make(map[string]*Subscriber), lg: lg}
}

func (h *Hub) Subscribe(id string) *Subscriber {
	sub := &Subscriber{ID: id, C: make(chan domain.Envelope, subscriberBuffer), watching: make(map[string]bool)}
	h.mu.Lock()
	h.subs[id] = sub
	h.mu.Unlock()
	return sub
}

// Subscriber returns the subscription for id, or nil when it is gone.
func (h *Hub) Subscriber(id string) *Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.subs[id]
}

func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()
	if ok {
		close(sub.C)
	}
}

// Watch narrows a subscriber to the given slots. Passing nothing restores
// the watch-everything default.
func (s *Subscriber) Watch(slots ...string) {
	s.mu.Lock()
	s.watching = make(map[string]bool, len(slots))
	for _, name := range slots {
		s.watching[name] = true
	}
	s.mu.Unlock()
}

func (s *Subscriber) wants(slot string) bool {
	if slot == "" {
		return true // system-wide event
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watching) == 0 || s.watching[slot]
}

// Publish delivers one event to every interested subscriber, never blocking.
func (h *Hub) Publish(ev domain.Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !sub.wants(ev.Slot) {
			continue
		}
		select {
		case sub.C <- ev:
		default:
			if h.lg != nil {
				h.lg.Warn("event_dropped", nil, map[string]any{"subscriber": sub.ID, "type": ev.Type, "slot": ev.Slot})
			}
		}
	}
}

// PublishTo delivers one event to a single subscriber, used for targeted
// notifications like item-ready to the session that placed the item. The
// read lock is held across the send: Unsubscribe closes the channel under
// the write lock, so a send after release could hit a closed channel.
func (h *Hub) PublishTo(id string, ev domain.Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sub, ok := h.subs[id]
	if !ok {
		return
	}
	select {
	case sub.C <- ev:
	default:
		if h.lg != nil {
			h.lg.Warn("event_dropped", nil, map[string]any{"subscriber": id, "type": ev.Type})
		}
	}
}
