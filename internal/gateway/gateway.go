package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"fastfoot/internal/domain"
	"fastfoot/internal/fanout"
	"fastfoot/internal/logger"
	"fastfoot/internal/registry"
	"fastfoot/internal/settle"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// Settler finalizes a payment for a slot.
type Settler interface {
	Finalize(ctx context.Context, req settle.Request) (settle.Result, error)
}

// Tracker remembers which session placed which item so ready notifications
// reach only the sessions that care.
type Tracker interface {
	RecordOrigin(itemID int64, sessionID string)
	Forget(itemIDs []int64)
	DropSession(sessionID string)
	MarkReady(slot string, itemIDs []int64) ([]int64, error)
}

// TillBinder ties a session to a till so settlements land on its open shift.
type TillBinder interface {
	BindSession(connID string, tillID int64)
	UnbindSession(connID string)
}

// Gateway upgrades HTTP requests to websocket sessions and bridges them to
// the slot registry. Each session gets its own hub subscription; broadcasts
// flow out through the write pump, commands flow in through the read loop.
type Gateway struct {
	registry *registry.Registry
	hub      *fanout.Hub
	tracker  Tracker
	binder   TillBinder
	settler  Settler
	menu     domain.Menu
	lg       *logger.Logger
	upgrader websocket.Upgrader
}

func New(reg *registry.Registry, hub *fanout.Hub, tracker Tracker, binder TillBinder, settler Settler, menu domain.Menu, lg *logger.Logger) *Gateway {
	return &Gateway{
		registry: reg,
		hub:      hub,
		tracker:  tracker,
		binder:   binder,
		settler:  settler,
		menu:     menu,
		lg:       lg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

type clientMessage struct {
	Action   string          `json:"action"`
	Slot     string          `json:"slot,omitempty"`
	Target   string          `json:"target,omitempty"`
	Product  string          `json:"product,omitempty"`
	Quantity int             `json:"quantity,omitempty"`
	Price    float64         `json:"price,omitempty"`
	Category string          `json:"category,omitempty"`
	Staff    string          `json:"staff,omitempty"`
	ItemID   int64           `json:"item_id,omitempty"`
	ItemIDs  []int64         `json:"item_ids,omitempty"`
	Tenders  []domain.Tender `json:"tenders,omitempty"`
	TillID   int64           `json:"till_id,omitempty"`
}

// session is the only state the gateway keeps per connection: which slot
// the client is viewing. Actions may omit the slot to mean this one.
type session struct {
	id string

	mu          sync.Mutex
	currentSlot string
}

func (s *session) slotOr(name string) string {
	if name != "" {
		return name
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentSlot
}

func (s *session) setSlot(name string) {
	s.mu.Lock()
	s.currentSlot = name
	s.mu.Unlock()
}

type snapshotPayload struct {
	Menu  domain.Menu                  `json:"menu"`
	Slots map[string]domain.SlotUpdate `json:"slots"`
}

// Handle is mounted on GET /ws.
func (g *Gateway) Handle(c echo.Context) error {
	conn, err := g.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	sess := &session{id: uuid.New().String()}
	sub := g.hub.Subscribe(sess.id)
	g.lg.Info("gateway_session_opened", map[string]any{"session_id": sess.id, "remote": conn.RemoteAddr().String()})

	g.hub.PublishTo(sess.id, domain.Envelope{Type: domain.EventSnapshot, Payload: g.snapshot()})

	done := make(chan struct{})
	go g.writePump(conn, sub, done)
	g.readLoop(c.Request().Context(), conn, sess)

	g.hub.Unsubscribe(sess.id)
	g.tracker.DropSession(sess.id)
	g.binder.UnbindSession(sess.id)
	close(done)
	_ = conn.Close()
	g.lg.Info("gateway_session_closed", map[string]any{"session_id": sess.id})
	return nil
}

func (g *Gateway) snapshot() snapshotPayload {
	slots := make(map[string]domain.SlotUpdate)
	for _, name := range g.registry.SlotNames() {
		items, total, err := g.registry.Items(name)
		if err != nil {
			continue
		}
		slots[name] = domain.SlotUpdate{Slot: name, Items: items, Total: total}
	}
	return snapshotPayload{Menu: g.menu, Slots: slots}
}

func (g *Gateway) writePump(conn *websocket.Conn, sub *fanout.Subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}

func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, sess *session) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			g.fail(sess.id, domain.ErrMalformedPayload)
			continue
		}
		g.dispatch(ctx, sess, msg)
	}
}

func (g *Gateway) dispatch(ctx context.Context, sess *session, msg clientMessage) {
	var err error
	switch msg.Action {
	case "select-slot":
		err = g.selectSlot(sess, msg.Slot)
	case "add-item":
		err = g.addItem(sess, msg)
	case "remove-item", "cancel-item":
		err = g.removeItem(sess.slotOr(msg.Slot), msg.ItemID)
	case "mark-ready":
		_, err = g.tracker.MarkReady(sess.slotOr(msg.Slot), msg.ItemIDs)
	case "transfer":
		_, err = g.registry.Transfer(msg.Slot, msg.Target)
	case "bind-till":
		g.binder.BindSession(sess.id, msg.TillID)
		g.hub.PublishTo(sess.id, domain.Envelope{Type: domain.EventTillBound, Payload: map[string]any{"till_id": msg.TillID}})
	case "finalize-payment":
		_, err = g.settler.Finalize(ctx, settle.Request{
			Slot:      sess.slotOr(msg.Slot),
			ItemIDs:   msg.ItemIDs,
			Tenders:   msg.Tenders,
			SessionID: sess.id,
		})
	default:
		err = domain.ErrMalformedPayload
	}
	if err != nil {
		g.lg.Warn("gateway_action_failed", err, map[string]any{"session_id": sess.id, "action": msg.Action, "slot": msg.Slot})
		g.fail(sess.id, err)
	}
}

func (g *Gateway) selectSlot(sess *session, slot string) error {
	items, total, err := g.registry.Items(slot)
	if err != nil {
		return err
	}
	sess.setSlot(slot)
	if sub := g.hub.Subscriber(sess.id); sub != nil {
		sub.Watch(slot)
	}
	g.hub.PublishTo(sess.id, domain.Envelope{
		Type:    domain.EventSlotSelected,
		Slot:    slot,
		Payload: domain.SlotUpdate{Slot: slot, Items: items, Total: total},
	})
	return nil
}

func (g *Gateway) addItem(sess *session, msg clientMessage) error {
	category := domain.Category(msg.Category)
	if msg.Category == "" {
		category = domain.CategoryNormal
	}
	qty := msg.Quantity
	if qty == 0 {
		qty = 1
	}
	id, err := g.registry.AppendItem(sess.slotOr(msg.Slot), sess.id, registry.ItemDraft{
		Product:   msg.Product,
		Quantity:  qty,
		UnitPrice: msg.Price,
		Category:  category,
		Staff:     msg.Staff,
	})
	if err != nil {
		return err
	}
	g.tracker.RecordOrigin(id, sess.id)
	return nil
}

func (g *Gateway) removeItem(slot string, id int64) error {
	if _, err := g.registry.Remove(slot, id); err != nil {
		return err
	}
	g.tracker.Forget([]int64{id})
	return nil
}

func (g *Gateway) fail(sessionID string, err error) {
	g.hub.PublishTo(sessionID, domain.Envelope{
		Type:    domain.EventError,
		Payload: domain.ErrorEvent{Code: domain.Code(err), Message: err.Error()},
	})
}
