package kitchen

import (
	"encoding/json"
	"net"
	"time"

	"fastfoot/internal/domain"
	"fastfoot/internal/logger"
)

// Forwarder mirrors new orders onto the legacy kitchen display box over its
// one-shot TCP protocol. Strictly fire-and-forget: the registry mutation is
// already applied and visible to modern clients, so a dead display only gets
// a log line, never a rollback.
type Forwarder struct {
	addr    string
	timeout time.Duration
	lg      *logger.Logger
}

func NewForwarder(addr string, lg *logger.Logger) *Forwarder {
	return &Forwarder{addr: addr, timeout: 3 * time.Second, lg: lg}
}

type displayOrder struct {
	Slot  string        `json:"masa"`
	Items []displayItem `json:"siparisler"`
	Time  string        `json:"saat"`
}

type displayItem struct {
	Product string `json:"urun"`
	Qty     int    `json:"adet"`
}

// Forward ships one order card to the display in the background.
func (f *Forwarder) Forward(slot string, items []domain.LineItem) {
	if f == nil || f.addr == "" {
		return
	}
	order := displayOrder{Slot: slot, Time: time.Now().Format("15:04")}
	for _, item := range items {
		order.Items = append(order.Items, displayItem{Product: item.Product, Qty: item.Quantity})
	}
	go f.send(order)
}

func (f *Forwarder) send(order displayOrder) {
	body, err := json.Marshal(order)
	if err != nil {
		f.lg.Error("display_marshal_failed", err, nil)
		return
	}
	conn, err := net.DialTimeout("tcp", f.addr, f.timeout)
	if err != nil {
		f.lg.Warn("display_unreachable", err, map[string]any{"addr": f.addr})
		return
	}
	defer conn.Close()
	_ = conn.SetWriteDeadline(time.Now().Add(f.timeout))
	if _, err := conn.Write(body); err != nil {
		f.lg.Warn("display_write_failed", err, map[string]any{"addr": f.addr})
	}
}
