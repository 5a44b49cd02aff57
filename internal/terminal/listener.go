package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"time"

	"fastfoot/internal/domain"
	"fastfoot/internal/logger"
	"fastfoot/internal/registry"
)

// Listener speaks the legacy floor-terminal protocol: one TCP connection per
// order batch, a single JSON payload, no response, connection closed. The
// handhelds in the field predate any framing, so the payload ends at EOF.
type Listener struct {
	registry *registry.Registry
	forward  Forwarder
	lg       *logger.Logger

	readTimeout time.Duration
	maxPayload  int64
}

// Forwarder mirrors accepted batches to the legacy kitchen display.
type Forwarder interface {
	Forward(slot string, items []domain.LineItem)
}

func NewListener(reg *registry.Registry, forward Forwarder, lg *logger.Logger) *Listener {
	return &Listener{
		registry:    reg,
		forward:     forward,
		lg:          lg,
		readTimeout: 5 * time.Second,
		maxPayload:  1 << 20,
	}
}

type payload struct {
	Slot     string `json:"slot"`
	Items    []item `json:"items"`
	Terminal string `json:"terminal"`
}

type item struct {
	Product string  `json:"urun"`
	Price   float64 `json:"fiyat"`
}

// Run accepts connections until the context ends. A malformed payload drops
// only its own connection; the accept loop keeps going.
func (l *Listener) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	l.lg.Info("terminal_listener_started", map[string]any{"addr": ln.Addr().String()})

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.lg.Warn("terminal_accept_failed", err, nil)
			continue
		}
		go l.handle(conn)
	}
}

func (l *Listener) handle(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	_ = conn.SetReadDeadline(time.Now().Add(l.readTimeout))

	raw, err := io.ReadAll(io.LimitReader(conn, l.maxPayload))
	if err != nil {
		l.lg.Warn("terminal_read_failed", err, map[string]any{"remote": remote})
		return
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		l.lg.Warn("terminal_bad_payload", domain.ErrMalformedPayload, map[string]any{"remote": remote})
		return
	}
	if p.Slot == "" || len(p.Items) == 0 {
		l.lg.Warn("terminal_bad_payload", domain.ErrMalformedPayload, map[string]any{"remote": remote, "slot": p.Slot})
		return
	}

	origin := p.Terminal
	if origin == "" {
		origin = remote
	}
	drafts := make([]registry.ItemDraft, 0, len(p.Items))
	for _, it := range p.Items {
		drafts = append(drafts, registry.ItemDraft{
			Product:   it.Product,
			Quantity:  1,
			UnitPrice: it.Price,
			Category:  domain.CategoryNormal,
		})
	}
	added, err := l.registry.Append(p.Slot, origin, drafts)
	if err != nil {
		l.lg.Warn("terminal_order_rejected", err, map[string]any{"slot": p.Slot, "terminal": origin})
		return
	}
	if l.forward != nil {
		l.forward.Forward(p.Slot, added)
	}
	l.lg.Info("terminal_order_accepted", map[string]any{"slot": p.Slot, "terminal": origin, "items": len(added)})
}
