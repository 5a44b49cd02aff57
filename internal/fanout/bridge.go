package fanout

import (
	"context"
	"encoding/json"

	"fastfoot/internal/connections/rabbitmq"
	"fastfoot/internal/domain"
	"fastfoot/internal/logger"
)

// Bridge republishes every hub event onto the pos_events fanout exchange so
// out-of-process observers (kitchen displays on other machines) follow the
// same delta stream. Publish failures are logged and swallowed: the broker
// is a best-effort mirror, never order-state authority.
type Bridge struct {
	mq *rabbitmq.Client
	lg *logger.Logger
}

func NewBridge(mq *rabbitmq.Client, lg *logger.Logger) *Bridge {
	return &Bridge{mq: mq, lg: lg}
}

// Run drains a hub subscription until the context ends or the subscriber is
// closed.
func (b *Bridge) Run(ctx context.Context, sub *Subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			b.forward(ctx, ev)
		}
	}
}

func (b *Bridge) forward(ctx context.Context, ev domain.Envelope) {
	body, err := json.Marshal(ev)
	if err != nil {
		b.lg.Error("event_marshal_failed", err, map[string]any{"type": ev.Type})
		return
	}
	if err := b.mq.Publish(ctx, rabbitmq.EventsExchange, "", body); err != nil {
		b.lg.Warn("broker_publish_failed", err, map[string]any{"type": ev.Type, "slot": ev.Slot})
	}
}
