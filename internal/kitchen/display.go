package kitchen

import (
	"context"
	"encoding/json"
	"fmt"

	"fastfoot/internal/connections/rabbitmq"
	"fastfoot/internal/domain"
	"fastfoot/internal/logger"
)

// RunDisplay is the kitchen-display run mode: it consumes the pos_events
// mirror from the broker and renders order cards as log lines, one consumer
// per screen. Unparseable messages are rejected without requeue so a bad
// producer cannot wedge the queue.
func RunDisplay(ctx context.Context, mq *rabbitmq.Client, name string, lg *logger.Logger) error {
	deliveries, err := mq.Consume(rabbitmq.DisplayQueue, name, 10)
	if err != nil {
		return fmt.Errorf("consume %s: %w", rabbitmq.DisplayQueue, err)
	}
	lg.Info("display_started", map[string]any{"queue": rabbitmq.DisplayQueue, "consumer": name})

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			var ev domain.Envelope
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				lg.Warn("display_bad_message", err, nil)
				_ = d.Nack(false, false)
				continue
			}
			render(ev, lg)
			_ = d.Ack(false)
		}
	}
}

func render(ev domain.Envelope, lg *logger.Logger) {
	switch ev.Type {
	case domain.EventSlotUpdate:
		// payload arrives as generic JSON after the broker round trip
		body, _ := json.Marshal(ev.Payload)
		var upd domain.SlotUpdate
		if err := json.Unmarshal(body, &upd); err != nil {
			return
		}
		pending := 0
		for _, item := range upd.Items {
			if item.Status == domain.StatusPending {
				pending++
			}
		}
		lg.Info("order_card", map[string]any{"slot": upd.Slot, "items": len(upd.Items), "pending": pending, "total": upd.Total})
	case domain.EventPaymentCompleted:
		lg.Info("ticket_settled", map[string]any{"slot": ev.Slot})
	}
}
