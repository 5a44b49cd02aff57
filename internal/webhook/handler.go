package webhook

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"fastfoot/internal/domain"
	"fastfoot/internal/logger"
	"fastfoot/internal/registry"
)

// Notifier carries the best-effort courier summary to connected observers.
type Notifier interface {
	Publish(ev domain.Envelope)
}

// Handler accepts order pushes from the delivery platforms. Each platform
// order lands on its own slot, created on demand, so couriers and floor
// tables never collide.
type Handler struct {
	registry *registry.Registry
	notifier Notifier
	lg       *logger.Logger
}

func NewHandler(reg *registry.Registry, notifier Notifier, lg *logger.Logger) *Handler {
	return &Handler{registry: reg, notifier: notifier, lg: lg}
}

// Register mounts POST /webhook/:platform.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/webhook/:platform", h.Receive)
}

type response struct {
	Success bool   `json:"success"`
	Slot    string `json:"slot,omitempty"`
	Items   int    `json:"items,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) Receive(c echo.Context) error {
	platform := c.Param("platform")
	m, ok := platforms[platform]
	if !ok {
		h.lg.Warn("webhook_unknown_platform", domain.ErrUnknownPlatform, map[string]any{"platform": platform})
		return c.JSON(http.StatusBadRequest, response{Error: domain.Code(domain.ErrUnknownPlatform)})
	}

	var body map[string]any
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, response{Error: domain.Code(domain.ErrMalformedPayload)})
	}

	slot, drafts, err := m.extract(body)
	if err != nil {
		h.lg.Warn("webhook_bad_payload", err, map[string]any{"platform": platform})
		return c.JSON(http.StatusBadRequest, response{Error: domain.Code(err)})
	}

	h.registry.EnsureSlot(slot)
	added, err := h.registry.Append(slot, platform, drafts)
	if err != nil {
		h.lg.Error("webhook_append_failed", err, map[string]any{"platform": platform, "slot": slot})
		return c.JSON(http.StatusInternalServerError, response{Error: domain.Code(err)})
	}

	h.notifyCourier(platform, slot, added)
	h.lg.Info("webhook_order_accepted", map[string]any{"platform": platform, "slot": slot, "items": len(added)})
	return c.JSON(http.StatusOK, response{Success: true, Slot: slot, Items: len(added)})
}

// notifyCourier publishes a human-readable order summary for the courier
// screens. Best-effort: no notifier, no message.
func (h *Handler) notifyCourier(platform, slot string, items []domain.LineItem) {
	if h.notifier == nil {
		return
	}
	var b strings.Builder
	total := 0.0
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%dx %s", item.Quantity, item.Product)
		total += float64(item.Quantity) * item.UnitPrice
	}
	fmt.Fprintf(&b, " / Toplam %.2f TL", total)
	h.notifier.Publish(domain.Envelope{
		Type: domain.EventCourierMessage,
		Slot: slot,
		Payload: map[string]any{
			"platform": platform,
			"slot":     slot,
			"message":  b.String(),
		},
	})
}

func (m mapping) extract(body map[string]any) (string, []registry.ItemDraft, error) {
	ref := stringField(body[m.orderKey])
	if ref == "" {
		return "", nil, fmt.Errorf("missing %s: %w", m.orderKey, domain.ErrMalformedPayload)
	}
	rawItems, ok := body[m.itemsKey].([]any)
	if !ok || len(rawItems) == 0 {
		return "", nil, fmt.Errorf("missing %s: %w", m.itemsKey, domain.ErrMalformedPayload)
	}

	drafts := make([]registry.ItemDraft, 0, len(rawItems))
	for _, raw := range rawItems {
		item, ok := raw.(map[string]any)
		if !ok {
			return "", nil, fmt.Errorf("bad item entry: %w", domain.ErrMalformedPayload)
		}
		name := stringField(item[m.nameKey])
		price, okPrice := numberField(item[m.priceKey])
		if name == "" || !okPrice {
			return "", nil, fmt.Errorf("bad item fields: %w", domain.ErrMalformedPayload)
		}
		qty := 1
		if q, ok := numberField(item[m.qtyKey]); ok && q >= 1 {
			qty = int(q)
		}
		drafts = append(drafts, registry.ItemDraft{
			Product:   name,
			Quantity:  qty,
			UnitPrice: price,
			Category:  domain.CategoryNormal,
		})
	}
	return m.prefix + ref, drafts, nil
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func numberField(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
