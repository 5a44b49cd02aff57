package domain

// Event types carried by the broadcast fan-out and the gateway protocol.
const (
	EventSnapshot         = "snapshot"
	EventSlotSelected     = "slot-selected"
	EventSlotUpdate       = "slot-update"
	EventItemReady        = "item-ready"
	EventPaymentCompleted = "payment-completed"
	EventShiftOpened      = "shift-opened"
	EventShiftClosed      = "shift-closed"
	EventTillBound        = "till-bound"
	EventCourierMessage   = "courier-message"
	EventError            = "error"
)

// Envelope is the wire frame for every server→client event. Slot is empty
// for system-wide events; the hub uses it to pick the interested observers.
type Envelope struct {
	Type    string `json:"type"`
	Slot    string `json:"slot,omitempty"`
	Payload any    `json:"payload"`
}

// SlotUpdate is pushed after every registry mutation. Items is a copy of the
// post-mutation state; Total is recomputed inside the same critical section
// so observers never see a partial snapshot.
type SlotUpdate struct {
	Slot   string     `json:"slot"`
	Items  []LineItem `json:"items"`
	Total  float64    `json:"total"`
	Source string     `json:"source,omitempty"`
}

// ItemReady notifies the sessions that placed the confirmed items.
type ItemReady struct {
	Slot    string  `json:"slot"`
	ItemIDs []int64 `json:"item_ids"`
}

// PaymentCompleted announces a settlement. Partial is true when items remain
// on the slot afterwards.
type PaymentCompleted struct {
	Slot        string   `json:"slot"`
	Tenders     []Tender `json:"tenders"`
	Amount      float64  `json:"amount"`
	Partial     bool     `json:"partial"`
	Discrepancy float64  `json:"discrepancy,omitempty"`
}

// ErrorEvent carries a domain error code to a single client.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
