package domain

import "time"

// Category classifies a line item for settlement and reporting.
type Category string

const (
	CategoryNormal        Category = "normal"
	CategoryComplimentary Category = "complimentary" // not charged, recorded at price 0
	CategoryTipOnly       Category = "tip-only"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryNormal, CategoryComplimentary, CategoryTipOnly:
		return true
	}
	return false
}

// FulfillStatus is the kitchen state of a line item. "ready" is terminal;
// a ready item can leave the slot only through settlement.
type FulfillStatus string

const (
	StatusPending FulfillStatus = "pending"
	StatusReady   FulfillStatus = "ready"
)

// LineItem is one product entry on an open ticket. IDs are assigned by the
// registry at insertion and stay stable for the item's lifetime, including
// across slot transfers.
type LineItem struct {
	ID        int64         `json:"id"`
	Product   string        `json:"product"`
	Quantity  int           `json:"quantity"`
	UnitPrice float64       `json:"unit_price"`
	Category  Category      `json:"category"`
	Origin    string        `json:"origin"` // terminal id, gateway session or platform name
	Status    FulfillStatus `json:"status"`
	Staff     string        `json:"staff,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Payment method labels as they end up in sales records. Split is a
// sentinel written when a settlement carried more than one tender line.
const (
	MethodCash        = "Cash"
	MethodCard        = "Card"
	MethodOpenAccount = "OpenAccount"
	MethodSplit       = "Split"
)

// Tender is one payment-method/amount pair within a settlement.
type Tender struct {
	Method        string  `json:"method"`
	Amount        float64 `json:"amount"`
	CustomerLabel string  `json:"customer_label,omitempty"`
}

// SalesRecord is the immutable per-item result of a settlement.
type SalesRecord struct {
	Slot      string    `json:"slot"`
	Product   string    `json:"product"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	Method    string    `json:"method"`
	Category  Category  `json:"category"`
	ShiftID   *int64    `json:"shift_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ShiftStatus is the lifecycle state of a till session.
type ShiftStatus string

const (
	ShiftOpen   ShiftStatus = "open"
	ShiftClosed ShiftStatus = "closed"
)

// Shift is one open-to-close accounting session of a till. At most one
// shift per till may be open at any time.
type Shift struct {
	ID             int64       `json:"id"`
	TillID         int64       `json:"till_id"`
	Cashier        string      `json:"cashier"`
	OpeningBalance float64     `json:"opening_balance"`
	OpenedAt       time.Time   `json:"opened_at"`
	ClosedAt       *time.Time  `json:"closed_at,omitempty"`
	ClosingCash    float64     `json:"closing_cash"`
	ClosingCard    float64     `json:"closing_card"`
	Status         ShiftStatus `json:"status"`
}

// MenuItem is one orderable product. The menu is reference data for the
// gateway snapshot; the registry itself does not consult it.
type MenuItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Menu groups items by category, preserving file order within a category.
type Menu map[string][]MenuItem
