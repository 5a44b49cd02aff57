package settle

import (
	"context"
	"fmt"
	"time"

	"fastfoot/internal/domain"
	"fastfoot/internal/logger"
)

// Registry is the slice of the slot registry the finalizer needs: the
// two-phase settlement protocol. Persisting the sale happens between Begin
// and Commit, so a slot is never emptied while its sale is unrecorded.
type Registry interface {
	BeginSettlement(slot string, ids []int64) ([]domain.LineItem, error)
	CommitSettlement(slot string, ids []int64) (remaining []domain.LineItem, total float64, err error)
	AbortSettlement(slot string, ids []int64)
}

// SalesStore persists settled items. A failure here aborts the settlement.
type SalesStore interface {
	SaveBatch(ctx context.Context, records []domain.SalesRecord) error
}

// Accounts is the external customer-account (cari) ledger. Accounts are
// created on first reference.
type Accounts interface {
	PostTransaction(ctx context.Context, name, label string, amount float64) error
}

// ShiftResolver maps the calling session to the active shift on its bound
// till. A nil result records the sale without a shift.
type ShiftResolver interface {
	ShiftForSession(connID string) *int64
}

// CardCharger dispatches card tenders to a payment terminal before the sale
// is recorded. Optional; nil skips the step.
type CardCharger interface {
	Sale(ctx context.Context, amount float64, slot string) error
}

type Publisher interface {
	Publish(ev domain.Envelope)
}

// Request settles some or all items of a slot. An empty ItemIDs set settles
// everything currently on the ticket; an empty Tenders list is a cash sale
// for the owed total.
type Request struct {
	Slot      string
	ItemIDs   []int64
	Tenders   []domain.Tender
	SessionID string
}

// Result reports what was recorded. Discrepancy is tendered minus owed: the
// cashier's numbers are trusted and the difference is recorded, not
// rejected.
type Result struct {
	Owed        float64
	Tendered    float64
	Discrepancy float64
	Records     int
	Partial     bool
}

type Finalizer struct {
	registry Registry
	sales    SalesStore
	accounts Accounts
	shifts   ShiftResolver
	charger  CardCharger
	pub      Publisher
	lg       *logger.Logger
}

func NewFinalizer(reg Registry, sales SalesStore, accounts Accounts, shifts ShiftResolver, charger CardCharger, pub Publisher, lg *logger.Logger) *Finalizer {
	return &Finalizer{registry: reg, sales: sales, accounts: accounts, shifts: shifts, charger: charger, pub: pub, lg: lg}
}

// Finalize validates and executes a settlement. On any failure after the
// items are reserved, the reservation is released and the slot left
// untouched, so retrying with the same id set is safe.
func (f *Finalizer) Finalize(ctx context.Context, req Request) (Result, error) {
	if err := validateTenders(req.Tenders); err != nil {
		return Result{}, err
	}

	resolved, err := f.registry.BeginSettlement(req.Slot, req.ItemIDs)
	if err != nil {
		return Result{}, err
	}
	ids := make([]int64, len(resolved))
	for i, item := range resolved {
		ids[i] = item.ID
	}

	owed := 0.0
	for _, item := range resolved {
		if item.Category == domain.CategoryComplimentary {
			continue
		}
		owed += float64(item.Quantity) * item.UnitPrice
	}

	tenders := req.Tenders
	if len(tenders) == 0 {
		tenders = []domain.Tender{{Method: domain.MethodCash, Amount: owed}}
	}
	tendered := 0.0
	for _, t := range tenders {
		tendered += t.Amount
	}
	method := domain.MethodSplit
	if len(tenders) == 1 {
		method = tenders[0].Method
	}

	if f.charger != nil {
		for _, t := range tenders {
			if t.Method != domain.MethodCard {
				continue
			}
			if err := f.charger.Sale(ctx, t.Amount, req.Slot); err != nil {
				f.registry.AbortSettlement(req.Slot, ids)
				return Result{}, fmt.Errorf("%w: card terminal: %v", domain.ErrSettlementFailed, err)
			}
		}
	}

	// open-account lines post to the customer ledger before the sale is
	// recorded; the account comes into existence on first reference
	for _, t := range tenders {
		if t.Method != domain.MethodOpenAccount {
			continue
		}
		label := fmt.Sprintf("Ticket %s", req.Slot)
		if err := f.accounts.PostTransaction(ctx, t.CustomerLabel, label, t.Amount); err != nil {
			f.registry.AbortSettlement(req.Slot, ids)
			return Result{}, fmt.Errorf("%w: account ledger: %v", domain.ErrSettlementFailed, err)
		}
	}

	shiftID := f.shifts.ShiftForSession(req.SessionID)
	now := time.Now().UTC()
	records := make([]domain.SalesRecord, 0, len(resolved))
	for _, item := range resolved {
		price := item.UnitPrice
		if item.Category == domain.CategoryComplimentary {
			price = 0
		}
		records = append(records, domain.SalesRecord{
			Slot:      req.Slot,
			Product:   item.Product,
			Quantity:  item.Quantity,
			UnitPrice: price,
			Method:    method,
			Category:  item.Category,
			ShiftID:   shiftID,
			Timestamp: now,
		})
	}
	if err := f.sales.SaveBatch(ctx, records); err != nil {
		f.registry.AbortSettlement(req.Slot, ids)
		return Result{}, fmt.Errorf("%w: %v", domain.ErrSettlementFailed, err)
	}

	remaining, total, err := f.registry.CommitSettlement(req.Slot, ids)
	if err != nil {
		// the sale is recorded; the slot state is authoritative for what
		// remains, so surface the error without retrying the persistence
		return Result{}, err
	}

	res := Result{
		Owed:        owed,
		Tendered:    tendered,
		Discrepancy: tendered - owed,
		Records:     len(records),
		Partial:     len(remaining) > 0,
	}
	f.publish(domain.Envelope{
		Type: domain.EventPaymentCompleted,
		Slot: req.Slot,
		Payload: domain.PaymentCompleted{
			Slot:        req.Slot,
			Tenders:     tenders,
			Amount:      tendered,
			Partial:     res.Partial,
			Discrepancy: res.Discrepancy,
		},
	})
	if res.Partial {
		f.publish(domain.Envelope{
			Type:    domain.EventSlotUpdate,
			Slot:    req.Slot,
			Payload: domain.SlotUpdate{Slot: req.Slot, Items: remaining, Total: total},
		})
	}
	if f.lg != nil {
		f.lg.Info("payment_finalized", map[string]any{
			"slot": req.Slot, "items": len(records), "method": method,
			"owed": owed, "tendered": tendered, "partial": res.Partial,
		})
	}
	return res, nil
}

func validateTenders(tenders []domain.Tender) error {
	for _, t := range tenders {
		if t.Amount <= 0 {
			return fmt.Errorf("%w: non-positive amount", domain.ErrInvalidTender)
		}
		switch t.Method {
		case domain.MethodCash, domain.MethodCard:
		case domain.MethodOpenAccount:
			if t.CustomerLabel == "" {
				return fmt.Errorf("%w: open-account tender needs a customer", domain.ErrInvalidTender)
			}
		default:
			return fmt.Errorf("%w: unknown method %q", domain.ErrInvalidTender, t.Method)
		}
	}
	return nil
}

func (f *Finalizer) publish(ev domain.Envelope) {
	if f.pub != nil {
		f.pub.Publish(ev)
	}
}
