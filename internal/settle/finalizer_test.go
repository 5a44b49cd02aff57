package settle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fastfoot/internal/domain"
	"fastfoot/internal/registry"
)

type memSales struct {
	mu      sync.Mutex
	records []domain.SalesRecord
	fail    bool
}

func (m *memSales) SaveBatch(_ context.Context, records []domain.SalesRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("database down")
	}
	m.records = append(m.records, records...)
	return nil
}

type memAccounts struct {
	mu       sync.Mutex
	balances map[string]float64
}

func (m *memAccounts) Balance(_ context.Context, name string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[name], nil
}

func (m *memAccounts) PostTransaction(_ context.Context, name, _ string, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances == nil {
		m.balances = make(map[string]float64)
	}
	m.balances[name] += amount
	return nil
}

type fixedShift struct{ id *int64 }

func (f fixedShift) ShiftForSession(string) *int64 { return f.id }

type capture struct {
	mu     sync.Mutex
	events []domain.Envelope
}

func (c *capture) Publish(ev domain.Envelope) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *capture) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	reg      *registry.Registry
	sales    *memSales
	accounts *memAccounts
	events   *capture
	fin      *Finalizer
}

func newFixture(t *testing.T, shiftID *int64) *fixture {
	t.Helper()
	reg := registry.New(nil)
	if err := reg.CreateSlots([]string{"Masa 1", "Masa 2"}); err != nil {
		t.Fatalf("CreateSlots: %v", err)
	}
	sales := &memSales{}
	accounts := &memAccounts{}
	events := &capture{}
	fin := NewFinalizer(reg, sales, accounts, fixedShift{shiftID}, nil, events, nil)
	return &fixture{reg: reg, sales: sales, accounts: accounts, events: events, fin: fin}
}

func TestFullSettlementCash(t *testing.T) {
	fx := newFixture(t, nil)
	_, _ = fx.reg.AppendItem("Masa 1", "t", registry.ItemDraft{Product: "Köfte", Quantity: 1, UnitPrice: 50})

	res, err := fx.fin.Finalize(context.Background(), Request{
		Slot:    "Masa 1",
		Tenders: []domain.Tender{{Method: domain.MethodCash, Amount: 50}},
	})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if res.Owed != 50 || res.Partial || res.Records != 1 || res.Discrepancy != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	items, _, _ := fx.reg.Items("Masa 1")
	if len(items) != 0 {
		t.Fatalf("slot not emptied, %d items left", len(items))
	}
	rec := fx.sales.records[0]
	if rec.Method != domain.MethodCash || rec.UnitPrice != 50 || rec.ShiftID != nil {
		t.Fatalf("unexpected record: %+v", rec)
	}
	types := fx.events.types()
	if types[len(types)-1] != domain.EventPaymentCompleted {
		t.Fatalf("last event %q, want payment-completed", types[len(types)-1])
	}
}

func TestPartialSettlementByIDs(t *testing.T) {
	fx := newFixture(t, nil)
	id30, _ := fx.reg.AppendItem("Masa 1", "t", registry.ItemDraft{Product: "Lahmacun", Quantity: 1, UnitPrice: 30})
	_, _ = fx.reg.AppendItem("Masa 1", "t", registry.ItemDraft{Product: "Ayran", Quantity: 1, UnitPrice: 20})

	res, err := fx.fin.Finalize(context.Background(), Request{
		Slot:    "Masa 1",
		ItemIDs: []int64{id30},
		Tenders: []domain.Tender{{Method: domain.MethodCard, Amount: 30}},
	})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !res.Partial || res.Records != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	items, total, _ := fx.reg.Items("Masa 1")
	if len(items) != 1 || total != 20 {
		t.Fatalf("slot after partial settle: %d items, total %v, want 1 / 20", len(items), total)
	}
	// payment-completed first, then the residual slot-update
	types := fx.events.types()
	n := len(types)
	if n < 2 || types[n-2] != domain.EventPaymentCompleted || types[n-1] != domain.EventSlotUpdate {
		t.Fatalf("event order %v", types)
	}
}

func TestDefaultTenderSynthesizesCash(t *testing.T) {
	fx := newFixture(t, nil)
	_, _ = fx.reg.AppendItem("Masa 1", "t", registry.ItemDraft{Product: "Pide", Quantity: 2, UnitPrice: 90})

	res, err := fx.fin.Finalize(context.Background(), Request{Slot: "Masa 1"})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if res.Tendered != 180 || fx.sales.records[0].Method != domain.MethodCash {
		t.Fatalf("default tender wrong: %+v, record %+v", res, fx.sales.records[0])
	}
}

func TestSplitLabelAndDiscrepancy(t *testing.T) {
	fx := newFixture(t, nil)
	_, _ = fx.reg.AppendItem("Masa 1", "t", registry.ItemDraft{Product: "Adana", Quantity: 1, UnitPrice: 250})

	res, err := fx.fin.Finalize(context.Background(), Request{
		Slot: "Masa 1",
		Tenders: []domain.Tender{
			{Method: domain.MethodCash, Amount: 150},
			{Method: domain.MethodCard, Amount: 110},
		},
	})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if fx.sales.records[0].Method != domain.MethodSplit {
		t.Fatalf("method = %q, want Split", fx.sales.records[0].Method)
	}
	if res.Discrepancy != 10 {
		t.Fatalf("discrepancy = %v, want 10 (overpayment recorded, not rejected)", res.Discrepancy)
	}
}

func TestComplimentaryRecordedAtZero(t *testing.T) {
	fx := newFixture(t, nil)
	_, _ = fx.reg.AppendItem("Masa 1", "t", registry.ItemDraft{Product: "Çay", Quantity: 1, UnitPrice: 15, Category: domain.CategoryComplimentary})
	_, _ = fx.reg.AppendItem("Masa 1", "t", registry.ItemDraft{Product: "Köfte", Quantity: 1, UnitPrice: 50})

	res, err := fx.fin.Finalize(context.Background(), Request{Slot: "Masa 1"})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if res.Owed != 50 {
		t.Fatalf("owed = %v, complimentary items must not be charged", res.Owed)
	}
	if res.Records != 2 {
		t.Fatalf("records = %d, complimentary items still get recorded", res.Records)
	}
	for _, rec := range fx.sales.records {
		if rec.Category == domain.CategoryComplimentary && rec.UnitPrice != 0 {
			t.Fatalf("complimentary record priced at %v, want 0", rec.UnitPrice)
		}
	}
}

func TestOpenAccountPostsLedgerTransaction(t *testing.T) {
	fx := newFixture(t, nil)
	_, _ = fx.reg.AppendItem("Masa 1", "t", registry.ItemDraft{Product: "Döner", Quantity: 1, UnitPrice: 220})

	_, err := fx.fin.Finalize(context.Background(), Request{
		Slot:    "Masa 1",
		Tenders: []domain.Tender{{Method: domain.MethodOpenAccount, Amount: 220, CustomerLabel: "Ahmet"}},
	})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	bal, _ := fx.accounts.Balance(context.Background(), "Ahmet")
	if bal != 220 {
		t.Fatalf("account balance = %v, want 220", bal)
	}
}

func TestPersistenceFailureLeavesSlotUntouched(t *testing.T) {
	fx := newFixture(t, nil)
	_, _ = fx.reg.AppendItem("Masa 1", "t", registry.ItemDraft{Product: "Köfte", Quantity: 1, UnitPrice: 50})
	fx.sales.fail = true

	_, err := fx.fin.Finalize(context.Background(), Request{Slot: "Masa 1"})
	if !errors.Is(err, domain.ErrSettlementFailed) {
		t.Fatalf("got %v, want ErrSettlementFailed", err)
	}
	items, total, _ := fx.reg.Items("Masa 1")
	if len(items) != 1 || total != 50 {
		t.Fatalf("slot mutated on failure: %d items, total %v", len(items), total)
	}

	// retry with the same request succeeds once persistence recovers
	fx.sales.fail = false
	res, err := fx.fin.Finalize(context.Background(), Request{Slot: "Masa 1"})
	if err != nil || res.Records != 1 {
		t.Fatalf("retry failed: %+v, %v", res, err)
	}
	if n := len(fx.sales.records); n != 1 {
		t.Fatalf("%d records after retry, want 1", n)
	}
}

func TestTenderValidation(t *testing.T) {
	fx := newFixture(t, nil)
	_, _ = fx.reg.AppendItem("Masa 1", "t", registry.ItemDraft{Product: "Köfte", Quantity: 1, UnitPrice: 50})

	cases := []domain.Tender{
		{Method: domain.MethodCash, Amount: 0},
		{Method: domain.MethodCash, Amount: -5},
		{Method: "Voucher", Amount: 10},
		{Method: domain.MethodOpenAccount, Amount: 10}, // missing customer
	}
	for _, tender := range cases {
		_, err := fx.fin.Finalize(context.Background(), Request{Slot: "Masa 1", Tenders: []domain.Tender{tender}})
		if !errors.Is(err, domain.ErrInvalidTender) {
			t.Errorf("tender %+v: got %v, want ErrInvalidTender", tender, err)
		}
	}
	// nothing was reserved or removed by the rejected attempts
	items, _, _ := fx.reg.Items("Masa 1")
	if len(items) != 1 {
		t.Fatalf("slot mutated by invalid tenders")
	}
}

func TestEmptySlotAndShiftAttribution(t *testing.T) {
	shiftID := int64(42)
	fx := newFixture(t, &shiftID)

	if _, err := fx.fin.Finalize(context.Background(), Request{Slot: "Masa 1"}); !errors.Is(err, domain.ErrNoSuchItems) {
		t.Fatalf("empty slot: got %v, want ErrNoSuchItems", err)
	}

	_, _ = fx.reg.AppendItem("Masa 1", "t", registry.ItemDraft{Product: "Köfte", Quantity: 1, UnitPrice: 50})
	if _, err := fx.fin.Finalize(context.Background(), Request{Slot: "Masa 1", SessionID: "conn-1"}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	rec := fx.sales.records[0]
	if rec.ShiftID == nil || *rec.ShiftID != 42 {
		t.Fatalf("record shift id = %v, want 42", rec.ShiftID)
	}
}

// transferDuringCharge tries to move the table while the card terminal is
// still processing, the widest window a settlement stays in flight.
type transferDuringCharge struct {
	reg   *registry.Registry
	moved int
	err   error
}

func (c *transferDuringCharge) Sale(context.Context, float64, string) error {
	c.moved, c.err = c.reg.Transfer("Masa 1", "Masa 2")
	return nil
}

func TestTransferDuringCardChargeCannotDoubleSell(t *testing.T) {
	fx := newFixture(t, nil)
	_, _ = fx.reg.AppendItem("Masa 1", "t", registry.ItemDraft{Product: "Köfte", Quantity: 1, UnitPrice: 50})

	charger := &transferDuringCharge{reg: fx.reg}
	fin := NewFinalizer(fx.reg, fx.sales, fx.accounts, fixedShift{nil}, charger, fx.events, nil)

	res, err := fin.Finalize(context.Background(), Request{
		Slot:    "Masa 1",
		Tenders: []domain.Tender{{Method: domain.MethodCard, Amount: 50}},
	})
	if err != nil || res.Records != 1 {
		t.Fatalf("Finalize: %+v, %v", res, err)
	}
	if !errors.Is(charger.err, domain.ErrSlotSettling) || charger.moved != 0 {
		t.Fatalf("mid-charge transfer: moved %d, err %v, want 0 / ErrSlotSettling", charger.moved, charger.err)
	}
	for _, name := range []string{"Masa 1", "Masa 2"} {
		items, _, _ := fx.reg.Items(name)
		if len(items) != 0 {
			t.Fatalf("%s still holds %d items after the sale", name, len(items))
		}
	}
	if len(fx.sales.records) != 1 {
		t.Fatalf("%d sales records, want 1", len(fx.sales.records))
	}
}

func TestConcurrentFinalizeSettlesOnce(t *testing.T) {
	fx := newFixture(t, nil)
	_, _ = fx.reg.AppendItem("Masa 1", "t", registry.ItemDraft{Product: "Köfte", Quantity: 1, UnitPrice: 50})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.fin.Finalize(context.Background(), Request{Slot: "Masa 1"})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, domain.ErrNoSuchItems) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d settlements succeeded, want exactly 1", succeeded)
	}
	if len(fx.sales.records) != 1 {
		t.Fatalf("%d sales records, item settled more than once", len(fx.sales.records))
	}
}
