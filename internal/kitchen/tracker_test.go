package kitchen

import (
	"sync"
	"testing"

	"fastfoot/internal/domain"
	"fastfoot/internal/registry"
)

type targeted struct {
	mu   sync.Mutex
	sent map[string][]domain.Envelope
}

func (n *targeted) PublishTo(id string, ev domain.Envelope) {
	n.mu.Lock()
	if n.sent == nil {
		n.sent = make(map[string][]domain.Envelope)
	}
	n.sent[id] = append(n.sent[id], ev)
	n.mu.Unlock()
}

func TestMarkReadyNotifiesPlacingSession(t *testing.T) {
	reg := registry.New(nil)
	if err := reg.CreateSlots([]string{"Masa 1"}); err != nil {
		t.Fatalf("CreateSlots: %v", err)
	}
	notifier := &targeted{}
	tracker := NewTracker(reg, notifier)

	idA, _ := reg.AppendItem("Masa 1", "sess-a", registry.ItemDraft{Product: "Köfte", Quantity: 1, UnitPrice: 50})
	idB, _ := reg.AppendItem("Masa 1", "sess-b", registry.ItemDraft{Product: "Ayran", Quantity: 1, UnitPrice: 40})
	tracker.RecordOrigin(idA, "sess-a")
	tracker.RecordOrigin(idB, "sess-b")

	changed, err := tracker.MarkReady("Masa 1", []int64{idA, idB})
	if err != nil || len(changed) != 2 {
		t.Fatalf("MarkReady changed %v (%v)", changed, err)
	}
	if got := notifier.sent["sess-a"]; len(got) != 1 {
		t.Fatalf("sess-a got %d notifications, want 1", len(got))
	}
	ready := notifier.sent["sess-a"][0].Payload.(domain.ItemReady)
	if len(ready.ItemIDs) != 1 || ready.ItemIDs[0] != idA {
		t.Fatalf("sess-a notified about %v, want [%d]", ready.ItemIDs, idA)
	}
	if len(notifier.sent["sess-b"]) != 1 {
		t.Fatalf("sess-b not notified")
	}
}

func TestDoubleReportStaysSilent(t *testing.T) {
	reg := registry.New(nil)
	_ = reg.CreateSlots([]string{"Masa 1"})
	notifier := &targeted{}
	tracker := NewTracker(reg, notifier)

	id, _ := reg.AppendItem("Masa 1", "sess-a", registry.ItemDraft{Product: "Pide", Quantity: 1, UnitPrice: 180})
	tracker.RecordOrigin(id, "sess-a")

	if _, err := tracker.MarkReady("Masa 1", []int64{id}); err != nil {
		t.Fatalf("first MarkReady: %v", err)
	}
	if _, err := tracker.MarkReady("Masa 1", []int64{id}); err != nil {
		t.Fatalf("second MarkReady: %v", err)
	}
	if got := len(notifier.sent["sess-a"]); got != 1 {
		t.Fatalf("session notified %d times, want 1", got)
	}
}

func TestDropSessionAndForget(t *testing.T) {
	reg := registry.New(nil)
	_ = reg.CreateSlots([]string{"Masa 1"})
	notifier := &targeted{}
	tracker := NewTracker(reg, notifier)

	idA, _ := reg.AppendItem("Masa 1", "sess-a", registry.ItemDraft{Product: "A", Quantity: 1, UnitPrice: 10})
	idB, _ := reg.AppendItem("Masa 1", "sess-a", registry.ItemDraft{Product: "B", Quantity: 1, UnitPrice: 10})
	tracker.RecordOrigin(idA, "sess-a")
	tracker.RecordOrigin(idB, "sess-a")

	tracker.Forget([]int64{idA})
	tracker.DropSession("sess-a")

	if _, err := tracker.MarkReady("Masa 1", []int64{idA, idB}); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("notifications sent to dropped session: %+v", notifier.sent)
	}
}
