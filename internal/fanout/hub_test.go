package fanout

import (
	"fmt"
	"sync"
	"testing"

	"fastfoot/internal/domain"
)

func slotUpdate(slot string) domain.Envelope {
	return domain.Envelope{Type: domain.EventSlotUpdate, Slot: slot, Payload: domain.SlotUpdate{Slot: slot}}
}

func TestPublishRespectsWatchList(t *testing.T) {
	h := NewHub(nil)
	all := h.Subscribe("all")
	one := h.Subscribe("one")
	one.Watch("Masa 1")

	h.Publish(slotUpdate("Masa 1"))
	h.Publish(slotUpdate("Masa 2"))

	if got := len(all.C); got != 2 {
		t.Fatalf("watch-everything subscriber got %d events, want 2", got)
	}
	if got := len(one.C); got != 1 {
		t.Fatalf("narrowed subscriber got %d events, want 1", got)
	}
	ev := <-one.C
	if ev.Slot != "Masa 1" {
		t.Fatalf("narrowed subscriber saw %q, want Masa 1", ev.Slot)
	}
}

func TestSystemWideEventsReachNarrowedSubscribers(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe("s")
	sub.Watch("Masa 5")

	h.Publish(domain.Envelope{Type: domain.EventShiftOpened})
	if len(sub.C) != 1 {
		t.Fatalf("system-wide event not delivered")
	}
}

func TestSlowSubscriberNeverBlocks(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe("slow")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*3; i++ {
			h.Publish(slotUpdate("Masa 1"))
		}
	}()
	<-done // would hang here if Publish blocked on the full buffer

	if got := len(sub.C); got != subscriberBuffer {
		t.Fatalf("buffered %d events, want %d with the rest dropped", got, subscriberBuffer)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe("s")
	h.Unsubscribe("s")
	if _, ok := <-sub.C; ok {
		t.Fatalf("channel still open after unsubscribe")
	}
	// publishing after unsubscribe must not panic
	h.Publish(slotUpdate("Masa 1"))
	h.PublishTo("s", slotUpdate("Masa 1"))
}

func TestPublishToRacingUnsubscribe(t *testing.T) {
	// a targeted notification landing while the session disconnects must
	// never hit a closed channel
	h := NewHub(nil)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("conn-%d", i)
		h.Subscribe(id)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.PublishTo(id, slotUpdate("Masa 1"))
			}
		}()
		go func() {
			defer wg.Done()
			h.Unsubscribe(id)
		}()
	}
	wg.Wait()
}
