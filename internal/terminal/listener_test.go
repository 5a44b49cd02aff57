package terminal

import (
	"context"
	"net"
	"testing"
	"time"

	"fastfoot/internal/logger"
	"fastfoot/internal/registry"
)

func startListener(t *testing.T) (*registry.Registry, string, context.CancelFunc) {
	t.Helper()
	reg := registry.New(nil)
	if err := reg.CreateSlots([]string{"Masa 1", "Masa 2"}); err != nil {
		t.Fatalf("CreateSlots: %v", err)
	}
	l := NewListener(reg, nil, logger.New("terminal-test"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close() // free the port for the listener under test

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Run(ctx, addr) }()
	waitForListener(t, addr)
	return reg, addr, cancel
}

func waitForListener(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			_ = conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("listener never came up on %s", addr)
}

func send(t *testing.T, addr, body string) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := conn.Write([]byte(body)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.Close()
}

func waitForItems(t *testing.T, reg *registry.Registry, slot string, want int) float64 {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		items, total, err := reg.Items(slot)
		if err != nil {
			t.Fatalf("Items: %v", err)
		}
		if len(items) == want {
			return total
		}
		time.Sleep(10 * time.Millisecond)
	}
	items, _, _ := reg.Items(slot)
	t.Fatalf("slot %s has %d items, want %d", slot, len(items), want)
	return 0
}

func TestAcceptsOrderBatch(t *testing.T) {
	reg, addr, cancel := startListener(t)
	defer cancel()

	send(t, addr, `{"slot":"Masa 1","items":[{"urun":"Köfte","fiyat":50.0},{"urun":"Ayran","fiyat":40.0}],"terminal":"T-1"}`)

	total := waitForItems(t, reg, "Masa 1", 2)
	if total != 90 {
		t.Fatalf("total = %v, want 90", total)
	}
	items, _, _ := reg.Items("Masa 1")
	for _, item := range items {
		if item.Origin != "T-1" || item.Quantity != 1 {
			t.Fatalf("item not normalized: %+v", item)
		}
	}
}

func TestSurvivesMalformedPayloads(t *testing.T) {
	reg, addr, cancel := startListener(t)
	defer cancel()

	send(t, addr, `not json at all`)
	send(t, addr, `{"slot":"","items":[]}`)
	send(t, addr, `{"slot":"Masa 99","items":[{"urun":"X","fiyat":1}]}`) // unknown slot

	// the listener is still alive and still accepts valid batches
	send(t, addr, `{"slot":"Masa 2","items":[{"urun":"Çay","fiyat":15.0}],"terminal":"T-2"}`)
	waitForItems(t, reg, "Masa 2", 1)

	items, _, _ := reg.Items("Masa 1")
	if len(items) != 0 {
		t.Fatalf("malformed payloads mutated the registry")
	}
}
