package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fastfoot/internal/domain"
	"fastfoot/internal/fanout"
	"fastfoot/internal/logger"
)

func sampleState() map[string][]domain.LineItem {
	return map[string][]domain.LineItem{
		"Masa 1": {
			{ID: 1, Product: "Köfte", Quantity: 1, UnitPrice: 50, Category: domain.CategoryNormal, Status: domain.StatusPending},
			{ID: 2, Product: "Ayran", Quantity: 2, UnitPrice: 15, Category: domain.CategoryNormal, Status: domain.StatusReady},
		},
		"Paket 1": {},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "snapshot.json")
	store := NewFileStore(path)
	ctx := context.Background()

	if err := store.Save(ctx, sampleState()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	items := loaded["Masa 1"]
	if len(items) != 2 || items[0].Product != "Köfte" || items[1].Status != domain.StatusReady {
		t.Fatalf("loaded = %+v", loaded)
	}

	// no stray temp file after a successful save
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}

func TestFileStoreLoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "never-written.json"))
	state, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state != nil {
		t.Fatalf("state = %+v, want nil for a fresh install", state)
	}
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := os.WriteFile(path, []byte("{truncated"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := NewFileStore(path).Load(context.Background()); err == nil {
		t.Fatalf("corrupt snapshot loaded without error")
	}
}

type memStore struct {
	mu    sync.Mutex
	saves int
	last  map[string][]domain.LineItem
}

func (m *memStore) Save(_ context.Context, state map[string][]domain.LineItem) error {
	m.mu.Lock()
	m.saves++
	m.last = state
	m.mu.Unlock()
	return nil
}

func (m *memStore) Load(context.Context) (map[string][]domain.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type staticSource struct {
	state map[string][]domain.LineItem
}

func (s staticSource) Snapshot() map[string][]domain.LineItem { return s.state }

func TestRunnerSavesOnlyWhenDirty(t *testing.T) {
	lg := logger.New("snapshot-test")
	hub := fanout.NewHub(lg)
	store := &memStore{}
	runner := NewRunner(store, staticSource{state: sampleState()}, hub, 20*time.Millisecond, lg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()

	// idle: no events, no saves
	time.Sleep(80 * time.Millisecond)
	if store.count() != 0 {
		t.Fatalf("saved %d times while idle", store.count())
	}

	hub.Publish(domain.Envelope{Type: domain.EventSlotUpdate, Slot: "Masa 1"})
	deadline := time.Now().Add(2 * time.Second)
	for store.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if store.count() == 0 {
		t.Fatalf("dirty state never saved")
	}

	cancel()
	<-done
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.last["Masa 1"]) != 2 {
		t.Fatalf("saved state = %+v", store.last)
	}
}

func TestRunnerFinalSaveOnShutdown(t *testing.T) {
	lg := logger.New("snapshot-test")
	hub := fanout.NewHub(lg)
	store := &memStore{}
	// long interval so only the shutdown path can save
	runner := NewRunner(store, staticSource{state: sampleState()}, hub, time.Hour, lg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscriber(runnerSubscriberID) == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	hub.Publish(domain.Envelope{Type: domain.EventSlotUpdate, Slot: "Masa 1"})
	// give the runner a moment to drain the event before shutdown
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done
	if store.count() != 1 {
		t.Fatalf("saves = %d, want exactly the shutdown save", store.count())
	}
}
