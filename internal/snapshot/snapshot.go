package snapshot

import (
	"context"
	"time"

	"fastfoot/internal/domain"
	"fastfoot/internal/fanout"
	"fastfoot/internal/logger"
)

// Store persists the full slot state. Load returns (nil, nil) when no
// snapshot has ever been written.
type Store interface {
	Save(ctx context.Context, state map[string][]domain.LineItem) error
	Load(ctx context.Context) (map[string][]domain.LineItem, error)
}

// Source is the live state the runner captures.
type Source interface {
	Snapshot() map[string][]domain.LineItem
}

const runnerSubscriberID = "snapshot-runner"

// Runner writes a snapshot whenever state has changed since the last tick.
// It watches the hub rather than polling the registry, so an idle floor
// costs nothing.
type Runner struct {
	store    Store
	source   Source
	hub      *fanout.Hub
	interval time.Duration
	lg       *logger.Logger
}

func NewRunner(store Store, source Source, hub *fanout.Hub, interval time.Duration, lg *logger.Logger) *Runner {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Runner{store: store, source: source, hub: hub, interval: interval, lg: lg}
}

// Run blocks until ctx ends, then writes one final snapshot so a clean
// shutdown never loses the last mutations.
func (r *Runner) Run(ctx context.Context) {
	sub := r.hub.Subscribe(runnerSubscriberID)
	defer r.hub.Unsubscribe(runnerSubscriberID)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	dirty := false
	for {
		select {
		case _, ok := <-sub.C:
			if !ok {
				return
			}
			dirty = true
		case <-ticker.C:
			if !dirty {
				continue
			}
			if r.save(ctx) {
				dirty = false
			}
		case <-ctx.Done():
			if dirty {
				r.save(context.Background())
			}
			return
		}
	}
}

func (r *Runner) save(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	state := r.source.Snapshot()
	if err := r.store.Save(ctx, state); err != nil {
		r.lg.Error("snapshot_save_failed", err, nil)
		return false
	}
	r.lg.Debug("snapshot_saved", map[string]any{"slots": len(state)})
	return true
}
