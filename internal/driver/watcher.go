package driver

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/Moosv/simplefleet/internal/shared/events"
	"github.com/Moosv/simplefleet/internal/shared/metrics"
)

// Watcher keeps a roster snapshot warm by reloading it whenever a
// driver or department event arrives. Readers get the last good
// snapshot even while a reload is in flight.
type Watcher struct {
	store Store
	bus   events.EventBus

	mu       sync.RWMutex
	snapshot Roster
}

// NewWatcher creates a new roster watcher
func NewWatcher(store Store, bus events.EventBus) *Watcher {
	return &Watcher{store: store, bus: bus}
}

// Start loads the initial snapshot and subscribes to roster changes
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.reload(ctx); err != nil {
		return fmt.Errorf("failed to load initial roster: %w", err)
	}

	patterns := []struct {
		pattern      string
		consumerName string
	}{
		{"driver.*", "roster-driver-watcher"},
		{"department.*", "roster-department-watcher"},
	}

	for _, p := range patterns {
		if err := w.bus.Subscribe(ctx, p.pattern, p.consumerName, w.handleEvent); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", p.pattern, err)
		}
	}

	return nil
}

func (w *Watcher) handleEvent(ctx context.Context, event events.Event) error {
	if err := w.reload(ctx); err != nil {
		log.Printf("Error reloading roster after %s: %v", event.Type, err)
		return err
	}
	return nil
}

func (w *Watcher) reload(ctx context.Context) error {
	drivers, err := w.store.List(ctx)
	if err != nil {
		return err
	}

	roster := BuildRoster(drivers)

	w.mu.Lock()
	w.snapshot = roster
	w.mu.Unlock()

	metrics.RecordRosterReload()
	return nil
}

// Snapshot returns the last loaded roster view
func (w *Watcher) Snapshot() Roster {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshot
}
