package status

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aisleplan/aisle/internal/bus"
)

// Watcher polls the connectivity probe and publishes a net.online event on
// every offline-to-online transition, which triggers a queue drain.
type Watcher struct {
	tracker  *Tracker
	bus      *bus.Bus
	logger   *zap.Logger
	interval time.Duration
	cancel   context.CancelFunc
}

// NewWatcher creates a connectivity watcher.
func NewWatcher(t *Tracker, b *bus.Bus, logger *zap.Logger, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Watcher{tracker: t, bus: b, logger: logger, interval: interval}
}

// Start begins polling for connectivity transitions.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	go w.loop(ctx)
}

// Stop stops the watcher loop.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *Watcher) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	online := w.tracker.Online()
	for {
		select {
		case <-ticker.C:
			now := w.tracker.Online()
			if now && !online {
				w.logger.Info("connectivity restored")
				w.bus.Publish(bus.Event{Kind: bus.KindOnline, Timestamp: time.Now()})
			}
			online = now
		case <-ctx.Done():
			return
		}
	}
}
