// Package pull refreshes the local store from the authoritative remote
// state, one collection at a time.
package pull

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aisleplan/aisle/internal/bus"
	"github.com/aisleplan/aisle/internal/status"
	"github.com/aisleplan/aisle/internal/store"
)

// Source fetches remote rows for one collection.
type Source interface {
	Configured() bool
	Select(ctx context.Context, table, field, value string, limit int, desc bool) ([]json.RawMessage, error)
}

// Collections reconciled on every pull. Messages are deliberately absent:
// the chat layer merges its own bounded window.
var Collections = []string{
	store.Tasks,
	store.BudgetCategories,
	store.BudgetItems,
	store.Guests,
	store.Vendors,
	store.SeatingTables,
	store.TimelineEvents,
	store.MoodBoardItems,
	store.Notes,
}

// Puller performs one-directional remote-to-local refreshes. Remote wins at
// whole-record granularity; the outbound queue is not consulted, so a pull
// can transiently overwrite a change that is still queued for delivery.
type Puller struct {
	db      *store.DB
	source  Source
	tracker *status.Tracker
	bus     *bus.Bus
	logger  *zap.Logger
	timeout time.Duration
}

// NewPuller creates a puller. timeout bounds each collection fetch.
func NewPuller(db *store.DB, source Source, tracker *status.Tracker, b *bus.Bus, logger *zap.Logger, timeout time.Duration) *Puller {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Puller{db: db, source: source, tracker: tracker, bus: b, logger: logger, timeout: timeout}
}

// Pull fetches every synced collection scoped to weddingID and upserts the
// rows locally by primary key. A failed collection is logged and skipped;
// the rest still reconcile. No-op when offline or unconfigured.
func (p *Puller) Pull(ctx context.Context, weddingID string) {
	if !p.source.Configured() || !p.tracker.Online() {
		return
	}

	for _, name := range Collections {
		count, err := p.pullCollection(ctx, name, weddingID)
		if err != nil {
			p.logger.Warn("collection pull failed",
				zap.String("collection", name),
				zap.String("wedding_id", weddingID),
				zap.Error(err))
			continue
		}
		p.bus.Publish(bus.Event{
			Kind:      bus.KindCollectionSync,
			Timestamp: time.Now(),
			Payload:   map[string]any{"collection": name, "rows": count},
		})
	}
}

func (p *Puller) pullCollection(ctx context.Context, name, weddingID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rows, err := p.source.Select(ctx, name, "wedding_id", weddingID, 0, false)
	if err != nil {
		return 0, err
	}

	coll, err := p.db.Collection(name)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, row := range rows {
		id, err := rowID(row)
		if err != nil {
			p.logger.Warn("skipping remote row without id", zap.String("collection", name))
			continue
		}
		if err := coll.PutRaw(ctx, id, row); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func rowID(row json.RawMessage) (string, error) {
	var rec struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(row, &rec); err != nil {
		return "", err
	}
	if rec.ID == "" {
		return "", fmt.Errorf("row has no id")
	}
	return rec.ID, nil
}
