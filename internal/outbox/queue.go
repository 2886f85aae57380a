package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aisleplan/aisle/internal/bus"
	"github.com/aisleplan/aisle/internal/remote"
	"github.com/aisleplan/aisle/internal/status"
	"github.com/aisleplan/aisle/internal/store"
)

// Backend delivers one mutation to the remote store.
type Backend interface {
	Configured() bool
	Insert(ctx context.Context, table string, row json.RawMessage) error
	Update(ctx context.Context, table, id string, row json.RawMessage) error
	Delete(ctx context.Context, table, id string) error
}

// Queue is the durable outbound mutation queue. Every local write is
// persisted here before any delivery attempt and removed only on confirmed
// success or on a permanent rejection, giving at-least-once delivery in
// strict enqueue order.
type Queue struct {
	db      *store.DB
	backend Backend
	tracker *status.Tracker
	bus     *bus.Bus
	logger  *zap.Logger
	timeout time.Duration

	draining atomic.Bool
	cancel   context.CancelFunc
}

// NewQueue creates an outbound queue. timeout bounds each remote call.
func NewQueue(db *store.DB, backend Backend, tracker *status.Tracker, b *bus.Bus, logger *zap.Logger, timeout time.Duration) *Queue {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Queue{
		db:      db,
		backend: backend,
		tracker: tracker,
		bus:     b,
		logger:  logger,
		timeout: timeout,
	}
}

// Enqueue persists a new entry and kicks a drain when delivery looks
// possible right now. It never fails the caller: the local mutation has
// already happened, so a queueing problem is logged and absorbed.
func (q *Queue) Enqueue(ctx context.Context, table, op string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		q.logger.Error("queue payload not serializable",
			zap.String("table", table), zap.String("op", op), zap.Error(err))
		return
	}
	entry := &store.QueueEntry{
		ID:        uuid.NewString(),
		Table:     table,
		Op:        op,
		Data:      payload,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := q.db.InsertQueueEntry(ctx, entry); err != nil {
		q.logger.Error("failed to persist queue entry",
			zap.String("table", table), zap.String("op", op), zap.Error(err))
		return
	}
	q.bus.Publish(bus.Event{
		Kind:      bus.KindEnqueued,
		Timestamp: time.Now(),
		Payload:   map[string]string{"table": table, "op": op, "entry_id": entry.ID},
	})

	// The connectivity probe can block for its full dial timeout, so it
	// runs off the caller's path. Enqueue returns as soon as the entry is
	// durable.
	if q.backend.Configured() {
		go func() {
			if q.tracker.Online() {
				q.Drain(context.Background())
			}
		}()
	}
}

// Drain attempts to deliver all pending entries in order. Single-flight:
// a drain already in progress makes this call a no-op. Delivery stops at
// the first transient failure so no entry is ever delivered before an
// earlier one that is still pending.
func (q *Queue) Drain(ctx context.Context) {
	if !q.backend.Configured() {
		return
	}
	if !q.draining.CompareAndSwap(false, true) {
		return
	}
	defer q.draining.Store(false)

	q.tracker.SetSyncStatus(status.Syncing)

	entries, err := q.db.ListQueueEntries(ctx)
	if err != nil {
		q.logger.Error("failed to read queue", zap.Error(err))
		q.tracker.SetSyncStatus(status.Error)
		return
	}

	for _, entry := range entries {
		err := q.dispatch(ctx, entry)
		if err == nil {
			if err := q.db.DeleteQueueEntry(ctx, entry.ID); err != nil {
				q.logger.Error("failed to remove delivered entry",
					zap.String("entry_id", entry.ID), zap.Error(err))
			}
			continue
		}

		if remote.IsPermanent(err) {
			// Retrying can never succeed; drop the entry so it cannot
			// poison everything behind it.
			q.logger.Warn("discarding permanently rejected entry",
				zap.String("entry_id", entry.ID),
				zap.String("table", entry.Table),
				zap.String("op", entry.Op),
				zap.Error(err))
			if err := q.db.DeleteQueueEntry(ctx, entry.ID); err != nil {
				q.logger.Error("failed to remove rejected entry",
					zap.String("entry_id", entry.ID), zap.Error(err))
			}
			q.bus.Publish(bus.Event{
				Kind:      bus.KindEntryDiscarded,
				Timestamp: time.Now(),
				Payload:   map[string]string{"entry_id": entry.ID, "table": entry.Table},
			})
			continue
		}

		// Transient: keep this entry and everything after it untouched.
		q.logger.Warn("drain stopped on transient failure",
			zap.String("entry_id", entry.ID),
			zap.String("table", entry.Table),
			zap.Error(err))
		q.tracker.SetSyncStatus(status.Error)
		return
	}

	q.tracker.SetSyncStatus(status.Idle)
	q.bus.Publish(bus.Event{Kind: bus.KindDrained, Timestamp: time.Now()})
}

// Start subscribes to connectivity-restored events so the queue re-drains
// as soon as the network comes back.
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)
	ch, unsub := q.bus.Subscribe(bus.KindOnline, 16)

	go func() {
		defer unsub()
		for {
			select {
			case <-ch:
				q.Drain(context.Background())
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the connectivity listener. Pending entries stay persisted.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
}

func (q *Queue) dispatch(ctx context.Context, entry store.QueueEntry) error {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	switch entry.Op {
	case store.OpInsert:
		return q.backend.Insert(ctx, entry.Table, entry.Data)
	case store.OpUpdate:
		id, err := recordID(entry.Data)
		if err != nil {
			return err
		}
		return q.backend.Update(ctx, entry.Table, id, entry.Data)
	case store.OpDelete:
		id, err := recordID(entry.Data)
		if err != nil {
			return err
		}
		return q.backend.Delete(ctx, entry.Table, id)
	default:
		return &remote.Error{Permanent: true, Message: fmt.Sprintf("unknown operation %q", entry.Op)}
	}
}

// recordID extracts the primary key from an entry payload. A payload
// without an id is structurally invalid and can never be delivered.
func recordID(data json.RawMessage) (string, error) {
	var rec struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &rec); err != nil || rec.ID == "" {
		return "", &remote.Error{Permanent: true, Message: "payload has no id"}
	}
	return rec.ID, nil
}
