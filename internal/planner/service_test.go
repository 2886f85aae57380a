package planner

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aisleplan/aisle/internal/bus"
	"github.com/aisleplan/aisle/internal/outbox"
	"github.com/aisleplan/aisle/internal/status"
	"github.com/aisleplan/aisle/internal/store"
)

type queuedOp struct {
	Table string
	Op    string
}

type fakeQueue struct {
	mu  sync.Mutex
	ops []queuedOp
}

func (f *fakeQueue) Enqueue(_ context.Context, table, op string, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, queuedOp{Table: table, Op: op})
}

func (f *fakeQueue) snapshot() []queuedOp {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queuedOp(nil), f.ops...)
}

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "planner.db"))
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestService(t *testing.T) (*Service, *store.DB, *fakeQueue) {
	t.Helper()
	db := newTestDB(t)
	q := &fakeQueue{}
	return NewService(db, q, zap.NewNop()), db, q
}

func TestAddTaskDefaultsAndRecords(t *testing.T) {
	svc, db, q := newTestService(t)
	svc.SetActor("u1", "Janet")
	ctx := context.Background()

	task, err := svc.AddTask(ctx, Task{WeddingID: "w1", Title: "Book the venue"})
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, TaskTodo, task.Status)
	assert.Equal(t, PriorityMedium, task.Priority)
	assert.False(t, task.CreatedAt.IsZero())

	stored, err := store.Get[Task](ctx, db.MustCollection(store.Tasks), task.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Book the venue", stored.Title)

	feed, err := svc.ListActivities(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "added a task", feed[0].Action)
	assert.Equal(t, "Janet", feed[0].UserName)

	ops := q.snapshot()
	require.Len(t, ops, 2)
	assert.Equal(t, queuedOp{Table: store.Tasks, Op: store.OpInsert}, ops[0])
	assert.Equal(t, queuedOp{Table: store.Activities, Op: store.OpInsert}, ops[1])
}

func TestAddTaskRequiresTitle(t *testing.T) {
	svc, _, q := newTestService(t)

	_, err := svc.AddTask(context.Background(), Task{WeddingID: "w1", Title: "   "})
	require.Error(t, err)
	assert.Empty(t, q.snapshot())
}

func TestDeleteTaskRemovesLocallyAndEnqueues(t *testing.T) {
	svc, db, q := newTestService(t)
	ctx := context.Background()

	task, err := svc.AddTask(ctx, Task{WeddingID: "w1", Title: "Send invites"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteTask(ctx, task.ID))

	stored, err := store.Get[Task](ctx, db.MustCollection(store.Tasks), task.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	ops := q.snapshot()
	last := ops[len(ops)-1]
	assert.Equal(t, queuedOp{Table: store.Tasks, Op: store.OpDelete}, last)
}

func TestDeleteBudgetCategoryCascades(t *testing.T) {
	svc, _, q := newTestService(t)
	ctx := context.Background()

	cat, err := svc.AddBudgetCategory(ctx, BudgetCategory{WeddingID: "w1", Name: "Flowers"})
	require.NoError(t, err)
	_, err = svc.AddBudgetItem(ctx, BudgetItem{WeddingID: "w1", CategoryID: cat.ID, Name: "Bouquet"})
	require.NoError(t, err)
	_, err = svc.AddBudgetItem(ctx, BudgetItem{WeddingID: "w1", CategoryID: cat.ID, Name: "Centerpieces"})
	require.NoError(t, err)
	keep, err := svc.AddBudgetItem(ctx, BudgetItem{WeddingID: "w1", CategoryID: "other-cat", Name: "Band"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteBudgetCategory(ctx, cat.ID))

	remaining, err := svc.ListBudgetItems(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, keep.ID, remaining[0].ID)

	cats, err := svc.ListBudgetCategories(ctx, "w1")
	require.NoError(t, err)
	assert.Empty(t, cats)

	// Item deletes are enqueued before the category delete.
	ops := q.snapshot()
	var deletes []queuedOp
	for _, op := range ops {
		if op.Op == store.OpDelete {
			deletes = append(deletes, op)
		}
	}
	require.Len(t, deletes, 3)
	assert.Equal(t, store.BudgetItems, deletes[0].Table)
	assert.Equal(t, store.BudgetItems, deletes[1].Table)
	assert.Equal(t, store.BudgetCategories, deletes[2].Table)
}

func TestDeleteSeatingTableUnassignsGuests(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	table, err := svc.AddSeatingTable(ctx, SeatingTable{WeddingID: "w1", Name: "Table 1", Capacity: 8})
	require.NoError(t, err)
	guest, err := svc.AddGuest(ctx, Guest{WeddingID: "w1", Name: "Rui"})
	require.NoError(t, err)
	require.NoError(t, svc.AssignGuestSeat(ctx, guest.ID, table.ID, 3))

	require.NoError(t, svc.DeleteSeatingTable(ctx, table.ID))

	guests, err := svc.ListGuests(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, guests, 1)
	assert.Empty(t, guests[0].TableID)
	assert.Zero(t, guests[0].SeatNumber)
}

func TestDashboardStats(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	w, err := svc.AddWedding(ctx, Wedding{
		UserID: "u1", Partner1Name: "Ana", Partner2Name: "Bea",
		WeddingDate: "2026-09-11", TotalBudget: 10000,
	})
	require.NoError(t, err)

	_, err = svc.AddTask(ctx, Task{WeddingID: w.ID, Title: "A", Status: TaskDone})
	require.NoError(t, err)
	_, err = svc.AddTask(ctx, Task{WeddingID: w.ID, Title: "B"})
	require.NoError(t, err)
	_, err = svc.AddBudgetItem(ctx, BudgetItem{WeddingID: w.ID, Name: "Cake", ActualCost: 1500})
	require.NoError(t, err)
	_, err = svc.AddGuest(ctx, Guest{WeddingID: w.ID, Name: "G1", RSVPStatus: RSVPAccepted})
	require.NoError(t, err)
	_, err = svc.AddGuest(ctx, Guest{WeddingID: w.ID, Name: "G2", RSVPStatus: RSVPDeclined})
	require.NoError(t, err)
	_, err = svc.AddGuest(ctx, Guest{WeddingID: w.ID, Name: "G3"})
	require.NoError(t, err)
	_, err = svc.AddVendor(ctx, Vendor{WeddingID: w.ID, Name: "Caterer"})
	require.NoError(t, err)

	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	stats, err := svc.DashboardStats(ctx, w.ID, now)
	require.NoError(t, err)

	assert.Equal(t, 10, stats.DaysUntilWedding)
	assert.Equal(t, float64(10000), stats.TotalBudget)
	assert.Equal(t, float64(1500), stats.BudgetSpent)
	assert.Equal(t, float64(8500), stats.BudgetRemaining)
	assert.Equal(t, 2, stats.TasksTotal)
	assert.Equal(t, 1, stats.TasksDone)
	assert.Equal(t, 3, stats.GuestsInvited)
	assert.Equal(t, 1, stats.GuestsAccepted)
	assert.Equal(t, 1, stats.GuestsDeclined)
	assert.Equal(t, 1, stats.GuestsPending)
	assert.Equal(t, 1, stats.VendorsBooked)
}

// recordingBackend stands in for the remote row API during the offline
// round trip below.
type recordingBackend struct {
	mu    sync.Mutex
	calls []string
}

func (b *recordingBackend) Configured() bool { return true }

func (b *recordingBackend) record(op, table string, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, op+" "+table+" "+id)
}

func (b *recordingBackend) Insert(_ context.Context, table string, row json.RawMessage) error {
	var rec struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(row, &rec)
	b.record("insert", table, rec.ID)
	return nil
}

func (b *recordingBackend) Update(_ context.Context, table, id string, _ json.RawMessage) error {
	b.record("update", table, id)
	return nil
}

func (b *recordingBackend) Delete(_ context.Context, table, id string) error {
	b.record("delete", table, id)
	return nil
}

// Mutations made while offline accumulate durably and deliver in original
// order once connectivity returns.
func TestOfflineMutationsDrainInOrderWhenOnline(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var online bool
	var mu sync.Mutex
	b := bus.New()
	tracker := status.NewTracker(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return online
	}, b)

	backend := &recordingBackend{}
	queue := outbox.NewQueue(db, backend, tracker, b, zap.NewNop(), time.Second)
	svc := NewService(db, queue, zap.NewNop())

	task, err := svc.AddTask(ctx, Task{WeddingID: "w1", Title: "Order flowers"})
	require.NoError(t, err)
	task.Status = TaskDone
	require.NoError(t, svc.UpdateTask(ctx, task))
	guest, err := svc.AddGuest(ctx, Guest{WeddingID: "w1", Name: "Rui"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteGuest(ctx, guest.ID))

	pending, err := db.CountQueueEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, pending)
	assert.Empty(t, backend.calls, "nothing delivered while offline")

	mu.Lock()
	online = true
	mu.Unlock()
	queue.Drain(ctx)

	pending, err = db.CountQueueEntries(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Equal(t, status.Idle, tracker.SyncStatus())

	backend.mu.Lock()
	calls := append([]string(nil), backend.calls...)
	backend.mu.Unlock()
	require.Len(t, calls, 4)
	assert.Equal(t, "insert tasks "+task.ID, calls[0])
	assert.Equal(t, "update tasks "+task.ID, calls[1])
	assert.Equal(t, "insert guests "+guest.ID, calls[2])
	assert.Equal(t, "delete guests "+guest.ID, calls[3])
}
