package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
)

func TestQueueOrderAndRemoval(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	// Same created_at millisecond: seq must break the tie.
	entries := []*QueueEntry{
		{ID: "e1", Table: "tasks", Op: OpInsert, Data: json.RawMessage(`{"id":"t1"}`), CreatedAt: 1000},
		{ID: "e2", Table: "tasks", Op: OpUpdate, Data: json.RawMessage(`{"id":"t1"}`), CreatedAt: 1000},
		{ID: "e3", Table: "guests", Op: OpDelete, Data: json.RawMessage(`{"id":"g1"}`), CreatedAt: 2000},
	}
	for _, e := range entries {
		if err := db.InsertQueueEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.ListQueueEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	for i, wantID := range []string{"e1", "e2", "e3"} {
		if got[i].ID != wantID {
			t.Errorf("entry[%d].ID = %s, want %s", i, got[i].ID, wantID)
		}
	}

	if err := db.DeleteQueueEntry(ctx, "e2"); err != nil {
		t.Fatal(err)
	}
	n, err := db.CountQueueEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

// TestQueueSurvivesReopen simulates a process restart: entries persisted
// before closing the store are all present, unchanged, after reopening it.
func TestQueueSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}

	for i, id := range []string{"e1", "e2", "e3"} {
		e := &QueueEntry{
			ID:        id,
			Table:     "tasks",
			Op:        OpInsert,
			Data:      json.RawMessage(`{"id":"t` + id + `","title":"task"}`),
			CreatedAt: int64(1000 + i),
		}
		if err := db.InsertQueueEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = reopened.Close() }()
	if _, err := reopened.Migrate(); err != nil {
		t.Fatal(err)
	}

	got, err := reopened.ListQueueEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries after reopen, want 3", len(got))
	}
	if got[0].Table != "tasks" || got[0].Op != OpInsert {
		t.Errorf("entry[0] = %+v, want tasks/insert", got[0])
	}
	var payload map[string]string
	if err := json.Unmarshal(got[0].Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["title"] != "task" {
		t.Errorf("payload title = %q, want task", payload["title"])
	}
}

func TestQueueDuplicateIDRejected(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	e := &QueueEntry{ID: "e1", Table: "tasks", Op: OpInsert, Data: json.RawMessage(`{}`), CreatedAt: 1}
	if err := db.InsertQueueEntry(ctx, e); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertQueueEntry(ctx, e); err == nil {
		t.Error("expected unique constraint error for duplicate entry id")
	}
}
