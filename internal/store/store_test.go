package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type testGuest struct {
	ID        string `json:"id"`
	WeddingID string `json:"wedding_id"`
	Name      string `json:"name"`
	Group     string `json:"group"`
}

func TestMigrateAppliesOnFreshDB(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so run it again to check idempotency.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + activity feed)", result.Version)
	}
}

// TestMigrateSchemaHasAllCollections verifies every collection in the
// registry exists with its declared indexes after migrating to the highest
// version. The registry and the SQL must not drift apart.
func TestMigrateSchemaHasAllCollections(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for _, name := range Names() {
		c, err := db.Collection(name)
		if err != nil {
			t.Fatalf("Collection(%s): %v", name, err)
		}
		if err := c.Put(ctx, "probe", map[string]string{"id": "probe"}); err != nil {
			t.Errorf("put into %s: %v", name, err)
		}
		for _, ix := range collections[name] {
			if _, err := Query[map[string]any](ctx, c, ix, "x"); err != nil {
				t.Errorf("query %s by %s: %v", name, ix, err)
			}
		}
	}
}

func TestCollectionUnknownName(t *testing.T) {
	db := testDB(t)
	if _, err := db.Collection("no_such_collection"); err == nil {
		t.Error("expected error for unknown collection")
	}
}

func TestQueryUnknownIndex(t *testing.T) {
	db := testDB(t)
	c := db.MustCollection(Guests)
	if _, err := Query[testGuest](context.Background(), c, "shoe_size", "44"); err == nil {
		t.Error("expected error for undeclared index")
	}
}

func TestPutGetDelete(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	c := db.MustCollection(Guests)

	g := testGuest{ID: "g1", WeddingID: "w1", Name: "Alice", Group: "bride-family"}
	if err := c.Put(ctx, g.ID, g); err != nil {
		t.Fatal(err)
	}

	got, err := Get[testGuest](ctx, c, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Name != "Alice" {
		t.Fatalf("got %+v, want Alice", got)
	}

	// Upsert by primary key.
	g.Name = "Alice Updated"
	if err := c.Put(ctx, g.ID, g); err != nil {
		t.Fatal(err)
	}
	n, err := c.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1 (upsert must not duplicate)", n)
	}

	if err := c.Delete(ctx, "g1"); err != nil {
		t.Fatal(err)
	}
	got, err = Get[testGuest](ctx, c, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}

	// Deleting an absent id is not an error.
	if err := c.Delete(ctx, "g1"); err != nil {
		t.Errorf("delete absent id: %v", err)
	}
}

func TestQueryBySecondaryIndex(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	c := db.MustCollection(Guests)

	for _, g := range []testGuest{
		{ID: "g1", WeddingID: "w1", Name: "Alice", Group: "bride-family"},
		{ID: "g2", WeddingID: "w1", Name: "Bob", Group: "groom-family"},
		{ID: "g3", WeddingID: "w2", Name: "Cara", Group: "bride-family"},
	} {
		if err := c.Put(ctx, g.ID, g); err != nil {
			t.Fatal(err)
		}
	}

	got, err := Query[testGuest](ctx, c, "wedding_id", "w1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d guests for w1, want 2", len(got))
	}

	// "group" is a SQL keyword; the quoted generated column must still work.
	got, err = Query[testGuest](ctx, c, "group", "bride-family")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d bride-family guests, want 2", len(got))
	}

	// A miss is an empty slice, not an error.
	got, err = Query[testGuest](ctx, c, "wedding_id", "w999")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty slice", got)
	}
}

func TestPutRaw(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	c := db.MustCollection(Tasks)

	raw := json.RawMessage(`{"id":"t1","wedding_id":"w1","title":"Book venue","status":"todo"}`)
	if err := c.PutRaw(ctx, "t1", raw); err != nil {
		t.Fatal(err)
	}

	got, err := Query[map[string]any](ctx, c, "status", "todo")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d tasks, want 1", len(got))
	}
	if got[0]["title"] != "Book venue" {
		t.Errorf("title = %v, want Book venue", got[0]["title"])
	}
}

// TestMessagesCreatedAtIndex covers the v2 migration: the created_at column
// on messages is added by ALTER TABLE after v1 data may already exist.
func TestMessagesCreatedAtIndex(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	c := db.MustCollection(Messages)

	raw := json.RawMessage(`{"id":"m1","wedding_id":"w1","created_at":"2026-05-01T10:00:00Z"}`)
	if err := c.PutRaw(ctx, "m1", raw); err != nil {
		t.Fatal(err)
	}
	got, err := Query[map[string]any](ctx, c, "created_at", "2026-05-01T10:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1", len(got))
	}
}
