package pull

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aisleplan/aisle/internal/bus"
	"github.com/aisleplan/aisle/internal/status"
	"github.com/aisleplan/aisle/internal/store"
)

// fakeSource serves canned rows per table and can fail selected tables.
type fakeSource struct {
	configured bool
	rows       map[string][]json.RawMessage
	failTables map[string]bool
	selects    []string
}

func (f *fakeSource) Configured() bool { return f.configured }

func (f *fakeSource) Select(_ context.Context, table, field, value string, _ int, _ bool) ([]json.RawMessage, error) {
	f.selects = append(f.selects, table)
	if f.failTables[table] {
		return nil, fmt.Errorf("select %s: connection reset", table)
	}
	return f.rows[table], nil
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testPuller(t *testing.T, src *fakeSource, online bool) (*Puller, *store.DB) {
	t.Helper()
	db := testDB(t)
	b := bus.New()
	tracker := status.NewTracker(func() bool { return online }, b)
	return NewPuller(db, src, tracker, b, zap.NewNop(), time.Second), db
}

func TestPullUpsertsRemoteRows(t *testing.T) {
	src := &fakeSource{
		configured: true,
		rows: map[string][]json.RawMessage{
			store.Tasks: {
				json.RawMessage(`{"id":"t1","wedding_id":"w1","title":"Book venue","status":"todo"}`),
				json.RawMessage(`{"id":"t2","wedding_id":"w1","title":"Order cake","status":"done"}`),
			},
			store.Guests: {
				json.RawMessage(`{"id":"g1","wedding_id":"w1","name":"Alice"}`),
			},
		},
	}
	p, db := testPuller(t, src, true)
	ctx := context.Background()

	p.Pull(ctx, "w1")

	tasks, err := store.Query[map[string]any](ctx, db.MustCollection(store.Tasks), "wedding_id", "w1")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	guests, err := store.Query[map[string]any](ctx, db.MustCollection(store.Guests), "wedding_id", "w1")
	require.NoError(t, err)
	assert.Len(t, guests, 1)

	assert.Equal(t, Collections, src.selects, "every synced collection fetched once, in order")
}

func TestPullRemoteWinsOnConflict(t *testing.T) {
	src := &fakeSource{
		configured: true,
		rows: map[string][]json.RawMessage{
			store.Tasks: {json.RawMessage(`{"id":"t1","wedding_id":"w1","title":"final"}`)},
		},
	}
	p, db := testPuller(t, src, true)
	ctx := context.Background()

	// Local draft exists before the pull.
	require.NoError(t, db.MustCollection(store.Tasks).PutRaw(ctx, "t1",
		json.RawMessage(`{"id":"t1","wedding_id":"w1","title":"draft"}`)))

	p.Pull(ctx, "w1")

	got, err := store.Get[map[string]any](ctx, db.MustCollection(store.Tasks), "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "final", (*got)["title"], "whole-record last-writer-wins, remote wins")
}

func TestPullIsolatesCollectionFailure(t *testing.T) {
	src := &fakeSource{
		configured: true,
		failTables: map[string]bool{store.Tasks: true},
		rows: map[string][]json.RawMessage{
			store.Guests: {json.RawMessage(`{"id":"g1","wedding_id":"w1","name":"Alice"}`)},
		},
	}
	p, db := testPuller(t, src, true)
	ctx := context.Background()

	p.Pull(ctx, "w1")

	// Tasks failed but guests still reconciled.
	guests, err := store.Query[map[string]any](ctx, db.MustCollection(store.Guests), "wedding_id", "w1")
	require.NoError(t, err)
	assert.Len(t, guests, 1)
	assert.Equal(t, Collections, src.selects, "failure must not abort the remaining collections")
}

func TestPullNoopOffline(t *testing.T) {
	src := &fakeSource{configured: true}
	p, _ := testPuller(t, src, false)

	p.Pull(context.Background(), "w1")
	assert.Empty(t, src.selects)
}

func TestPullNoopUnconfigured(t *testing.T) {
	src := &fakeSource{configured: false}
	p, _ := testPuller(t, src, true)

	p.Pull(context.Background(), "w1")
	assert.Empty(t, src.selects)
}

func TestPullSkipsRowsWithoutID(t *testing.T) {
	src := &fakeSource{
		configured: true,
		rows: map[string][]json.RawMessage{
			store.Notes: {
				json.RawMessage(`{"wedding_id":"w1","title":"orphan"}`),
				json.RawMessage(`{"id":"n1","wedding_id":"w1","title":"kept"}`),
			},
		},
	}
	p, db := testPuller(t, src, true)
	ctx := context.Background()

	p.Pull(ctx, "w1")

	notes, err := store.Query[map[string]any](ctx, db.MustCollection(store.Notes), "wedding_id", "w1")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "kept", notes[0]["title"])
}
