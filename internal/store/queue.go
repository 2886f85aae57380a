package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Mutation operations carried by queue entries.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// QueueEntry is one unit of queued outbound work: a single insert, update
// or delete against one remote collection. Entries are immutable once
// persisted; the queue is append/remove only.
type QueueEntry struct {
	Seq       int64
	ID        string
	Table     string
	Op        string
	Data      json.RawMessage
	CreatedAt int64 // unix millis
}

// InsertQueueEntry persists a new outbound entry. Durability before
// delivery: the entry is committed before any send is attempted.
func (db *DB) InsertQueueEntry(ctx context.Context, e *QueueEntry) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_queue (id, tbl, op, data, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Table, e.Op, string(e.Data), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert queue entry: %w", err)
	}
	return nil
}

// ListQueueEntries returns all pending entries in delivery order: creation
// time ascending, insertion order breaking ties.
func (db *DB) ListQueueEntries(ctx context.Context) ([]QueueEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT seq, id, tbl, op, data, created_at
		FROM sync_queue ORDER BY created_at ASC, seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []QueueEntry
	for rows.Next() {
		var e QueueEntry
		var data string
		if err := rows.Scan(&e.Seq, &e.ID, &e.Table, &e.Op, &data, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(data)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteQueueEntry removes an entry after confirmed delivery or after it is
// classified as permanently undeliverable.
func (db *DB) DeleteQueueEntry(ctx context.Context, id string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete queue entry %s: %w", id, err)
	}
	return nil
}

// CountQueueEntries returns the number of pending entries.
func (db *DB) CountQueueEntries(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&n)
	return n, err
}
