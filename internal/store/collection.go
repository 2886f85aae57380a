package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Collection is a handle to one document table. Records are stored as JSON
// keyed by a caller-supplied string id; secondary indexes declared in the
// schema registry support equality lookups without a full scan.
type Collection struct {
	db   *DB
	name string
}

// Collection returns a handle to the named collection. Unknown names are
// rejected so a typo cannot reach SQL with an unchecked identifier.
func (db *DB) Collection(name string) (*Collection, error) {
	if _, ok := collections[name]; !ok {
		return nil, fmt.Errorf("unknown collection %q", name)
	}
	return &Collection{db: db, name: name}, nil
}

// MustCollection is Collection for statically-known names.
func (db *DB) MustCollection(name string) *Collection {
	c, err := db.Collection(name)
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Put upserts a record by primary key. The record is marshalled to JSON;
// the call returns only after the write is committed.
func (c *Collection) Put(ctx context.Context, id string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", c.name, err)
	}
	_, err = c.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, data) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data`, c.name),
		id, string(data))
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", c.name, id, err)
	}
	return nil
}

// PutRaw upserts an already-serialized JSON document. Used by the puller,
// which writes remote rows through without a typed round trip.
func (c *Collection) PutRaw(ctx context.Context, id string, data json.RawMessage) error {
	_, err := c.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, data) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data`, c.name),
		id, string(data))
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", c.name, id, err)
	}
	return nil
}

// Delete removes a record by primary key. Deleting an absent id is not an error.
func (c *Collection) Delete(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, c.name), id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.name, id, err)
	}
	return nil
}

// Count returns the number of records in the collection.
func (c *Collection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.name)).Scan(&n)
	return n, err
}

// Get unmarshals the record with the given id into a fresh T.
// Returns nil (not an error) when the id is absent.
func Get[T any](ctx context.Context, c *Collection, id string) (*T, error) {
	var data string
	err := c.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, c.name), id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", c.name, id, err)
	}
	var rec T
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal %s/%s: %w", c.name, id, err)
	}
	return &rec, nil
}

// Query returns every record whose indexed field equals value. A miss is an
// empty slice, never an error. The index must be declared in the schema.
func Query[T any](ctx context.Context, c *Collection, index string, value any) ([]T, error) {
	if !hasIndex(c.name, index) {
		return nil, fmt.Errorf("collection %s has no index %q", c.name, index)
	}
	rows, err := c.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT data FROM %s WHERE "%s" = ?`, c.name, index), value)
	if err != nil {
		return nil, fmt.Errorf("query %s by %s: %w", c.name, index, err)
	}
	return scanRecords[T](c.name, rows)
}

func scanRecords[T any](name string, rows *sql.Rows) ([]T, error) {
	defer func() { _ = rows.Close() }()

	recs := []T{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec T
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal %s record: %w", name, err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
