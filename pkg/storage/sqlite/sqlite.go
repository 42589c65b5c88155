// Package sqlite provides a SQLite-backed storage driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yurie-chat/yurie/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	collection TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (collection, key)
)`

// Driver implements storage.Driver over a single SQLite table.
type Driver struct {
	db  *sql.DB
	now func() time.Time
}

// NewDriver opens or creates the database at dbPath.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db, now: time.Now}, nil
}

// Get retrieves the value stored under key.
func (d *Driver) Get(ctx context.Context, collection, key string) ([]byte, error) {
	var value []byte
	err := d.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE collection = ? AND key = ?`, collection, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{Collection: collection, Key: key}
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	return value, nil
}

// Put inserts or replaces the value stored under key.
func (d *Driver) Put(ctx context.Context, collection, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := d.db.ExecContext(ctx, `
INSERT INTO kv (collection, key, value, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (collection, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		collection, key, value, d.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, key, err)
	}
	return nil
}

// Delete removes key from collection.
func (d *Driver) Delete(ctx context.Context, collection, key string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM kv WHERE collection = ? AND key = ?`, collection, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, key, err)
	}
	return nil
}

// List returns every record in collection ordered by key.
func (d *Driver) List(ctx context.Context, collection string) ([]storage.Record, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT key, value, updated_at FROM kv WHERE collection = ? ORDER BY key`, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var out []storage.Record
	for rows.Next() {
		var (
			rec     storage.Record
			updated int64
		)
		if err := rows.Scan(&rec.Key, &rec.Value, &updated); err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		rec.UpdatedAt = time.Unix(0, updated)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.db.Close()
}
