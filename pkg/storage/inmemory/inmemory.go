// Package inmemory provides a map-backed storage driver. Nothing survives
// the process.
package inmemory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/yurie-chat/yurie/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu guards collections
	mu sync.RWMutex

	// collections maps collection name to key to record
	collections map[string]map[string]storage.Record

	now func() time.Time
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		collections: make(map[string]map[string]storage.Record),
		now:         time.Now,
	}
}

// Get retrieves the value stored under key.
func (d *Driver) Get(_ context.Context, collection, key string) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.collections[collection][key]
	if !ok {
		return nil, storage.NotFoundError{Collection: collection, Key: key}
	}
	return slices.Clone(rec.Value), nil
}

// Put stores a copy of value under key.
func (d *Driver) Put(_ context.Context, collection, key string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.collections[collection]
	if !ok {
		c = make(map[string]storage.Record)
		d.collections[collection] = c
	}
	c[key] = storage.Record{Key: key, Value: slices.Clone(value), UpdatedAt: d.now()}
	return nil
}

// Delete removes key from collection.
func (d *Driver) Delete(_ context.Context, collection, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.collections[collection], key)
	return nil
}

// List returns copies of every record in collection ordered by key.
func (d *Driver) List(_ context.Context, collection string) ([]storage.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]storage.Record, 0, len(d.collections[collection]))
	for _, rec := range d.collections[collection] {
		rec.Value = slices.Clone(rec.Value)
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b storage.Record) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
