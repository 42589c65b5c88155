// Package storage is a small key-value abstraction over named collections.
// The chat history store keeps chats and messages in it.
package storage

import (
	"context"
	"time"
)

// Record is one stored value.
type Record struct {
	Key       string
	Value     []byte
	UpdatedAt time.Time
}

// Driver defines the interface for persisting values in a storage backend.
// Values are opaque bytes; callers choose the encoding.
type Driver interface {
	// Get returns the value stored under key, or NotFoundError.
	Get(ctx context.Context, collection, key string) ([]byte, error)

	// Put inserts or replaces the value stored under key.
	Put(ctx context.Context, collection, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, collection, key string) error

	// List returns every record in collection ordered by key.
	List(ctx context.Context, collection string) ([]Record, error)

	// Close closes the store and releases any resources.
	Close() error
}
