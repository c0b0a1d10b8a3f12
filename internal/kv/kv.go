// Package kv provides the key-value store used for cached query results and
// durable job state (archival day markers, backfill cursors).
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist
var ErrNotFound = errors.New("kv: key not found")

// Store is a key-value store with per-key TTL. TTL of zero means no expiry.
type Store interface {
	// Get retrieves the value for a key, or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an optional TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key (no error if absent)
	Delete(ctx context.Context, key string) error

	// Keys lists keys matching a prefix
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases underlying resources
	Close() error
}
