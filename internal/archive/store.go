package archive

import (
	"context"
	"errors"
	"fmt"
)

// ErrObjectNotFound is returned when an object key does not exist
var ErrObjectNotFound = errors.New("archive: object not found")

// ObjectInfo describes a stored object
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStore is the cold-tier object storage abstraction
type ObjectStore interface {
	// Put writes an object atomically: readers never observe partial content
	Put(ctx context.Context, key string, data []byte) error

	// Get reads a whole object, or ErrObjectNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Stat returns object metadata, or ErrObjectNotFound
	Stat(ctx context.Context, key string) (ObjectInfo, error)

	// Delete removes an object (no error if absent)
	Delete(ctx context.Context, key string) error

	// List returns keys under a prefix
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// VerifyObject confirms an uploaded segment exists, is non-empty, and holds
// the expected row count. Writers call this before treating an upload as
// committed.
func VerifyObject(ctx context.Context, store ObjectStore, key string, wantRows int64) error {
	info, err := store.Stat(ctx, key)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	if info.Size <= 0 {
		return fmt.Errorf("object %s is empty", key)
	}

	data, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("readback: %w", err)
	}

	rows, err := SegmentRowCount(data)
	if err != nil {
		return err
	}
	if rows != wantRows {
		return fmt.Errorf("row count mismatch: uploaded %d, expected %d", rows, wantRows)
	}

	return nil
}
