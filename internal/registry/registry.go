// Package registry maintains the point name dictionary. Hot-tier sample keys
// carry only an xxhash of the point name, so the registry is what maps hashes
// back to names at read time.
package registry

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
)

var keyPrefix = []byte("reg:")

// HashPoint returns the stable 64-bit identity of a point name
func HashPoint(pointName string) uint64 {
	return xxhash.Sum64String(pointName)
}

// Registry persists point name mappings per site in BadgerDB and keeps an
// in-process cache so steady-state writes never touch disk for known points.
type Registry struct {
	db *badger.DB

	mu    sync.RWMutex
	known map[string]map[uint64]string // siteID -> point hash -> name
}

// New creates a registry on an open BadgerDB handle
func New(db *badger.DB) *Registry {
	return &Registry{
		db:    db,
		known: make(map[string]map[uint64]string),
	}
}

// regKey layout: "reg:" + siteID + ":" + hash (8 bytes BE)
func regKey(siteID string, hash uint64) []byte {
	key := make([]byte, 0, len(keyPrefix)+len(siteID)+1+8)
	key = append(key, keyPrefix...)
	key = append(key, siteID...)
	key = append(key, ':')
	var h [8]byte
	binary.BigEndian.PutUint64(h[:], hash)
	return append(key, h[:]...)
}

func sitePrefix(siteID string) []byte {
	key := make([]byte, 0, len(keyPrefix)+len(siteID)+1)
	key = append(key, keyPrefix...)
	key = append(key, siteID...)
	return append(key, ':')
}

// Ensure records a point name for a site. Known names are a cache hit and
// cost no write.
func (r *Registry) Ensure(ctx context.Context, siteID, pointName string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	hash := HashPoint(pointName)

	r.mu.RLock()
	if name, ok := r.known[siteID][hash]; ok && name == pointName {
		r.mu.RUnlock()
		return hash, nil
	}
	r.mu.RUnlock()

	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(regKey(siteID, hash), []byte(pointName))
	})
	if err != nil {
		return 0, fmt.Errorf("failed to register point %s: %w", pointName, err)
	}

	r.mu.Lock()
	if r.known[siteID] == nil {
		r.known[siteID] = make(map[uint64]string)
	}
	r.known[siteID][hash] = pointName
	r.mu.Unlock()

	return hash, nil
}

// Lookup resolves a point hash to its name for a site
func (r *Registry) Lookup(ctx context.Context, siteID string, hash uint64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.RLock()
	if name, ok := r.known[siteID][hash]; ok {
		r.mu.RUnlock()
		return name, nil
	}
	r.mu.RUnlock()

	var name string
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(regKey(siteID, hash))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			name = string(val)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return "", fmt.Errorf("unknown point hash %x for site %s", hash, siteID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up point hash %x: %w", hash, err)
	}

	r.mu.Lock()
	if r.known[siteID] == nil {
		r.known[siteID] = make(map[uint64]string)
	}
	r.known[siteID][hash] = name
	r.mu.Unlock()

	return name, nil
}

// Points lists all registered point names for a site
func (r *Registry) Points(ctx context.Context, siteID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var names []string
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = sitePrefix(siteID)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				names = append(names, string(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list points for site %s: %w", siteID, err)
	}

	return names, nil
}
