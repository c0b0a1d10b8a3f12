// Package hotstore implements the hot tier: recent samples in an embedded
// BadgerDB keyed for fast per-site, per-point range scans.
package hotstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/buildingvitals/vitalstore/internal/models"
	"github.com/buildingvitals/vitalstore/internal/registry"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// Config holds hot store configuration
type Config struct {
	// Path to store database files
	DataDir string

	// InMemory mode (for testing)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = conservative default)
	MaxMemoryMB int64
}

// Stats reports hot tier occupancy
type Stats struct {
	SampleCount int64
	PointCount  int
	Oldest      time.Time
	Newest      time.Time
	SizeBytes   int64
}

// Store is the BadgerDB-backed hot tier
type Store struct {
	db  *badger.DB
	reg *registry.Registry
}

// Open opens the hot store. Badger's defaults assume a dedicated box; these
// limits keep memory bounded when the store shares a host with the API.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.DataDir)

	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	var memTableSize int64
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3
	} else {
		memTableSize = 16 * 1024 * 1024
	}

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(memTableSize / 2).
		WithIndexCacheSize(memTableSize / 4).
		WithNumCompactors(2).
		WithValueThreshold(1024).
		WithValueLogFileSize(64 << 20).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open hot store: %w", err)
	}

	return &Store{
		db:  db,
		reg: registry.New(db),
	}, nil
}

// Registry exposes the point name dictionary backed by the same database
func (s *Store) Registry() *registry.Registry {
	return s.reg
}

// Write stores samples, registering point names as needed
func (s *Store) Write(ctx context.Context, samples []models.Sample) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}

	hashes := make([]uint64, len(samples))
	for i, sample := range samples {
		hash, err := s.reg.Ensure(ctx, sample.SiteID, sample.PointName)
		if err != nil {
			return err
		}
		hashes[i] = hash
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for i, sample := range samples {
			if i%100 == 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
			}

			key := sampleKey(hashSite(sample.SiteID), hashes[i], sample.Timestamp)
			value := make([]byte, 8)
			binary.LittleEndian.PutUint64(value, math.Float64bits(sample.Value))

			if err := txn.Set(key, value); err != nil {
				return fmt.Errorf("failed to write sample: %w", err)
			}
		}
		return nil
	})
}

// Query returns samples for the given points within [startMs, endMs],
// ascending by timestamp per point. Empty pointNames means all points
// registered for the site.
func (s *Store) Query(ctx context.Context, siteID string, pointNames []string, startMs, endMs int64) ([]models.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(pointNames) == 0 {
		var err error
		pointNames, err = s.reg.Points(ctx, siteID)
		if err != nil {
			return nil, err
		}
	}

	siteHash := hashSite(siteID)
	var results []models.Sample

	err := s.db.View(func(txn *badger.Txn) error {
		for _, name := range pointNames {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			pointHash := registry.HashPoint(name)
			prefix := pointPrefix(siteHash, pointHash)

			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix

			it := txn.NewIterator(opts)

			for it.Seek(sampleKey(siteHash, pointHash, startMs)); it.Valid(); it.Next() {
				item := it.Item()
				_, ts, ok := parseSampleKey(item.Key())
				if !ok || ts > endMs {
					break
				}

				var value float64
				err := item.Value(func(val []byte) error {
					if len(val) != 8 {
						return fmt.Errorf("corrupt sample value, %d bytes", len(val))
					}
					value = math.Float64frombits(binary.LittleEndian.Uint64(val))
					return nil
				})
				if err != nil {
					it.Close()
					return err
				}

				results = append(results, models.Sample{
					SiteID:    siteID,
					PointName: name,
					Timestamp: ts,
					Value:     value,
				})
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("hot store query failed: %w", err)
	}

	return results, nil
}

// ReadDay returns every sample for a site within one UTC day
func (s *Store) ReadDay(ctx context.Context, siteID string, day time.Time) ([]models.Sample, error) {
	start, end := dayBounds(day)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	siteHash := hashSite(siteID)
	var results []models.Sample

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = sitePrefix(siteHash)

		it := txn.NewIterator(opts)
		defer it.Close()

		var iterCount int
		for it.Rewind(); it.Valid(); it.Next() {
			iterCount++
			if iterCount%1000 == 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
			}

			item := it.Item()
			pointHash, ts, ok := parseSampleKey(item.Key())
			if !ok || ts < start || ts >= end {
				continue
			}

			name, err := s.reg.Lookup(ctx, siteID, pointHash)
			if err != nil {
				return err
			}

			var value float64
			err = item.Value(func(val []byte) error {
				if len(val) != 8 {
					return fmt.Errorf("corrupt sample value, %d bytes", len(val))
				}
				value = math.Float64frombits(binary.LittleEndian.Uint64(val))
				return nil
			})
			if err != nil {
				return err
			}

			results = append(results, models.Sample{
				SiteID:    siteID,
				PointName: name,
				Timestamp: ts,
				Value:     value,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("hot store day read failed: %w", err)
	}

	models.SortSamplesAscending(results)
	return results, nil
}

// CountDay counts samples for a site within one UTC day without reading values
func (s *Store) CountDay(ctx context.Context, siteID string, day time.Time) (int64, error) {
	start, end := dayBounds(day)

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	siteHash := hashSite(siteID)
	var count int64

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = sitePrefix(siteHash)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			_, ts, ok := parseSampleKey(it.Item().Key())
			if ok && ts >= start && ts < end {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("hot store day count failed: %w", err)
	}

	return count, nil
}

// DeleteDay removes every sample for a site within one UTC day, committing in
// batches so transactions stay bounded. Returns the number of deleted samples.
func (s *Store) DeleteDay(ctx context.Context, siteID string, day time.Time, batchSize int) (int64, error) {
	start, end := dayBounds(day)

	if batchSize <= 0 {
		batchSize = 10000
	}

	var deleted int64
	for {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		keys, err := s.collectDayKeys(siteID, start, end, batchSize)
		if err != nil {
			return deleted, err
		}
		if len(keys) == 0 {
			return deleted, nil
		}

		err = s.db.Update(func(txn *badger.Txn) error {
			for _, key := range keys {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return deleted, fmt.Errorf("hot store day delete failed: %w", err)
		}

		deleted += int64(len(keys))
		if len(keys) < batchSize {
			return deleted, nil
		}
	}
}

func (s *Store) collectDayKeys(siteID string, start, end int64, limit int) ([][]byte, error) {
	siteHash := hashSite(siteID)
	var keys [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = sitePrefix(siteHash)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			_, ts, ok := parseSampleKey(it.Item().Key())
			if !ok || ts < start || ts >= end {
				continue
			}
			keys = append(keys, it.Item().KeyCopy(nil))
			if len(keys) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return keys, nil
}

// SiteBounds returns the oldest and newest sample times for a site. Zero
// times mean the site has no hot data.
func (s *Store) SiteBounds(ctx context.Context, siteID string) (time.Time, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, time.Time{}, err
	}

	var oldest, newest time.Time

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = sitePrefix(hashSite(siteID))
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		var iterCount int
		for it.Rewind(); it.Valid(); it.Next() {
			iterCount++
			if iterCount%1000 == 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
			}

			_, ts, ok := parseSampleKey(it.Item().Key())
			if !ok {
				continue
			}

			t := time.UnixMilli(ts).UTC()
			if oldest.IsZero() || t.Before(oldest) {
				oldest = t
			}
			if newest.IsZero() || t.After(newest) {
				newest = t
			}
		}
		return nil
	})
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("hot store site bounds failed: %w", err)
	}

	return oldest, newest, nil
}

// Stats scans keys only to report occupancy
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := &Stats{}
	points := make(map[uint64]bool)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{'d'}
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		var iterCount int
		for it.Rewind(); it.Valid(); it.Next() {
			iterCount++
			if iterCount%1000 == 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
			}

			pointHash, ts, ok := parseSampleKey(it.Item().Key())
			if !ok {
				continue
			}

			stats.SampleCount++
			points[pointHash] = true

			t := time.UnixMilli(ts).UTC()
			if stats.Oldest.IsZero() || t.Before(stats.Oldest) {
				stats.Oldest = t
			}
			if stats.Newest.IsZero() || t.After(stats.Newest) {
				stats.Newest = t
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("hot store stats failed: %w", err)
	}

	stats.PointCount = len(points)
	lsm, vlog := s.db.Size()
	stats.SizeBytes = lsm + vlog

	return stats, nil
}

// RunGC runs Badger's value log garbage collection
func (s *Store) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}

// Close shuts down the database
func (s *Store) Close() error {
	return s.db.Close()
}

func dayBounds(day time.Time) (int64, int64) {
	day = day.UTC().Truncate(24 * time.Hour)
	return day.UnixMilli(), day.Add(24 * time.Hour).UnixMilli()
}
