// Package cache implements the age-aware query result cache. Results whose
// time range ends long ago are immutable and cache for much longer than
// results that touch recent, still-changing data.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/buildingvitals/vitalstore/internal/config"
	"github.com/buildingvitals/vitalstore/internal/kv"
	"github.com/buildingvitals/vitalstore/internal/logging"
	"github.com/buildingvitals/vitalstore/internal/models"
)

// TTLPolicy maps the age of a query's end time to a cache TTL
type TTLPolicy struct {
	Recent  time.Duration // end_time < 1 day old
	Week    time.Duration // 1-7 days old
	Month   time.Duration // 7-30 days old
	Archive time.Duration // > 30 days old
}

// DefaultTTLPolicy returns the standard age tiers
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		Recent:  5 * time.Minute,
		Week:    30 * time.Minute,
		Month:   time.Hour,
		Archive: 24 * time.Hour,
	}
}

// PolicyFromConfig builds a TTLPolicy from cache configuration
func PolicyFromConfig(cfg config.CacheConfig) TTLPolicy {
	policy := DefaultTTLPolicy()
	if cfg.TTLRecent > 0 {
		policy.Recent = cfg.TTLRecent
	}
	if cfg.TTLWeek > 0 {
		policy.Week = cfg.TTLWeek
	}
	if cfg.TTLMonth > 0 {
		policy.Month = cfg.TTLMonth
	}
	if cfg.TTLArchive > 0 {
		policy.Archive = cfg.TTLArchive
	}
	return policy
}

// TTLFor selects the TTL tier for a query ending at endTime, evaluated at now
func (p TTLPolicy) TTLFor(endTime, now time.Time) time.Duration {
	age := now.Sub(endTime)
	switch {
	case age < 24*time.Hour:
		return p.Recent
	case age < 7*24*time.Hour:
		return p.Week
	case age < 30*24*time.Hour:
		return p.Month
	default:
		return p.Archive
	}
}

// QueryCache caches query responses in a kv.Store with age-aware TTLs
type QueryCache struct {
	store  kv.Store
	policy TTLPolicy
	logger *logging.Logger
}

// NewQueryCache creates a query cache on top of a key-value store
func NewQueryCache(store kv.Store, policy TTLPolicy, logger *logging.Logger) *QueryCache {
	return &QueryCache{
		store:  store,
		policy: policy,
		logger: logger,
	}
}

// Get returns the cached response for a query, or nil on miss. Store errors
// are treated as misses so a cache outage never fails a query.
func (c *QueryCache) Get(ctx context.Context, req *models.QueryRequest) *models.QueryResponse {
	key := Key(req)

	data, err := c.store.Get(ctx, key)
	if err != nil {
		if err != kv.ErrNotFound {
			c.logger.Warn("Cache read failed, treating as miss", "key", key, "error", err)
		}
		return nil
	}

	var resp models.QueryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Warn("Corrupt cache entry, evicting", "key", key, "error", err)
		_ = c.store.Delete(ctx, key)
		return nil
	}

	return &resp
}

// Set caches a query response with a TTL chosen by the age of the query range
func (c *QueryCache) Set(ctx context.Context, req *models.QueryRequest, resp *models.QueryResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal query response: %w", err)
	}

	ttl := c.policy.TTLFor(req.EndTimeParsed, time.Now().UTC())
	key := Key(req)

	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("failed to cache query response: %w", err)
	}

	c.logger.Debug("Cached query response",
		"key", key,
		"ttl", ttl,
		"samples", resp.Count,
	)

	return nil
}

// Invalidate drops all cached responses for a site. Called after backfill or
// archival changes what a repeat query would return.
func (c *QueryCache) Invalidate(ctx context.Context, siteID string) error {
	keys, err := c.store.Keys(ctx, "query:"+siteID+":")
	if err != nil {
		return fmt.Errorf("failed to list cache keys for site %s: %w", siteID, err)
	}

	for _, key := range keys {
		if err := c.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to evict %s: %w", key, err)
		}
	}

	c.logger.Debug("Invalidated site cache", "site_id", siteID, "entries", len(keys))
	return nil
}
