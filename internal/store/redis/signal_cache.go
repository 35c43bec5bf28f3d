package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is a cached signal observation for one (address, asset) pair.
type Entry struct {
	Amount     float64
	ObservedAt time.Time
}

// hashClient is the slice of go-redis the cache needs. Tests fake it with
// redis.NewMapStringStringResult and friends.
type hashClient interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// SignalCache stores fetched signal values in Redis hashes. Entries are
// retained well past their freshness TTL so an upstream outage can be
// bridged with stale values.
type SignalCache struct {
	rdb       hashClient
	ttl       time.Duration
	retention time.Duration
	nowFunc   func() time.Time
}

func NewSignalCache(rdb hashClient, ttl, retention time.Duration) *SignalCache {
	if retention < ttl {
		retention = 4 * ttl
	}
	return &SignalCache{
		rdb:       rdb,
		ttl:       ttl,
		retention: retention,
		nowFunc:   time.Now,
	}
}

func cacheKey(address, assetID string) string {
	return "badge:signal:" + address + ":" + assetID
}

// Get returns the cached entry or nil when absent. Expired entries are
// returned as-is; freshness is the caller's call via Fresh.
func (c *SignalCache) Get(ctx context.Context, address, assetID string) (*Entry, error) {
	fields, err := c.rdb.HGetAll(ctx, cacheKey(address, assetID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get signal cache: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	amount, err := strconv.ParseFloat(fields["amount"], 64)
	if err != nil {
		return nil, fmt.Errorf("parse cached amount: %w", err)
	}
	observedMs, err := strconv.ParseInt(fields["observed_at_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse cached timestamp: %w", err)
	}
	return &Entry{
		Amount:     amount,
		ObservedAt: time.UnixMilli(observedMs),
	}, nil
}

// Put records a fresh observation. Legitimate zeros are cached like any
// other value; only errors are never cached.
func (c *SignalCache) Put(ctx context.Context, address, assetID string, amount float64) error {
	return c.put(ctx, address, assetID, amount, c.nowFunc())
}

// Touch re-stamps an existing entry's observation time. Used after a stale
// serve to schedule the next upstream retry sooner than a full TTL but not
// immediately.
func (c *SignalCache) Touch(ctx context.Context, address, assetID string, amount float64, observedAt time.Time) error {
	return c.put(ctx, address, assetID, amount, observedAt)
}

func (c *SignalCache) put(ctx context.Context, address, assetID string, amount float64, observedAt time.Time) error {
	key := cacheKey(address, assetID)
	err := c.rdb.HSet(ctx, key,
		"amount", strconv.FormatFloat(amount, 'f', -1, 64),
		"observed_at_ms", strconv.FormatInt(observedAt.UnixMilli(), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("set signal cache: %w", err)
	}
	if err := c.rdb.Expire(ctx, key, c.retention).Err(); err != nil {
		return fmt.Errorf("expire signal cache: %w", err)
	}
	return nil
}

// Fresh reports whether the entry is within the freshness TTL.
func (c *SignalCache) Fresh(e *Entry) bool {
	return e != nil && c.nowFunc().Sub(e.ObservedAt) < c.ttl
}

// TTL returns the configured freshness window.
func (c *SignalCache) TTL() time.Duration {
	return c.ttl
}
