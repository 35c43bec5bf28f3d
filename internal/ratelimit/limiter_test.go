package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucketStore struct {
	hashes map[string]map[string]string

	getErr error
	setErr error
}

func newFakeBucketStore() *fakeBucketStore {
	return &fakeBucketStore{hashes: make(map[string]map[string]string)}
}

func (f *fakeBucketStore) HGetAll(_ context.Context, key string) *redis.MapStringStringCmd {
	if f.getErr != nil {
		return redis.NewMapStringStringResult(nil, f.getErr)
	}
	return redis.NewMapStringStringResult(f.hashes[key], nil)
}

func (f *fakeBucketStore) HSet(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	if f.setErr != nil {
		return redis.NewIntResult(0, f.setErr)
	}
	if f.hashes[key] == nil {
		f.hashes[key] = make(map[string]string)
	}
	for i := 0; i+1 < len(values); i += 2 {
		f.hashes[key][values[i].(string)] = values[i+1].(string)
	}
	return redis.NewIntResult(int64(len(values)/2), nil)
}

func (f *fakeBucketStore) Expire(_ context.Context, _ string, _ time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(true, nil)
}

func newTestLimiter(store *fakeBucketStore, cfg Config) *Limiter {
	l := NewLimiter(store, cfg, nil)
	return l
}

func TestAllowFirstRequestFillsBucket(t *testing.T) {
	store := newFakeBucketStore()
	l := newTestLimiter(store, Config{MaxTokens: 5, Burst: 0, RefillPerSec: 1})

	d := l.Allow(context.Background(), "ip:1.2.3.4")
	assert.True(t, d.Allowed)
	assert.Contains(t, store.hashes, "badge:admission:ip:1.2.3.4")
}

func TestAllowExhaustsTokens(t *testing.T) {
	store := newFakeBucketStore()
	l := newTestLimiter(store, Config{MaxTokens: 3, Burst: 0, RefillPerSec: 0.5})
	now := time.Now()
	l.nowFunc = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow(context.Background(), "caller").Allowed, "request %d", i)
	}

	d := l.Allow(context.Background(), "caller")
	assert.False(t, d.Allowed)
	// Empty bucket needs 1/0.5 = 2s for the next token.
	assert.InDelta(t, 2.0, d.RetryAfter.Seconds(), 0.01)
}

func TestAllowRefillsOverTime(t *testing.T) {
	store := newFakeBucketStore()
	l := newTestLimiter(store, Config{MaxTokens: 2, Burst: 0, RefillPerSec: 1})
	now := time.Now()
	l.nowFunc = func() time.Time { return now }

	require.True(t, l.Allow(context.Background(), "caller").Allowed)
	require.True(t, l.Allow(context.Background(), "caller").Allowed)
	require.False(t, l.Allow(context.Background(), "caller").Allowed)

	// Three seconds later the bucket has refilled (capped at capacity).
	now = now.Add(3 * time.Second)
	assert.True(t, l.Allow(context.Background(), "caller").Allowed)
	assert.True(t, l.Allow(context.Background(), "caller").Allowed)
	assert.False(t, l.Allow(context.Background(), "caller").Allowed)
}

func TestAllowBurstExtendsCapacity(t *testing.T) {
	store := newFakeBucketStore()
	l := newTestLimiter(store, Config{MaxTokens: 2, Burst: 3, RefillPerSec: 1})
	now := time.Now()
	l.nowFunc = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		require.True(t, l.Allow(context.Background(), "caller").Allowed, "request %d", i)
	}
	assert.False(t, l.Allow(context.Background(), "caller").Allowed)
}

func TestAllowIndependentBucketsPerCaller(t *testing.T) {
	store := newFakeBucketStore()
	l := newTestLimiter(store, Config{MaxTokens: 1, Burst: 0, RefillPerSec: 0.1})
	now := time.Now()
	l.nowFunc = func() time.Time { return now }

	require.True(t, l.Allow(context.Background(), "key:abc").Allowed)
	require.False(t, l.Allow(context.Background(), "key:abc").Allowed)

	// A different caller is unaffected.
	assert.True(t, l.Allow(context.Background(), "ip:9.9.9.9").Allowed)
}

func TestAllowFailsOpenOnReadError(t *testing.T) {
	store := newFakeBucketStore()
	store.getErr = errors.New("connection refused")
	l := newTestLimiter(store, Config{MaxTokens: 1})

	assert.True(t, l.Allow(context.Background(), "caller").Allowed)
}

func TestAllowFailsOpenOnWriteError(t *testing.T) {
	store := newFakeBucketStore()
	store.setErr = errors.New("connection refused")
	l := newTestLimiter(store, Config{MaxTokens: 1})

	assert.True(t, l.Allow(context.Background(), "caller").Allowed)
}

func TestAllowClockSkewClamped(t *testing.T) {
	store := newFakeBucketStore()
	l := newTestLimiter(store, Config{MaxTokens: 2, Burst: 0, RefillPerSec: 1})
	now := time.Now()
	l.nowFunc = func() time.Time { return now }

	require.True(t, l.Allow(context.Background(), "caller").Allowed)

	// A clock moving backwards must not mint tokens.
	now = now.Add(-time.Hour)
	require.True(t, l.Allow(context.Background(), "caller").Allowed)
	assert.False(t, l.Allow(context.Background(), "caller").Allowed)
}
