package fetch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/Hunger4Crypto-Official/badge-engine/internal/circuitbreaker"
	redisstore "github.com/Hunger4Crypto-Official/badge-engine/internal/store/redis"

	"github.com/Hunger4Crypto-Official/badge-engine/internal/metrics"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/retry"
)

// Upstream is the raw balance API surface.
type Upstream interface {
	AccountAssets(ctx context.Context, address string) (map[string]float64, error)
}

// Cache is the shared signal cache surface.
type Cache interface {
	Get(ctx context.Context, address, assetID string) (*redisstore.Entry, error)
	Put(ctx context.Context, address, assetID string, amount float64) error
	Touch(ctx context.Context, address, assetID string, amount float64, observedAt time.Time) error
	Fresh(e *redisstore.Entry) bool
	TTL() time.Duration
}

// Budget is the global windowed call budget.
type Budget interface {
	Allow(ctx context.Context) bool
}

// Config holds the retry envelope for upstream attempts.
type Config struct {
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Client is the resilient signal source: cache-aside reads, a global call
// budget, local pacing, bounded retries behind a circuit breaker, and
// stale-on-error fallback. It degrades to a zero default instead of
// propagating upstream failures; the only error it returns is context
// cancellation.
type Client struct {
	upstream Upstream
	cache    Cache
	budget   Budget
	breaker  *circuitbreaker.Breaker
	limiter  *rate.Limiter
	cfg      Config
	logger   *slog.Logger
	sleepFn  func(ctx context.Context, d time.Duration) error
	nowFunc  func() time.Time
}

func NewClient(
	upstream Upstream,
	cache Cache,
	budget Budget,
	breaker *circuitbreaker.Breaker,
	limiter *rate.Limiter,
	cfg Config,
	logger *slog.Logger,
) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 300 * time.Millisecond
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		upstream: upstream,
		cache:    cache,
		budget:   budget,
		breaker:  breaker,
		limiter:  limiter,
		cfg:      cfg,
		logger:   logger.With("component", "fetch"),
		sleepFn:  retry.Sleep,
		nowFunc:  time.Now,
	}
}

// GetValue returns the signal value for (address, assetID). Fresh cache
// hits never touch upstream. On any upstream failure the stale cached value
// is served if one exists, otherwise a safe zero.
func (c *Client) GetValue(ctx context.Context, address, assetID string) (float64, error) {
	entry, err := c.cache.Get(ctx, address, assetID)
	if err != nil {
		// A broken cache read degrades to a plain upstream fetch.
		c.logger.Warn("signal cache read failed", "address", address, "error", err)
		entry = nil
	}
	if c.cache.Fresh(entry) {
		metrics.FetchCacheHits.Inc()
		return entry.Amount, nil
	}
	metrics.FetchCacheMisses.Inc()

	if !c.budget.Allow(ctx) {
		metrics.FetchBudgetSkips.Inc()
		c.logger.Debug("call budget exhausted, skipping upstream", "address", address)
		return c.fallback(ctx, address, assetID, entry), nil
	}

	if err := c.breaker.Allow(); err != nil {
		c.logger.Debug("circuit open, skipping upstream", "address", address)
		return c.fallback(ctx, address, assetID, entry), nil
	}

	value, err := c.fetchWithRetry(ctx, address, assetID)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		c.logger.Warn("upstream fetch failed after retries",
			"address", address,
			"asset", assetID,
			"error", err,
		)
		return c.fallback(ctx, address, assetID, entry), nil
	}

	if err := c.cache.Put(ctx, address, assetID, value); err != nil {
		c.logger.Warn("signal cache write failed", "address", address, "error", err)
	}
	return value, nil
}

// fetchWithRetry runs the bounded attempt loop. 429, 5xx, and network
// timeouts retry with exponential backoff; other 4xx fail immediately.
func (c *Client) fetchWithRetry(ctx context.Context, address, assetID string) (float64, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.sleepFn(ctx, retry.Delay(attempt-1, c.cfg.BackoffInitial, c.cfg.BackoffMax)); err != nil {
				return 0, err
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return 0, err
			}
		}

		holdings, err := c.upstream.AccountAssets(ctx, address)
		if err == nil {
			c.breaker.RecordSuccess()
			// Absent asset means the address holds none: a legitimate zero.
			return holdings[assetID], nil
		}

		c.breaker.RecordFailure()
		lastErr = err
		if !retry.Classify(err).IsTransient() {
			return 0, err
		}
	}
	return 0, lastErr
}

// fallback serves the stale cached value when one exists, re-stamping its
// observation time to half a TTL ago so the next read retries upstream
// sooner than a full TTL but not immediately. With no cache at all, a zero
// default keeps the evaluation available in degraded form.
func (c *Client) fallback(ctx context.Context, address, assetID string, entry *redisstore.Entry) float64 {
	if entry != nil {
		metrics.FetchStaleServed.Inc()
		restamp := c.nowFunc().Add(-c.cache.TTL() / 2)
		if err := c.cache.Touch(ctx, address, assetID, entry.Amount, restamp); err != nil {
			c.logger.Warn("stale entry re-stamp failed", "address", address, "error", err)
		}
		return entry.Amount
	}
	metrics.FetchDefaultServed.Inc()
	return 0
}
