package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Hunger4Crypto-Official/badge-engine/internal/metrics"
)

// bucketClient is the slice of go-redis the limiter needs.
type bucketClient interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

type Config struct {
	MaxTokens    float64
	Burst        float64
	RefillPerSec float64
	IdleTTL      time.Duration
}

// Decision is the admission verdict for one request.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter is the inbound token bucket protecting the engine's own HTTP
// surface, one bucket per caller identity in a shared Redis hash. Refill is
// computed lazily from elapsed time, no background timer. The
// read-modify-write is deliberately non-transactional: a small overshoot
// under high concurrency is accepted in exchange for not taking a
// distributed lock on every request. If Redis is unreachable the limiter
// fails open rather than rejecting traffic.
type Limiter struct {
	rdb     bucketClient
	cfg     Config
	logger  *slog.Logger
	nowFunc func() time.Time
}

func NewLimiter(rdb bucketClient, cfg Config, logger *slog.Logger) *Limiter {
	if cfg.RefillPerSec <= 0 {
		cfg.RefillPerSec = 0.5
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 30
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		rdb:     rdb,
		cfg:     cfg,
		logger:  logger.With("component", "admission"),
		nowFunc: time.Now,
	}
}

func bucketKey(callerID string) string {
	return "badge:admission:" + callerID
}

func (l *Limiter) capacity() float64 {
	return l.cfg.MaxTokens + l.cfg.Burst
}

// Allow consumes one token from the caller's bucket.
func (l *Limiter) Allow(ctx context.Context, callerID string) Decision {
	key := bucketKey(callerID)
	now := l.nowFunc()

	fields, err := l.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		metrics.AdmissionFailOpen.Inc()
		l.logger.Warn("bucket store unreachable, admitting request", "caller", callerID, "error", err)
		return Decision{Allowed: true}
	}

	tokens := l.capacity()
	if raw, ok := fields["tokens"]; ok {
		stored, perr := strconv.ParseFloat(raw, 64)
		updatedMs, uerr := strconv.ParseInt(fields["updated_ms"], 10, 64)
		if perr == nil && uerr == nil {
			elapsed := now.Sub(time.UnixMilli(updatedMs)).Seconds()
			if elapsed < 0 {
				elapsed = 0
			}
			tokens = stored + elapsed*l.cfg.RefillPerSec
			if tokens > l.capacity() {
				tokens = l.capacity()
			}
		}
	}

	if tokens < 1 {
		metrics.AdmissionRejected.Inc()
		retryAfter := time.Duration((1 - tokens) / l.cfg.RefillPerSec * float64(time.Second))
		return Decision{Allowed: false, RetryAfter: retryAfter}
	}
	tokens--

	if err := l.rdb.HSet(ctx, key,
		"tokens", strconv.FormatFloat(tokens, 'f', 6, 64),
		"updated_ms", strconv.FormatInt(now.UnixMilli(), 10),
	).Err(); err != nil {
		metrics.AdmissionFailOpen.Inc()
		l.logger.Warn("bucket write failed, admitting request", "caller", callerID, "error", err)
		return Decision{Allowed: true}
	}
	if err := l.rdb.Expire(ctx, key, l.cfg.IdleTTL).Err(); err != nil {
		l.logger.Debug("bucket expiry not set", "caller", callerID, "error", err)
	}

	metrics.AdmissionAllowed.Inc()
	return Decision{Allowed: true}
}
