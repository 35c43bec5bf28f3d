package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// counterClient is the slice of go-redis the budget needs.
type counterClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// CallBudget is a global, time-windowed cap on upstream calls shared by
// every replica. It is independent of any per-caller rate limit: once the
// window's budget is spent, all replicas stop calling upstream until the
// counter expires.
type CallBudget struct {
	rdb    counterClient
	key    string
	max    int64
	window time.Duration
	logger *slog.Logger
}

func NewCallBudget(rdb counterClient, key string, max int64, window time.Duration, logger *slog.Logger) *CallBudget {
	if logger == nil {
		logger = slog.Default()
	}
	return &CallBudget{
		rdb:    rdb,
		key:    key,
		max:    max,
		window: window,
		logger: logger.With("component", "call_budget"),
	}
}

// Allow consumes one unit and reports whether the call may proceed. The
// first consumer of a window arms the expiry. Fails open when Redis is
// unreachable: the budget protects upstream from sustained overload, not
// from a brief enforcement gap.
func (b *CallBudget) Allow(ctx context.Context) bool {
	n, err := b.rdb.Incr(ctx, b.key).Result()
	if err != nil {
		b.logger.Warn("budget counter unreachable, allowing call", "error", err)
		return true
	}
	if n == 1 {
		if err := b.rdb.Expire(ctx, b.key, b.window).Err(); err != nil {
			b.logger.Warn("budget window expiry not set", "error", err)
		}
	}
	return n <= b.max
}
