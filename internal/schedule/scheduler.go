package schedule

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Hunger4Crypto-Official/badge-engine/internal/domain/model"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/metrics"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/tracing"
)

// Locker is the cross-process mutual exclusion for one cycle.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// AccountLister loads the evaluable population.
type AccountLister interface {
	ListEvaluable(ctx context.Context) ([]model.Account, error)
}

type SchedulerConfig struct {
	Interval time.Duration
	LockKey  string
	LockTTL  time.Duration
}

// Scheduler owns the periodic trigger. Each tick attempts the cycle lock;
// losing the race is normal operation, not an error. A started cycle runs
// to completion; the lock TTL is the only liveness bound if the process
// dies mid-cycle.
type Scheduler struct {
	locker  Locker
	lister  AccountLister
	runner  *Runner
	buckets BucketScheduler
	cfg     SchedulerConfig
	logger  *slog.Logger
	nowFunc func() time.Time
}

func NewScheduler(
	locker Locker,
	lister AccountLister,
	runner *Runner,
	buckets BucketScheduler,
	cfg SchedulerConfig,
	logger *slog.Logger,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		locker:  locker,
		lister:  lister,
		runner:  runner,
		buckets: buckets,
		cfg:     cfg,
		logger:  logger.With("component", "scheduler"),
		nowFunc: time.Now,
	}
}

// Run drives the tick loop until ctx is cancelled. The cancellation signal
// is checked between cycles; a cycle in flight finishes first.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"interval", s.cfg.Interval.String(),
		"buckets", s.buckets.buckets,
		"coverage_window", s.buckets.CoverageWindow().String(),
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle executes one gated evaluation cycle.
func (s *Scheduler) runCycle(ctx context.Context) {
	metrics.CycleTicksTotal.Inc()

	spanCtx, span := tracing.Tracer("scheduler").Start(ctx, "scheduler.cycle")
	defer span.End()

	token, ok, err := s.locker.Acquire(spanCtx, s.cfg.LockKey, s.cfg.LockTTL)
	if err != nil {
		metrics.CycleErrors.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("cycle lock acquire failed", "error", err)
		return
	}
	if !ok {
		metrics.CycleLockSkipped.Inc()
		span.SetAttributes(attribute.Bool("cycle.skipped", true))
		s.logger.Debug("another instance runs this cycle, skipping")
		return
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(spanCtx), s.cfg.LockKey, token); err != nil {
			s.logger.Warn("cycle lock release failed", "error", err)
		}
	}()

	start := s.nowFunc()
	accounts, err := s.lister.ListEvaluable(spanCtx)
	if err != nil {
		metrics.CycleErrors.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("listing evaluable accounts failed", "error", err)
		return
	}

	shard := s.buckets.Shard(accounts, start)
	span.SetAttributes(
		attribute.Int("cycle.bucket", s.buckets.ActiveBucket(start)),
		attribute.Int("cycle.population", len(accounts)),
		attribute.Int("cycle.shard", len(shard)),
	)
	s.logger.Info("cycle starting",
		"bucket", s.buckets.ActiveBucket(start),
		"population", len(accounts),
		"shard", len(shard),
	)

	summary := s.runner.Run(spanCtx, shard)
	metrics.CycleDuration.Observe(s.nowFunc().Sub(start).Seconds())
	span.SetAttributes(
		attribute.Int("cycle.attempted", summary.Attempted),
		attribute.Int("cycle.failed", summary.Failed),
	)
}
