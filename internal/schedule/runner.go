package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Hunger4Crypto-Official/badge-engine/internal/alert"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/domain/model"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/metrics"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/retry"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/stats"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/tier"
)

const (
	minBatchSize      = 2
	maxAdaptiveDelay  = 10 * time.Second
	slowItemLatency   = 5 * time.Second
	alertSuccessFloor = 0.8
)

// Evaluator is the per-account unit of work the runner fans out.
type Evaluator interface {
	Evaluate(ctx context.Context, acct model.Account) (tier.Result, error)
}

type RunnerConfig struct {
	Concurrency    int
	BatchBaseDelay time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	ErrorSampleCap int
}

// Runner fans out evaluations over one bucket's accounts with bounded
// concurrency and settle-all semantics: every account's outcome is
// collected, and no account's failure cancels a sibling. Between batches it
// backs off based on the cycle's own rolling success rate and latency, so a
// degrading upstream slows the sweep without any external signal.
type Runner struct {
	eval    Evaluator
	alerter alert.Alerter
	cfg     RunnerConfig
	logger  *slog.Logger
	sleepFn func(ctx context.Context, d time.Duration) error
}

func NewRunner(eval Evaluator, alerter alert.Alerter, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.BatchBaseDelay <= 0 {
		cfg.BatchBaseDelay = time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 8 * time.Second
	}
	if alerter == nil {
		alerter = &alert.NoopAlerter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		eval:    eval,
		alerter: alerter,
		cfg:     cfg,
		logger:  logger.With("component", "runner"),
		sleepFn: retry.Sleep,
	}
}

// batchSize shrinks for small subsets so tiny buckets don't fire with the
// same concurrency as huge ones.
func (r *Runner) batchSize(subsetSize int) int {
	size := subsetSize / 10
	if size < minBatchSize {
		size = minBatchSize
	}
	if size > r.cfg.Concurrency {
		size = r.cfg.Concurrency
	}
	return size
}

// Run processes one bucket of accounts and returns the cycle summary.
func (r *Runner) Run(ctx context.Context, accounts []model.Account) stats.Summary {
	col := stats.NewCollector(r.cfg.ErrorSampleCap)
	if len(accounts) == 0 {
		return col.Snapshot()
	}

	size := r.batchSize(len(accounts))
	r.logger.Info("cycle batch run starting", "accounts", len(accounts), "batch_size", size)

	for start := 0; start < len(accounts); start += size {
		end := start + size
		if end > len(accounts) {
			end = len(accounts)
		}

		var g errgroup.Group
		for _, acct := range accounts[start:end] {
			acct := acct
			g.Go(func() error {
				r.processOne(ctx, acct, col)
				return nil
			})
		}
		// Workers never return errors; Wait is purely a join.
		_ = g.Wait()

		if ctx.Err() != nil {
			break
		}

		if end < len(accounts) {
			delay := adaptiveDelay(col.Snapshot(), r.cfg.BatchBaseDelay)
			metrics.RunnerBatchDelay.Observe(delay.Seconds())
			if err := r.sleepFn(ctx, delay); err != nil {
				break
			}
		}
	}

	summary := col.Snapshot()
	r.logSummary(summary)
	r.maybeAlert(ctx, summary)
	return summary
}

// processOne evaluates a single account with bounded retries. A failure
// after exhausting attempts is recorded and isolated to this account.
func (r *Runner) processOne(ctx context.Context, acct model.Account, col *stats.Collector) {
	start := time.Now()

	var lastErr error
	for attempt := 0; attempt < r.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			metrics.RunnerRetriesTotal.Inc()
			if err := r.sleepFn(ctx, retry.Delay(attempt-1, r.cfg.RetryBaseDelay, r.cfg.RetryMaxDelay)); err != nil {
				lastErr = err
				break
			}
		}

		res, err := r.eval.Evaluate(ctx, acct)
		if err == nil {
			roleSyncs := 0
			if res.RoleSynced {
				roleSyncs = 1
			}
			col.RecordSuccess(time.Since(start), len(res.Awarded), roleSyncs)
			metrics.RunnerAccountsTotal.WithLabelValues(outcomeLabel(res)).Inc()
			return
		}

		lastErr = err
		if !retry.Classify(err).IsTransient() {
			break
		}
	}

	col.RecordFailure(acct.ID, time.Since(start), lastErr)
	metrics.RunnerAccountsTotal.WithLabelValues("failed").Inc()
	r.logger.Warn("account evaluation failed after retries", "account", acct.ID, "error", lastErr)
}

func outcomeLabel(res tier.Result) string {
	switch {
	case res.Skipped:
		return "skipped"
	case res.FetchFailed:
		return "fetch_failed"
	default:
		return "success"
	}
}

// adaptiveDelay is the congestion-avoidance feedback: as errors or latency
// rise within the cycle, the gap between batches grows before the next
// batch starts.
func adaptiveDelay(s stats.Summary, base time.Duration) time.Duration {
	switch {
	case s.SuccessRate < 0.5:
		d := 5 * base
		if d > maxAdaptiveDelay {
			return maxAdaptiveDelay
		}
		return d
	case s.SuccessRate < 0.7:
		return 3 * base
	case s.SuccessRate < 0.9:
		return base + base/2
	case s.AvgLatency > slowItemLatency:
		return 2 * base
	default:
		return base
	}
}

func (r *Runner) logSummary(s stats.Summary) {
	r.logger.Info("cycle summary",
		"attempted", s.Attempted,
		"succeeded", s.Succeeded,
		"failed", s.Failed,
		"awards", s.Awards,
		"role_syncs", s.RoleSyncs,
		"success_rate", fmt.Sprintf("%.2f", s.SuccessRate),
		"duration", s.Duration.String(),
		"throughput_per_sec", fmt.Sprintf("%.2f", s.Throughput),
		"avg_latency", s.AvgLatency.String(),
		"min_latency", s.MinLatency.String(),
		"max_latency", s.MaxLatency.String(),
	)
	for _, e := range s.RecentErrors {
		r.logger.Debug("cycle error sample", "account", e.AccountID, "error", e.Error)
	}
}

// maybeAlert emits a degraded-cycle alert when errors occurred and the
// success rate fell below the floor.
func (r *Runner) maybeAlert(ctx context.Context, s stats.Summary) {
	if s.Failed == 0 || s.SuccessRate >= alertSuccessFloor {
		return
	}
	metrics.CycleAlertsTotal.Inc()

	fields := map[string]string{
		"attempted":    fmt.Sprintf("%d", s.Attempted),
		"failed":       fmt.Sprintf("%d", s.Failed),
		"success_rate": fmt.Sprintf("%.2f", s.SuccessRate),
		"duration":     s.Duration.String(),
	}
	if len(s.RecentErrors) > 0 {
		last := s.RecentErrors[len(s.RecentErrors)-1]
		fields["last_error"] = fmt.Sprintf("%s: %s", last.AccountID, last.Error)
	}

	if err := r.alerter.Send(ctx, alert.Alert{
		Type:    alert.AlertTypeCycleDegraded,
		Scope:   "scheduler",
		Title:   "Badge evaluation cycle degraded",
		Message: fmt.Sprintf("%d of %d account evaluations failed", s.Failed, s.Attempted),
		Fields:  fields,
	}); err != nil {
		r.logger.Warn("degraded-cycle alert not delivered", "error", err)
	}
}
