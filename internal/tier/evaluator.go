package tier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Hunger4Crypto-Official/badge-engine/internal/domain/model"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/metrics"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/store"
)

// SignalSource provides the numeric signal for one (address, asset) pair.
type SignalSource interface {
	GetValue(ctx context.Context, address, assetID string) (float64, error)
}

// RoleSyncer converges the externally visible role representation for one
// account. Idempotent; failures are logged, never propagated.
type RoleSyncer interface {
	SyncTier(ctx context.Context, accountID string) error
}

// Result describes one account's evaluation across every category.
type Result struct {
	AccountID   string
	Skipped     bool
	SkipReason  string
	FetchFailed bool
	Awarded     []string
	Removed     []string
	Current     map[model.Category]string
	RoleSynced  bool
}

// Evaluator computes the desired tier per category and applies the atomic
// badge transition for one account.
type Evaluator struct {
	repo    store.AccountRepository
	signals SignalSource
	roles   RoleSyncer
	table   model.TierTable
	logger  *slog.Logger
}

func NewEvaluator(
	repo store.AccountRepository,
	signals SignalSource,
	roles RoleSyncer,
	table model.TierTable,
	logger *slog.Logger,
) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		repo:    repo,
		signals: signals,
		roles:   roles,
		table:   table,
		logger:  logger.With("component", "evaluator"),
	}
}

// Evaluate converges acct's badge set to exactly one tier per category.
// Tier membership is not monotonic: a falling signal downgrades or clears
// the badge. Per-account failures come back as errors for the runner to
// retry; skip conditions and fetch degradation come back in the Result.
func (e *Evaluator) Evaluate(ctx context.Context, acct model.Account) (Result, error) {
	start := time.Now()
	defer func() {
		metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	}()

	res := Result{
		AccountID: acct.ID,
		Current:   make(map[model.Category]string),
	}

	if !acct.Evaluable() {
		res.Skipped = true
		res.SkipReason = "unverified_signal_source"
		metrics.EvaluationsSkipped.WithLabelValues(res.SkipReason).Inc()
		return res, nil
	}
	address := *acct.SignalAddress

	for _, spec := range e.table.Categories {
		value, err := e.signals.GetValue(ctx, address, spec.AssetID)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			// The fetch layer already degraded as far as it could; record
			// the miss and leave this account's badges untouched.
			res.FetchFailed = true
			metrics.EvaluationsSkipped.WithLabelValues("fetch_failed").Inc()
			e.logger.Warn("signal fetch failed, badges left as-is",
				"account", acct.ID,
				"category", spec.Name,
				"error", err,
			)
			return res, nil
		}

		desired, _ := spec.PickTier(value)

		transition, err := e.repo.TransitionBadges(ctx, acct.ID, spec.TierIDs(), desired)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				res.Skipped = true
				res.SkipReason = "account_not_found"
				metrics.EvaluationsSkipped.WithLabelValues(res.SkipReason).Inc()
				return res, nil
			}
			return res, fmt.Errorf("transition badges for %s/%s: %w", acct.ID, spec.Name, err)
		}

		awarded, removed := diffTransition(transition, spec.TierIDs(), desired)
		res.Awarded = append(res.Awarded, awarded...)
		res.Removed = append(res.Removed, removed...)
		if desired != "" {
			res.Current[spec.Name] = desired
		}

		for _, id := range awarded {
			metrics.AwardsTotal.WithLabelValues(string(spec.Name), id).Inc()
		}
		for _, id := range removed {
			metrics.RemovalsTotal.WithLabelValues(string(spec.Name), id).Inc()
		}
	}

	if len(res.Awarded) > 0 || len(res.Removed) > 0 {
		e.syncRoles(ctx, &res)
	}
	return res, nil
}

// EvaluateByID loads the account and evaluates it. Used by the on-demand
// API path; concurrent cron-cycle transitions on the same account serialize
// in the store.
func (e *Evaluator) EvaluateByID(ctx context.Context, id string) (Result, error) {
	acct, err := e.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{AccountID: id, Skipped: true, SkipReason: "account_not_found"}, nil
		}
		return Result{}, fmt.Errorf("find account %s: %w", id, err)
	}
	return e.Evaluate(ctx, *acct)
}

// syncRoles makes the best-effort role convergence call. A role-sync
// failure never rolls back the badge update.
func (e *Evaluator) syncRoles(ctx context.Context, res *Result) {
	if e.roles == nil {
		return
	}
	if err := e.roles.SyncTier(ctx, res.AccountID); err != nil {
		metrics.RoleSyncsTotal.WithLabelValues("error").Inc()
		e.logger.Warn("role sync failed", "account", res.AccountID, "error", err)
		return
	}
	metrics.RoleSyncsTotal.WithLabelValues("ok").Inc()
	res.RoleSynced = true
}

// diffTransition derives awarded and removed tier ids for one category from
// the before/after badge sets returned by the atomic update.
func diffTransition(t store.BadgeTransition, categoryIDs []string, desired string) (awarded, removed []string) {
	prev := make(map[string]bool, len(t.Previous))
	for _, b := range t.Previous {
		prev[b] = true
	}
	if desired != "" && !prev[desired] {
		awarded = append(awarded, desired)
	}
	for _, id := range categoryIDs {
		if prev[id] && id != desired {
			removed = append(removed, id)
		}
	}
	return awarded, removed
}
