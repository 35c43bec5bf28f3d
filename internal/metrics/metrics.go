package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle, evaluation, and fetch-layer counters. Process-local; an external
// exporter scrapes them read-only, no engine logic reads them back.

var (
	// Scheduler
	CycleTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "badge",
		Subsystem: "scheduler",
		Name:      "cycle_ticks_total",
		Help:      "Total scheduler ticks attempted",
	})

	CycleLockSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "badge",
		Subsystem: "scheduler",
		Name:      "cycle_lock_skipped_total",
		Help:      "Cycles skipped because another instance holds the lock",
	})

	CycleErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "badge",
		Subsystem: "scheduler",
		Name:      "cycle_errors_total",
		Help:      "Cycles that failed before the batch runner started",
	})

	CycleAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "badge",
		Subsystem: "scheduler",
		Name:      "cycle_alerts_total",
		Help:      "Degraded-cycle alerts emitted",
	})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "badge",
		Subsystem: "scheduler",
		Name:      "cycle_duration_seconds",
		Help:      "Full cycle duration including inter-batch delays",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	// Batch runner
	RunnerAccountsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "badge",
		Subsystem: "runner",
		Name:      "accounts_total",
		Help:      "Accounts processed, by outcome",
	}, []string{"outcome"})

	RunnerRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "badge",
		Subsystem: "runner",
		Name:      "retries_total",
		Help:      "Per-account retry attempts after transient failures",
	})

	RunnerBatchDelay = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "badge",
		Subsystem: "runner",
		Name:      "batch_delay_seconds",
		Help:      "Adaptive delay applied between batches",
		Buckets:   []float64{0.5, 1, 1.5, 2, 3, 5, 10},
	})

	// Evaluator
	AwardsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "badge",
		Subsystem: "evaluator",
		Name:      "awards_total",
		Help:      "Tier badges awarded",
	}, []string{"category", "tier"})

	RemovalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "badge",
		Subsystem: "evaluator",
		Name:      "removals_total",
		Help:      "Tier badges removed on downgrade or loss",
	}, []string{"category", "tier"})

	EvaluationsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "badge",
		Subsystem: "evaluator",
		Name:      "skipped_total",
		Help:      "Evaluations skipped, by reason",
	}, []string{"reason"})

	EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "badge",
		Subsystem: "evaluator",
		Name:      "duration_seconds",
		Help:      "Single-account evaluation duration",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	RoleSyncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "badge",
		Subsystem: "evaluator",
		Name:      "role_syncs_total",
		Help:      "Role sync calls, by result",
	}, []string{"result"})

	// Fetch layer
	FetchCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "badge",
		Subsystem: "fetch",
		Name:      "cache_hits_total",
		Help:      "Signal reads served from a fresh cache entry",
	})

	FetchCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "badge",
		Subsystem: "fetch",
		Name:      "cache_misses_total",
		Help:      "Signal reads that required an upstream attempt",
	})

	FetchStaleServed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "badge",
		Subsystem: "fetch",
		Name:      "stale_served_total",
		Help:      "Signal reads served from an expired cache entry after upstream failure",
	})

	FetchDefaultServed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "badge",
		Subsystem: "fetch",
		Name:      "default_served_total",
		Help:      "Signal reads served the zero default with no cache entry available",
	})

	FetchBudgetSkips = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "badge",
		Subsystem: "fetch",
		Name:      "budget_skips_total",
		Help:      "Upstream calls skipped because the global call budget was exhausted",
	})

	FetchUpstreamCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "badge",
		Subsystem: "fetch",
		Name:      "upstream_calls_total",
		Help:      "Upstream API calls, by status classification",
	}, []string{"status"})

	FetchUpstreamLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "badge",
		Subsystem: "fetch",
		Name:      "upstream_duration_seconds",
		Help:      "Upstream API call duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// Circuit breakers, one series per named dependency.
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "badge",
		Subsystem: "breaker",
		Name:      "state",
		Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"dependency"})

	BreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "badge",
		Subsystem: "breaker",
		Name:      "transitions_total",
		Help:      "Circuit breaker state transitions",
	}, []string{"dependency", "to"})

	// Inbound admission control
	AdmissionAllowed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "badge",
		Subsystem: "admission",
		Name:      "allowed_total",
		Help:      "Inbound requests admitted",
	})

	AdmissionRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "badge",
		Subsystem: "admission",
		Name:      "rejected_total",
		Help:      "Inbound requests rejected with retry-after",
	})

	AdmissionFailOpen = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "badge",
		Subsystem: "admission",
		Name:      "fail_open_total",
		Help:      "Requests admitted because the bucket store was unreachable",
	})

	// Alert channels
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "badge",
		Subsystem: "alerts",
		Name:      "sent_total",
		Help:      "Alerts successfully delivered per channel",
	}, []string{"channel", "type"})

	AlertsCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "badge",
		Subsystem: "alerts",
		Name:      "cooldown_skipped_total",
		Help:      "Alerts suppressed by the cooldown window",
	}, []string{"channel", "type"})
)
