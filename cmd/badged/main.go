package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Hunger4Crypto-Official/badge-engine/internal/admin"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/alert"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/circuitbreaker"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/config"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/fetch"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/lock"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/metrics"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/ratelimit"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/rolesync"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/schedule"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/store/postgres"
	redisstore "github.com/Hunger4Crypto-Official/badge-engine/internal/store/redis"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/tier"
	"github.com/Hunger4Crypto-Official/badge-engine/internal/tracing"
)

const budgetKey = "badge:fetch:budget"

func main() {
	logLevel := slog.LevelInfo
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("starting badge-engine",
		"upstream", cfg.Upstream.BaseURL,
		"buckets", cfg.Scheduler.BucketCount,
		"interval", cfg.Scheduler.Interval.String(),
		"categories", len(cfg.Tiers.Categories),
	)

	tracingEndpoint := ""
	if cfg.Tracing.Enabled {
		tracingEndpoint = cfg.Tracing.Endpoint
	}
	shutdownTracing, err := tracing.Init(context.Background(), "badge-engine", tracingEndpoint, cfg.Tracing.Insecure)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	db, err := postgres.New(postgres.Config{
		URL:             cfg.DB.URL,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.DB.MigrationsDir); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	redisClient, err := redisstore.New(cfg.Redis.URL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to redis")

	accountRepo := postgres.NewAccountRepo(db)
	locker := lock.NewCoordinator(redisClient.Client(), logger)
	signalCache := redisstore.NewSignalCache(redisClient.Client(), cfg.Fetch.CacheTTL, cfg.Fetch.StaleRetention)
	budget := redisstore.NewCallBudget(redisClient.Client(), budgetKey, cfg.Fetch.BudgetMax, cfg.Fetch.BudgetWindow, logger)

	fetchClient := fetch.NewClient(
		fetch.NewUpstreamClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout),
		signalCache,
		budget,
		newBreaker("upstream", logger),
		rate.NewLimiter(rate.Limit(cfg.Fetch.RPS), cfg.Fetch.Burst),
		fetch.Config{
			MaxAttempts:    cfg.Fetch.MaxAttempts,
			BackoffInitial: cfg.Fetch.BackoffInitial,
			BackoffMax:     cfg.Fetch.BackoffMax,
		},
		logger,
	)

	roleSyncer := rolesync.NewClient(
		cfg.RoleSync.BaseURL,
		cfg.RoleSync.GroupID,
		cfg.RoleSync.Timeout,
		newBreaker("rolesync", logger),
		logger,
	)

	evaluator := tier.NewEvaluator(accountRepo, fetchClient, roleSyncer, cfg.Tiers, logger)

	alerter := buildAlerter(cfg, logger)
	runner := schedule.NewRunner(evaluator, alerter, schedule.RunnerConfig{
		Concurrency:    cfg.Scheduler.Concurrency,
		BatchBaseDelay: cfg.Scheduler.BatchBaseDelay,
		RetryAttempts:  cfg.Scheduler.RetryAttempts,
		RetryBaseDelay: cfg.Scheduler.RetryBaseDelay,
		RetryMaxDelay:  cfg.Scheduler.RetryMaxDelay,
		ErrorSampleCap: cfg.Scheduler.ErrorSampleCap,
	}, logger)

	scheduler := schedule.NewScheduler(
		locker,
		accountRepo,
		runner,
		schedule.NewBucketScheduler(cfg.Scheduler.BucketCount, cfg.Scheduler.Interval),
		schedule.SchedulerConfig{
			Interval: cfg.Scheduler.Interval,
			LockKey:  cfg.Scheduler.LockKey,
			LockTTL:  cfg.Scheduler.LockTTL,
		},
		logger,
	)

	admitter := ratelimit.NewLimiter(redisClient.Client(), ratelimit.Config{
		MaxTokens:    cfg.Admission.MaxTokens,
		Burst:        cfg.Admission.Burst,
		RefillPerSec: cfg.Admission.RefillPerSec,
		IdleTTL:      cfg.Admission.IdleTTL,
	}, logger)
	server := admin.NewServer(accountRepo, evaluator, admitter, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Run(gCtx)
	})
	g.Go(func() error {
		return server.Run(gCtx, cfg.Server.Port)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("badge-engine exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("badge-engine stopped")
}

// newBreaker builds a circuit breaker whose transitions feed logs and the
// breaker gauges.
func newBreaker(name string, logger *slog.Logger) *circuitbreaker.Breaker {
	return circuitbreaker.New(name, circuitbreaker.Config{
		OnStateChange: func(dep string, from, to circuitbreaker.State) {
			metrics.BreakerState.WithLabelValues(dep).Set(float64(to))
			metrics.BreakerTransitions.WithLabelValues(dep, to.String()).Inc()
			logger.Warn("circuit breaker state changed",
				"dependency", dep,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
}

func buildAlerter(cfg *config.Config, logger *slog.Logger) alert.Alerter {
	var channels []alert.Alerter
	if cfg.Alert.SlackWebhookURL != "" {
		channels = append(channels, alert.NewSlackAlerter(cfg.Alert.SlackWebhookURL))
	}
	if cfg.Alert.WebhookURL != "" {
		channels = append(channels, alert.NewWebhookAlerter(cfg.Alert.WebhookURL))
	}
	if len(channels) == 0 {
		return &alert.NoopAlerter{}
	}
	return alert.NewMultiAlerter(cfg.Alert.Cooldown, logger, channels...)
}
