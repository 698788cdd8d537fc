package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/safetradehq/safetrade-backend/internal/cron"
	"github.com/safetradehq/safetrade-backend/internal/listings"
	"github.com/safetradehq/safetrade-backend/internal/notifications"
	"github.com/safetradehq/safetrade-backend/internal/proofs"
	"github.com/safetradehq/safetrade-backend/internal/settlement"
	"github.com/safetradehq/safetrade-backend/internal/trades"
	"github.com/safetradehq/safetrade-backend/internal/users"
	"github.com/safetradehq/safetrade-backend/internal/wallet"
	"github.com/safetradehq/safetrade-backend/pkg/config"
	"github.com/safetradehq/safetrade-backend/pkg/db"
	"github.com/safetradehq/safetrade-backend/pkg/escrow"
	"github.com/safetradehq/safetrade-backend/pkg/logger"
	"github.com/safetradehq/safetrade-backend/pkg/metrics"
	"github.com/safetradehq/safetrade-backend/pkg/migrate"
	"github.com/safetradehq/safetrade-backend/pkg/outbox"
	"github.com/safetradehq/safetrade-backend/pkg/redis"
	"github.com/safetradehq/safetrade-backend/pkg/square"
)

const lockKeyFormat = "st:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	jobs, err := buildJobs(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(jobs...)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) ([]cron.Job, error) {
	gdb := dbClient.DB()

	provider, err := buildEscrowProvider(context.Background(), cfg, logg)
	if err != nil {
		return nil, err
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(gdb), logg)
	walletSvc, err := wallet.NewService(wallet.NewRepository(gdb), dbClient, outboxSvc)
	if err != nil {
		return nil, err
	}
	usersSvc, err := users.NewService(users.NewRepository(gdb), walletSvc, logg)
	if err != nil {
		return nil, err
	}
	settlementSvc, err := settlement.NewService(settlement.NewRepository(gdb), walletSvc)
	if err != nil {
		return nil, err
	}
	tradesSvc, err := trades.NewService(
		trades.NewRepository(gdb),
		listings.NewRepository(gdb),
		usersSvc,
		proofs.NewRepository(gdb),
		settlementSvc,
		provider,
		dbClient,
		outboxSvc,
		cfg.Trade,
	)
	if err != nil {
		return nil, err
	}

	staleTrades, err := cron.NewStaleTradeJob(cron.StaleTradeJobParams{
		Logger:  logg,
		Sweeper: tradesSvc,
	})
	if err != nil {
		return nil, err
	}
	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(gdb),
	})
	if err != nil {
		return nil, err
	}
	notificationCleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		Repository: notifications.NewRepository(gdb),
	})
	if err != nil {
		return nil, err
	}

	return []cron.Job{staleTrades, outboxRetention, notificationCleanup}, nil
}

// buildEscrowProvider mirrors the other binaries; the stale sweep only
// marks orders, refunds flow through the outbox, but the trades service
// refuses to start without a provider.
func buildEscrowProvider(ctx context.Context, cfg *config.Config, logg *logger.Logger) (escrow.Provider, error) {
	if cfg.FeatureFlags.EscrowInMem {
		logg.Warn(ctx, "using in-memory escrow provider")
		return escrow.NewMemoryProvider(), nil
	}
	squareClient, err := square.NewClient(ctx, cfg.Square, logg)
	if err != nil {
		return nil, err
	}
	return escrow.NewSquareProvider(squareClient)
}
