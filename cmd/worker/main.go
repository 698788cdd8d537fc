package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/safetradehq/safetrade-backend/internal/listings"
	"github.com/safetradehq/safetrade-backend/internal/notifications"
	"github.com/safetradehq/safetrade-backend/internal/proofs"
	"github.com/safetradehq/safetrade-backend/internal/settlement"
	"github.com/safetradehq/safetrade-backend/internal/stats"
	"github.com/safetradehq/safetrade-backend/internal/trades"
	"github.com/safetradehq/safetrade-backend/internal/users"
	"github.com/safetradehq/safetrade-backend/internal/wallet"
	"github.com/safetradehq/safetrade-backend/pkg/config"
	"github.com/safetradehq/safetrade-backend/pkg/db"
	"github.com/safetradehq/safetrade-backend/pkg/escrow"
	"github.com/safetradehq/safetrade-backend/pkg/logger"
	"github.com/safetradehq/safetrade-backend/pkg/migrate"
	"github.com/safetradehq/safetrade-backend/pkg/outbox"
	"github.com/safetradehq/safetrade-backend/pkg/outbox/idempotency"
	"github.com/safetradehq/safetrade-backend/pkg/pubsub"
	"github.com/safetradehq/safetrade-backend/pkg/redis"
	"github.com/safetradehq/safetrade-backend/pkg/square"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	service, err := buildWorker(cfg, logg, dbClient, redisClient, pubsubClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "worker",
	})
	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}

func buildWorker(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, pubsubClient *pubsub.Client) (*Service, error) {
	gdb := dbClient.DB()

	provider, err := buildEscrowProvider(context.Background(), cfg, logg)
	if err != nil {
		return nil, err
	}

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
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
	tradesRepo := trades.NewRepository(gdb)
	tradesSvc, err := trades.NewService(
		tradesRepo,
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
	statsSvc, err := stats.NewService(stats.NewRepository(gdb), settlementSvc)
	if err != nil {
		return nil, err
	}

	notificationConsumer, err := notifications.NewConsumer(
		notifications.NewRepository(gdb),
		pubsubClient.NotificationSubscription(),
		manager,
		redisClient,
		cfg.Trade.NotificationDedupTTL,
		logg,
	)
	if err != nil {
		return nil, err
	}
	statsConsumer, err := stats.NewConsumer(statsSvc, pubsubClient.TradesSubscription(), manager, logg)
	if err != nil {
		return nil, err
	}
	refundConsumer, err := trades.NewRefundConsumer(tradesSvc, provider, pubsubClient.WalletSubscription(), manager, logg)
	if err != nil {
		return nil, err
	}

	return NewService(ServiceParams{
		Config:               cfg,
		Logger:               logg,
		DB:                   dbClient,
		Redis:                redisClient,
		PubSub:               pubsubClient,
		NotificationConsumer: notificationConsumer,
		StatsConsumer:        statsConsumer,
		RefundConsumer:       refundConsumer,
	})
}

// buildEscrowProvider mirrors the api binary: in-memory for local runs,
// Square everywhere else. The refund consumer needs a live provider to
// return held funds.
func buildEscrowProvider(ctx context.Context, cfg *config.Config, logg *logger.Logger) (escrow.Provider, error) {
	if cfg.FeatureFlags.EscrowInMem {
		logg.Warn(ctx, "using in-memory escrow provider; refunds are not real")
		return escrow.NewMemoryProvider(), nil
	}
	squareClient, err := square.NewClient(ctx, cfg.Square, logg)
	if err != nil {
		return nil, err
	}
	return escrow.NewSquareProvider(squareClient)
}
