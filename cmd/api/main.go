package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/safetradehq/safetrade-backend/api/routes"
	"github.com/safetradehq/safetrade-backend/internal/auth"
	"github.com/safetradehq/safetrade-backend/internal/disputes"
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
	"github.com/safetradehq/safetrade-backend/pkg/redis"
	"github.com/safetradehq/safetrade-backend/pkg/square"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	provider, err := buildEscrowProvider(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create escrow provider", err)
		os.Exit(1)
	}

	svcs, err := buildServices(cfg, logg, dbClient, provider)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, svcs),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// buildEscrowProvider picks the in-memory provider for local runs and the
// Square-backed one everywhere else.
func buildEscrowProvider(ctx context.Context, cfg *config.Config, logg *logger.Logger) (escrow.Provider, error) {
	if cfg.FeatureFlags.EscrowInMem {
		logg.Warn(ctx, "using in-memory escrow provider; payments are not real")
		return escrow.NewMemoryProvider(), nil
	}
	squareClient, err := square.NewClient(ctx, cfg.Square, logg)
	if err != nil {
		return nil, err
	}
	return escrow.NewSquareProvider(squareClient)
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, provider escrow.Provider) (routes.Services, error) {
	gdb := dbClient.DB()

	usersRepo := users.NewRepository(gdb)
	listingsRepo := listings.NewRepository(gdb)
	tradesRepo := trades.NewRepository(gdb)
	proofsRepo := proofs.NewRepository(gdb)
	disputesRepo := disputes.NewRepository(gdb)
	walletRepo := wallet.NewRepository(gdb)
	settlementRepo := settlement.NewRepository(gdb)
	statsRepo := stats.NewRepository(gdb)
	notificationsRepo := notifications.NewRepository(gdb)

	outboxSvc := outbox.NewService(outbox.NewRepository(gdb), logg)

	walletSvc, err := wallet.NewService(walletRepo, dbClient, outboxSvc)
	if err != nil {
		return routes.Services{}, err
	}
	usersSvc, err := users.NewService(usersRepo, walletSvc, logg)
	if err != nil {
		return routes.Services{}, err
	}
	listingsSvc, err := listings.NewService(listingsRepo)
	if err != nil {
		return routes.Services{}, err
	}
	settlementSvc, err := settlement.NewService(settlementRepo, walletSvc)
	if err != nil {
		return routes.Services{}, err
	}
	proofsSvc, err := proofs.NewService(proofsRepo, tradesRepo, dbClient, outboxSvc)
	if err != nil {
		return routes.Services{}, err
	}
	tradesSvc, err := trades.NewService(tradesRepo, listingsRepo, usersSvc, proofsRepo, settlementSvc, provider, dbClient, outboxSvc, cfg.Trade)
	if err != nil {
		return routes.Services{}, err
	}
	disputesSvc, err := disputes.NewService(disputesRepo, tradesRepo, usersSvc, settlementSvc, provider, dbClient, outboxSvc, cfg.Trade)
	if err != nil {
		return routes.Services{}, err
	}
	statsSvc, err := stats.NewService(statsRepo, settlementSvc)
	if err != nil {
		return routes.Services{}, err
	}
	notificationsSvc, err := notifications.NewService(notificationsRepo)
	if err != nil {
		return routes.Services{}, err
	}
	authSvc, err := auth.NewService(auth.ServiceParams{
		Users:       usersSvc,
		UserRepo:    usersRepo,
		JWTConfig:   cfg.JWT,
		ArgonConfig: cfg.Admin,
	})
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Auth:          authSvc,
		Users:         usersSvc,
		Listings:      listingsSvc,
		Trades:        tradesSvc,
		Proofs:        proofsSvc,
		Disputes:      disputesSvc,
		Wallet:        walletSvc,
		Stats:         statsSvc,
		Notifications: notificationsSvc,
	}, nil
}
