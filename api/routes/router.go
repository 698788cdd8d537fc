package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/safetradehq/safetrade-backend/api/controllers"
	tradecontrollers "github.com/safetradehq/safetrade-backend/api/controllers/trades"
	"github.com/safetradehq/safetrade-backend/api/middleware"
	"github.com/safetradehq/safetrade-backend/internal/auth"
	"github.com/safetradehq/safetrade-backend/internal/disputes"
	"github.com/safetradehq/safetrade-backend/internal/listings"
	"github.com/safetradehq/safetrade-backend/internal/notifications"
	"github.com/safetradehq/safetrade-backend/internal/proofs"
	"github.com/safetradehq/safetrade-backend/internal/stats"
	"github.com/safetradehq/safetrade-backend/internal/trades"
	"github.com/safetradehq/safetrade-backend/internal/users"
	"github.com/safetradehq/safetrade-backend/internal/wallet"
	"github.com/safetradehq/safetrade-backend/pkg/config"
	"github.com/safetradehq/safetrade-backend/pkg/db"
	"github.com/safetradehq/safetrade-backend/pkg/enums"
	"github.com/safetradehq/safetrade-backend/pkg/logger"
	"github.com/safetradehq/safetrade-backend/pkg/redis"
)

// Services bundles everything the HTTP surface depends on.
type Services struct {
	Auth          auth.Service
	Users         users.Service
	Listings      listings.Service
	Trades        trades.Service
	Proofs        proofs.Service
	Disputes      disputes.Service
	Wallet        wallet.Service
	Stats         stats.Service
	Notifications notifications.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(),
		middleware.Logging(logg),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Get("/v1/listings", controllers.ListListings(svcs.Listings, logg))
		r.Get("/v1/listings/{listingId}", controllers.GetListing(svcs.Listings, logg))
		r.Get("/v1/sellers/{sellerId}/stats", controllers.SellerStats(svcs.Stats, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(
			middleware.AuthRateLimit(loginPolicy, redisClient, logg),
		).Post("/login", controllers.AuthLogin(svcs.Auth, logg))
		r.With(
			middleware.AuthRateLimit(registerPolicy, redisClient, logg),
			middleware.Idempotency(redisClient, logg),
		).Post("/register", controllers.AuthRegister(svcs.Auth, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/users", func(r chi.Router) {
			r.Get("/me", controllers.Me(svcs.Users, logg))
		})

		r.Route("/v1/listings", func(r chi.Router) {
			r.Post("/", controllers.CreateListing(svcs.Listings, logg))
			r.Delete("/{listingId}", controllers.ArchiveListing(svcs.Listings, logg))
		})

		r.Route("/v1/trades", func(r chi.Router) {
			r.Get("/", tradecontrollers.List(svcs.Trades, logg))
			r.Post("/", tradecontrollers.Request(svcs.Trades, logg))
			r.Get("/{tradeId}", tradecontrollers.Detail(svcs.Trades, logg))
			r.Post("/{tradeId}/decision", tradecontrollers.Decide(svcs.Trades, logg))
			r.Post("/{tradeId}/cancel", tradecontrollers.Cancel(svcs.Trades, logg))
			r.Post("/{tradeId}/pay", tradecontrollers.Pay(svcs.Trades, logg))
			r.Post("/{tradeId}/confirm", tradecontrollers.Confirm(svcs.Trades, logg))
			r.Get("/{tradeId}/proofs", controllers.ListProofs(svcs.Proofs, logg))
			r.Post("/{tradeId}/proofs", controllers.SubmitProof(svcs.Proofs, logg))
			r.Post("/{tradeId}/dispute", controllers.OpenDispute(svcs.Disputes, logg))
		})

		r.Route("/v1/proofs", func(r chi.Router) {
			r.Post("/{proofId}/review", controllers.ReviewProof(svcs.Proofs, logg))
		})

		r.Route("/v1/disputes", func(r chi.Router) {
			r.Get("/{disputeId}", controllers.GetDispute(svcs.Disputes, logg))
		})

		r.Route("/v1/wallet", func(r chi.Router) {
			r.Get("/", controllers.GetWallet(svcs.Wallet, logg))
			r.Post("/convert", controllers.ConvertPoints(svcs.Wallet, logg))
			r.Get("/points-history", controllers.PointsHistory(svcs.Wallet, logg))
			r.Get("/credit-history", controllers.CreditHistory(svcs.Wallet, logg))
		})

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(svcs.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svcs.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(svcs.Notifications, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(string(enums.MemberRoleAdmin), logg))
		r.Use(middleware.AdminCapability(cfg.Admin, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.AdminPing())
		r.Route("/v1/disputes", func(r chi.Router) {
			r.Get("/", controllers.ListOpenDisputes(svcs.Disputes, logg))
			r.Post("/{disputeId}/resolve", controllers.ResolveDispute(svcs.Disputes, logg))
		})
		r.Route("/v1/wallets", func(r chi.Router) {
			r.Post("/{userId}/adjust", controllers.AdminAdjustWallet(svcs.Wallet, logg))
		})
		r.Route("/v1/users", func(r chi.Router) {
			r.Post("/{userId}/vip", controllers.SetUserVIP(svcs.Users, logg))
		})
		r.Route("/v1/sellers", func(r chi.Router) {
			r.Post("/{sellerId}/stats/recompute", controllers.RecomputeSellerStats(svcs.Stats, logg))
		})
		r.Route("/v1/trades", func(r chi.Router) {
			r.Post("/sweep-stale", controllers.SweepStaleTrades(svcs.Trades, logg))
		})
	})

	return r
}
