package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/milkpay/wallet-service/internal/api/handler"
	"github.com/milkpay/wallet-service/internal/api/middleware"
	"github.com/milkpay/wallet-service/internal/api/spec"
	"github.com/milkpay/wallet-service/internal/idempotency"
	"github.com/milkpay/wallet-service/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// RouterConfig carries everything the HTTP surface needs; the caller wires
// the services and stores.
type RouterConfig struct {
	DB          *pgxpool.Pool
	Redis       redis.Cmdable
	Logger      *zap.Logger
	Wallets     *service.WalletService
	Recharges   *service.RechargeService
	Webhooks    *service.WebhookService
	Idempotency *idempotency.Store

	PublicRPS int
	AuthRPS   int
	AdminRole string
}

// NewRouter assembles the chi router: probes and metrics outside auth, the
// webhook on its own unauthenticated path, and the wallet surface behind JWT
// auth with idempotency on the mutating routes.
func NewRouter(cfg RouterConfig) chi.Router {
	if cfg.PublicRPS <= 0 {
		cfg.PublicRPS = 50
	}
	if cfg.AuthRPS <= 0 {
		cfg.AuthRPS = 20
	}
	if cfg.AdminRole == "" {
		cfg.AdminRole = "admin"
	}

	walletHandler := handler.NewWalletHandler(cfg.Wallets)
	rechargeHandler := handler.NewRechargeHandler(cfg.Recharges)
	webhookHandler := handler.NewWebhookHandler(cfg.Webhooks)
	healthHandler := handler.NewHealthHandler(cfg.DB, cfg.Redis)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(cfg.Logger))
	r.Use(middleware.LoggingMiddleware(cfg.Logger))
	r.Use(middleware.MetricsMiddleware)

	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	// The gateway authenticates itself with the body signature, not a JWT.
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(cfg.PublicRPS))
		r.Post("/v1/webhooks/gateway", webhookHandler.HandleGatewayWebhook)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(cfg.AuthRPS))

		r.Get("/v1/wallet", walletHandler.GetWallet)
		r.Get("/v1/wallet/transactions", walletHandler.ListTransactions)

		r.Group(func(r chi.Router) {
			r.Use(middleware.IdempotencyMiddleware(cfg.Idempotency, cfg.Logger))
			r.Post("/v1/wallet/recharge", rechargeHandler.CreateOrder)
			r.Post("/v1/wallet/verify-payment", rechargeHandler.VerifyPayment)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(cfg.AdminRole))
			r.With(middleware.IdempotencyMiddleware(cfg.Idempotency, cfg.Logger)).
				Post("/v1/wallet/transactions", walletHandler.CreateTransaction)
			r.Patch("/v1/wallet/balance", walletHandler.SetBalance)
			r.With(middleware.IdempotencyMiddleware(cfg.Idempotency, cfg.Logger)).
				Post("/v1/wallets", walletHandler.CreateWallet)
			r.Delete("/v1/wallets/{user_id}", walletHandler.DeleteWallet)
			r.Get("/v1/wallets/{user_id}/transactions", walletHandler.AuditTransactions)
		})
	})

	return r
}
