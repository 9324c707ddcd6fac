package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/milkpay/wallet-service/internal/api"
	"github.com/milkpay/wallet-service/internal/api/middleware"
	"github.com/milkpay/wallet-service/internal/config"
	"github.com/milkpay/wallet-service/internal/db"
	"github.com/milkpay/wallet-service/internal/domain"
	"github.com/milkpay/wallet-service/internal/gateway"
	"github.com/milkpay/wallet-service/internal/idempotency"
	"github.com/milkpay/wallet-service/internal/observability"
	"github.com/milkpay/wallet-service/internal/repository"
	"github.com/milkpay/wallet-service/internal/service"
	"github.com/milkpay/wallet-service/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run bootstraps the HTTP server and background workers, blocking until
// shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	idemStore := idempotency.NewStore(redisClient, pool, cfg.IdempotencyTTL)
	store := repository.NewStore(pool)

	gatewayClient := gateway.NewRESTClient(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewayKeySecret)
	verifier := gateway.NewSignatureVerifier(cfg.GatewayKeySecret, cfg.GatewayWebhookSecret)

	reconciler := service.NewReconcilerService(store)
	rechargeSvc := service.NewRechargeService(store, gatewayClient, verifier, domain.DefaultBonusPolicy(), reconciler, service.RechargeConfig{
		PendingLimit:  cfg.PendingTxnLimit,
		PendingWindow: cfg.PendingTxnWindow,
		GatewayKeyID:  cfg.GatewayKeyID,
	})
	walletSvc := service.NewWalletService(store, service.WelcomeBonus{
		Enabled:     cfg.WelcomeBonusEnabled,
		AmountPaise: cfg.WelcomeBonusPaise,
		Description: cfg.WelcomeBonusDescription,
	})
	webhookSvc := service.NewWebhookService(reconciler, verifier)
	sweeperSvc := service.NewSweeperService(store, reconciler, cfg.StalePendingMaxAge, cfg.SweepBatchSize)
	auditSvc := service.NewLedgerAuditService(store)

	sweeper := worker.NewSweeperWorker(sweeperSvc).WithInterval(cfg.SweepInterval)
	stopSweeper := sweeper.Run(ctx)
	logger.Info("stale-pending sweeper started",
		zap.Duration("interval", cfg.SweepInterval),
		zap.Duration("max_age", cfg.StalePendingMaxAge),
		zap.Int32("batch", cfg.SweepBatchSize),
	)

	auditor := worker.NewLedgerAuditWorker(auditSvc).WithInterval(cfg.LedgerAuditInterval)
	stopAuditor := auditor.Run(ctx)
	logger.Info("ledger audit worker started", zap.Duration("interval", cfg.LedgerAuditInterval))

	router := api.NewRouter(api.RouterConfig{
		DB:          pool,
		Redis:       redisClient,
		Logger:      logger,
		Wallets:     walletSvc,
		Recharges:   rechargeSvc,
		Webhooks:    webhookSvc,
		Idempotency: idemStore,
		PublicRPS:   cfg.PublicRateLimitRPS,
		AuthRPS:     cfg.AuthRateLimitRPS,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping background workers")
	stopSweeper()
	stopAuditor()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
