package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"digital-wallet/config"
	"digital-wallet/internal/adapter/gateway"
	httpHandler "digital-wallet/internal/adapter/http/handler"
	"digital-wallet/internal/adapter/metrics"
	pgStorage "digital-wallet/internal/adapter/storage/postgres"
	redisStorage "digital-wallet/internal/adapter/storage/redis"
	"digital-wallet/internal/core/ports"
	"digital-wallet/internal/service"
	"digital-wallet/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("WALLET_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Digital Wallet")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, cfg.Settlement, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	walletRepo := pgStorage.NewWalletRepo(pool)
	entryRepo := pgStorage.NewEntryRepo(pool)
	referenceRepo := pgStorage.NewReferenceRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	guard := redisStorage.NewIdempotencyGuard(rdb, cfg.Settlement.Retention)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Metrics
	m := metrics.New()

	// Initialize core services
	protector, err := service.NewAESReferenceProtector(cfg.Protector.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize reference protector")
	}
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Key, cfg.JWT.Issuer, cfg.JWT.Audience)
	gatewayClient := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.SecretKey, cfg.Gateway.Timeout, nil, log)

	// Initialize business services
	ledger := service.NewLedgerStore(
		walletRepo,
		entryRepo,
		referenceRepo,
		transactor,
		m,
		cfg.Ledger.MaxRetries,
		cfg.Ledger.RetryBackoff,
		log,
	)
	walletSvc := service.NewWalletService(ledger, guard, log)
	engine := service.NewSettlementEngine(walletSvc, ledger, guard, gatewayClient, m, service.SettlementOptions{
		LeaseDuration: cfg.Settlement.LeaseDuration,
		ClaimTimeout:  cfg.Settlement.ClaimTimeout,
		VerifyGateway: cfg.Gateway.VerifyCallbacks,
	}, log)
	gatewaySvc := service.NewGatewayService(engine, walletSvc, gatewayClient, protector, m, cfg.Gateway.CallbackURL, log)
	auditSvc := service.NewAuditService(auditRepo, log)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		Engine:         engine,
		GatewaySvc:     gatewaySvc,
		SigSvc:         sigSvc,
		TokenSvc:       tokenSvc,
		WebhookSecret:  cfg.Gateway.WebhookSecret,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		AuditSvc:       auditSvc,
		Metrics:        m.Handler(),
		Mode:           cfg.Server.Mode,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown. In-flight settlements run on detached contexts bounded
	// by their lease, so allow at least one lease before forcing exit.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	grace := 10 * time.Second
	if cfg.Settlement.LeaseDuration > grace {
		grace = cfg.Settlement.LeaseDuration
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
