package handler

import (
	"net/http"

	"digital-wallet/internal/adapter/http/middleware"
	redisStore "digital-wallet/internal/adapter/storage/redis"
	"digital-wallet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	Engine         ports.SettlementEngine
	GatewaySvc     ports.GatewayService
	SigSvc         ports.SignatureService
	TokenSvc       ports.TokenService
	WebhookSecret  string
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Metrics        http.Handler       // nil = /metrics not served
	Mode           string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode == "" {
		deps.Mode = gin.ReleaseMode
	}
	gin.SetMode(deps.Mode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Health check (deep, verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Gateway callbacks (HMAC-signed body) ---
	webhookHandler := NewWebhookHandler(deps.GatewaySvc)
	webhooks := v1.Group("/webhooks", rl("webhooks"), middleware.GatewaySignature(deps.SigSvc, deps.WebhookSecret, deps.Logger))
	{
		webhooks.POST("/payment", webhookHandler.Payment)
	}

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.WalletSvc, deps.Engine, deps.GatewaySvc)

	wallets := v1.Group("/wallets", jwtAuth)
	{
		wallets.POST("", rl("wallets_write"), walletHandler.Create)
		wallets.GET("", rl("wallets"), walletHandler.List)
		wallets.POST("/transfer", rl("settlements"), walletHandler.Transfer)
		wallets.GET("/:id", rl("wallets"), walletHandler.Get)
		wallets.POST("/:id/credit", rl("settlements"), walletHandler.Credit)
		wallets.POST("/:id/debit", rl("settlements"), walletHandler.Debit)
		wallets.GET("/:id/balance", rl("wallets"), walletHandler.Balance)
		wallets.GET("/:id/entries", rl("wallets"), walletHandler.Entries)
		wallets.GET("/:id/reconcile", rl("wallets"), walletHandler.Reconcile)
		wallets.POST("/:id/deactivate", rl("wallets_write"), walletHandler.Deactivate)
		wallets.PUT("/:id/overdraft", rl("wallets_write"), middleware.RequireAdmin(), walletHandler.SetOverdraft)
		wallets.POST("/:id/deposits", rl("deposits"), walletHandler.InitializeDeposit)
	}

	return r
}
