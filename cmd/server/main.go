package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appcommission "github.com/marketplace/backend/internal/application/commission"
	"github.com/marketplace/backend/internal/domain/shared/valueobject"
	"github.com/marketplace/backend/internal/infrastructure/auth"
	"github.com/marketplace/backend/internal/infrastructure/cache"
	"github.com/marketplace/backend/internal/infrastructure/config"
	"github.com/marketplace/backend/internal/infrastructure/logger"
	"github.com/marketplace/backend/internal/infrastructure/persistence"
	"github.com/marketplace/backend/internal/interfaces/http/handler"
	"github.com/marketplace/backend/internal/interfaces/http/middleware"
	"github.com/marketplace/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting commission engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	overrideRepo := persistence.NewGormOverrideRepository(db.DB)
	discountRepo := persistence.NewGormMembershipDiscountRepository(db.DB)
	auditRepo := persistence.NewGormAuditRepository(db.DB)
	ruleAuditRepo := persistence.NewGormRuleChangeAuditRepository(db.DB)
	checkpointRepo := persistence.NewGormCheckpointRepository(db.DB)

	// The discount table changes rarely; resolution reads it through a
	// TTL cache so bulk runs do not hammer the database
	discountSource := cache.NewCachedDiscountSource(discountRepo, log,
		cache.WithDiscountTTL(cfg.Commission.DiscountCacheTTL))

	// Resolution policy constants come from configuration
	defaultRate, err := valueobject.NewPercentFromFloat(cfg.Commission.DefaultRate)
	if err != nil {
		log.Fatal("Invalid default commission rate", zap.Float64("rate", cfg.Commission.DefaultRate), zap.Error(err))
	}
	rateFloor, err := valueobject.NewPercentFromFloat(cfg.Commission.RateFloor)
	if err != nil {
		log.Fatal("Invalid commission rate floor", zap.Float64("rate", cfg.Commission.RateFloor), zap.Error(err))
	}
	policy := appcommission.ResolutionPolicy{
		DefaultRate: defaultRate,
		RateFloor:   rateFloor,
	}

	// Dedupe store: Redis when configured, in-process otherwise. Either
	// way the audit store's unique key remains the source of truth.
	var dedupe appcommission.ResolutionDedupe
	if cfg.Redis.Enabled {
		redisDedupe, err := cache.NewRedisResolutionDedupe(cfg.Redis, cfg.Commission.DedupeTTL)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			if err := redisDedupe.Close(); err != nil {
				log.Error("Error closing Redis dedupe store", zap.Error(err))
			}
		}()
		dedupe = redisDedupe
		log.Info("Redis dedupe store connected",
			zap.String("host", cfg.Redis.Host),
			zap.Int("port", cfg.Redis.Port),
		)
	} else {
		memDedupe := cache.NewInMemoryResolutionDedupe(cfg.Commission.DedupeTTL)
		defer func() {
			_ = memDedupe.Close()
		}()
		dedupe = memDedupe
		log.Info("Using in-memory dedupe store")
	}

	// Initialize application services
	resolutionService := appcommission.NewResolutionService(overrideRepo, auditRepo, discountSource, policy, log)
	bulkService := appcommission.NewBulkService(resolutionService, checkpointRepo, log,
		appcommission.WithBulkConcurrency(cfg.Commission.BulkConcurrency),
		appcommission.WithCheckpointEvery(cfg.Commission.BulkCheckpointEvery),
		appcommission.WithResolutionDedupe(dedupe),
	)
	overrideService := appcommission.NewOverrideService(overrideRepo, ruleAuditRepo, log)
	discountService := appcommission.NewDiscountService(discountRepo, ruleAuditRepo, log)
	auditService := appcommission.NewAuditService(auditRepo, log)

	// Tokens are issued by the identity service; this process only verifies
	verifier := auth.NewTokenVerifier(cfg.JWT)

	// Initialize HTTP handlers
	overrideHandler := handler.NewOverrideHandler(overrideService)
	discountHandler := handler.NewDiscountHandler(discountService)
	resolutionHandler := handler.NewResolutionHandler(resolutionService, bulkService)
	auditHandler := handler.NewAuditHandler(auditService)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Every API route requires a verified token; the ping endpoint stays
	// open for load balancer checks
	jwtConfig := middleware.JWTMiddlewareConfig{
		Verifier: verifier,
		SkipPaths: []string{
			"/api/v1/ping",
		},
		Logger: log,
	}
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))

	r.Register(overrideHandler).
		Register(discountHandler).
		Register(resolutionHandler).
		Register(auditHandler)

	r.Setup()

	// Simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
