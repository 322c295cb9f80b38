package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/civicsafe/api/internal/assistant"
	"github.com/civicsafe/api/internal/auth"
	"github.com/civicsafe/api/internal/cache"
	"github.com/civicsafe/api/internal/classifier"
	"github.com/civicsafe/api/internal/config"
	"github.com/civicsafe/api/internal/database"
	"github.com/civicsafe/api/internal/events"
	"github.com/civicsafe/api/internal/handler"
	"github.com/civicsafe/api/internal/llm"
	"github.com/civicsafe/api/internal/logging"
	"github.com/civicsafe/api/internal/middleware"
	"github.com/civicsafe/api/internal/ratelimit"
	"github.com/civicsafe/api/internal/report"
	"github.com/civicsafe/api/internal/scheduler"
	"github.com/civicsafe/api/internal/storage"
	"github.com/civicsafe/api/internal/store"
	"github.com/civicsafe/api/internal/validator"
	"github.com/civicsafe/api/internal/vision"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := config.Load()

	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	// Redis backs the tracking cache, rate limits and the event stream.
	// Without it those features are skipped (fail-open).
	var (
		trackingCache report.Cache
		publisher     events.Publisher
		limiter       middleware.RateChecker
	)
	redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL, logger)
	if err != nil {
		logger.Warn("failed to connect to redis, continuing without cache, rate limits and events", zap.Error(err))
	} else {
		defer redisCache.Close()
		trackingCache = redisCache
		publisher = events.NewRedisPublisher(redisCache.Client(), cfg.EventsStream)
		limiter = ratelimit.NewLimiter(ratelimit.NewRedisStorage(redisCache.Client()), ratelimit.DefaultLimits(cfg.RateLimitPerMinute))
	}

	var images storage.ImageStore
	if cfg.S3Enabled() {
		s3Store, err := storage.NewS3ImageStore(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicURL:       cfg.S3PublicURL,
		})
		if err != nil {
			logger.Warn("failed to initialize image storage, images are stored inline", zap.Error(err))
		} else {
			images = s3Store
		}
	}

	// LLM backend; nil when no credential is configured
	llmClient, models, err := llm.NewProvider(ctx, llm.ProviderConfig{
		Provider: cfg.LLMProvider,
		OpenRouter: llm.OpenRouterConfig{
			BaseURL:  cfg.OpenRouterBaseURL,
			APIKey:   cfg.OpenRouterAPIKey,
			SiteURL:  cfg.SiteURL,
			SiteName: cfg.SiteName,
			Timeout:  cfg.LLMTimeout,
		},
		GeminiAPIKey: cfg.GeminiAPIKey,
		GeminiModel:  cfg.GeminiModel,
	}, logger)
	if err != nil {
		logger.Fatal("failed to initialize LLM provider", zap.Error(err))
	}
	if llmClient == nil {
		logger.Warn("no LLM credential configured, classification answers 503 and reports use keyword rules",
			zap.String("provider", cfg.LLMProvider))
	}

	classifierSvc := classifier.New(llmClient, models, logger.Named("classifier"), classifier.Options{
		MaxAttempts: cfg.ClassifyMaxAttempts,
		RetryDelay:  cfg.ClassifyRetryDelay,
	})
	analyzer := vision.NewAnalyzer(llmClient, logger.Named("vision"), vision.Options{
		MaxAttempts: cfg.ClassifyMaxAttempts,
		RetryDelay:  cfg.ClassifyRetryDelay,
	})
	chat := assistant.New(llmClient, "", logger.Named("assistant"))

	// Content moderation
	moderator := validator.NewContentValidator(validator.DefaultBlockedTerms)
	if cfg.BlockedTermsFile != "" {
		n, err := moderator.LoadTermsFile(cfg.BlockedTermsFile)
		if err != nil {
			logger.Warn("failed to load blocked terms file", zap.String("path", cfg.BlockedTermsFile), zap.Error(err))
		} else {
			logger.Info("loaded blocked terms", zap.Int("count", n))
		}
	}
	if err := validator.RegisterBindings(); err != nil {
		logger.Fatal("failed to register request validators", zap.Error(err))
	}

	reportStore := store.NewGormReportStore(db)
	reports := report.NewService(report.Deps{
		Store:      reportStore,
		Classifier: classifierSvc,
		Images:     images,
		Events:     publisher,
		Cache:      trackingCache,
		Moderator:  moderator,
		Logger:     logger.Named("report"),
	})

	// Initialize and start background triage if enabled
	var triage *scheduler.TriageScheduler
	if cfg.TriageEnabled && classifierSvc.Configured() {
		triage = scheduler.NewTriageScheduler(reportStore, reports, logger.Named("triage"), scheduler.Config{
			Interval: cfg.TriageInterval,
			Pause:    500 * time.Millisecond,
		})
		go triage.Start(ctx)
		logger.Info("background triage scheduler started")
	}

	// Initialize handlers
	googleConfig := auth.NewGoogleConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	authHandler := handler.NewAuthHandler(db, cfg.JWTSecret, googleConfig, cfg.FrontendURL, logger.Named("auth"))
	aiHandler := handler.NewAIHandler(classifierSvc, analyzer, chat, cfg.LLMTimeout, logger.Named("ai"))
	reportHandler := handler.NewReportHandler(reports, cfg.LLMTimeout, logger.Named("reports"))
	adminHandler := handler.NewAdminHandler(reports, logger.Named("admin"))
	postHandler := handler.NewPostHandler(store.NewGormPostStore(db), logger.Named("posts"))

	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.MetricsMiddleware())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", cfg.FrontendURL)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "ai": classifierSvc.Configured()})
	})

	r.GET("/scheduler/status", func(c *gin.Context) {
		if triage != nil {
			c.JSON(200, triage.GetStatus())
		} else {
			c.JSON(200, gin.H{"enabled": false, "message": "Triage scheduler is disabled"})
		}
	})

	rl := func(action string) gin.HandlerFunc {
		return middleware.RateLimitMiddleware(limiter, action, logger.Named("ratelimit"))
	}
	requireAuth := middleware.AuthMiddleware(cfg.JWTSecret)
	optionalAuth := middleware.OptionalAuthMiddleware(cfg.JWTSecret)
	staff := middleware.RequireRole(auth.RoleAdmin, auth.RoleModerator)

	api := r.Group("/api")
	{
		// Auth
		api.POST("/auth/signup", optionalAuth, authHandler.Signup)
		api.POST("/auth/login", rl(ratelimit.ActionLogin), authHandler.Login)
		api.POST("/auth/refresh", authHandler.RefreshToken)
		api.POST("/auth/logout", authHandler.Logout)
		api.GET("/auth/google", authHandler.GoogleAuth)
		api.GET("/auth/google/callback", authHandler.GoogleCallback)
		api.GET("/auth/me", requireAuth, authHandler.Me)

		// AI
		api.POST("/ai/classify", optionalAuth, rl(ratelimit.ActionClassify), aiHandler.Classify)
		api.POST("/analyze-image", optionalAuth, rl(ratelimit.ActionAnalyzeImage), aiHandler.AnalyzeImage)
		api.POST("/chat", optionalAuth, rl(ratelimit.ActionChat), aiHandler.Chat)

		// Reports
		api.POST("/reports", optionalAuth, rl(ratelimit.ActionSubmitReport), reportHandler.Submit)
		api.GET("/reports/user", requireAuth, reportHandler.ListMine)
		api.GET("/reports/:reportId/details", reportHandler.Track)
		api.GET("/reports", requireAuth, staff, reportHandler.List)
		api.PATCH("/reports/:reportId", requireAuth, staff, reportHandler.UpdateStatus)

		// Admin
		api.GET("/admin/stats", requireAuth, staff, adminHandler.GetStats)

		// Posts
		api.GET("/posts", postHandler.List)
		api.POST("/posts", requireAuth, middleware.RequireRole(auth.RoleAdmin), postHandler.Create)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("API server starting", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	if triage != nil {
		triage.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server exited")
}
