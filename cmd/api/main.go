package main

// @title LeadFlow CRM API
// @version 1.0
// @description CRM backend: lead intake, assignment workflow and user management.

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jordanlanch/leadflow/config"
	"github.com/jordanlanch/leadflow/pkg/api/handlers"
	apimw "github.com/jordanlanch/leadflow/pkg/api/middleware"
	"github.com/jordanlanch/leadflow/pkg/assignment"
	"github.com/jordanlanch/leadflow/pkg/auth"
	"github.com/jordanlanch/leadflow/pkg/cache"
	"github.com/jordanlanch/leadflow/pkg/database"
	"github.com/jordanlanch/leadflow/pkg/email"
	"github.com/jordanlanch/leadflow/pkg/leads"
	"github.com/jordanlanch/leadflow/pkg/logger"
	"github.com/jordanlanch/leadflow/pkg/metrics"
	custommiddleware "github.com/jordanlanch/leadflow/pkg/middleware"
	"github.com/jordanlanch/leadflow/pkg/models"
	"github.com/jordanlanch/leadflow/pkg/notification"
	"github.com/jordanlanch/leadflow/pkg/products"
	"github.com/jordanlanch/leadflow/pkg/storage"
	"github.com/jordanlanch/leadflow/pkg/users"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s)", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
	}

	// Initialize database
	db, err := database.NewClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize Redis cache
	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize Prometheus metrics
	prometheusMetrics := metrics.New()
	log.Printf("✅ Prometheus metrics initialized")

	// Initialize S3 media storage. Without a bucket leads and avatars are
	// created without documents, which keeps local development simple.
	var mediaStore storage.Uploader
	if cfg.MediaBucket != "" {
		s3Store, err := storage.NewS3Store(context.Background(), storage.Config{
			AWSRegion:          cfg.AWSRegion,
			AWSAccessKeyID:     cfg.AWSAccessKeyID,
			AWSSecretAccessKey: cfg.AWSSecretAccessKey,
			Bucket:             cfg.MediaBucket,
			BaseURL:            cfg.MediaBaseURL,
		})
		if err != nil {
			log.Fatalf("❌ Failed to initialize S3 media storage: %v", err)
		}
		mediaStore = s3Store
		log.Printf("✅ S3 media storage initialized (bucket: %s)", cfg.MediaBucket)
	} else {
		log.Printf("ℹ️  S3 media storage disabled (MEDIA_S3_BUCKET not set)")
	}

	// Initialize JWT blacklist
	tokenBlacklist := auth.NewTokenBlacklist(redisClient)

	// Initialize email service
	emailService := email.NewService(
		cfg.EmailFrom,
		cfg.EmailFromName,
		cfg.FrontendURL,
		cfg.SendGridAPIKey,
	)

	// Initialize services
	notificationService := notification.NewService(db.DB, redisClient)
	userService := users.NewService(db.DB, mediaStore, appLogger, cfg.JWTSecret, cfg.JWTExpirationHours)
	productService := products.NewService(db.DB, mediaStore, appLogger)
	leadService := leads.NewService(db.DB, mediaStore, notificationService, appLogger)
	assignmentService := assignment.NewService(db.DB, notificationService, emailService, appLogger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, tokenBlacklist, prometheusMetrics, cfg.JWTExpirationHours)
	userHandler := handlers.NewUserHandler(userService)
	productHandler := handlers.NewProductHandler(productService)
	leadHandler := handlers.NewLeadHandler(leadService, prometheusMetrics)
	assignmentHandler := handlers.NewAssignmentHandler(assignmentService, prometheusMetrics)
	notificationHandler := handlers.NewNotificationHandler(notificationService, prometheusMetrics)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("[%s] %s - Status: %d", c.Request().Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	// Sentry error tracking middleware (if configured)
	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true,
		}))
	}

	// Prometheus metrics middleware
	e.Use(prometheusMetrics.Middleware())

	// CORS with restricted origins
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowedOrigins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowCredentials: true,
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
		},
	}))

	e.Use(middleware.Gzip())
	e.Use(middleware.Secure())

	// Global rate limiting (default 60 req/min)
	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	e.Use(globalRateLimiter.Middleware())

	// Public endpoints
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"name":        "LeadFlow CRM API",
			"version":     "1.0.0",
			"status":      "running",
			"environment": cfg.APIEnvironment,
			"timestamp":   time.Now().Unix(),
		})
	})

	e.GET("/health", func(c echo.Context) error {
		if err := db.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":   "unhealthy",
				"database": "down",
			})
		}
		if _, err := redisClient.Redis.Ping(c.Request().Context()).Result(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"cache":  "down",
			})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"status":   "healthy",
			"database": "up",
			"cache":    "up",
		})
	})

	// Prometheus metrics endpoint (public)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Auth routes: register and login are public, the rest carry a token
	authRoutes := v1.Group("/auth")
	authRoutes.POST("/register", authHandler.Register)
	authRoutes.POST("/login", authHandler.Login)

	authProtected := v1.Group("/auth")
	authProtected.Use(apimw.JWTMiddlewareWithBlacklist(cfg.JWTSecret, tokenBlacklist))
	authProtected.POST("/logout", authHandler.Logout)
	authProtected.GET("/dashboard", authHandler.Dashboard)
	authProtected.POST("/add-user", authHandler.AddUser, apimw.RequireRoles(models.RoleAdmin))

	// Protected routes
	protected := v1.Group("")
	protected.Use(apimw.JWTMiddlewareWithBlacklist(cfg.JWTSecret, tokenBlacklist))

	// Users
	protected.GET("/users", userHandler.List)
	protected.GET("/users/:id", userHandler.Get)
	protected.PUT("/users/:id", userHandler.Update, apimw.RequireRoles(models.RoleAdmin, models.RoleManager))
	protected.DELETE("/users/:id", userHandler.Delete, apimw.RequireRoles(models.RoleAdmin))

	// Products
	protected.GET("/products", productHandler.List)
	protected.GET("/products/:id", productHandler.Get)
	protected.POST("/products", productHandler.Create, apimw.RequireRoles(models.RoleAdmin, models.RoleManager))
	protected.PUT("/products/:id", productHandler.Update, apimw.RequireRoles(models.RoleAdmin, models.RoleManager))
	protected.DELETE("/products/:id", productHandler.Delete, apimw.RequireRoles(models.RoleAdmin, models.RoleManager))

	// Leads
	protected.GET("/leads", leadHandler.List)
	protected.GET("/leads/assigned", leadHandler.Assigned)
	protected.GET("/leads/:id", leadHandler.Get)
	protected.POST("/leads", leadHandler.Create)
	protected.POST("/leads/bulk-upload", leadHandler.BulkUpload)
	protected.PUT("/leads/:id", leadHandler.Update)
	protected.PATCH("/leads/:id/assignment-status", leadHandler.UpdateAssignmentStatus)
	protected.DELETE("/leads/:id", leadHandler.Delete)

	// Assignments. Stats before :id so the route matches literally.
	protected.GET("/assignments", assignmentHandler.List)
	protected.GET("/assignments/stats", assignmentHandler.Stats)
	protected.GET("/assignments/:id", assignmentHandler.Get)
	protected.POST("/assignments", assignmentHandler.Create, apimw.RequireRoles(models.RoleAdmin, models.RoleManager))
	protected.PUT("/assignments/:id", assignmentHandler.Update)
	protected.DELETE("/assignments/:id", assignmentHandler.Delete, apimw.RequireRoles(models.RoleAdmin, models.RoleManager))

	// Notifications
	protected.GET("/notifications", notificationHandler.List)
	protected.GET("/notifications/count", notificationHandler.Count)
	protected.POST("/notifications/mark-viewed", notificationHandler.MarkViewed)
	protected.POST("/notifications/mark-all-viewed", notificationHandler.MarkAllViewed)

	// Start server
	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Printf("🚀 LeadFlow CRM API starting on %s", address)
	log.Printf("🔐 JWT expiration: %d hours", cfg.JWTExpirationHours)
	log.Printf("🛡️  Rate limiting: %d req/min (burst: %d)", cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)

	// Graceful shutdown
	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}
