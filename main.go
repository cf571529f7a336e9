package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/junaidrashid-git/tavern-api/cache"
	"github.com/junaidrashid-git/tavern-api/config"
	orderControllers "github.com/junaidrashid-git/tavern-api/controllers/order"
	"github.com/junaidrashid-git/tavern-api/database"
	"github.com/junaidrashid-git/tavern-api/events"
	"github.com/junaidrashid-git/tavern-api/external/intasend"
	"github.com/junaidrashid-git/tavern-api/external/resend"
	"github.com/junaidrashid-git/tavern-api/logging"
	"github.com/junaidrashid-git/tavern-api/metrics"
	"github.com/junaidrashid-git/tavern-api/middleware"
	"github.com/junaidrashid-git/tavern-api/notify"
	"github.com/junaidrashid-git/tavern-api/routes"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	// Payment initiations allowed per order per window.
	paymentAttemptLimit  = 3
	paymentAttemptWindow = time.Minute
)

func main() {
	// Load environment variables
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.MustNewLogger(cfg.ServiceName, cfg.Env)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	logger.Info("✅ Starting application...", zap.String("env", cfg.Env))
	if len(cfg.GeneratedKeys) > 0 {
		logger.Warn("using random keys for this process; sessions will not survive a restart",
			zap.Strings("keys", cfg.GeneratedKeys))
	}

	// Init DB
	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatal("❌ DB connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("❌ AutoMigrate failed", zap.Error(err))
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis backs the listing cache and the payment limiter when configured
	var listings cache.Cache = cache.Noop{}
	var limiter cache.Limiter = cache.NoopLimiter{}
	if cfg.RedisAddr != "" {
		client, err := cache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer client.Close()
			listings = cache.NewRedisCache(client, cfg.ServiceName)
			limiter = cache.NewFixedWindowLimiter(client, cfg.ServiceName+":pay", paymentAttemptLimit, paymentAttemptWindow)
		}
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(brokers, cfg.KafkaTopic)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	var mailer notify.Mailer
	if cfg.ResendAPIKey != "" {
		m, err := resend.NewResendMailer(cfg.ResendAPIKey, cfg.MailFrom, "")
		if err != nil {
			logger.Fatal("❌ mailer setup failed", zap.Error(err))
		}
		mailer = m
	}

	// Gin setup
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(logger))

	// CORS settings
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins())))

	// Setup routes
	routes.SetupRoutes(r, routes.Dependencies{
		DB:       db,
		Listings: listings,
		Limiter:  limiter,
		Gateway:  intasend.NewClient(cfg.IntaSendSecretKey, cfg.IntaSendBaseURL),
		Notifier: notify.New(mailer, publisher),
		Hub:      orderControllers.NewStatusHub(),

		JWTSecret:    []byte(cfg.JWTSecret),
		SessionStore: middleware.NewCookieStore([]byte(cfg.SessionKey), cfg.CookieSecure),
		CSRFKey:      []byte(cfg.CSRFKey),
		CookieSecure: cfg.CookieSecure,

		AdminAPIKey:      cfg.AdminAPIKey,
		CallbackBaseURL:  cfg.CallbackBaseURL,
		WebhookChallenge: cfg.IntaSendWebhookChallenge,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("🚀 Server running", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("❌ Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", zap.Error(err))
		return
	}
	logger.Info("http_server_stopped")
}

// corsConfig allows credentialed requests only from the configured origins.
// Without a list any origin may call the API, but never with cookies.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-KEY", middleware.CSRFHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	cfg.ExposeHeaders = append(cfg.ExposeHeaders, middleware.CSRFHeader)
	return cfg
}
