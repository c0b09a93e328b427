package main

import (
	"context"
	"time"

	"storefront/internal/cache"
	"storefront/internal/catalog"
	"storefront/internal/handler"
	mid "storefront/internal/middleware"
	"storefront/internal/service"
	"storefront/pkg/config"
	"storefront/pkg/database"
	"storefront/pkg/jwtutil"
	"storefront/pkg/logger"
	"storefront/pkg/mailer"
	"storefront/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logger.InitLogger(appConfig)
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting storefront", appConfig.LogFields()...)

	// Initialize Prometheus metrics
	prometheus.InitMetrics(appConfig)
	log.Info("Prometheus metrics initialized",
		zap.String("metrics_prefix", appConfig.Metrics.Prefix))

	// Initialize database
	db, err := database.InitDB(appConfig)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established", zap.String("driver", appConfig.DB.Driver))

	// Initialize list-view cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     appConfig.Redis.Addr,
		Password: appConfig.Redis.Password,
		DB:       appConfig.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		// Reads fall back to the database until redis comes up.
		log.Warn("Redis unreachable, serving uncached", zap.String("addr", appConfig.Redis.Addr), zap.Error(err))
	}
	cancel()
	listCache := cache.NewRedisCache(redisClient, appConfig.Cache.TTL)
	log.Info("List cache configured",
		zap.String("redis_addr", appConfig.Redis.Addr),
		zap.Duration("ttl", listCache.TTL()))

	jwt := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      appConfig.JWT.SigningKey,
		ExpirationHours: appConfig.JWT.ExpirationHours,
	})
	log.Info("JWT utility initialized")

	catalogService := service.NewCatalogService(catalog.NewStore(db), listCache, appConfig.Shop.PageSize)
	cartService := service.NewCartService(db)
	contactService := service.NewContactService(
		mailer.NewSMTPMailer(appConfig.Mail),
		appConfig.Mail.From,
		appConfig.Mail.ContactRecipient,
	)
	accountService := service.NewAccountService(db, jwt)

	h := handler.New(catalogService, cartService, contactService, accountService)

	// Initialize Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(mid.RequestIDMiddleware)
	e.Use(logger.Middleware())
	e.Use(mid.MetricsMiddleware)

	// Metrics endpoint
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	h.Routes(e, mid.AuthMiddleware(jwt))

	// Start server
	port := appConfig.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}
}
