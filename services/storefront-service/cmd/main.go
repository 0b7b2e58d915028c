package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/suteetoe/storefront/gomicro/config"
	"github.com/suteetoe/storefront/gomicro/database"
	"github.com/suteetoe/storefront/gomicro/logger"
	"github.com/suteetoe/storefront/gomicro/metrics"
	mid "github.com/suteetoe/storefront/gomicro/middleware"
	"github.com/suteetoe/storefront/services/storefront-service/internal/authgate"
	"github.com/suteetoe/storefront/services/storefront-service/internal/cart"
	"github.com/suteetoe/storefront/services/storefront-service/internal/catalog"
	"github.com/suteetoe/storefront/services/storefront-service/internal/gateway"
	"github.com/suteetoe/storefront/services/storefront-service/internal/handler"
	"github.com/suteetoe/storefront/services/storefront-service/internal/notify"
	"github.com/suteetoe/storefront/services/storefront-service/internal/order"
	"github.com/suteetoe/storefront/services/storefront-service/internal/stats"
	"github.com/suteetoe/storefront/services/storefront-service/internal/tenant"
	"github.com/suteetoe/storefront/services/storefront-service/prometheus"
	"go.uber.org/zap"
)

const serviceName = "storefront"

func main() {
	// Load configuration
	appConfig, err := config.Load(serviceName)
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       appConfig.Log.Level,
		Environment: appConfig.Server.Env,
		ServiceName: serviceName,
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting storefront-service", appConfig.LogConfig()...)

	// Initialize Prometheus metrics
	prometheus.InitMetrics(appConfig)
	log.Info("Prometheus metrics initialized",
		zap.String("metrics_prefix", appConfig.Metrics.Prefix))

	// Initialize database
	db, err := database.Open(&appConfig.DB)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	gw := gateway.NewGormGateway(db, gateway.Options{
		Timeout: appConfig.Gateway.Timeout,
		Retries: appConfig.Gateway.Retries,
	}, log)
	if err := gw.Migrate(context.Background()); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	log.Info("Database connection established")

	gate, err := authgate.NewGate(gw, authgate.Options{
		MasterSecret: appConfig.Auth.MasterSecret,
		SigningKey:   appConfig.Auth.SigningKey,
		TokenTTL:     appConfig.Auth.TokenTTL,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize auth gate", zap.Error(err))
	}

	carts, err := newCartStore(appConfig, log)
	if err != nil {
		log.Fatal("Failed to initialize cart store", zap.Error(err))
	}

	notifier, closeNotifier, err := newNotifier(appConfig, log)
	if err != nil {
		log.Fatal("Failed to initialize order hand-off", zap.Error(err))
	}
	defer closeNotifier()

	dir := tenant.NewDirectory(gw, tenant.Options{TrialPeriod: appConfig.Tenants.TrialPeriod}, log)
	h := handler.New(handler.Deps{
		Gate:    gate,
		Tenants: dir,
		Catalog: catalog.New(gw, dir, log),
		Carts:   carts,
		Orders:  order.NewPipeline(gw, dir, notifier, log),
		Stats:   stats.NewCollector(gw),
	})

	// Initialize Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization, handler.CartSessionHeader},
		ExposeHeaders: []string{handler.CartSessionHeader, mid.RequestIDHeader},
	}))
	e.Use(mid.RequestIDMiddleware())
	e.Use(logger.Middleware())
	e.Use(metrics.NewHTTPMetrics(serviceName).Middleware())

	// Routes
	e.GET("/metrics", echo.WrapHandler(metrics.GetPrometheusHandler()))
	e.GET("/health", handler.Health)
	h.Register(e)

	// Start server
	go func() {
		port := appConfig.Server.Port
		log.Info("Starting server", zap.String("port", port))
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}

func newCartStore(appConfig *config.Config, log *zap.Logger) (cart.Store, error) {
	if appConfig.Cart.Store != "redis" {
		return cart.NewMemoryStore(appConfig.Cart.TTL), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     appConfig.Redis.Addr,
		Password: appConfig.Redis.Password,
		DB:       appConfig.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	log.Info("Redis cart store connected", zap.String("addr", appConfig.Redis.Addr))
	return cart.NewRedisStore(client, appConfig.Cart.TTL), nil
}

func newNotifier(appConfig *config.Config, log *zap.Logger) (notify.Notifier, func(), error) {
	logNotifier := notify.NewLogNotifier(log)
	if !appConfig.AMQP.Enabled {
		return logNotifier, func() {}, nil
	}

	publisher, err := notify.DialAMQP(appConfig.AMQP.URL, appConfig.AMQP.Exchange)
	if err != nil {
		return nil, nil, err
	}
	log.Info("Order hand-off publisher connected", zap.String("exchange", appConfig.AMQP.Exchange))
	closeFn := func() {
		if err := publisher.Close(); err != nil {
			log.Warn("Failed to close order hand-off publisher", zap.Error(err))
		}
	}
	return notify.Multi{publisher, logNotifier}, closeFn, nil
}
