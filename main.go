package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"shop-svc/cache"
	"shop-svc/config"
	"shop-svc/database"
	"shop-svc/events"
	"shop-svc/handlers"
	"shop-svc/kafka"
	"shop-svc/middleware"
	"shop-svc/momo"
	"shop-svc/services"
	"shop-svc/signature"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const serviceName = "shop-service"

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry
	if cfg.TracingEnabled {
		shutdown, err := middleware.InitTracing(serviceName, cfg.JaegerEndpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		defer shutdown()
	}

	// Initialize database
	db, err := database.InitDB(ctx, cfg.DB, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Redis is optional; without it every cache read is a miss.
	rdb, err := cache.InitRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis unavailable, running without cache", zap.Error(err))
	} else {
		defer rdb.Close()
	}
	store := cache.New(rdb)

	var publisher services.EventPublisher = kafka.NoopPublisher{}
	if cfg.Kafka.Enabled {
		producer, err := kafka.InitProducer(cfg.Kafka.Brokers, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
		}
		defer producer.Close()
		publisher = kafka.NewPublisher(producer, cfg.Kafka.Topic, logger)

		consumer, err := kafka.InitConsumer(cfg.Kafka.Brokers, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Kafka consumer", zap.Error(err))
		}
		defer consumer.Close()

		go func() {
			if err := kafka.StartConsumer(ctx, consumer, cfg.Kafka.Topic, store, logger); err != nil {
				logger.Error("Kafka consumer error", zap.Error(err))
			}
		}()
	}

	signer, err := signature.NewSigner(cfg.Momo.SecretKey)
	if err != nil {
		logger.Fatal("Failed to initialize signer", zap.Error(err))
	}
	momoClient := momo.NewClient(cfg.Momo, signer, logger)

	orderService := services.NewOrderService(db, publisher, store, logger)
	cartService := services.NewCartService(db, store, logger)
	paymentService := services.NewPaymentService(db, momoClient, logger)
	reconciler := services.NewReconciler(db, momoClient, publisher, logger)

	bus := events.NewBus(logger)
	bus.Subscribe(cartService.OnSession)

	jwtSecret := []byte(cfg.JWTSecret)
	authHandler := handlers.NewAuthHandler(db, jwtSecret, bus, logger)
	productHandler := handlers.NewProductHandler(db, store, logger)
	cartHandler := handlers.NewCartHandler(cartService, logger)
	orderHandler := handlers.NewOrderHandler(orderService, logger)
	paymentHandler := handlers.NewPaymentHandler(paymentService, reconciler, logger)
	adminHandler := handlers.NewAdminHandler(orderService, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())

	// Public endpoints
	router.POST("/register", authHandler.Register)
	router.POST("/login", authHandler.Login)
	router.GET("/products", productHandler.GetProducts)
	router.GET("/products/:id", productHandler.GetProduct)
	router.POST("/payments/momo/callback", paymentHandler.MomoCallback)

	// Authenticated endpoints
	authed := router.Group("/", middleware.AuthMiddleware(jwtSecret))
	authed.POST("/logout", authHandler.Logout)
	authed.GET("/profile", authHandler.Profile)

	authed.GET("/cart", cartHandler.GetCart)
	authed.POST("/cart/items", cartHandler.AddItem)
	authed.PUT("/cart/items/:productId", cartHandler.UpdateItem)
	authed.DELETE("/cart/items/:productId", cartHandler.RemoveItem)
	authed.DELETE("/cart", cartHandler.Clear)

	authed.POST("/orders", orderHandler.CreateOrder)
	authed.GET("/orders", orderHandler.ListOrders)
	authed.GET("/orders/:id", orderHandler.GetOrder)
	authed.PATCH("/orders/:id/cancel", orderHandler.CancelOrder)

	authed.POST("/payments/momo/create", paymentHandler.CreateMomoPayment)

	// Admin endpoints
	admin := authed.Group("/", middleware.RequireAdmin())
	admin.POST("/products", productHandler.CreateProduct)
	admin.PUT("/products/:id", productHandler.UpdateProduct)
	admin.DELETE("/products/:id", productHandler.DeleteProduct)
	admin.GET("/admin/orders", adminHandler.ListOrders)
	admin.GET("/admin/orders/:id", adminHandler.GetOrder)
	admin.PATCH("/admin/orders/:id/status", adminHandler.UpdateOrderStatus)
	admin.DELETE("/admin/orders/:id", adminHandler.DeleteOrder)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Shop Service started", zap.String("addr", cfg.HTTPAddr))

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
