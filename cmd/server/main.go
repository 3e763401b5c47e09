package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pos-checkout/config"
	"pos-checkout/internal/api"
	"pos-checkout/internal/backend"
	"pos-checkout/internal/broker"
	"pos-checkout/internal/models"
	"pos-checkout/internal/receipt"
	"pos-checkout/internal/redisclient"
	"pos-checkout/internal/service"
	"pos-checkout/internal/store"
	"pos-checkout/internal/util"
	"pos-checkout/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "pos-checkout"

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, serviceName); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting POS checkout service")

	tp, err := util.InitTracer(serviceName, cfg.Observ.JaegerEndpoint, cfg.Server.Env)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	defaultReceipt, err := models.ParseReceiptType(cfg.Business.DefaultReceiptType)
	if err != nil {
		logger.Fatal("Invalid default receipt type", zap.Error(err))
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Migrate(context.Background()); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	redisClient = redisClient.WithSessionTTL(cfg.Business.SessionTTL)
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicSales)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

	eventPublisher := broker.NewEventPublisher(producer)

	backendCfg := backend.DefaultConfig(cfg.Backend.BaseURL)
	backendCfg.Timeout = cfg.Backend.Timeout
	backendCfg.MaxRetries = cfg.Backend.MaxRetries
	backendClient := backend.NewClient(backendCfg)

	emitter := receipt.NewEmitter(receipt.Vendor{
		Name:    cfg.Receipt.VendorName,
		TaxID:   cfg.Receipt.VendorTaxID,
		Address: cfg.Receipt.VendorAddress,
		Phone:   cfg.Receipt.VendorPhone,
		Email:   cfg.Receipt.VendorEmail,
	}, cfg.Receipt.Currency)

	sessions := service.NewSessionManager(backendClient, redisClient, cfg.Business.SessionTTL)
	registry := service.NewRegistry(backendClient, backendClient, sessions)
	finalizer := service.NewFinalizer(
		backendClient,
		emitter,
		sessions,
		eventPublisher,
		redisClient,
		cfg.Business.IdempotencyTTL,
		defaultReceipt,
	)
	history := service.NewSalesHistory(db, emitter, eventPublisher)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	archiveConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicSales, cfg.Kafka.ConsumerGroup)
	archiveWorker := worker.NewArchiveWorker(archiveConsumer, db)
	go func() {
		if err := archiveWorker.Start(workerCtx); err != nil {
			logger.Error("Archive worker error", zap.Error(err))
		}
	}()

	go registry.RunSweeper(workerCtx, time.Minute, cfg.Business.CheckoutIdleTimeout)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(sessions, registry, finalizer, history)
	handler.AddReadinessCheck("redis", redisClient.Ping)
	handler.AddReadinessCheck("database", db.Ping)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := archiveWorker.Stop(); err != nil {
		logger.Error("Failed to stop archive worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
