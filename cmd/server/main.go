package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/wayfarerhq/payment-service/internal/adapter/repository"
	"github.com/wayfarerhq/payment-service/internal/config"
	"github.com/wayfarerhq/payment-service/internal/infrastructure/database"
	grpcServer "github.com/wayfarerhq/payment-service/internal/infrastructure/grpc"
	httpServer "github.com/wayfarerhq/payment-service/internal/infrastructure/http"
	"github.com/wayfarerhq/payment-service/internal/infrastructure/messaging"
	providerFactory "github.com/wayfarerhq/payment-service/internal/infrastructure/provider"
	"github.com/wayfarerhq/payment-service/internal/logger"
	"github.com/wayfarerhq/payment-service/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Development: cfg.Service.Environment == "development",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, zapLogger); err != nil {
			zapLogger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations
	if err := database.Migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	repos := database.NewRepositories(db, zapLogger)
	lookups := repository.NewGormLookupRepository(db, zapLogger)

	// Initialize payment provider
	factory := providerFactory.NewFactory(cfg, zapLogger)
	paymentProvider, err := factory.GetProviderFromString(cfg.Service.Provider)
	if err != nil {
		zapLogger.Fatal("Failed to initialize payment provider", zap.Error(err))
	}

	// Initialize notification sink; payments still work when Redis is down
	var notifier usecase.PaymentNotifier
	if cfg.Redis.Addr != "" {
		redisClient, err := messaging.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			zapLogger.Warn("Redis unavailable, payment events will not be published", zap.Error(err))
		} else {
			defer redisClient.Close()
			notifier = messaging.NewRedisNotifier(redisClient, cfg.Redis.Channel, zapLogger)
		}
	}

	// Initialize services
	paymentService := usecase.NewPaymentService(
		repos.Payment,
		paymentProvider,
		lookups,
		lookups,
		notifier,
		zapLogger,
		cfg.Service.ProviderTimeout,
	)
	webhookService := usecase.NewWebhookService(
		repos.Payment,
		repos.Webhook,
		paymentProvider,
		cfg.Service.WebhookSecret(),
		zapLogger,
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize servers
	grpcSrv := grpcServer.NewServer(cfg, zapLogger)
	httpSrv := httpServer.NewServer(cfg, zapLogger, paymentService, webhookService)

	// Start servers
	go func() {
		if err := grpcSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start gRPC server", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLogger.Info("Shutting down servers...")

	// Shutdown servers
	if err := grpcSrv.Shutdown(ctx); err != nil {
		zapLogger.Error("Failed to shutdown gRPC server", zap.Error(err))
	}

	if err := httpSrv.Shutdown(ctx); err != nil {
		zapLogger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	zapLogger.Info("Servers shut down successfully")
}
