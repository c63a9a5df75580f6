package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rideloop/payments/internal/application/services"
	"github.com/rideloop/payments/internal/config"
	"github.com/rideloop/payments/internal/infrastructure/notify"
	"github.com/rideloop/payments/internal/infrastructure/persistence"
	"github.com/rideloop/payments/internal/infrastructure/persistence/postgres"
	"github.com/rideloop/payments/internal/infrastructure/provider"
	"github.com/rideloop/payments/internal/interfaces/rest"
	"github.com/rideloop/payments/internal/interfaces/rest/middleware"
	"github.com/rideloop/payments/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting payments service",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	db, err := persistence.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	intentRepo := postgres.NewIntentRepository(db.Pool)
	queueRepo := postgres.NewCaptureQueueRepository(db.Pool)
	earningsRepo := postgres.NewEarningsRepository(db.Pool)
	referralRepo := postgres.NewReferralRepository(db.Pool)

	providerClient := provider.NewProviderClient(cfg.Provider)
	retryProviderClient := provider.NewRetryProviderClient(providerClient, cfg.Retry)

	notifier, err := notify.NewRedisDispatcher(cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer notifier.Close()

	earningsPoster := services.NewEarningsPoster(earningsRepo, logger)
	referralResolver := services.NewReferralDiscountResolver(referralRepo, logger)

	authorizeService := services.NewAuthorizeService(intentRepo, referralResolver, retryProviderClient, logger)
	completionService := services.NewCompletionService(intentRepo, queueRepo, cfg.Worker.MaxAttempts, logger)
	cancellationService := services.NewCancellationService(
		intentRepo, queueRepo, retryProviderClient, earningsPoster, referralResolver, notifier, logger,
	)
	refundService := services.NewRefundService(intentRepo, retryProviderClient, earningsPoster, notifier, logger)
	queryService := services.NewQueryService(intentRepo, earningsRepo)

	h := rest.NewPaymentHandler(
		authorizeService,
		completionService,
		cancellationService,
		refundService,
		queryService,
	)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	handler := middleware.Recovery(logger)(mux)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Timeout(cfg.Server.ReadTimeout)(handler)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	captureWorker := worker.NewCaptureWorker(
		queueRepo,
		intentRepo,
		retryProviderClient,
		earningsPoster,
		referralResolver,
		notifier,
		cfg.Worker.Interval,
		cfg.Worker.BatchSize,
		cfg.Worker.BackoffBase,
		cfg.Worker.BackoffMax,
		cfg.Worker.LeaseTimeout,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go captureWorker.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
