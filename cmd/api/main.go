package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rentflow/internal/api"
	"rentflow/internal/config"
	"rentflow/internal/database"
	"rentflow/internal/domain"
	"rentflow/internal/events"
	"rentflow/internal/logging"
	"rentflow/internal/metrics"
	"rentflow/internal/models"
	"rentflow/internal/repository"
	"rentflow/internal/service"
	"rentflow/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, logging.Component(&logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	svc, wallet, err := initServices(ctx, cfg, db, redisClient, &logger)
	if err != nil {
		return err
	}

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, only background workers will run")
	}

	startMetrics(ctx, cfg, &logger)
	startWorkers(ctx, cfg, db, wallet, &logger)

	var httpServer *api.HTTPServer
	if cfg.API.Enabled {
		httpServer = api.NewHTTPServer(cfg.API, svc, &logger)
	}
	return serve(ctx, httpServer, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// initRedis returns nil when redis is not configured or unreachable; the memory cache takes over.
func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing with memory cache")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initItemCache(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.ItemCache {
	memory := repository.NewMemoryItemCache(cfg.ItemCacheTTL())
	if redisClient == nil {
		return memory
	}
	primary := repository.NewRedisItemCache(redisClient, cfg.ItemCacheTTL())
	return repository.NewFailoverItemCache(primary, memory, logging.Component(logger, "item-cache"))
}

func initServices(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	logger *zerolog.Logger,
) (api.Services, *service.WalletService, error) {
	gateway, err := service.NewPaymentGateway(cfg.Payment.Provider)
	if err != nil {
		return api.Services{}, nil, err
	}

	bus := events.NewEventBus()

	items := service.NewItemService(db, db, initItemCache(cfg, redisClient, logger), logging.Component(logger, "items"))
	wallet := service.NewWalletService(db, db, db, bus, logging.Component(logger, "wallet"))
	bookings := service.NewBookingService(db, db, items, wallet, bus, cfg.Booking.MaxBookingDays, logging.Component(logger, "bookings"))
	confirmations := service.NewConfirmationService(db, db, wallet, bus, logging.Component(logger, "confirmations"))
	checkout := service.NewCheckoutService(db, bookings, wallet, gateway, logging.Component(logger, "checkout"))

	if err := seedItems(ctx, cfg.Items, items); err != nil {
		logger.Error().Err(err).Msg("seed items")
		return api.Services{}, nil, err
	}

	return api.Services{
		Bookings:      bookings,
		Wallet:        wallet,
		Confirmations: confirmations,
		Checkout:      checkout,
		Items:         items,
	}, wallet, nil
}

func seedItems(ctx context.Context, entries []config.ItemConfig, items *service.ItemService) error {
	if len(entries) == 0 {
		return nil
	}

	catalog := make([]*models.Item, 0, len(entries))
	for _, entry := range entries {
		item, err := entry.Item()
		if err != nil {
			return err
		}
		catalog = append(catalog, item)
	}
	return items.SyncItems(ctx, catalog)
}

func startWorkers(ctx context.Context, cfg *config.Config, db *database.DB, wallet *service.WalletService, logger *zerolog.Logger) {
	reconciler := worker.NewReconciler(wallet, cfg.ReconcileInterval(), worker.RetryPolicy{}, logging.Component(logger, "reconciler"))
	go reconciler.Start(ctx)

	backups := database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup"))
	go backups.Start(ctx)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func serve(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	if httpServer != nil {
		go func() {
			errCh <- httpServer.Start()
		}()
		logger.Info().Str("http_addr", httpServer.Addr()).Msg("API server started")
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("http shutdown")
		}
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
