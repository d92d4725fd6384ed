package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aeroclaim/internal/adapters/clickhouse"
	"aeroclaim/internal/adapters/config"
	"aeroclaim/internal/adapters/errors/noop"
	"aeroclaim/internal/adapters/errors/sentry"
	"aeroclaim/internal/adapters/postgres"
	"aeroclaim/internal/adapters/providerfactory"
	"aeroclaim/internal/adapters/redis"
	"aeroclaim/internal/adapters/telegram"
	"aeroclaim/internal/api"
	"aeroclaim/internal/metrics"
	chrepo "aeroclaim/internal/repository/clickhouse"
	pgrepo "aeroclaim/internal/repository/postgres"
	redisrepo "aeroclaim/internal/repository/redis"
	"aeroclaim/internal/services/compensation"
	"aeroclaim/internal/services/flightcache"
	quotasvc "aeroclaim/internal/services/quota"
	"aeroclaim/internal/services/verification"
	"aeroclaim/pkg/errors"
	"aeroclaim/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	metrics.Init()

	// Databases
	pgClient, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer pgClient.Close()

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	chClient, err := clickhouse.NewClient(cfg.ClickHouse)
	if err != nil {
		log.Fatalf("Failed to connect to ClickHouse: %v", err)
	}
	defer chClient.Close()

	log.Info("Databases initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Repositories
	periodRepo := pgrepo.NewQuotaPeriodRepository(pgClient.DB())
	usageRepo := pgrepo.NewUsageRecordRepository(pgClient.DB())
	notFoundRepo := pgrepo.NewNotFoundRepository(pgClient.DB())
	snapshotRepo := pgrepo.NewFlightSnapshotRepository(pgClient.DB())
	cacheStore := redisrepo.NewCacheStore(redisClient.Client())

	searchEvents := chrepo.NewSearchEventRepository(chClient.Conn())
	searchEvents.Start(ctx)

	// Provider
	provider, err := providerfactory.New(cfg.Provider, log)
	if err != nil {
		log.Fatalf("Failed to create flight provider: %v", err)
	}

	// Services
	notifier := initNotifier(cfg, log)
	quotaService := quotasvc.NewService(periodRepo, usageRepo, notifier, cfg.Quota.MonthlyCredits, log)
	cacheService := flightcache.NewService(cacheStore, flightcache.TTLConfig{
		FlightStatus:  cfg.Cache.FlightStatusTTL,
		RouteSearch:   cfg.Cache.RouteSearchTTL,
		AirportSearch: cfg.Cache.AirportSearchTTL,
	}, log)
	calculator := compensation.NewEU261Calculator()

	verificationService := verification.NewService(
		provider,
		quotaService,
		cacheService,
		calculator,
		notFoundRepo,
		snapshotRepo,
		searchEvents,
		cfg.Provider.Enabled,
		log,
	)
	// HTTP surface
	server := api.NewServer(api.ServerConfig{
		Addr:         cfg.Admin.Addr,
		ServiceName:  cfg.App.Name,
		ProviderName: provider.Name(),
	}, verificationService, quotaService, cacheService, searchEvents, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Errorf("Admin server error: %v", err)
			cancel()
		}
	}()

	log.Info("System initialized successfully")

	waitForShutdown(ctx, cancel, log)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Admin server shutdown: %v", err)
	}
	if err := searchEvents.Stop(shutdownCtx); err != nil {
		log.Warnf("Search analytics shutdown: %v", err)
	}
	if err := errorTracker.Flush(shutdownCtx); err != nil {
		log.Warnf("Failed to flush error tracker: %v", err)
	}

	log.Info("Shutdown complete")
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// initNotifier builds the Telegram quota alert notifier. Alerts degrade to
// logs when no bot is configured.
func initNotifier(cfg *config.Config, log *logger.Logger) quotasvc.Notifier {
	if cfg.Telegram.BotToken == "" || len(cfg.Telegram.AdminIDs) == 0 {
		log.Info("Telegram alerts disabled (no bot token or admin IDs)")
		return nil
	}

	notifier, err := telegram.NewNotifier(telegram.Config{
		Token:    cfg.Telegram.BotToken,
		AdminIDs: cfg.Telegram.AdminIDs,
		Debug:    cfg.App.Debug,
	}, log)
	if err != nil {
		log.Warnf("Failed to initialize Telegram notifier: %v", err)
		return nil
	}

	log.Info("Telegram quota alerts initialized")
	return notifier
}

// waitForShutdown blocks until a termination signal arrives or the root
// context is cancelled
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("Shutting down...")
		cancel()
	case <-ctx.Done():
		log.Info("Shutting down...")
	}
}
