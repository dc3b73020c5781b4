package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"woodslot/internal/api"
	"woodslot/internal/auth"
	"woodslot/internal/config"
	"woodslot/internal/database"
	"woodslot/internal/domain"
	"woodslot/internal/events"
	"woodslot/internal/logging"
	"woodslot/internal/mailer"
	"woodslot/internal/metrics"
	"woodslot/internal/repository"
	"woodslot/internal/scheduler"
	"woodslot/internal/service"
	"woodslot/internal/worker"

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

	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, redisClient := initSessions(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	var wg sync.WaitGroup
	eventBus := events.NewEventBus()
	if cfg.Events.AMQPURL != "" {
		relay := events.NewRelay(cfg.Events.AMQPURL, cfg.Events.Queue, worker.RetryPolicy{}, logging.Component(logger, "relay"))
		eventBus.SubscribeAll(relay.Handle)
		wg.Add(1)
		go func() {
			defer wg.Done()
			relay.Run(ctx)
		}()
	}

	sender := mailer.New(cfg.Mail, logging.Component(logger, "mailer"))

	notifications := service.NewNotificationService(db, sender, eventBus, cfg.Mail.Subject, logging.Component(logger, "notifications"))
	bookings := service.NewBookingService(db, notifications, eventBus, cfg.Booking, logging.Component(logger, "bookings"))
	availability := service.NewAvailabilityService(db, db, eventBus, cfg.Booking, logging.Component(logger, "availability"))
	authService := service.NewAuthService(db, sessions, auth.NewManager(cfg.Admin.JWTSecret, cfg.Admin.SessionTTL), logging.Component(logger, "auth"))

	if err := authService.SeedAdmin(ctx, cfg.Admin.Seed); err != nil {
		logger.Error().Err(err).Msg("seed admin")
		return err
	}

	var sweeper *scheduler.Sweeper
	if !cfg.Scheduler.Disabled {
		sweeper = scheduler.NewSweeper(bookings, notifications, cfg.Scheduler, cfg.Location(), logging.Component(logger, "sweeper"))
		if err := sweeper.Start(); err != nil {
			logger.Error().Err(err).Msg("start sweeper")
			return err
		}
	} else {
		logger.Warn().Msg("scheduler disabled: weekly purge and hourly notification refresh will not run")
	}

	backup := database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup"))
	wg.Add(1)
	go func() {
		defer wg.Done()
		backup.Start(ctx)
	}()

	startMetrics(ctx, cfg, logger)

	httpServer := api.NewHTTPServer(cfg.HTTP, cfg.Location(), api.Services{
		Bookings:      bookings,
		Notifications: notifications,
		Availability:  availability,
		Auth:          authService,
	}, db, logging.Component(logger, "http"))

	err = serve(ctx, httpServer, sweeper, logger)
	stop()
	wg.Wait()
	return err
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, logging.Component(baseLogger, "api-main"), closer, nil
}

// initSessions prefers Redis with an in-memory fallback. Without a configured
// address sessions live in memory only.
func initSessions(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.SessionRepository, *redis.Client) {
	memory := repository.NewMemorySessionRepository()
	if cfg.Redis.Address == "" {
		logger.Info().Msg("redis not configured, sessions kept in memory")
		return memory, nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, falling back to memory until it recovers")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	failover := repository.NewFailoverSessionRepository(
		repository.NewRedisSessionRepository(client),
		memory,
		logging.Component(logger, "sessions"),
	)
	return failover, client
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func serve(ctx context.Context, httpServer *api.HTTPServer, sweeper *scheduler.Sweeper, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Error().Err(serveErr).Msg("http server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	if sweeper != nil {
		if err := sweeper.Stop(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("sweeper shutdown")
		}
	}

	logger.Info().Msg("API server stopped")
	return serveErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	logger.Info().Int("port", port).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
