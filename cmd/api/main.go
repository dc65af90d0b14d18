package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"carwash/internal/api"
	"carwash/internal/config"
	"carwash/internal/database"
	"carwash/internal/domain"
	"carwash/internal/events"
	"carwash/internal/logging"
	"carwash/internal/mail"
	"carwash/internal/metrics"
	"carwash/internal/models"
	"carwash/internal/repository"
	"carwash/internal/service"
	"carwash/internal/storage"
	"carwash/internal/watch"
	"carwash/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, services, logger, closer, loadErr := loadConfigAndLogger()
	if loadErr != nil {
		return loadErr
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := initDatabase(cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := initObjectStore(ctx, cfg, &logger)
	if err != nil {
		return err
	}

	lockRepo := initLockRepository(ctx, cfg, &logger)

	metrics.Register()

	eventBus := events.NewEventBus()
	feed := watch.NewBookingFeed(db, eventBus, &logger)

	builder := mail.NewBuilder(cfg.Booking.BusinessName)
	bookingService := service.NewBookingService(db, db, store, eventBus, builder, cfg.Booking, services, &logger)
	authService := service.NewAuthService(cfg.Auth, lockRepo, &logger)

	startMailWorker(ctx, cfg, db, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(cfg, &logger)
	}

	apiServer := api.NewHTTPServer(cfg, bookingService, authService, feed, lockRepo, &logger)
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error().Err(err).Msg("API server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("API server shutdown error")
	}

	logger.Info().Msg("Shutdown complete.")
	return nil
}

func loadConfigAndLogger() (*config.Config, []string, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	servicesPath := os.Getenv("SERVICES_PATH")
	if servicesPath == "" {
		servicesPath = "configs/services.yaml"
	}
	// On any failure past this point the log file is closed here, since
	// run() only installs its deferred close on success.
	fail := func(err error) (*config.Config, []string, zerolog.Logger, io.Closer, error) {
		if closer != nil {
			closer.Close()
		}
		return nil, nil, zerolog.Logger{}, nil, err
	}

	servicesData, err := os.ReadFile(servicesPath)
	if err != nil {
		logger.Error().Err(err).Msgf("failed to read %s", servicesPath)
		return fail(err)
	}

	var servicesConfig struct {
		Services []string `yaml:"services"`
	}
	if err := yaml.Unmarshal(servicesData, &servicesConfig); err != nil {
		logger.Error().Err(err).Msg("failed to parse services.yaml")
		return fail(err)
	}

	if err := config.ValidateServices(servicesConfig.Services); err != nil {
		logger.Error().Err(err).Msg("Services validation failed")
		return fail(err)
	}

	return cfg, servicesConfig.Services, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg == nil {
		return os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("failed to create database directory")
		return err
	}
	if cfg.Storage.Backend == "local" {
		if err := os.MkdirAll(cfg.Storage.LocalPath, 0o755); err != nil {
			logger.Error().Err(err).Msg("failed to create uploads directory")
			return err
		}
	}
	return nil
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize database")
		return nil, err
	}
	return db, nil
}

func initObjectStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.ObjectStore, error) {
	switch cfg.Storage.Backend {
	case "gcs":
		store, err := storage.NewGCSStore(ctx, cfg.Storage.GCS.CredentialsFile, cfg.Storage.GCS.Bucket)
		if err != nil {
			logger.Error().Err(err).Msg("failed to initialize GCS store")
			return nil, err
		}
		logger.Info().Str("bucket", cfg.Storage.GCS.Bucket).Msg("GCS object store initialized")
		return store, nil
	default:
		return storage.NewLocalStore(cfg.Storage.LocalPath, cfg.Storage.PublicBaseURL)
	}
}

func initLockRepository(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) domain.LockRepository {
	fallback := repository.NewMemoryLockRepository()
	if cfg.Redis.Address == "" {
		return fallback
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable")
	}

	primary := repository.NewRedisLockRepository(redisClient)
	return repository.NewFailoverLockRepository(primary, fallback, logger)
}

func startMailWorker(ctx context.Context, cfg *config.Config, db *database.DB, logger *zerolog.Logger) {
	if cfg.Mail.AMQPURL == "" {
		logger.Warn().Msg("mail amqp_url is empty, queued mail will not be dispatched")
		return
	}

	publisher := worker.NewAMQPPublisher(cfg.Mail.AMQPURL, cfg.Mail.Queue)
	retryPolicy := worker.RetryPolicy{
		MaxRetries:    cfg.Mail.MaxRetries,
		InitialDelay:  2 * time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2,
	}
	pollInterval := time.Duration(cfg.Mail.PollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = time.Duration(models.WorkerPollIntervalSeconds) * time.Second
	}

	mailWorker := worker.NewMailWorker(db, publisher, retryPolicy, pollInterval, logger)
	go mailWorker.Start(ctx)
}

func startMetricsServer(cfg *config.Config, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort)
	logger.Info().Str("addr", addr).Msg("metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
