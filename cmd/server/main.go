// Package main provides the entry point for the feedback dedup service HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/feedback-dedup-service/internal/audit"
	"github.com/helixir/feedback-dedup-service/internal/config"
	"github.com/helixir/feedback-dedup-service/internal/database"
	"github.com/helixir/feedback-dedup-service/internal/dedup"
	"github.com/helixir/feedback-dedup-service/internal/events"
	"github.com/helixir/feedback-dedup-service/internal/feedback"
	"github.com/helixir/feedback-dedup-service/internal/observability"
	"github.com/helixir/feedback-dedup-service/internal/policy"
	"github.com/helixir/feedback-dedup-service/internal/repository"
	httpserver "github.com/helixir/feedback-dedup-service/internal/server/http"
	"github.com/helixir/feedback-dedup-service/internal/tuning"
)

const serviceName = "feedback-dedup-service"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// storage bundles the backend-specific collaborators.
type storage struct {
	repo      repository.FeedbackRepository
	audit     audit.Store
	readiness httpserver.ReadinessChecker
	close     func()
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Str("storage", cfg.Storage.Backend).Msg("feedback-dedup-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	policies, err := policy.NewStore(cfg.Detection.Policy())
	if err != nil {
		return fmt.Errorf("create policy store: %w", err)
	}

	engine := dedup.NewEngine(store.repo, policies, store.audit, dedup.Options{
		Workers: cfg.Detection.Workers,
		Logger:  logger,
		Metrics: metrics,
	})

	source := serviceName + "/" + cfg.Kafka.InstanceID

	var publisher events.Publisher = events.NoopPublisher{}
	var listener *events.PolicyListener
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(events.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			Source:       source,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}, logger, metrics)
		listener = events.NewPolicyListener(events.ListenerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID(),
			Source:  source,
		}, policies, logger, metrics)
		logger.Info().
			Strs("brokers", cfg.Kafka.Brokers).
			Str("topic", cfg.Kafka.Topic).
			Str("group_id", cfg.Kafka.GroupID()).
			Msg("kafka event publishing enabled")
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close event publisher")
		}
	}()

	svc := feedback.NewService(store.repo, engine, store.audit, policies, publisher, feedback.Options{
		Logger:  logger,
		Metrics: metrics,
	})

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = promhttp.Handler()
	}

	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MetricsPath:     cfg.Metrics.Path,
	}
	httpSrv := httpserver.NewServer(httpCfg, httpserver.Dependencies{
		Feedback:       svc,
		Checker:        engine,
		Readiness:      store.readiness,
		MetricsHandler: metricsHandler,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	if listener != nil {
		g.Go(func() error {
			defer func() {
				if closeErr := listener.Close(); closeErr != nil {
					logger.Error().Err(closeErr).Msg("failed to close policy listener")
				}
			}()
			if err := listener.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("policy listener error: %w", err)
			}
			return nil
		})
	}

	if cfg.Tuning.Enabled {
		job := tuning.NewJob(tuning.Config{
			Interval:   cfg.Tuning.Interval,
			Window:     cfg.Tuning.Window,
			MinSamples: cfg.Tuning.MinSamples,
			Retention:  cfg.Audit.Retention,
		}, store.audit, svc, logger, metrics)
		g.Go(func() error {
			if err := job.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("tuning job error: %w", err)
			}
			return nil
		})
	}

	// Shut the HTTP server down once a signal arrives or another component fails.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down feedback-dedup-service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
		}
		return nil
	})

	logger.Info().
		Str("http_address", httpCfg.Address).
		Bool("kafka", cfg.Kafka.Enabled).
		Bool("tuning", cfg.Tuning.Enabled).
		Msg("feedback-dedup-service is ready")

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("feedback-dedup-service shutdown complete")
	return nil
}

// openStorage connects the configured backend. The postgres backend runs
// pending migrations first when migration_auto_run is set.
func openStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*storage, error) {
	if cfg.Storage.Backend == config.StorageMemory {
		logger.Warn().Msg("using in-memory storage; feedback and comparison logs are lost on restart")
		return &storage{
			repo:  repository.NewMemoryFeedbackRepository(),
			audit: audit.NewMemoryStore(cfg.Audit.Capacity, audit.WithRetention(cfg.Audit.Retention)),
			close: func() {},
		}, nil
	}

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info().Msg("database connection established")

	if cfg.Database.MigrationAutoRun {
		if err := database.AutoMigrate(db, cfg.Database.MigrationPath, logger); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	return &storage{
		repo:      repository.NewPgFeedbackRepository(db),
		audit:     audit.NewPgStore(db),
		readiness: db,
		close:     db.Close,
	}, nil
}
