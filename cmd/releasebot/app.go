package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/amaumene/releasebot/internal/config"
	"github.com/amaumene/releasebot/internal/controllers"
	"github.com/amaumene/releasebot/internal/metrics"
	"github.com/amaumene/releasebot/internal/models"
	"github.com/amaumene/releasebot/internal/scheduler"
	"github.com/amaumene/releasebot/internal/services/telegram"
	"github.com/amaumene/releasebot/internal/services/tmdb"
	"github.com/amaumene/releasebot/internal/telemetry"
	"github.com/amaumene/releasebot/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// app holds the components shared by every command
type app struct {
	cfg      *config.Config
	logger   *logrus.Logger
	store    models.Store
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	tracing  *sdktrace.TracerProvider
}

// newApp loads configuration, sets up logging and opens the store
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFile)
	logger.WithField("config_dir", filepath.Dir(cfg.DatabaseFile)).Debug("Configuration loaded")

	tp, err := telemetry.NewTracerProvider(cfg.TraceExporter, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	otel.SetTracerProvider(tp)

	store, err := openStore(ctx, cfg)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	logger.WithField("backend", cfg.StoreBackend).Info("Store initialized")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		registry: reg,
		metrics:  metrics.New(reg),
		tracing:  tp,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (models.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		store, err := models.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mongo store: %w", err)
		}
		return store, nil
	default:
		store, err := models.NewDatabase(cfg.DatabaseFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return store, nil
	}
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close store")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracing.Shutdown(ctx); err != nil {
		a.logger.WithError(err).Warn("Failed to flush spans")
	}
}

func (a *app) newTMDB() (*tmdb.Client, error) {
	client, err := tmdb.NewClient(a.cfg.TMDBAPIKey, a.cfg.TMDBBaseURL, a.logger,
		tmdb.WithImageBaseURL(a.cfg.TMDBImageBaseURL),
		tmdb.WithLanguage(a.cfg.TMDBLanguage),
		tmdb.WithCacheTTL(a.cfg.LookupCacheTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize TMDB client: %w", err)
	}
	return client, nil
}

func (a *app) newTelegram() (*telegram.Client, error) {
	client, err := telegram.NewClient(a.cfg.BotToken, a.cfg.TelegramAPIEndpoint, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram client: %w", err)
	}
	return client, nil
}

// newScheduler wires the reconciler and dispatcher behind the scheduler
func (a *app) newScheduler(lookup controllers.TitleLookup, gateway controllers.Gateway) (*scheduler.Scheduler, error) {
	reconciler := controllers.NewReconciler(a.store, lookup, a.cfg.SweepWorkers, a.metrics, a.logger,
		controllers.WithTracerProvider(a.tracing))
	dispatcher := controllers.NewDispatcher(gateway, a.metrics, a.logger)

	sched, err := scheduler.NewScheduler(a.cfg.SweepSchedule, a.cfg.SweepTimezone, reconciler, dispatcher, a.metrics, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}
	return sched, nil
}
