// Package app initializes and holds long-lived harvester services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/horsie/harvester/internal/clock/system"
	"github.com/horsie/harvester/internal/config"
	"github.com/horsie/harvester/internal/extract"
	collyfetcher "github.com/horsie/harvester/internal/fetcher/colly"
	"github.com/horsie/harvester/internal/filter"
	"github.com/horsie/harvester/internal/harvest"
	"github.com/horsie/harvester/internal/hash/sha256"
	"github.com/horsie/harvester/internal/id/uuid"
	"github.com/horsie/harvester/internal/policy/ratelimit"
	pubsubpublisher "github.com/horsie/harvester/internal/publisher/pubsub"
	"github.com/horsie/harvester/internal/race"
	"github.com/horsie/harvester/internal/scheduler"
	"github.com/horsie/harvester/internal/storage"
	"github.com/horsie/harvester/internal/storage/postgres"
	"github.com/horsie/harvester/internal/telemetry"
)

// App holds the shared services for one process: the logger, the artifact
// store, and the optional run sink and publisher.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	clock     race.Clock
	storage   storage.Provider
	runs      race.RunStore
	publisher race.Publisher
	closers   []closer
}

type closer struct {
	name string
	fn   func() error
}

// NewApp opens every configured backend and fails fast if one cannot be reached.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger, clock: system.New()}

	tp, err := telemetry.InitTracerProvider(ctx, telemetry.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("initialize tracing: %w", err)
	}
	a.closers = append(a.closers, closer{name: "tracing", fn: func() error {
		return tp.Shutdown(context.Background())
	}})

	store, closeStore, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initialize storage: %w", err)
	}
	a.storage = store
	a.closers = append(a.closers, closer{name: "storage", fn: closeStore})
	logger.Info("storage ready", zap.String("backend", cfg.Storage.Backend))

	if cfg.DB.DSN != "" {
		runs, err := postgres.NewRaceStore(ctx, postgres.Config{
			DSN:        cfg.DB.DSN,
			RacesTable: cfg.DB.RacesTable,
			RunsTable:  cfg.DB.RunsTable,
			MaxConns:   cfg.DB.MaxConns,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initialize database: %w", err)
		}
		a.closers = append(a.closers, closer{name: "database", fn: func() error { runs.Close(); return nil }})
		if err := runs.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure database schema: %w", err)
		}
		a.runs = runs
		logger.Info("postgres run sink ready", zap.String("races_table", cfg.DB.RacesTable))
	}

	if cfg.PubSub.Topic != "" {
		pub, err := pubsubpublisher.Open(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initialize publisher: %w", err)
		}
		a.closers = append(a.closers, closer{name: "publisher", fn: pub.Close})
		a.publisher = pub
		logger.Info("pubsub publisher ready", zap.String("topic", cfg.PubSub.Topic))
	}

	return a, nil
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Storage exposes the configured artifact store.
func (a *App) Storage() storage.Provider {
	return a.storage
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Harvester assembles a run pipeline from configuration.
func (a *App) Harvester() (*harvest.Harvester, error) {
	cfg := a.cfg
	limiter := ratelimit.New(ratelimit.Config{RPS: cfg.Fetch.MaxRPS, Burst: cfg.Fetch.Burst})
	fetcher := collyfetcher.New(collyfetcher.Config{
		BaseURL:        cfg.Source.BaseURL,
		UserAgent:      cfg.Source.UserAgent,
		Accept:         cfg.Source.Accept,
		AcceptLanguage: cfg.Source.AcceptLanguage,
		Timeout:        cfg.Fetch.Timeout,
		MinBodyBytes:   cfg.Fetch.MinBodyBytes,
		Marker:         cfg.Fetch.Marker,
	}, limiter, a.logger.Named("fetcher"))

	deps := harvest.Deps{
		Fetcher: fetcher,
		Extractor: extract.New(extract.Config{
			BaseURL:       cfg.Source.BaseURL,
			VideoURL:      cfg.Source.VideoURL,
			GenericTitles: cfg.Filter.GenericTitles,
		}),
		Filter: filter.New(filter.Config{
			Window:        filter.Window{Back: cfg.Filter.Lookback, Ahead: cfg.Filter.Lookahead},
			MinRunners:    cfg.Filter.MinRunners,
			GenericTitles: cfg.Filter.GenericTitles,
		}),
		Scheduler: scheduler.New(scheduler.Config{
			BatchSize:     cfg.Schedule.BatchSize,
			MaxCandidates: cfg.Schedule.MaxCandidates,
			Pause:         cfg.Schedule.Pause,
			LogEvery:      cfg.Schedule.LogEvery,
		}, a.logger),
		Store:     a.storage,
		Runs:      a.runs,
		Publisher: a.publisher,
		Hasher:    sha256.New(),
		Clock:     a.clock,
		IDs:       uuid.New(),
		Logger:    a.logger,
	}
	h, err := harvest.New(deps, harvest.Options{
		Tables:         cfg.Tables(a.clock.Now()),
		DatasetPath:    cfg.Output.DatasetPath,
		SummaryPath:    cfg.Output.SummaryPath,
		Topic:          cfg.PubSub.Topic,
		PushgatewayURL: cfg.Metrics.PushgatewayURL,
		MetricsJob:     cfg.Metrics.Job,
	})
	if err != nil {
		return nil, fmt.Errorf("build harvester: %w", err)
	}
	return h, nil
}

// Close releases backends in reverse order of opening and flushes the logger.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.logger.Warn("close failed", zap.String("service", c.name), zap.Error(err))
		}
	}
	a.closers = nil
	// Sync fails on terminals; nothing useful can be done with the error.
	_ = a.logger.Sync()
}
