// Package app wires the engine, registry, ingestion, describe engine, and
// session worker into one running shell.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"taotie/internal/config"
	"taotie/internal/db"
	"taotie/internal/db/crypto"
	"taotie/internal/db/repository"
	"taotie/internal/describe"
	"taotie/internal/domain"
	"taotie/internal/engine"
	"taotie/internal/ingest"
	"taotie/internal/objectstore"
	"taotie/internal/session"
)

// Deps holds what the caller decides: configuration, logging, and whether
// registrations are persisted.
type Deps struct {
	Cfg    *config.Config
	Logger *slog.Logger
	// Persist enables the SQLite registry. One-shot commands leave it off.
	Persist bool
	// Registerer receives worker metrics. Nil disables them.
	Registerer prometheus.Registerer
}

// App is the wired shell. Close releases everything New opened.
type App struct {
	Engine    *engine.Engine
	Backend   *engine.Backend
	Registrar *ingest.Registrar
	Worker    *session.Worker

	logger  *slog.Logger
	closers []func() error
}

// New opens DuckDB, registers secrets, builds the backend, and starts the
// session worker. With Persist and Cfg.RestoreDatasets set, datasets from
// the registry are re-registered before New returns.
func New(ctx context.Context, deps Deps) (_ *App, err error) {
	cfg := deps.Cfg
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	a := &App{logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	duck, err := engine.Open(ctx, cfg.DuckDBPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, duck.Close)

	a.Engine = engine.New(duck)
	if err := a.Engine.Setup(ctx, cfg, logger); err != nil {
		return nil, err
	}

	probes, err := objectstore.NewSetFromConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("object store probes: %w", err)
	}
	a.closers = append(a.closers, probes.Close)

	var repo domain.DatasetRepository
	if deps.Persist {
		registry, err := openRegistry(cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, registry.db.Close)
		repo = registry.repo
	}

	a.Registrar = ingest.NewRegistrar(a.Engine, probes, repo, logger)
	describer := describe.New(a.Engine, a.Engine, cfg.DescribeParallelism, logger)
	a.Backend = engine.NewBackend(a.Engine, a.Registrar, describer)

	var metrics *session.Metrics
	if deps.Registerer != nil {
		metrics = session.NewMetrics(deps.Registerer)
	}
	a.Worker = session.NewWorker(a.Backend, session.Options{
		Timeout: cfg.CommandTimeout,
		Logger:  logger,
		Metrics: metrics,
	})
	a.closers = append(a.closers, func() error { a.Worker.Close(); return nil })

	if deps.Persist && cfg.RestoreDatasets {
		if _, err := a.Registrar.Restore(ctx); err != nil {
			logger.Warn("dataset restore failed", "error", err)
		}
	}
	return a, nil
}

type registry struct {
	db   *sql.DB
	repo *repository.DatasetRepo
}

func openRegistry(cfg *config.Config) (*registry, error) {
	var enc *crypto.Encryptor
	if cfg.EncryptionKey != "" {
		var err error
		if enc, err = crypto.NewEncryptor(cfg.EncryptionKey); err != nil {
			return nil, fmt.Errorf("TAOTIE_ENCRYPTION_KEY: %w", err)
		}
	}
	sqlDB, err := db.OpenRegistry(cfg.MetaDBPath)
	if err != nil {
		return nil, err
	}
	return &registry{db: sqlDB, repo: repository.NewDatasetRepo(sqlDB, enc)}, nil
}

// Close stops the worker and closes the registry and DuckDB, in reverse
// order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
