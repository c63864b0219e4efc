// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/starford/quackstagram/internal/apperr"
	"github.com/starford/quackstagram/internal/flatfile"
	"github.com/starford/quackstagram/internal/mirror"
	"github.com/starford/quackstagram/internal/quack"
	"github.com/starford/quackstagram/internal/sqlstore"
	"github.com/starford/quackstagram/internal/storage"
	"github.com/starford/quackstagram/internal/store"
)

// App is an opened data root with the configured backend.
type App struct {
	Service *quack.Service
	Logger  *slog.Logger

	config  *Config
	engine  *storage.Engine
	backend store.Backend
}

// Open initializes logging, the data root and the configured backend.
func Open(opts ...Option) (*App, error) {
	app := &application{logOutput: os.Stderr}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Debug("Configuration loaded",
		slog.String("backend", cfg.Storage.Backend),
		slog.String("root", cfg.Storage.Root),
		slog.Bool("serialize_writes", cfg.Storage.SerializeWrites),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	var engineOpts []storage.Option
	if cfg.Storage.SerializeWrites {
		engineOpts = append(engineOpts, storage.WithSerializedWrites())
	}
	engine, err := storage.NewEngine(cfg.Storage.Root, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	session, err := flatfile.NewSession(engine)
	if err != nil {
		return nil, fmt.Errorf("init session: %w", err)
	}

	var backend store.Backend
	switch cfg.Storage.Backend {
	case BackendSQLite:
		backend, err = sqlstore.Open(cfg.SQLite.Path, engine, logger)
	default:
		backend, err = flatfile.New(engine, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s backend: %w", cfg.Storage.Backend, err)
	}

	return &App{
		Service: quack.NewService(backend, session, logger),
		Logger:  logger,
		config:  cfg,
		engine:  engine,
		backend: backend,
	}, nil
}

// Close releases the backend.
func (a *App) Close() error {
	return a.backend.Close()
}

// MigrateCredentials upgrades every legacy line of the credentials file.
// Legacy lines only ever exist in the flat files, whichever backend is
// configured.
func (a *App) MigrateCredentials(ctx context.Context) (int, error) {
	flat, err := flatfile.New(a.engine, a.Logger)
	if err != nil {
		return 0, err
	}
	return flat.Accounts().MigrateCredentials(ctx)
}

// RunMirror copies the flat files into the configured SQLite database. With
// watch set it keeps doing so until ctx is cancelled or a shutdown signal
// arrives. The flow is one way, so it refuses to run while the database is
// the primary store: a sync would replace its tables with the flat files.
func (a *App) RunMirror(ctx context.Context, watch bool) (mirror.Result, error) {
	if a.config.Storage.Backend == BackendSQLite {
		return mirror.Result{}, fmt.Errorf("mirror: %w: database %s is the primary store",
			apperr.ErrInvalid, a.config.SQLite.Path)
	}
	logger := a.Logger

	db, err := sqlstore.Open(a.config.SQLite.Path, a.engine, logger)
	if err != nil {
		return mirror.Result{}, fmt.Errorf("init sqlite: %w", err)
	}
	defer db.Close()

	m, err := mirror.New(a.engine, db, logger)
	if err != nil {
		return mirror.Result{}, err
	}

	res, err := m.Sync(ctx)
	if err != nil {
		return res, fmt.Errorf("mirror sync: %w", err)
	}
	logger.Info("Mirror synced",
		slog.Int("synced", len(res.Synced)),
		slog.Int("skipped", len(res.Skipped)))
	if !watch {
		return res, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return m.Watch(gCtx, func(file string) {
			logger.Info("Mirror reloaded", slog.String("file", file))
		})
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Mirror error", slog.String("error", err.Error()))
		return res, err
	}

	logger.Info("Mirror stopped")
	return res, nil
}
