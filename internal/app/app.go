// Package app provides application initialization and wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/jobrunner/stacman/internal/adapters/gdal"
	"github.com/jobrunner/stacman/internal/adapters/geopackage"
	httpAdapter "github.com/jobrunner/stacman/internal/adapters/http"
	"github.com/jobrunner/stacman/internal/adapters/metrics"
	"github.com/jobrunner/stacman/internal/adapters/stacjson"
	"github.com/jobrunner/stacman/internal/adapters/storage"
	"github.com/jobrunner/stacman/internal/adapters/watcher"
	"github.com/jobrunner/stacman/internal/application"
	"github.com/jobrunner/stacman/internal/config"
	"github.com/jobrunner/stacman/internal/domain"
	"github.com/jobrunner/stacman/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Storage    output.ObjectStorage
	Repository *stacjson.Repository
	Extractor  *application.Extractor
	Cache      *application.CachedExtractor
	Manager    *application.CatalogManager
	Metrics    *metrics.Collector

	metrics output.MetricsCollector
}

// New creates the catalog manager and its collaborators and loads the
// catalog. Long-running components are created by Serve and Watch.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config:  cfg,
		Logger:  logger,
		metrics: &output.NoOpMetrics{},
	}

	// Initialize metrics
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector(cfg.Metrics.Namespace)
		app.metrics = app.Metrics
	}

	// Initialize catalog storage
	store, err := initStorage(ctx, cfg.Storage, storage.Filter{})
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	app.Storage = store

	app.Repository, err = stacjson.NewRepository(store, cfg.Catalog.Layout, logger)
	if err != nil {
		return nil, err
	}

	// Initialize metadata extraction
	backend := gdal.NewBackend(
		&gdal.ExecRunner{Timeout: cfg.GDAL.Timeout},
		logger,
		gdal.WithTools(cfg.GDAL.InfoPath, cfg.GDAL.MDimInfoPath),
	)
	app.Extractor = application.NewExtractor(application.Backends{
		Raster:   backend,
		Array:    backend,
		Vector:   geopackage.NewBackend(logger),
		Catalogs: stacjson.NewReader(storage.NewFetcher(cfg.Catalog.FetchTimeout), logger),
	}, app.metrics, logger)

	app.Cache, err = application.NewCachedExtractor(app.Extractor, cfg.GDAL.CacheSize, app.metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing metadata cache: %w", err)
	}

	// Load the catalog
	app.Manager = application.NewCatalogManager(app.Repository, app.Cache, app.metrics, logger,
		application.ManagerOptions{
			ID:          cfg.Catalog.ID,
			Title:       cfg.Catalog.Title,
			Description: cfg.Catalog.Description,
			StrictLoad:  cfg.Catalog.StrictLoad,
		})
	if err := app.Manager.LoadOrCreate(ctx); err != nil {
		return nil, err
	}

	return app, nil
}

// Sources opens the storage listed by sync.
func (a *App) Sources(ctx context.Context) (output.ObjectStorage, error) {
	exts := a.Config.Sources.Extensions
	if len(exts) == 0 {
		exts = a.Extractor.SupportedExtensions()
	}
	store, err := initStorage(ctx, a.Config.Sources.StorageConfig, storage.NewFilter(exts...))
	if err != nil {
		return nil, fmt.Errorf("initializing sources: %w", err)
	}
	return store, nil
}

// Workspace opens the catalogs below the given local directories, each in
// the configured layout.
func (a *App) Workspace(ctx context.Context, roots ...string) (*application.Workspace, error) {
	ws := application.NewWorkspace(a.Cache, a.metrics, a.Logger, application.ManagerOptions{
		StrictLoad: a.Config.Catalog.StrictLoad,
	})
	for _, root := range roots {
		repo, err := stacjson.NewRepository(storage.NewLocalStorage(root, storage.Filter{}), a.Config.Catalog.Layout, a.Logger)
		if err != nil {
			return nil, err
		}
		if _, err := ws.Open(ctx, "", repo); err != nil {
			return nil, fmt.Errorf("opening %s: %w", root, err)
		}
	}
	return ws, nil
}

// NewSyncService creates the service reconciling the sync collection with
// the sources storage.
func (a *App) NewSyncService(ctx context.Context) (*application.SyncService, error) {
	sources, err := a.Sources(ctx)
	if err != nil {
		return nil, err
	}
	return application.NewSyncService(a.Manager, sources, a.Config.Sync.Collection, a.Config.Sync.Interval, a.Logger), nil
}

// PushMetrics sends the collected metrics to the configured push gateway.
// It is a no-op without metrics or gateway.
func (a *App) PushMetrics(ctx context.Context) {
	if a.Metrics == nil || a.Config.Metrics.PushGateway == "" {
		return
	}
	if err := a.Metrics.Push(ctx, a.Config.Metrics.PushGateway, a.Config.Metrics.Job); err != nil {
		a.Logger.Warn("failed to push metrics", "gateway", a.Config.Metrics.PushGateway, "error", err)
	}
}

// Server runs the browse API together with the optional sync scheduler
// and file watcher.
type Server struct {
	app     *App
	http    *httpAdapter.Server
	sync    *application.SyncService
	watcher *watcher.Watcher
}

// Serve assembles the HTTP server and its background services.
func (a *App) Serve(ctx context.Context) (*Server, error) {
	s := &Server{app: a}

	var opts []httpAdapter.Option
	if a.Metrics != nil {
		opts = append(opts, httpAdapter.WithMetrics(a.Metrics.Handler(), a.Metrics.Middleware))
	}
	if a.Config.Sync.Enabled {
		svc, err := a.NewSyncService(ctx)
		if err != nil {
			return nil, err
		}
		s.sync = svc
		opts = append(opts, httpAdapter.WithSync(svc))
	}
	if len(a.Config.Watch.Paths) > 0 {
		w, err := a.NewWatcher()
		if err != nil {
			return nil, err
		}
		s.watcher = w
	}

	s.http = httpAdapter.NewServer(
		a.Config.Server,
		a.Manager,
		application.NewHealthService(a.Manager),
		a.Logger,
		opts...,
	)
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.http.Router()
}

// Start starts the background services and blocks serving HTTP.
func (s *Server) Start(ctx context.Context) error {
	if s.sync != nil {
		s.sync.Start(ctx)
	}
	if s.watcher != nil {
		if err := s.watcher.Start(ctx); err != nil {
			s.app.Logger.Warn("failed to start file watcher", "error", err)
		}
	}
	return s.http.Start()
}

// Shutdown gracefully shuts down all components and saves the catalog
// when it has unsaved changes.
func (s *Server) Shutdown(ctx context.Context) error {
	s.app.Logger.Info("shutting down application")

	if s.watcher != nil {
		_ = s.watcher.Stop()
	}
	if s.sync != nil {
		s.sync.Stop()
	}

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		s.app.Logger.Error("HTTP server shutdown error", "error", err)
		errs = append(errs, err)
	}
	if s.app.Manager.State() == domain.StateDirty {
		if err := s.app.Manager.Save(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewWatcher creates a file watcher feeding the watch collection.
func (a *App) NewWatcher() (*watcher.Watcher, error) {
	svc := application.NewWatchService(a.Manager, a.Cache, a.Config.Watch.Collection, a.Config.Watch.Autosave, a.Logger)
	if err := svc.Prepare(); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(a.Config.Watch.Paths))
	for _, p := range a.Config.Watch.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		paths = append(paths, abs)
	}

	filter := storage.NewFilter(a.Extractor.SupportedExtensions()...)
	return watcher.New(
		watcher.Config{
			Paths:     paths,
			Debounce:  a.Config.Watch.Debounce,
			Recursive: a.Config.Watch.Recursive,
			Accept:    filter.Accept,
		},
		sourceEventHandler(svc, a.Logger),
		a.Logger,
	)
}

// sourceEventHandler routes file events to the watch service.
func sourceEventHandler(svc *application.WatchService, logger *slog.Logger) watcher.Handler {
	return func(ctx context.Context, event watcher.Event) error {
		logger.Info("source event", "path", event.Path, "operation", event.Operation.String())

		switch event.Operation {
		case watcher.OpCreate, watcher.OpModify:
			return svc.SourceChanged(ctx, event.Path)
		case watcher.OpDelete:
			return svc.SourceRemoved(ctx, event.Path)
		}
		return nil
	}
}

// initStorage initializes the appropriate storage adapter.
func initStorage(ctx context.Context, cfg config.StorageConfig, filter storage.Filter) (output.ObjectStorage, error) {
	switch output.StorageType(cfg.Type) {
	case output.StorageTypeLocal:
		return storage.NewLocalStorage(cfg.LocalPath, filter), nil

	case output.StorageTypeS3:
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		}, filter)

	case output.StorageTypeAzure:
		return storage.NewAzureStorage(storage.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
		}, filter)

	case output.StorageTypeHTTP:
		return storage.NewHTTPStorage(storage.HTTPConfig{
			BaseURL:   cfg.HTTP.BaseURL,
			IndexFile: cfg.HTTP.IndexFile,
			Timeout:   cfg.HTTP.Timeout,
			Username:  cfg.HTTP.Username,
			Password:  cfg.HTTP.Password,
		}, filter), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
