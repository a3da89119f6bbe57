// Package app wires the engine from a loaded configuration. Both entry
// points build the same object graph through Open.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"newsbot/internal/config"
	"newsbot/internal/infra/adapter/persistence/sqlite"
	"newsbot/internal/infra/db"
	"newsbot/internal/infra/fetcher"
	"newsbot/internal/infra/scraper"
	"newsbot/internal/usecase/article"
	"newsbot/internal/usecase/fetch"
	"newsbot/internal/usecase/source"
)

// App holds the wired components.
type App struct {
	Config  *config.Config
	Catalog *source.Catalog
	Store   *sqlite.Store
	Fetch   *fetch.Service
	Reader  *article.Service
	Logger  *slog.Logger
}

// Open builds the catalog, opens the cache and constructs the services.
// Cached rows of sources that are no longer enabled are removed.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	catalog := source.NewCatalog(cfg.SourceDefinitions(), logger)

	conn, warnings := db.ConnectionConfigFromEnv()
	for _, w := range warnings {
		logger.Warn("Configuration fallback applied", slog.String("warning", w))
	}

	store, err := sqlite.Open(ctx, cfg.Cache.Path, conn, cfg.StorePolicy())
	if err != nil {
		return nil, err
	}

	known := catalog.IDs()
	// 空のカタログでは全件削除になるため実行しない
	if len(known) > 0 {
		if removed, err := store.Prune(ctx, known); err != nil {
			logger.Warn("prune of removed sources failed", slog.Any("error", err))
		} else if removed > 0 {
			logger.Info("removed articles of unknown sources", slog.Int64("removed", removed))
		}
	}

	extractor, err := fetcher.NewReadabilityExtractor(cfg.ExtractorConfig(), logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("content extractor: %w", err)
	}

	// 試行ごとのタイムアウトは ctx 側で掛けるので、クライアント側は上限の保険
	httpClient := scraper.NewHTTPClient(cfg.Fetch.PerSourceTimeout * 2)
	client := scraper.NewHTTPFeedClient(httpClient, scraper.WithClientLogger(logger))

	svc := fetch.NewService(store, client, scraper.Parsers(cfg.Fetch.MaxEntries),
		fetch.WithLogger(logger),
		fetch.WithMaxArticlesPerSource(cfg.Cache.MaxArticlesPerSource))

	return &App{
		Config:  cfg,
		Catalog: catalog,
		Store:   store,
		Fetch:   svc,
		Reader:  &article.Service{Store: store, Extractor: extractor, Logger: logger},
		Logger:  logger,
	}, nil
}

// Refresh runs one refresh over the enabled sources under the configured deadline.
func (a *App) Refresh(ctx context.Context, force bool) (fetch.Report, error) {
	if d := a.Config.Fetch.Deadline; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	opts := a.Config.RefreshOptions()
	opts.Force = force
	return a.Fetch.Refresh(ctx, a.Catalog.EnabledSources(), opts)
}

// Close releases the cache database.
func (a *App) Close() error {
	return a.Store.Close()
}
