// Package app wires configuration into a store and a crawl controller for
// both the HTTP worker and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/octobees/leads-generator/worker/internal/browser"
	"github.com/octobees/leads-generator/worker/internal/callback"
	"github.com/octobees/leads-generator/worker/internal/config"
	"github.com/octobees/leads-generator/worker/internal/crawl"
	"github.com/octobees/leads-generator/worker/internal/database"
	"github.com/octobees/leads-generator/worker/internal/pipeline"
	"github.com/octobees/leads-generator/worker/internal/repository"
	"github.com/octobees/leads-generator/worker/internal/spider"
)

// App holds the long-lived components of a process.
type App struct {
	Controller *crawl.Controller
	Places     repository.ListingsRepository

	closers []func()
}

// Build opens the configured store and assembles the controller. runCtx
// bounds background runs.
func Build(ctx, runCtx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	places, closeStore, err := OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	a := &App{Places: places, closers: []func(){closeStore}}

	opts := crawl.Options{
		DetailConcurrency: cfg.Crawl.DetailConcurrency,
		DetailDelay:       cfg.Crawl.DetailDelay,
		CookiesFile:       cfg.Crawl.CookiesFile,
	}
	if cfg.RunCallbackURL != "" {
		notifier, err := callback.NewClient(ctx, nil, cfg.RunCallbackURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("callback client: %w", err)
		}
		opts.Notifier = notifier
	}

	search, detail := Spiders(cfg.Crawl)
	launch := crawl.ChromeLauncher(browser.Options{
		Headless:   cfg.Crawl.Headless,
		ExecPath:   cfg.Crawl.ChromePath,
		UserAgents: cfg.Crawl.UserAgents,
		Logger:     logger,

		NavigationTimeout: cfg.Crawl.NavigationTimeout,
	})
	ingester := pipeline.NewIngester(places, cfg.Crawl.PhoneRegion, logger)

	a.Controller = crawl.NewController(runCtx, launch, search, detail, ingester, crawl.NewRegistry(0), logger, opts)
	return a, nil
}

// Close releases the store.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Spiders maps crawl settings onto the search and detail spiders.
func Spiders(cfg config.CrawlConfig) (spider.SearchSpider, spider.DetailSpider) {
	var diagnostics *spider.DiagnosticsWriter
	if cfg.DiagnosticsDir != "" {
		diagnostics = &spider.DiagnosticsWriter{Dir: cfg.DiagnosticsDir}
	}
	retry := spider.RetryPolicy{
		MaxRetries:      cfg.NavigationRetries,
		InitialInterval: time.Second,
		MaxInterval:     10 * time.Second,
	}

	search := spider.SearchSpider{
		BaseURL:          cfg.SearchBaseURL,
		Language:         cfg.SearchLanguage,
		Selectors:        spider.DefaultSearchSelectors(),
		ResultsTimeout:   cfg.ResultsTimeout,
		ScrollIterations: cfg.ScrollIterations,
		ScrollPause:      cfg.ScrollPause,
		ConsentPause:     2 * time.Second,
		Retry:            retry,
		Diagnostics:      diagnostics,
	}
	detail := spider.DetailSpider{
		Timeout:     cfg.DetailTimeout,
		Retry:       retry,
		Diagnostics: diagnostics,
	}
	return search, detail
}

// OpenStore connects the listings store selected by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (repository.ListingsRepository, func(), error) {
	switch cfg.Driver {
	case config.StoreMemory:
		logger.Warn("using in-memory store; listings are lost on exit")
		return repository.NewMemoryListingsRepository(), func() {}, nil

	case config.StoreMongo:
		client, err := repository.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		collection := client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection)
		closeFn := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				logger.Warn("mongo disconnect failed", zap.Error(err))
			}
		}
		return repository.NewMongoListingsRepository(collection), closeFn, nil

	default:
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		if err := database.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repository.NewPGXListingsRepository(pool), pool.Close, nil
	}
}
