// Package crawl runs one search query end to end: launch, search page,
// detail pages and ingestion.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/octobees/leads-generator/worker/internal/browser"
	"github.com/octobees/leads-generator/worker/internal/entity"
	"github.com/octobees/leads-generator/worker/internal/spider"
)

// ErrEmptyQuery rejects a run without a query.
var ErrEmptyQuery = errors.New("query must not be empty")

// Session is a launched browser the run opens pages from.
type Session interface {
	spider.PageOpener
	Close() error
}

// LaunchFunc starts a browser session.
type LaunchFunc func(ctx context.Context) (Session, error)

// Ingester persists one listing.
type Ingester interface {
	Ingest(ctx context.Context, listing *entity.BusinessListing) error
}

// Notifier is told about every finished run.
type Notifier interface {
	Notify(ctx context.Context, report Report) error
}

// Options tunes detail dispatch and session state.
type Options struct {
	DetailConcurrency int
	DetailDelay       time.Duration
	CookiesFile       string
	Notifier          Notifier
}

// Controller starts runs. Concurrent runs are allowed and share nothing but
// the store and the registry.
type Controller struct {
	launch   LaunchFunc
	search   spider.SearchSpider
	detail   spider.DetailSpider
	ingester Ingester
	registry *Registry
	logger   *zap.Logger
	opts     Options

	baseCtx context.Context
	wg      sync.WaitGroup
	now     func() time.Time
	newID   func() string
}

// NewController wires a controller. baseCtx bounds background runs; cancel it
// to stop them on shutdown.
func NewController(baseCtx context.Context, launch LaunchFunc, search spider.SearchSpider, detail spider.DetailSpider, ingester Ingester, registry *Registry, logger *zap.Logger, opts Options) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = NewRegistry(0)
	}
	if opts.DetailConcurrency <= 0 {
		opts.DetailConcurrency = 1
	}
	return &Controller{
		launch:   launch,
		search:   search,
		detail:   detail,
		ingester: ingester,
		registry: registry,
		logger:   logger,
		opts:     opts,
		baseCtx:  baseCtx,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Registry exposes run reports.
func (c *Controller) Registry() *Registry { return c.registry }

// Start launches the browser synchronously, so a launch failure is returned
// before the run is registered or anything is stored, then runs the crawl in the background. An empty
// batchID gets a fresh one.
func (c *Controller) Start(ctx context.Context, query, batchID string) (string, error) {
	rc, session, err := c.prepare(ctx, query, batchID)
	if err != nil {
		return rc.BatchID, err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.execute(c.baseCtx, rc, session)
	}()
	return rc.BatchID, nil
}

// Run executes a crawl and blocks until it finishes.
func (c *Controller) Run(ctx context.Context, query, batchID string) (Report, error) {
	rc, session, err := c.prepare(ctx, query, batchID)
	if err != nil {
		return Report{BatchID: rc.BatchID, Query: rc.Query, Status: StatusFailed, Error: err.Error()}, err
	}
	report := c.execute(ctx, rc, session)
	if report.Status == StatusFailed {
		return report, errors.New(report.Error)
	}
	return report, nil
}

// Wait blocks until background runs have finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) prepare(ctx context.Context, query, batchID string) (spider.RunContext, Session, error) {
	query = strings.TrimSpace(query)
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		batchID = c.newID()
	}
	rc := spider.RunContext{
		BatchID: batchID,
		Query:   query,
		Logger:  c.logger.With(zap.String("batch_id", batchID), zap.String("query", query)),
	}
	if query == "" {
		return rc, nil, ErrEmptyQuery
	}

	session, err := c.launch(ctx)
	if err != nil {
		rc.Logger.Error("run failed to start", zap.Error(err))
		return rc, nil, fmt.Errorf("launch browser: %w", err)
	}
	c.registry.begin(Report{BatchID: batchID, Query: query, Status: StatusRunning, StartedAt: c.now().UTC()})
	rc.Logger.Info("run started")
	return rc, session, nil
}

func (c *Controller) execute(ctx context.Context, rc spider.RunContext, session Session) Report {
	defer session.Close()

	search := c.search
	detail := c.detail
	if cookies, err := browser.LoadCookies(c.opts.CookiesFile); err != nil {
		rc.Logger.Warn("cookies unavailable, continuing without session", zap.Error(err))
	} else {
		search.Cookies = cookies
		detail.Cookies = cookies
	}

	result, err := c.searchPage(ctx, rc, session, &search)
	if err != nil {
		c.finish(rc.BatchID, err)
		rc.Logger.Error("search failed", zap.Error(err))
		report, _ := c.registry.Get(rc.BatchID)
		c.notify(ctx, rc, report)
		return report
	}

	c.registry.update(rc.BatchID, func(r *Report) {
		r.Emitted = len(result.Listings)
		r.DetailLinks = len(result.DetailLinks)
		r.Diagnostics += len(result.Diagnostics)
	})

	for i := range result.Listings {
		c.ingest(ctx, rc, &result.Listings[i])
	}
	c.fetchDetails(ctx, rc, session, &detail, result.DetailLinks)

	c.finish(rc.BatchID, ctx.Err())
	report, _ := c.registry.Get(rc.BatchID)
	rc.Logger.Info("run finished",
		zap.String("status", report.Status),
		zap.Int("ingested", report.Ingested),
		zap.Int("detail_failed", report.DetailFailed),
		zap.Int("ingest_failed", report.IngestFailed),
	)
	c.notify(ctx, rc, report)
	return report
}

func (c *Controller) notify(ctx context.Context, rc spider.RunContext, report Report) {
	if c.opts.Notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := c.opts.Notifier.Notify(notifyCtx, report); err != nil {
		rc.Logger.Warn("run callback failed", zap.Error(err))
	}
}

func (c *Controller) searchPage(ctx context.Context, rc spider.RunContext, session Session, search *spider.SearchSpider) (spider.SearchResult, error) {
	page, err := session.NewPage(ctx)
	if err != nil {
		return spider.SearchResult{}, fmt.Errorf("open search page: %w", err)
	}
	defer page.Close()
	return search.Run(ctx, rc, page)
}

// fetchDetails resolves links with bounded concurrency and a minimum spacing
// between dispatches. Completion order, and so ingestion order, is not the
// discovery order.
func (c *Controller) fetchDetails(ctx context.Context, rc spider.RunContext, session Session, detail *spider.DetailSpider, links []string) {
	if len(links) == 0 {
		return
	}

	limit := rate.Inf
	if c.opts.DetailDelay > 0 {
		limit = rate.Every(c.opts.DetailDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	var g errgroup.Group
	g.SetLimit(c.opts.DetailConcurrency)

	for _, link := range links {
		if err := limiter.Wait(ctx); err != nil {
			rc.Logger.Warn("detail dispatch stopped", zap.Error(err))
			break
		}
		g.Go(func() error {
			listing, diags, err := detail.Fetch(ctx, rc, session, link)
			c.registry.update(rc.BatchID, func(r *Report) { r.Diagnostics += len(diags) })
			if err != nil {
				c.registry.update(rc.BatchID, func(r *Report) { r.DetailFailed++ })
				rc.Logger.Warn("detail page dropped", zap.String("url", link), zap.Error(err))
				return nil
			}
			c.ingest(ctx, rc, listing)
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Controller) ingest(ctx context.Context, rc spider.RunContext, listing *entity.BusinessListing) {
	if err := c.ingester.Ingest(ctx, listing); err != nil {
		c.registry.update(rc.BatchID, func(r *Report) { r.IngestFailed++ })
		rc.Logger.Warn("ingest failed", zap.String("name", listing.Name), zap.Error(err))
		return
	}
	c.registry.update(rc.BatchID, func(r *Report) { r.Ingested++ })
}

func (c *Controller) finish(batchID string, err error) {
	finished := c.now().UTC()
	c.registry.update(batchID, func(r *Report) {
		r.FinishedAt = &finished
		r.Status = StatusCompleted
		if err != nil {
			r.Status = StatusFailed
			r.Error = err.Error()
		}
	})
}
