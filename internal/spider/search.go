package spider

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/octobees/leads-generator/worker/internal/browser"
	"github.com/octobees/leads-generator/worker/internal/entity"
	"github.com/octobees/leads-generator/worker/internal/extract"
)

type searchState int

const (
	stateNavigate searchState = iota
	stateConsentCheck
	stateWaitForResults
	stateScrollLoop
	stateExtract
	stateDone
)

func (s searchState) String() string {
	switch s {
	case stateNavigate:
		return "navigate"
	case stateConsentCheck:
		return "consent_check"
	case stateWaitForResults:
		return "wait_for_results"
	case stateScrollLoop:
		return "scroll_loop"
	case stateExtract:
		return "extract"
	case stateDone:
		return "done"
	}
	return "unknown"
}

// SearchSelectors locate the interactive parts of the search UI.
type SearchSelectors struct {
	ResultsReady   string
	Feed           string
	ConsentButtons []string
	ConsentText    string
	List           ListSelectors
	Single         SingleResultSelectors
}

// DefaultSearchSelectors targets the map search UI.
func DefaultSearchSelectors() SearchSelectors {
	return SearchSelectors{
		ResultsReady: "div[role='feed'], a[href*='/maps/place/']",
		Feed:         "div[role='feed']",
		ConsentButtons: []string{
			"button[aria-label='Accept all']",
			"form[action*='consent'] button[aria-label*='Accept']",
		},
		ConsentText: "Accept all",
		List:        DefaultListSelectors(),
		Single:      DefaultSingleResultSelectors(),
	}
}

// SearchResult is everything one search page produced.
type SearchResult struct {
	Listings    []entity.BusinessListing
	DetailLinks []string
	Diagnostics extract.Diagnostics
}

// SearchSpider drives a single search session sequentially.
type SearchSpider struct {
	BaseURL          string
	Language         string
	Selectors        SearchSelectors
	ResultsTimeout   time.Duration
	ScrollIterations int
	ScrollPause      time.Duration
	ScrollStep       int
	ConsentPause     time.Duration
	Cookies          []browser.Cookie
	Retry            RetryPolicy
	Diagnostics      *DiagnosticsWriter
}

// BuildSearchURL appends the escaped query to base and pins the UI language.
func BuildSearchURL(base, query, language string) string {
	if base == "" {
		base = "https://www.google.com/maps/search/"
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u := base + url.PathEscape(strings.TrimSpace(query))
	if language != "" {
		u += "?hl=" + url.QueryEscape(language)
	}
	return u
}

// Run walks the search page through navigate, consent, wait, scroll and
// extract. Only a failed navigation or a cancelled context ends it with an
// error; every other problem is recorded in the result's diagnostics.
func (s *SearchSpider) Run(ctx context.Context, rc RunContext, page Page) (SearchResult, error) {
	var (
		result    SearchResult
		searchURL = BuildSearchURL(s.BaseURL, rc.Query, s.Language)
		log       = rc.logger()
		state     = stateNavigate
	)

	for state != stateDone {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		log.Debug("search state", zap.Stringer("state", state))

		switch state {
		case stateNavigate:
			seedCookies(ctx, rc, page, s.Cookies)
			if err := s.Retry.navigate(ctx, rc, page, searchURL); err != nil {
				return result, fmt.Errorf("navigate search %q: %w", searchURL, err)
			}
			state = stateConsentCheck

		case stateConsentCheck:
			s.acceptConsent(ctx, rc, page, &result.Diagnostics)
			state = stateWaitForResults

		case stateWaitForResults:
			if err := page.WaitAny(ctx, s.Selectors.ResultsReady, s.ResultsTimeout); err != nil {
				if ctx.Err() != nil {
					return result, ctx.Err()
				}
				waitErr := waitError(ctx, "results", err)
				result.Diagnostics.Add("results", "wait", waitErr)
				log.Warn("results did not appear, extracting what is present", zap.Error(waitErr))
			}
			state = stateScrollLoop

		case stateScrollLoop:
			if err := s.scroll(ctx, rc, page); err != nil {
				return result, err
			}
			state = stateExtract

		case stateExtract:
			s.extract(ctx, rc, page, searchURL, &result)
			state = stateDone
		}
	}

	log.Info("search page processed",
		zap.Int("listings", len(result.Listings)),
		zap.Int("detail_links", len(result.DetailLinks)),
		zap.Int("diagnostics", len(result.Diagnostics)),
	)
	return result, nil
}

func (s *SearchSpider) acceptConsent(ctx context.Context, rc RunContext, page Page, diags *extract.Diagnostics) {
	clicked, err := page.ClickFirst(ctx, s.Selectors.ConsentButtons, s.Selectors.ConsentText)
	if err != nil {
		diags.Add("consent", "click", fmt.Errorf("%w: %v", ErrConsent, err))
		rc.logger().Debug("consent click failed", zap.Error(err))
		return
	}
	if !clicked {
		return
	}
	rc.logger().Info("consent screen accepted")
	if s.ConsentPause > 0 {
		_ = page.Sleep(ctx, s.ConsentPause)
	}
}

// scroll always runs the configured number of iterations; it does not stop
// early when no new results appear.
func (s *SearchSpider) scroll(ctx context.Context, rc RunContext, page Page) error {
	step := s.ScrollStep
	if step <= 0 {
		step = 1000
	}
	log := rc.logger()

	for i := 0; i < s.ScrollIterations; i++ {
		scrolled, err := page.ScrollContainer(ctx, s.Selectors.Feed, step)
		if err != nil || !scrolled {
			if err := page.ScrollViewport(ctx, step); err != nil {
				log.Debug("viewport scroll failed", zap.Int("iteration", i), zap.Error(err))
			}
		}
		if err := page.Sleep(ctx, s.ScrollPause); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if n, err := page.Count(ctx, s.Selectors.ResultsReady); err == nil {
			log.Debug("scrolled results", zap.Int("iteration", i+1), zap.Int("visible", n))
		}
	}
	return nil
}

func (s *SearchSpider) extract(ctx context.Context, rc RunContext, page Page, searchURL string, result *SearchResult) {
	log := rc.logger()

	html, err := page.HTML(ctx)
	if err != nil {
		result.Diagnostics.Add("page", "html", err)
		log.Warn("reading search page failed", zap.Error(err))
		return
	}
	sourceURL := searchURL
	if current, err := page.URL(ctx); err == nil && current != "" {
		sourceURL = current
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		result.Diagnostics.Add("page", "parse", err)
		return
	}

	list := ExtractListings(doc, s.Selectors.List, sourceURL, rc.BatchID)
	result.Diagnostics.Merge(list.Diagnostics)
	if list.Items > 0 {
		result.Listings = list.Listings
		result.DetailLinks = list.DetailLinks
		log.Debug("list path", zap.Int("items", list.Items))
		return
	}

	listing, diags := ExtractSingleResult(doc, s.Selectors.Single, sourceURL, rc.BatchID)
	result.Diagnostics.Merge(diags)
	if listing != nil {
		result.Listings = append(result.Listings, *listing)
		return
	}

	log.Warn("no listing found on search page", zap.String("url", sourceURL))
	if s.Diagnostics != nil {
		shot, _ := page.Screenshot(ctx)
		s.Diagnostics.Dump(rc, "search", html, shot)
	}
}
