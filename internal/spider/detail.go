package spider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/octobees/leads-generator/worker/internal/browser"
	"github.com/octobees/leads-generator/worker/internal/entity"
	"github.com/octobees/leads-generator/worker/internal/extract"
	"github.com/octobees/leads-generator/worker/internal/social"
)

const detailHeading = "h1"

var (
	detailAddressStrategies = []extract.Strategy{
		extract.Text(`button[data-item-id="address"]`, extract.CleanAddress),
		extract.Attr(`button[data-item-id="address"]`, "aria-label", extract.CleanAddress),
	}
	detailPhoneStrategies = []extract.Strategy{
		extract.Text(`button[data-item-id^="phone"]`, extract.CleanPhone),
		extract.Attr(`button[data-item-id^="phone"]`, "aria-label", extract.CleanPhone),
	}
	detailWebsiteStrategies = []extract.Strategy{
		extract.Attr(`a[data-item-id="authority"]`, "href", social.UnwrapRedirect),
	}
	detailEmailStrategies = []extract.Strategy{
		extract.Attr(`a[href^="mailto:"]`, "href", extract.EmailFromMailto),
		extract.Scan("email-control", `[data-item-id*="email"]`, extract.EmailFromText),
		extract.Attr(`[data-item-id*="email"]`, "aria-label", extract.EmailFromText),
	}
	detailRatingStrategies = []extract.Strategy{
		extract.Attr(`span[role="img"][aria-label*="stars"]`, "aria-label", extract.ParseRatingLabel),
		extract.Text("div.TIHn2", extract.MatchRating),
		extract.Scan("bare-rating", "span", bareRating),
	}
	detailReviewStrategies = []extract.Strategy{
		extract.Attr(`button[aria-label*="reviews"]`, "aria-label", extract.CleanReviews),
		extract.Text(`button[aria-label*="reviews"]`, extract.CleanReviews),
	}
	detailCategoryStrategies = []extract.Strategy{
		extract.Text(`button[jsaction*="category"]`, extract.CollapseSpace),
		extract.Text("button.DkEaL", extract.CollapseSpace),
	}
)

func bareRating(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > 8 || !extract.IsBareRating(text) {
		return ""
	}
	return text
}

// ExtractDetail builds a record from a rendered detail page. Every field is
// resolved by its own cascade; a page with only a heading still yields a
// record. It returns nil when the heading is missing.
func ExtractDetail(doc *goquery.Document, sourceURL, batchID string) (*entity.BusinessListing, extract.Diagnostics) {
	var diags extract.Diagnostics
	resolve := func(field string, strategies ...extract.Strategy) extract.Result {
		res := extract.Cascade(field, doc.Selection, strategies...)
		if !res.Found() {
			diags.Merge(res.Errors)
		}
		return res
	}

	name := resolve("name", extract.Text(detailHeading, extract.CollapseSpace))
	if !name.Found() {
		diags.Add("name", "detail", ErrDetailPage)
		return nil, diags
	}

	listing := &entity.BusinessListing{
		Name:         name.Value,
		Address:      resolve("address", detailAddressStrategies...).Ptr(),
		Phone:        resolve("phone", detailPhoneStrategies...).Ptr(),
		Email:        resolve("email", detailEmailStrategies...).Ptr(),
		Rating:       resolve("rating", detailRatingStrategies...).Ptr(),
		ReviewsCount: resolve("reviews_count", detailReviewStrategies...).Ptr(),
		Category:     resolve("category", detailCategoryStrategies...).Ptr(),
		SocialLinks:  map[string]string{},
		BatchID:      batchID,
		SourceURL:    sourceURL,
	}

	website := resolve("website", detailWebsiteStrategies...)
	social.Assign(listing.SocialLinks, &listing.Website, website.Value)
	scanSocialAnchors(doc.Selection, listing.SocialLinks)

	return listing, diags
}

// scanSocialAnchors adds profile links found anywhere on the page. The first
// anchor per platform wins and platforms already set are left alone.
func scanSocialAnchors(sel *goquery.Selection, links map[string]string) {
	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(social.UnwrapRedirect(href))
		if href == "" {
			return
		}
		lower := strings.ToLower(href)
		for _, d := range social.ScanDomains {
			if !strings.Contains(lower, d.Domain) {
				continue
			}
			if _, taken := links[string(d.Platform)]; !taken {
				links[string(d.Platform)] = href
			}
			return
		}
	})
}

// DetailSpider resolves one listing URL into a record on its own page.
type DetailSpider struct {
	Timeout     time.Duration
	Cookies     []browser.Cookie
	Retry       RetryPolicy
	Diagnostics *DiagnosticsWriter
}

// Fetch opens an isolated page for listingURL and extracts it. A missing
// heading or failed navigation drops the record with an ErrDetailPage error;
// field-level failures only show up in the returned diagnostics.
func (s *DetailSpider) Fetch(ctx context.Context, rc RunContext, opener PageOpener, listingURL string) (*entity.BusinessListing, extract.Diagnostics, error) {
	log := rc.logger().With(zap.String("url", listingURL))
	var diags extract.Diagnostics

	page, err := opener.NewPage(ctx)
	if err != nil {
		return nil, diags, fmt.Errorf("%w: open page: %v", ErrDetailPage, err)
	}
	defer page.Close()

	seedCookies(ctx, rc, page, s.Cookies)

	if err := s.Retry.navigate(ctx, rc, page, listingURL); err != nil {
		diags.Add("page", "navigate", err)
		return nil, diags, fmt.Errorf("%w: navigate: %v", ErrDetailPage, err)
	}

	if err := page.WaitAny(ctx, detailHeading, s.Timeout); err != nil {
		waitErr := waitError(ctx, "heading", err)
		diags.Add("name", "wait:"+detailHeading, waitErr)
		if ctx.Err() == nil {
			s.dump(ctx, rc, page, "detail")
		}
		return nil, diags, fmt.Errorf("%w: %w", ErrDetailPage, waitErr)
	}

	html, err := page.HTML(ctx)
	if err != nil {
		diags.Add("page", "html", err)
		return nil, diags, fmt.Errorf("%w: read html: %v", ErrDetailPage, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, diags, fmt.Errorf("%w: parse html: %v", ErrDetailPage, err)
	}

	listing, fieldDiags := ExtractDetail(doc, listingURL, rc.BatchID)
	diags.Merge(fieldDiags)
	if listing == nil {
		return nil, diags, fmt.Errorf("%w: heading empty", ErrDetailPage)
	}

	log.Debug("detail extracted",
		zap.String("name", listing.Name),
		zap.Strings("missing", diags.Fields()),
	)
	return listing, diags, nil
}

func (s *DetailSpider) dump(ctx context.Context, rc RunContext, page Page, label string) {
	if s.Diagnostics == nil {
		return
	}
	html, _ := page.HTML(ctx)
	shot, _ := page.Screenshot(ctx)
	s.Diagnostics.Dump(rc, label, html, shot)
}
