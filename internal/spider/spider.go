// Package spider drives the map search UI and listing detail pages and turns
// their rendered markup into BusinessListing records.
package spider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/octobees/leads-generator/worker/internal/browser"
)

var (
	ErrNavigationTimeout = errors.New("navigation timeout")
	ErrConsent           = errors.New("consent handling failed")
	ErrStructuredData    = errors.New("structured data parse error")
	ErrFieldNotFound     = errors.New("field not found")
	ErrDetailPage        = errors.New("detail page failed")
)

// Page is the subset of browser page operations the spiders rely on.
type Page interface {
	Navigate(ctx context.Context, url string) error
	SetCookies(ctx context.Context, cookies []browser.Cookie) error
	ClickFirst(ctx context.Context, selectors []string, text string) (bool, error)
	WaitAny(ctx context.Context, selector string, timeout time.Duration) error
	Count(ctx context.Context, selector string) (int, error)
	ScrollContainer(ctx context.Context, selector string, px int) (bool, error)
	ScrollViewport(ctx context.Context, px int) error
	Sleep(ctx context.Context, d time.Duration) error
	HTML(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// PageOpener hands out isolated pages.
type PageOpener interface {
	NewPage(ctx context.Context) (Page, error)
}

// RunContext carries the identity of one run through every call, so two runs
// in the same process never share state.
type RunContext struct {
	BatchID string
	Query   string
	Logger  *zap.Logger
}

func (rc RunContext) logger() *zap.Logger {
	if rc.Logger == nil {
		return zap.NewNop()
	}
	return rc.Logger
}

// RetryPolicy bounds navigation retries. The zero value performs a single
// attempt.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (p RetryPolicy) navigate(ctx context.Context, rc RunContext, page Page, url string) error {
	if p.MaxRetries <= 0 {
		return page.Navigate(ctx, url)
	}

	expo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		expo.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		expo.MaxInterval = p.MaxInterval
	}
	expo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(p.MaxRetries)), ctx)
	operation := func() error {
		err := page.Navigate(ctx, url)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		rc.logger().Warn("navigation failed, retrying",
			zap.String("url", url),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	return backoff.RetryNotify(operation, policy, notify)
}

// waitError classifies a failed element wait. Cancellation of the caller's
// context is returned as is; anything else counts as a navigation timeout.
func waitError(ctx context.Context, what string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %s: %v", ErrNavigationTimeout, what, err)
}

func seedCookies(ctx context.Context, rc RunContext, page Page, cookies []browser.Cookie) {
	if len(cookies) == 0 {
		return
	}
	if err := page.SetCookies(ctx, cookies); err != nil {
		rc.logger().Warn("seeding cookies failed", zap.Error(err))
	}
}
