package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// Page is a single browser tab.
type Page struct {
	ctx        context.Context
	cancel     context.CancelFunc
	navTimeout time.Duration
	opTimeout  time.Duration
}

func newPage(ctx context.Context, cancel context.CancelFunc, navTimeout, opTimeout time.Duration) *Page {
	if navTimeout <= 0 {
		navTimeout = DefaultNavigationTimeout
	}
	if opTimeout <= 0 {
		opTimeout = DefaultOperationTimeout
	}
	return &Page{ctx: ctx, cancel: cancel, navTimeout: navTimeout, opTimeout: opTimeout}
}

// opCtx derives a context for one operation on the tab. It is cancelled when
// the caller's ctx is done or the optional timeout elapses.
func (p *Page) opCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(p.ctx)
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		base := cancel
		cancel = func() {
			cancelTimeout()
			base()
		}
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := p.opCtx(ctx, timeout)
	defer cancel()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := runCtx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %v", ctxErr, err)
		}
		return err
	}
	return nil
}

// Navigate loads url and waits for the document body.
func (p *Page) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, p.navTimeout, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
}

// SetCookies seeds saved session cookies into the tab's browser context.
func (p *Page) SetCookies(ctx context.Context, cookies []Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	return p.run(ctx, p.opTimeout, setCookies(cookies))
}

// WaitAny waits until an element matching selector is present. The selector
// may be a comma-separated list, in which case any match ends the wait.
// A zero timeout falls back to the page's operation bound.
func (p *Page) WaitAny(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = p.opTimeout
	}
	return p.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
}

// Count returns the number of elements matching selector.
func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	var n int
	script := fmt.Sprintf(`document.querySelectorAll(%q).length`, selector)
	if err := p.run(ctx, p.opTimeout, chromedp.Evaluate(script, &n)); err != nil {
		return 0, err
	}
	return n, nil
}

const clickScript = `(() => {
	const selectors = %s;
	for (const sel of selectors) {
		const el = document.querySelector(sel);
		if (el) { el.click(); return true; }
	}
	const text = %q;
	if (text) {
		for (const el of document.querySelectorAll('button, [role="button"], a')) {
			if ((el.innerText || '').trim() === text) { el.click(); return true; }
		}
	}
	return false;
})()`

// ClickFirst clicks the first element matching one of selectors, or failing
// that, the first button whose visible text equals text.
func (p *Page) ClickFirst(ctx context.Context, selectors []string, text string) (bool, error) {
	var clicked bool
	script := fmt.Sprintf(clickScript, jsStringArray(selectors), text)
	if err := p.run(ctx, p.opTimeout, chromedp.Evaluate(script, &clicked)); err != nil {
		return false, err
	}
	return clicked, nil
}

// ScrollContainer scrolls the first element matching selector by px. It
// reports false when no such element exists.
func (p *Page) ScrollContainer(ctx context.Context, selector string, px int) (bool, error) {
	var scrolled bool
	script := fmt.Sprintf(`(() => { const el = document.querySelector(%q); if (!el) return false; el.scrollBy(0, %d); return true; })()`, selector, px)
	if err := p.run(ctx, p.opTimeout, chromedp.Evaluate(script, &scrolled)); err != nil {
		return false, err
	}
	return scrolled, nil
}

// ScrollViewport presses End and scrolls the window, for layouts where the
// result list has no dedicated container.
func (p *Page) ScrollViewport(ctx context.Context, px int) error {
	return p.run(ctx, p.opTimeout,
		chromedp.KeyEvent(kb.End),
		chromedp.Evaluate(fmt.Sprintf(`window.scrollBy(0, %d)`, px), nil),
	)
}

// Sleep pauses on the tab, honouring cancellation.
func (p *Page) Sleep(ctx context.Context, d time.Duration) error {
	return p.run(ctx, d+p.opTimeout, chromedp.Sleep(d))
}

// HTML returns the rendered document markup.
func (p *Page) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, p.opTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Title returns the document title.
func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.run(ctx, p.opTimeout, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

// URL returns the current location, which may differ from the navigated URL
// after redirects.
func (p *Page) URL(ctx context.Context) (string, error) {
	var location string
	if err := p.run(ctx, p.opTimeout, chromedp.Location(&location)); err != nil {
		return "", err
	}
	return location, nil
}

// Screenshot captures the viewport as PNG.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, p.opTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close closes the tab and its browser context.
func (p *Page) Close() error {
	p.cancel()
	return nil
}

func jsStringArray(values []string) string {
	out := "["
	for i, v := range values {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%q", v)
	}
	return out + "]"
}
