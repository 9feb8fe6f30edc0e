package spider

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/octobees/leads-generator/worker/internal/browser"
)

type fakePage struct {
	mu sync.Mutex

	html        string
	url         string
	navigateErr []error
	waitErr     error
	clickResult bool
	clickErr    error
	hasFeed     bool

	navigations     []string
	cookies         []browser.Cookie
	containerScroll int
	viewportScroll  int
	sleeps          int
	closed          bool
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigations = append(p.navigations, url)
	if len(p.navigateErr) > 0 {
		err := p.navigateErr[0]
		p.navigateErr = p.navigateErr[1:]
		return err
	}
	return nil
}

func (p *fakePage) SetCookies(_ context.Context, cookies []browser.Cookie) error {
	p.cookies = append(p.cookies, cookies...)
	return nil
}

func (p *fakePage) ClickFirst(context.Context, []string, string) (bool, error) {
	return p.clickResult, p.clickErr
}

func (p *fakePage) WaitAny(context.Context, string, time.Duration) error {
	return p.waitErr
}

func (p *fakePage) Count(context.Context, string) (int, error) { return 0, nil }

func (p *fakePage) ScrollContainer(context.Context, string, int) (bool, error) {
	if !p.hasFeed {
		return false, nil
	}
	p.containerScroll++
	return true, nil
}

func (p *fakePage) ScrollViewport(context.Context, int) error {
	p.viewportScroll++
	return nil
}

func (p *fakePage) Sleep(context.Context, time.Duration) error {
	p.sleeps++
	return nil
}

func (p *fakePage) HTML(context.Context) (string, error) { return p.html, nil }

func (p *fakePage) URL(context.Context) (string, error) { return p.url, nil }

func (p *fakePage) Screenshot(context.Context) ([]byte, error) { return []byte("png"), nil }

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

type fakeOpener struct {
	page *fakePage
	err  error
}

func (o *fakeOpener) NewPage(context.Context) (Page, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.page, nil
}

var errTimeout = errors.New("waiting for selector: deadline")
