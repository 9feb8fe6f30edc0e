package crawl

import (
	"context"

	"github.com/octobees/leads-generator/worker/internal/browser"
	"github.com/octobees/leads-generator/worker/internal/spider"
)

type chromeSession struct {
	browser *browser.Browser
}

func (s chromeSession) NewPage(ctx context.Context) (spider.Page, error) {
	page, err := s.browser.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (s chromeSession) Close() error {
	return s.browser.Close()
}

// ChromeLauncher starts one Chrome process per run with opts.
func ChromeLauncher(opts browser.Options) LaunchFunc {
	return func(ctx context.Context) (Session, error) {
		b, err := browser.Launch(ctx, opts)
		if err != nil {
			return nil, err
		}
		return chromeSession{browser: b}, nil
	}
}
