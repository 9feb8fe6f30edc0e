// Package browser adapts chromedp to the page operations the spiders need.
package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ErrLaunch reports that the browser process could not be started.
var ErrLaunch = errors.New("browser launch failed")

// DefaultUserAgents is the rotation used when none is configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:109.0) Gecko/20100101 Firefox/119.0",
}

var chromeBinaryNames = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
}

// Default bounds on tab operations. A hung renderer otherwise blocks a
// worker until the whole run is cancelled.
const (
	DefaultNavigationTimeout = 60 * time.Second
	DefaultOperationTimeout  = 15 * time.Second
)

// Options configures a browser launch.
type Options struct {
	Headless   bool
	ExecPath   string
	UserAgents []string
	Logger     *zap.Logger

	// NavigationTimeout bounds a page load. Zero uses DefaultNavigationTimeout.
	NavigationTimeout time.Duration
	// OperationTimeout bounds script evaluation, scrolling and markup reads.
	// Zero uses DefaultOperationTimeout.
	OperationTimeout time.Duration
}

// Browser owns one Chrome process. Pages opened from it get their own
// browser context so cookies and storage are not shared between them.
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	cancelAlloc context.CancelFunc
	userAgent   string
	logger      *zap.Logger
	navTimeout  time.Duration
	opTimeout   time.Duration
}

// Launch starts Chrome and waits until it accepts commands, so a broken
// installation fails here rather than halfway through a run.
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ua := PickUserAgent(opts.UserAgents)
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:], StealthExecAllocatorOptions(opts.Headless)...)
	execPath := opts.ExecPath
	if execPath == "" {
		execPath = findChromePath()
	}
	if execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(execPath))
	}
	allocOpts = append(allocOpts, chromedp.UserAgent(ua))

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug("chromedp", zap.String("msg", fmt.Sprintf(format, args...)))
		}),
	)

	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		cancelAlloc()
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	logger.Info("browser launched",
		zap.Bool("headless", opts.Headless),
		zap.String("user_agent", ua),
	)

	return &Browser{
		ctx:         browserCtx,
		cancel:      cancel,
		cancelAlloc: cancelAlloc,
		userAgent:   ua,
		logger:      logger,
		navTimeout:  opts.NavigationTimeout,
		opTimeout:   opts.OperationTimeout,
	}, nil
}

// UserAgent returns the user agent chosen for this browser.
func (b *Browser) UserAgent() string { return b.userAgent }

// NewPage opens a fresh tab in an isolated browser context.
func (b *Browser) NewPage(ctx context.Context) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(b.ctx, chromedp.WithNewBrowserContext())
	if err := chromedp.Run(tabCtx, InjectStealthScript()); err != nil {
		cancel()
		return nil, fmt.Errorf("open page: %w", err)
	}
	return newPage(tabCtx, cancel, b.navTimeout, b.opTimeout), nil
}

// Close shuts the browser down.
func (b *Browser) Close() error {
	b.cancel()
	b.cancelAlloc()
	return nil
}

// PickUserAgent returns a random entry from agents, or from DefaultUserAgents
// when agents is empty.
func PickUserAgent(agents []string) string {
	if len(agents) == 0 {
		agents = DefaultUserAgents
	}
	return agents[rand.IntN(len(agents))]
}

func findChromePath() string {
	for _, name := range chromeBinaryNames {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
