package scrape

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/hession/webrag/internal/logger"
)

// ChromeOptions configure the local headless browser backend
type ChromeOptions struct {
	// RemoteURL connects to an existing DevTools endpoint instead of launching Chrome
	RemoteURL string
	Headless  bool
	UserAgent string
	// Timeout bounds one page load
	Timeout time.Duration
	// RenderTimeout bounds the wait for the body after navigation
	RenderTimeout time.Duration
}

// Chrome renders pages in a local or remote Chrome through the DevTools
// protocol. The browser starts on first use and each scrape gets its own tab.
type Chrome struct {
	opts ChromeOptions
	log  *logger.Logger

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChrome creates a Chrome scraper without starting the browser
func NewChrome(opts ChromeOptions, log *logger.Logger) *Chrome {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = 15 * time.Second
	}
	return &Chrome{opts: opts, log: log.With("chrome")}
}

func (c *Chrome) Name() string {
	return "chrome"
}

// allocatorOptions returns the exec allocator flags for a local launch
func (c *Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := make([]chromedp.ExecAllocatorOption, len(chromedp.DefaultExecAllocatorOptions))
	copy(opts, chromedp.DefaultExecAllocatorOptions[:])
	opts = append(opts,
		chromedp.Flag("headless", c.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1280, 720),
	)
	if c.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.opts.UserAgent))
	}
	return opts
}

func (c *Chrome) browser() (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browserCtx != nil {
		return c.browserCtx, nil
	}

	var allocCtx context.Context
	if c.opts.RemoteURL != "" {
		allocCtx, c.allocCancel = chromedp.NewRemoteAllocator(context.Background(), c.opts.RemoteURL)
		c.log.Info("Connecting to remote browser %s", c.opts.RemoteURL)
	} else {
		allocCtx, c.allocCancel = chromedp.NewExecAllocator(context.Background(), c.allocatorOptions()...)
		c.log.Info("Launching local browser (headless=%v)", c.opts.Headless)
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run binds the browser to browserCtx, so it must not carry a timeout
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		c.allocCancel()
		c.allocCancel = nil
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	c.browserCtx, c.browserCancel = browserCtx, browserCancel
	return browserCtx, nil
}

func (c *Chrome) Scrape(ctx context.Context, url string) (string, error) {
	browserCtx, err := c.browser()
	if err != nil {
		return "", err
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()
	tabCtx, cancel := context.WithTimeout(tabCtx, c.opts.Timeout)
	defer cancel()

	// Propagate caller cancellation into the tab
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.ActionFunc(func(ctx context.Context) error {
			waitCtx, waitCancel := context.WithTimeout(ctx, c.opts.RenderTimeout)
			defer waitCancel()
			return chromedp.WaitReady("body", chromedp.ByQuery).Do(waitCtx)
		}),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", url, err)
	}
	return html, nil
}

// Close shuts the browser down
func (c *Chrome) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browserCancel != nil {
		c.browserCancel()
		c.browserCancel = nil
	}
	if c.allocCancel != nil {
		c.allocCancel()
		c.allocCancel = nil
	}
	c.browserCtx = nil
}
