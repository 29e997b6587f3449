package websearch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hession/webrag/internal/config"
	"github.com/hession/webrag/internal/logger"
	"github.com/hession/webrag/internal/retry"
	"github.com/hession/webrag/internal/tracer"
)

// NewProvider builds the provider named in cfg
func NewProvider(cfg config.SearchConfig) (Provider, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "serper", "":
		return NewSerperProvider(cfg.BaseURL, cfg.APIKey, cfg.UserAgent, timeout), nil
	case "searxng":
		return NewSearXNGProvider(ownBaseURL(cfg.BaseURL), cfg.APIKey, cfg.UserAgent, timeout), nil
	case "duckduckgo", "ddg":
		return NewDuckDuckGoProvider(ownBaseURL(cfg.BaseURL), cfg.UserAgent, timeout), nil
	default:
		return nil, fmt.Errorf("unknown search provider: %s", cfg.Provider)
	}
}

// ownBaseURL drops the serper default so other providers fall back to their own
func ownBaseURL(baseURL string) string {
	if strings.Contains(baseURL, "serper.dev") {
		return ""
	}
	return baseURL
}

// ClientOptions configure a Client
type ClientOptions struct {
	// MaxResults caps the returned list after filtering
	MaxResults int
	// RequestCount is the result-count hint sent to the provider
	RequestCount int
	// Blocklist holds domains whose hosts, and their subdomains, are dropped
	Blocklist []string
	Retry     retry.Policy
}

// Client wraps a Provider with retries, blocklist filtering and a result cap.
// Search never fails: an exhausted provider yields an empty list.
type Client struct {
	provider Provider
	opts     ClientOptions
	blocked  []string
	log      *logger.Logger
}

// NewClient creates a search client
func NewClient(provider Provider, opts ClientOptions, log *logger.Logger) *Client {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	if opts.RequestCount < opts.MaxResults {
		opts.RequestCount = opts.MaxResults
	}
	blocked := make([]string, 0, len(opts.Blocklist))
	for _, d := range opts.Blocklist {
		d = strings.Trim(strings.ToLower(strings.TrimSpace(d)), ".")
		if d != "" {
			blocked = append(blocked, d)
		}
	}
	log = log.With("search")
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = func(attempt int, err error, wait time.Duration) {
			log.Warn("Search attempt %d failed: %v, retrying in %s", attempt+1, err, wait)
		}
	}
	return &Client{provider: provider, opts: opts, blocked: blocked, log: log}
}

// Search returns up to MaxResults results in rank order, none of them blocked
func (c *Client) Search(ctx context.Context, query string) []Result {
	ctx, span := tracer.StartSpan(ctx, "search.query",
		tracer.StringAttr("search.provider", c.provider.Name()))

	var resp Response
	err := c.opts.Retry.Do(ctx, func(ctx context.Context, attempt int) error {
		var err error
		resp, err = c.provider.Search(ctx, query, c.opts.RequestCount)
		return err
	})
	if err != nil {
		c.log.Error("Search failed after retries: %v", err)
		tracer.Finish(span, err)
		return []Result{}
	}

	results := make([]Result, 0, c.opts.MaxResults)
	for _, r := range resp.Results {
		if len(results) >= c.opts.MaxResults {
			break
		}
		if c.Blocked(r.URL) {
			c.log.Debug("Skipping blocked result %s", r.URL)
			continue
		}
		results = append(results, r)
	}

	c.log.Info("Search returned %d results, kept %d", len(resp.Results), len(results))
	span.SetAttributes(tracer.IntAttr("search.results", len(results)))
	tracer.Finish(span, nil)
	return results
}

// Blocked reports whether rawURL's host is a blocked domain or one of its subdomains
func (c *Client) Blocked(rawURL string) bool {
	host := hostOf(rawURL)
	if host == "" {
		return false
	}
	for _, d := range c.blocked {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func hostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
}
