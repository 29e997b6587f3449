// Package content fetches page text through the cache, a scraper and the
// extraction heuristics.
package content

import (
	"context"
	"errors"
	"time"

	"github.com/hession/webrag/internal/cache"
	"github.com/hession/webrag/internal/extract"
	"github.com/hession/webrag/internal/logger"
	"github.com/hession/webrag/internal/retry"
	"github.com/hession/webrag/internal/scrape"
	"github.com/hession/webrag/internal/tracer"
)

// ScrapePolicy retries throttled requests with exponential backoff and
// anything else after a fixed delay. Auth failures are never retried.
func ScrapePolicy(maxAttempts int, jitter, fixed time.Duration) retry.Policy {
	return retry.Policy{
		MaxAttempts: maxAttempts,
		Backoff: retry.When(
			func(err error) bool { return errors.Is(err, scrape.ErrRateLimited) },
			retry.Exponential(jitter),
			retry.Fixed(fixed),
		),
	}
}

// Fetcher returns usable text for a URL
type Fetcher struct {
	store   cache.Store
	scraper scrape.Scraper
	policy  retry.Policy
	opts    extract.Options
	log     *logger.Logger
}

// NewFetcher creates a fetcher. policy usually comes from ScrapePolicy.
func NewFetcher(store cache.Store, scraper scrape.Scraper, policy retry.Policy, opts extract.Options, log *logger.Logger) *Fetcher {
	f := &Fetcher{store: store, scraper: scraper, policy: policy, opts: opts, log: log.With("fetch")}
	if f.policy.OnRetry == nil {
		f.policy.OnRetry = func(attempt int, err error, wait time.Duration) {
			f.log.Warn("Scrape attempt %d failed: %v, retrying in %s", attempt+1, err, wait)
		}
	}
	return f
}

// Fetch returns the text for rawURL. Cached text is returned without any
// network call. An empty string with a nil error means the page had nothing
// usable. A *scrape.AuthError means the scraping account was rejected; its
// message is a user-facing diagnostic.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "content.fetch", tracer.StringAttr("url", rawURL))

	key := cache.KeyForURL(rawURL)
	text, ok, err := f.store.Get(key)
	if err != nil {
		f.log.Warn("Cache lookup failed for %s: %v", rawURL, err)
	}
	if ok {
		f.log.Info("Cache hit for %s: %d characters", rawURL, len(text))
		span.SetAttributes(tracer.BoolAttr("cache.hit", true))
		tracer.Finish(span, nil)
		return text, nil
	}
	span.SetAttributes(tracer.BoolAttr("cache.hit", false))

	target := cache.NormalizeURL(rawURL)
	var html string
	err = f.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		var scrapeErr error
		html, scrapeErr = f.scraper.Scrape(ctx, target)
		if scrape.IsAuth(scrapeErr) {
			return retry.Permanent(scrapeErr)
		}
		return scrapeErr
	})
	if err != nil {
		if scrape.IsAuth(err) {
			f.log.Error("%v", err)
			tracer.Finish(span, err)
			return "", err
		}
		f.log.Warn("Giving up on %s: %v", target, err)
		tracer.Finish(span, nil)
		return "", nil
	}

	page := extract.Text(html, f.opts)
	switch page.Reason {
	case extract.ReasonPaywall:
		f.log.Info("Paywall at %s (body %d characters)", target, page.BodyChars)
	case extract.ReasonTooShort, extract.ReasonParse:
		f.log.Info("Insufficient content extracted from %s (%s)", target, page.Reason)
	}
	if page.Text == "" {
		span.SetAttributes(tracer.StringAttr("extract.reason", string(page.Reason)))
		tracer.Finish(span, nil)
		return "", nil
	}

	if err := f.store.Put(key, page.Text); err != nil {
		f.log.Warn("Failed to cache %s: %v", target, err)
	}
	f.log.Info("Extracted %d characters from %s", len(page.Text), target)
	span.SetAttributes(tracer.IntAttr("content.chars", len(page.Text)))
	tracer.Finish(span, nil)
	return page.Text, nil
}
