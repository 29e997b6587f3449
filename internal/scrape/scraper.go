// Package scrape retrieves raw HTML for a URL through a scraping backend.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hession/webrag/internal/config"
	"github.com/hession/webrag/internal/logger"
)

// Scraper fetches the rendered HTML of one page
type Scraper interface {
	Name() string
	Scrape(ctx context.Context, url string) (string, error)
}

// ErrRateLimited is wrapped by errors for throttled requests
var ErrRateLimited = errors.New("rate limited by scraping service")

// AuthError reports rejected credentials or exhausted credits. Retrying
// cannot help, and its message is meant to be shown to the user.
type AuthError struct {
	Provider   string
	URL        string
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("Error: %s API key invalid or credit limit exceeded for %s. Please check dashboard.", e.Provider, e.URL)
}

// StatusError is any other non-2xx answer
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Provider, e.StatusCode)
}

// IsAuth reports whether err is an *AuthError
func IsAuth(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// keyPrefix shows enough of a key to tell accounts apart in logs
func keyPrefix(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
}

// New builds the scraper named in cfg. The returned close func releases
// backend resources such as a browser process.
func New(cfg config.ScraperConfig, log *logger.Logger) (Scraper, func(), error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	var s Scraper
	closeFn := func() {}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "scrapingbee", "":
		s = NewScrapingBee(ScrapingBeeOptions{
			BaseURL:       cfg.BaseURL,
			APIKey:        cfg.APIKey,
			RenderJS:      cfg.RenderJS,
			RenderTimeout: time.Duration(cfg.RenderTimeoutMS) * time.Millisecond,
			CountryCode:   cfg.CountryCode,
			Timeout:       timeout,
			MaxBodyBytes:  cfg.MaxBodyBytes,
		}, log)
	case "direct":
		s = NewDirect(cfg.UserAgent, timeout, cfg.MaxBodyBytes)
	case "chrome":
		c := NewChrome(ChromeOptions{
			Timeout:       timeout,
			RenderTimeout: time.Duration(cfg.RenderTimeoutMS) * time.Millisecond,
			UserAgent:     cfg.UserAgent,
			Headless:      true,
		}, log)
		s = c
		closeFn = c.Close
	default:
		return nil, nil, fmt.Errorf("unknown scraper provider: %s", cfg.Provider)
	}

	if cfg.RequestsPerMinute > 0 {
		s = NewLimited(s, cfg.RequestsPerMinute, 1)
	}
	return s, closeFn, nil
}
