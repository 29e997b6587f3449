package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultMaxBodyBytes = int64(5 << 20)

// Direct fetches pages with a plain GET and no JavaScript rendering
type Direct struct {
	userAgent string
	maxBytes  int64
	client    *http.Client
}

// NewDirect creates a direct HTTP scraper
func NewDirect(userAgent string, timeout time.Duration, maxBytes int64) *Direct {
	if strings.TrimSpace(userAgent) == "" {
		userAgent = "webrag/0.1"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBodyBytes
	}
	return &Direct{
		userAgent: userAgent,
		maxBytes:  maxBytes,
		client:    &http.Client{Timeout: timeout},
	}
}

func (d *Direct) Name() string {
	return "direct"
}

func (d *Direct) Scrape(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Scheme == "" {
		return "", fmt.Errorf("invalid url: %s", rawURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme: %s", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: status %d for %s", ErrRateLimited, resp.StatusCode, rawURL)
	default:
		return "", &StatusError{Provider: d.Name(), StatusCode: resp.StatusCode, Body: excerpt(body)}
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if contentType != "" && !strings.Contains(contentType, "html") && !strings.HasPrefix(contentType, "text/") {
		return "", fmt.Errorf("unsupported content type %q for %s", contentType, rawURL)
	}
	return string(body), nil
}
