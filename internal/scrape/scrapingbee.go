package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hession/webrag/internal/logger"
)

// ScrapingBeeOptions configure the ScrapingBee backend
type ScrapingBeeOptions struct {
	BaseURL       string
	APIKey        string
	RenderJS      bool
	RenderTimeout time.Duration
	CountryCode   string
	// Timeout bounds the whole HTTP exchange, render time included
	Timeout      time.Duration
	MaxBodyBytes int64
}

// ScrapingBee renders pages through the ScrapingBee HTML API
type ScrapingBee struct {
	opts   ScrapingBeeOptions
	client *http.Client
	log    *logger.Logger
}

func NewScrapingBee(opts ScrapingBeeOptions, log *logger.Logger) *ScrapingBee {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = "https://app.scrapingbee.com/api/v1/"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = 15 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 << 20
	}
	return &ScrapingBee{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		log:    log.With("scrapingbee"),
	}
}

func (s *ScrapingBee) Name() string {
	return "scrapingbee"
}

func (s *ScrapingBee) Scrape(ctx context.Context, target string) (string, error) {
	endpoint, err := url.Parse(s.opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	params := url.Values{}
	params.Set("api_key", s.opts.APIKey)
	params.Set("url", target)
	params.Set("render_js", strconv.FormatBool(s.opts.RenderJS))
	params.Set("timeout", strconv.FormatInt(s.opts.RenderTimeout.Milliseconds(), 10))
	if s.opts.CountryCode != "" {
		params.Set("country_code", s.opts.CountryCode)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		// url.Error would echo the api_key query parameter
		return "", fmt.Errorf("scrape request for %s failed: %w", target, unwrapURLError(err))
	}
	defer resp.Body.Close()

	s.log.Info("ScrapingBee %s status=%d cost=%s key=%s",
		target, resp.StatusCode, headerOr(resp, "Spb-Cost", "?"), keyPrefix(s.opts.APIKey))

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.opts.MaxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return string(body), nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: status %d for %s", ErrRateLimited, resp.StatusCode, target)
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden && isCreditFailure(body):
		return "", &AuthError{Provider: "ScrapingBee", URL: target, StatusCode: resp.StatusCode}
	default:
		return "", &StatusError{Provider: s.Name(), StatusCode: resp.StatusCode, Body: excerpt(body)}
	}
}

func isCreditFailure(body []byte) bool {
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "invalid_api_key") || strings.Contains(lower, "no_credits")
}

func headerOr(resp *http.Response, name, fallback string) string {
	if v := resp.Header.Get(name); v != "" {
		return v
	}
	return fallback
}

func excerpt(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

func unwrapURLError(err error) error {
	if uerr, ok := err.(*url.Error); ok {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}
