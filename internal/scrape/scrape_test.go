package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hession/webrag/internal/config"
	"github.com/hession/webrag/internal/logger"
)

func newBee(t *testing.T, handler http.HandlerFunc) *ScrapingBee {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewScrapingBee(ScrapingBeeOptions{
		BaseURL:       server.URL + "/api/v1/",
		APIKey:        "secret-key",
		RenderJS:      true,
		RenderTimeout: 15 * time.Second,
		CountryCode:   "us",
		Timeout:       5 * time.Second,
	}, logger.Nop())
}

func TestScrapingBeeSendsParameters(t *testing.T) {
	bee := newBee(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/api/v1/", r.URL.Path)
		assert.Equal(t, "secret-key", q.Get("api_key"))
		assert.Equal(t, "https://example.com/article", q.Get("url"))
		assert.Equal(t, "true", q.Get("render_js"))
		assert.Equal(t, "us", q.Get("country_code"))
		assert.Equal(t, "15000", q.Get("timeout"))
		w.Header().Set("Spb-Cost", "5")
		fmt.Fprint(w, "<html><body><p>hi</p></body></html>")
	})

	html, err := bee.Scrape(context.Background(), "https://example.com/article")
	require.NoError(t, err)
	assert.Contains(t, html, "<p>hi</p>")
}

func TestScrapingBeeClassifiesResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrRateLimited)
				assert.False(t, IsAuth(err))
			},
		},
		{
			name:   "no credits",
			status: http.StatusForbidden,
			body:   `{"message":"no_credits"}`,
			check: func(t *testing.T, err error) {
				var authErr *AuthError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, http.StatusForbidden, authErr.StatusCode)
				assert.Equal(t,
					"Error: ScrapingBee API key invalid or credit limit exceeded for https://example.com/x. Please check dashboard.",
					err.Error())
			},
		},
		{
			name:   "invalid key",
			status: http.StatusForbidden,
			body:   `{"error":"INVALID_API_KEY"}`,
			check: func(t *testing.T, err error) {
				assert.True(t, IsAuth(err))
			},
		},
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.True(t, IsAuth(err))
			},
		},
		{
			name:   "plain forbidden",
			status: http.StatusForbidden,
			body:   "target blocked the request",
			check: func(t *testing.T, err error) {
				var statusErr *StatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
				assert.False(t, IsAuth(err))
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				var statusErr *StatusError
				require.ErrorAs(t, err, &statusErr)
				assert.NotErrorIs(t, err, ErrRateLimited)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bee := newBee(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			html, err := bee.Scrape(context.Background(), "https://example.com/x")
			assert.Empty(t, html)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestScrapingBeeTransportErrorHidesKey(t *testing.T) {
	bee := NewScrapingBee(ScrapingBeeOptions{
		BaseURL: "http://127.0.0.1:1/api/v1/",
		APIKey:  "secret-key",
		Timeout: time.Second,
	}, nil)

	_, err := bee.Scrape(context.Background(), "https://example.com")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestKeyPrefix(t *testing.T) {
	assert.Equal(t, "secr****", keyPrefix("secret-key"))
	assert.Equal(t, "****", keyPrefix("abc"))
}

func TestDirectScrape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "webrag-test", r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, "<html><body>"+strings.Repeat("x", 100)+"</body></html>")
		case "/busy":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/image":
			w.Header().Set("Content-Type", "image/png")
			fmt.Fprint(w, "PNG")
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	d := NewDirect("webrag-test", time.Second, 50)

	html, err := d.Scrape(context.Background(), server.URL+"/page")
	require.NoError(t, err)
	assert.Len(t, html, 50, "body should be capped")

	_, err = d.Scrape(context.Background(), server.URL+"/busy")
	assert.ErrorIs(t, err, ErrRateLimited)

	_, err = d.Scrape(context.Background(), server.URL+"/missing")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)

	_, err = d.Scrape(context.Background(), server.URL+"/image")
	assert.Error(t, err)

	_, err = d.Scrape(context.Background(), "ftp://example.com/file")
	assert.Error(t, err)
}

type countingScraper struct{ calls int }

func (c *countingScraper) Name() string { return "counting" }

func (c *countingScraper) Scrape(ctx context.Context, url string) (string, error) {
	c.calls++
	return "<html></html>", nil
}

func TestLimitedWaitsForToken(t *testing.T) {
	inner := &countingScraper{}
	l := NewLimited(inner, 1, 1)
	assert.Equal(t, "counting", l.Name())

	_, err := l.Scrape(context.Background(), "https://a.example")
	require.NoError(t, err)

	// The next token is a minute away, so a short deadline fails fast
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Scrape(ctx, "https://b.example")
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Scraper

	s, closeFn, err := New(cfg, logger.Nop())
	require.NoError(t, err)
	defer closeFn()
	assert.Equal(t, "scrapingbee", s.Name())

	cfg.Provider = "direct"
	cfg.RequestsPerMinute = 30
	s, _, err = New(cfg, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Limited{}, s)
	assert.Equal(t, "direct", s.Name())

	cfg.Provider = "chrome"
	cfg.RequestsPerMinute = 0
	s, closeFn, err = New(cfg, logger.Nop())
	require.NoError(t, err)
	closeFn()
	assert.Equal(t, "chrome", s.Name())

	cfg.Provider = "wget"
	_, _, err = New(cfg, logger.Nop())
	assert.Error(t, err)
}

func TestChromeAllocatorOptions(t *testing.T) {
	c := NewChrome(ChromeOptions{Headless: true, UserAgent: "webrag-test"}, nil)
	assert.Equal(t, 60*time.Second, c.opts.Timeout)
	assert.Equal(t, 15*time.Second, c.opts.RenderTimeout)
	assert.NotEmpty(t, c.allocatorOptions())

	// Close before first use is a no-op
	c.Close()
}

func TestAuthErrorIsDistinct(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &AuthError{Provider: "ScrapingBee", URL: "u"})
	assert.True(t, IsAuth(err))
	assert.False(t, IsAuth(errors.New("other")))
}
