package scrape

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limited spaces outbound requests of the wrapped scraper
type Limited struct {
	next    Scraper
	limiter *rate.Limiter
}

// NewLimited allows requestsPerMinute calls with the given burst
func NewLimited(next Scraper, requestsPerMinute, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst),
	}
}

func (l *Limited) Name() string {
	return l.next.Name()
}

func (l *Limited) Scrape(ctx context.Context, url string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("scrape limiter: %w", err)
	}
	return l.next.Scrape(ctx, url)
}
