package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/hession/webrag/internal/logger"
)

// ErrCircuitOpen is returned while the breaker rejects calls
var ErrCircuitOpen = errors.New("model circuit open")

const (
	defaultBreakerMaxFailures uint32 = 5
	defaultBreakerTimeout            = 30 * time.Second
	defaultBreakerInterval           = 60 * time.Second
)

// BreakerOptions configure the circuit breaker
type BreakerOptions struct {
	// MaxFailures consecutive failures open the circuit
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a probe
	Timeout time.Duration
	// Interval clears failure counts while closed
	Interval time.Duration
}

// Breaker fails fast once the wrapped generator keeps failing
type Breaker struct {
	inner   Generator
	breaker *gobreaker.CircuitBreaker[string]
}

// NewBreaker wraps inner with a circuit breaker
func NewBreaker(inner Generator, opts BreakerOptions, log *logger.Logger) *Breaker {
	if opts.MaxFailures == 0 {
		opts.MaxFailures = defaultBreakerMaxFailures
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultBreakerTimeout
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultBreakerInterval
	}
	log = log.With("llm")

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "llm:" + inner.Name(),
		MaxRequests: 1,
		Interval:    opts.Interval,
		Timeout:     opts.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker %s: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// a caller giving up says nothing about the service
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &Breaker{inner: inner, breaker: cb}
}

func (b *Breaker) Name() string {
	return b.inner.Name()
}

func (b *Breaker) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := b.breaker.Execute(func() (string, error) {
		return b.inner.Generate(ctx, prompt)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %s: %v", ErrCircuitOpen, b.inner.Name(), err)
	}
	return text, err
}

// State returns the current breaker state
func (b *Breaker) State() gobreaker.State {
	return b.breaker.State()
}
