// Package llm talks to generative model services.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hession/webrag/internal/config"
	"github.com/hession/webrag/internal/logger"
)

// Generator turns a single prompt into generated text
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// New builds the generator named in cfg, wrapped in a circuit breaker
func New(ctx context.Context, cfg config.ModelConfig, log *logger.Logger) (Generator, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	var g Generator
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gemini", "":
		gem, err := NewGemini(ctx, GeminiOptions{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     timeout,
		})
		if err != nil {
			return nil, err
		}
		g = gem
	case "openai":
		g = NewClient(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Temperature, cfg.MaxTokens, timeout)
	default:
		return nil, fmt.Errorf("unknown model provider: %s", cfg.Provider)
	}

	return NewBreaker(g, BreakerOptions{
		MaxFailures: cfg.BreakerMaxFailures,
		Timeout:     time.Duration(cfg.BreakerOpenSeconds) * time.Second,
	}, log), nil
}
