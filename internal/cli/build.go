package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/hession/webrag/internal/answer"
	"github.com/hession/webrag/internal/assemble"
	"github.com/hession/webrag/internal/cache"
	"github.com/hession/webrag/internal/config"
	"github.com/hession/webrag/internal/content"
	"github.com/hession/webrag/internal/extract"
	"github.com/hession/webrag/internal/llm"
	"github.com/hession/webrag/internal/logger"
	"github.com/hession/webrag/internal/pipeline"
	"github.com/hession/webrag/internal/retry"
	"github.com/hession/webrag/internal/scrape"
	"github.com/hession/webrag/internal/tokenizer"
	"github.com/hession/webrag/internal/tracer"
	"github.com/hession/webrag/internal/websearch"
)

// App holds the components built for one process
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Cache    cache.Store
	Pipeline *pipeline.Pipeline

	closers []func()
}

// LoggerConfig maps the log section of cfg onto the logger
func LoggerConfig(cfg *config.Config) logger.Config {
	return logger.Config{
		LogDir:     cfg.LogDir(),
		Level:      logger.ParseLevel(cfg.Log.Level),
		MaxDays:    cfg.Log.MaxDays,
		ConsoleOut: cfg.Log.ConsoleOut,
	}
}

// OpenCache opens the configured content cache
func OpenCache(cfg *config.Config, log *logger.Logger) (*cache.SQLiteStore, error) {
	store, err := cache.NewSQLiteStore(cfg.Cache.DBPath, cache.Options{MaxAge: cfg.CacheMaxAge()}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open content cache: %w", err)
	}
	return store, nil
}

// Build wires every component from cfg. Close releases what it opened.
func Build(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.NewLogger(LoggerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	app := &App{Config: cfg, Log: log}
	app.closers = append(app.closers, func() { log.Close() })
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	// spans land in the log file next to the lines they explain
	shutdown, err := tracer.Setup(ctx, cfg.Tracing, log.With("trace").GetWriter(logger.INFO))
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	app.closers = append(app.closers, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Warn("Tracer shutdown failed: %v", err)
		}
	})

	store, err := OpenCache(cfg, log)
	if err != nil {
		return nil, err
	}
	app.Cache = store
	app.closers = append(app.closers, func() { store.Close() })

	provider, err := websearch.NewProvider(cfg.Search)
	if err != nil {
		return nil, fmt.Errorf("failed to create search provider: %w", err)
	}
	jitter := time.Duration(cfg.Retry.JitterMillis) * time.Millisecond
	search := websearch.NewClient(provider, websearch.ClientOptions{
		MaxResults:   cfg.Search.MaxResults,
		RequestCount: cfg.Search.RequestCount,
		Blocklist:    cfg.Search.Blocklist,
		Retry: retry.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff:     retry.Exponential(jitter),
		},
	}, log)

	scraper, closeScraper, err := scrape.New(cfg.Scraper, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create scraper: %w", err)
	}
	app.closers = append(app.closers, closeScraper)

	fetcher := content.NewFetcher(store, scraper,
		content.ScrapePolicy(cfg.Retry.MaxAttempts, jitter, time.Duration(cfg.Retry.FixedDelayMillis)*time.Millisecond),
		extract.Options{
			MinChars:        cfg.Extract.MinContentChars,
			PaywallMaxChars: cfg.Extract.PaywallMaxChars,
			PaywallMarkers:  cfg.Extract.PaywallMarkers,
		}, log)

	assembler := assemble.New(fetcher, tokenizer.New(cfg.Budget.TokenizerModel, log), assemble.Budget{
		MaxArticles:      cfg.Budget.MaxArticles,
		Workers:          cfg.Budget.Workers,
		MaxArticleTokens: cfg.Budget.MaxArticleTokens,
		MaxContextTokens: cfg.Budget.MaxContextTokens,
	}, log)

	model, err := llm.New(ctx, cfg.Model, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	prompts, err := config.LoadPromptConfig()
	if err != nil {
		return nil, err
	}
	responder, err := answer.NewGenerator(model, prompts, log)
	if err != nil {
		return nil, err
	}

	app.Pipeline = pipeline.New(search, assembler, responder, log)
	log.Info("webrag ready: search=%s scraper=%s model=%s", provider.Name(), scraper.Name(), model.Name())
	return app, nil
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
