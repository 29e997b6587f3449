package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// configDir is the configuration directory path
	// Can be set via SetConfigDir before loading config
	configDir     string
	configDirInit bool
)

// SetConfigDir sets a custom configuration directory
// Must be called before any config loading functions
func SetConfigDir(dir string) {
	configDir = dir
	configDirInit = true
}

// GetConfigDir returns the configuration directory
// Priority: 1. Manually set via SetConfigDir, 2. ./config in current directory
func GetConfigDir() string {
	if !configDirInit {
		cwd, err := os.Getwd()
		if err == nil {
			configDir = filepath.Join(cwd, "config")
		}
		configDirInit = true
	}
	return configDir
}

// Config application configuration structure
type Config struct {
	Search  SearchConfig  `yaml:"search"`
	Scraper ScraperConfig `yaml:"scraper"`
	Retry   RetryConfig   `yaml:"retry"`
	Extract ExtractConfig `yaml:"extract"`
	Budget  BudgetConfig  `yaml:"budget"`
	Cache   CacheConfig   `yaml:"cache"`
	Model   ModelConfig   `yaml:"model"`
	Log     LogConfig     `yaml:"log"`
	Tracing TracingConfig `yaml:"tracing"`
}

// SearchConfig search service configuration
type SearchConfig struct {
	Provider       string   `yaml:"provider"`
	BaseURL        string   `yaml:"base_url"`
	APIKey         string   `yaml:"api_key"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	MaxResults     int      `yaml:"max_results"`
	RequestCount   int      `yaml:"request_count"`
	Blocklist      []string `yaml:"blocklist"`
	UserAgent      string   `yaml:"user_agent"`
}

// ScraperConfig scraping/rendering service configuration
type ScraperConfig struct {
	Provider          string `yaml:"provider"`
	BaseURL           string `yaml:"base_url"`
	APIKey            string `yaml:"api_key"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
	RenderJS          bool   `yaml:"render_js"`
	RenderTimeoutMS   int    `yaml:"render_timeout_ms"`
	CountryCode       string `yaml:"country_code"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	MaxBodyBytes      int64  `yaml:"max_body_bytes"`
	UserAgent         string `yaml:"user_agent"`
}

// RetryConfig retry policy shared by search and scraping
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts"`
	JitterMillis     int `yaml:"jitter_millis"`
	FixedDelayMillis int `yaml:"fixed_delay_millis"`
}

// ExtractConfig content extraction heuristics
type ExtractConfig struct {
	MinContentChars int      `yaml:"min_content_chars"`
	PaywallMaxChars int      `yaml:"paywall_max_chars"`
	PaywallMarkers  []string `yaml:"paywall_markers"`
}

// BudgetConfig context assembly budget
type BudgetConfig struct {
	MaxArticles      int    `yaml:"max_articles"`
	Workers          int    `yaml:"workers"`
	MaxArticleTokens int    `yaml:"max_article_tokens"`
	MaxContextTokens int    `yaml:"max_context_tokens"`
	TokenizerModel   string `yaml:"tokenizer_model"`
}

// CacheConfig content cache configuration
type CacheConfig struct {
	DBPath      string `yaml:"db_path"`
	MaxAgeHours int    `yaml:"max_age_hours"`
}

// ModelConfig generative model configuration
type ModelConfig struct {
	Provider           string  `yaml:"provider"`
	APIKey             string  `yaml:"api_key"`
	BaseURL            string  `yaml:"base_url"`
	Model              string  `yaml:"model"`
	Temperature        float64 `yaml:"temperature"`
	MaxTokens          int     `yaml:"max_tokens"`
	TimeoutSeconds     int     `yaml:"timeout_seconds"`
	BreakerMaxFailures uint32  `yaml:"breaker_max_failures"`
	BreakerOpenSeconds int     `yaml:"breaker_open_seconds"`
}

// LogConfig logger configuration
type LogConfig struct {
	Level      string `yaml:"level"`
	Dir        string `yaml:"dir"`
	MaxDays    int    `yaml:"max_days"`
	ConsoleOut bool   `yaml:"console_out"`
}

// TracingConfig tracing configuration
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Search: SearchConfig{
			Provider:       "serper",
			BaseURL:        "https://google.serper.dev",
			TimeoutSeconds: 30,
			MaxResults:     5,
			RequestCount:   10,
			Blocklist: []string{
				"quora.com",
				"researchgate.net",
				"youtube.com",
				"vimeo.com",
				"linkedin.com",
			},
			UserAgent: "webrag/0.1",
		},
		Scraper: ScraperConfig{
			Provider:        "scrapingbee",
			BaseURL:         "https://app.scrapingbee.com/api/v1/",
			TimeoutSeconds:  60,
			RenderJS:        true,
			RenderTimeoutMS: 15000,
			CountryCode:     "us",
			MaxBodyBytes:    5 << 20,
			UserAgent:       "webrag/0.1",
		},
		Retry: RetryConfig{
			MaxAttempts:      3,
			JitterMillis:     100,
			FixedDelayMillis: 1000,
		},
		Extract: ExtractConfig{
			MinContentChars: 200,
			PaywallMaxChars: 500,
			PaywallMarkers: []string{
				"paywall",
				"subscribe now",
				"sign in to continue",
				"login to view",
			},
		},
		Budget: BudgetConfig{
			MaxArticles:      4,
			Workers:          2,
			MaxArticleTokens: 8000,
			MaxContextTokens: 24000,
			TokenizerModel:   "gpt-3.5-turbo",
		},
		Cache: CacheConfig{
			DBPath:      filepath.Join(homeDir, ".webrag", "cache.db"),
			MaxAgeHours: 0,
		},
		Model: ModelConfig{
			Provider:           "gemini",
			Model:              "gemini-1.5-pro",
			Temperature:        0.7,
			MaxTokens:          4096,
			BreakerMaxFailures: 5,
			BreakerOpenSeconds: 30,
		},
		Log: LogConfig{
			Level:   "info",
			MaxDays: 7,
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Exporter: "stdout",
		},
	}
}

// ConfigDir returns the configuration directory path
func ConfigDir() (string, error) {
	dir := GetConfigDir()
	if dir == "" {
		return "", fmt.Errorf("failed to determine config directory")
	}
	return dir, nil
}

// LogDir returns the log directory path
func (c *Config) LogDir() string {
	if strings.TrimSpace(c.Log.Dir) != "" {
		return c.Log.Dir
	}
	dir := GetConfigDir()
	if dir == "" {
		return "logs"
	}
	return filepath.Join(dir, "logs")
}

// ConfigPath returns the configuration file path
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads configuration from file and merges with secrets
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	// A missing file is created from defaults so users have something to edit
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := Save(cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		secrets, _ := LoadSecrets()
		cfg.applySecrets(secrets)
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	secrets, _ := LoadSecrets()
	cfg.applySecrets(secrets)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applySecrets fills API keys that config.yaml left empty
func (c *Config) applySecrets(s *Secrets) {
	if c.Search.APIKey == "" {
		switch strings.ToLower(c.Search.Provider) {
		case "serper":
			c.Search.APIKey = s.Lookup(SerperAPIKey)
		case "searxng":
			c.Search.APIKey = s.Lookup(SearXNGAPIKey)
		}
	}
	if c.Scraper.APIKey == "" && strings.ToLower(c.Scraper.Provider) == "scrapingbee" {
		c.Scraper.APIKey = s.Lookup(ScrapingBeeAPIKey)
	}
	if c.Model.APIKey == "" {
		switch strings.ToLower(c.Model.Provider) {
		case "gemini":
			c.Model.APIKey = s.Lookup(GeminiAPIKey)
		case "openai":
			c.Model.APIKey = s.Lookup(OpenAIAPIKey)
		}
	}
}

// Save saves configuration to file
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// API keys live in .secrets, never in config.yaml written by us
	clean := *cfg
	clean.Search.APIKey = ""
	clean.Scraper.APIKey = ""
	clean.Model.APIKey = ""

	data, err := yaml.Marshal(&clean)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	content := "# webrag configuration file\n# API keys belong in .secrets next to this file\n\n" + string(data)

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Search.Provider)) {
	case "serper", "duckduckgo", "ddg":
	case "searxng":
		if strings.TrimSpace(c.Search.BaseURL) == "" {
			return fmt.Errorf("config error: search.base_url cannot be empty for searxng provider")
		}
	default:
		return fmt.Errorf("config error: unknown search.provider %q", c.Search.Provider)
	}
	if c.Search.TimeoutSeconds <= 0 {
		return fmt.Errorf("config error: search.timeout_seconds must be greater than 0")
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("config error: search.max_results must be greater than 0")
	}

	switch strings.ToLower(strings.TrimSpace(c.Scraper.Provider)) {
	case "scrapingbee", "direct", "chrome":
	default:
		return fmt.Errorf("config error: unknown scraper.provider %q", c.Scraper.Provider)
	}
	if c.Scraper.TimeoutSeconds <= 0 {
		return fmt.Errorf("config error: scraper.timeout_seconds must be greater than 0")
	}
	if c.Scraper.RequestsPerMinute < 0 {
		return fmt.Errorf("config error: scraper.requests_per_minute cannot be negative")
	}

	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("config error: retry.max_attempts must be greater than 0")
	}
	if c.Retry.JitterMillis < 0 || c.Retry.FixedDelayMillis < 0 {
		return fmt.Errorf("config error: retry delays cannot be negative")
	}

	if c.Extract.MinContentChars < 0 || c.Extract.PaywallMaxChars < 0 {
		return fmt.Errorf("config error: extract thresholds cannot be negative")
	}

	if c.Budget.MaxArticles <= 0 {
		return fmt.Errorf("config error: budget.max_articles must be greater than 0")
	}
	if c.Budget.Workers <= 0 {
		return fmt.Errorf("config error: budget.workers must be greater than 0")
	}
	if c.Budget.MaxArticleTokens <= 0 || c.Budget.MaxContextTokens <= 0 {
		return fmt.Errorf("config error: budget token caps must be greater than 0")
	}
	if c.Budget.MaxArticleTokens > c.Budget.MaxContextTokens {
		return fmt.Errorf("config error: budget.max_article_tokens cannot exceed budget.max_context_tokens")
	}
	if strings.TrimSpace(c.Budget.TokenizerModel) == "" {
		return fmt.Errorf("config error: budget.tokenizer_model cannot be empty")
	}

	if c.Cache.DBPath == "" {
		return fmt.Errorf("config error: cache.db_path cannot be empty")
	}
	if c.Cache.MaxAgeHours < 0 {
		return fmt.Errorf("config error: cache.max_age_hours cannot be negative")
	}

	switch strings.ToLower(strings.TrimSpace(c.Model.Provider)) {
	case "gemini":
	case "openai":
		if c.Model.BaseURL == "" {
			return fmt.Errorf("config error: model.base_url cannot be empty for openai provider")
		}
	default:
		return fmt.Errorf("config error: unknown model.provider %q", c.Model.Provider)
	}
	if c.Model.Model == "" {
		return fmt.Errorf("config error: model.model cannot be empty")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("config error: model.temperature must be between 0 and 2")
	}
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("config error: model.max_tokens must be greater than 0")
	}

	return nil
}

// IsAPIKeyConfigured checks if the generative model API key is configured
func (c *Config) IsAPIKeyConfigured() bool {
	return c.Model.APIKey != ""
}

// SearchTimeout returns the per-call search timeout
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.Search.TimeoutSeconds) * time.Second
}

// ScraperTimeout returns the per-call scrape timeout
func (c *Config) ScraperTimeout() time.Duration {
	return time.Duration(c.Scraper.TimeoutSeconds) * time.Second
}

// CacheMaxAge returns the cache freshness window, 0 meaning entries never expire
func (c *Config) CacheMaxAge() time.Duration {
	return time.Duration(c.Cache.MaxAgeHours) * time.Hour
}

// String returns string representation of config (hides sensitive info)
func (c *Config) String() string {
	return fmt.Sprintf(`webrag configuration:
  Search:
    Provider: %s
    Base URL: %s
    API Key: %s
    Timeout Seconds: %d
    Max Results: %d
    Blocklist: %s
  Scraper:
    Provider: %s
    API Key: %s
    Timeout Seconds: %d
    Render JS: %v
    Requests Per Minute: %d
  Retry:
    Max Attempts: %d
  Extract:
    Min Content Chars: %d
    Paywall Max Chars: %d
  Budget:
    Max Articles: %d
    Workers: %d
    Max Article Tokens: %d
    Max Context Tokens: %d
    Tokenizer Model: %s
  Cache:
    DB Path: %s
    Max Age Hours: %d
  Model:
    Provider: %s
    Model: %s
    API Key: %s
  Log:
    Level: %s
    Dir: %s`,
		c.Search.Provider,
		c.Search.BaseURL,
		redactAPIKey(c.Search.APIKey),
		c.Search.TimeoutSeconds,
		c.Search.MaxResults,
		strings.Join(c.Search.Blocklist, ", "),
		c.Scraper.Provider,
		redactAPIKey(c.Scraper.APIKey),
		c.Scraper.TimeoutSeconds,
		c.Scraper.RenderJS,
		c.Scraper.RequestsPerMinute,
		c.Retry.MaxAttempts,
		c.Extract.MinContentChars,
		c.Extract.PaywallMaxChars,
		c.Budget.MaxArticles,
		c.Budget.Workers,
		c.Budget.MaxArticleTokens,
		c.Budget.MaxContextTokens,
		c.Budget.TokenizerModel,
		c.Cache.DBPath,
		c.Cache.MaxAgeHours,
		c.Model.Provider,
		c.Model.Model,
		redactAPIKey(c.Model.APIKey),
		c.Log.Level,
		c.LogDir(),
	)
}

func redactAPIKey(value string) string {
	if value == "" {
		return "(not configured)"
	}
	if len(value) > 8 {
		return value[:8] + "..."
	}
	return "***"
}
