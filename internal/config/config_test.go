package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Search.Provider != "serper" {
		t.Errorf("Expected search provider serper, got %s", cfg.Search.Provider)
	}
	if cfg.Search.MaxResults != 5 {
		t.Errorf("Expected MaxResults 5, got %d", cfg.Search.MaxResults)
	}
	if len(cfg.Search.Blocklist) != 5 {
		t.Errorf("Expected 5 blocked domains, got %d", len(cfg.Search.Blocklist))
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Expected MaxAttempts 3, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Budget.MaxArticles != 4 || cfg.Budget.Workers != 2 {
		t.Errorf("Expected 4 articles / 2 workers, got %d / %d", cfg.Budget.MaxArticles, cfg.Budget.Workers)
	}
	if cfg.Budget.MaxArticleTokens != 8000 || cfg.Budget.MaxContextTokens != 24000 {
		t.Errorf("Expected 8000/24000 token caps, got %d/%d", cfg.Budget.MaxArticleTokens, cfg.Budget.MaxContextTokens)
	}
	if cfg.Extract.PaywallMaxChars != 500 || cfg.Extract.MinContentChars != 200 {
		t.Errorf("Unexpected extract thresholds: %+v", cfg.Extract)
	}
	if cfg.Cache.MaxAgeHours != 0 {
		t.Errorf("Expected cache entries to never expire by default, got %d hours", cfg.Cache.MaxAgeHours)
	}
	if cfg.Model.Model != "gemini-1.5-pro" {
		t.Errorf("Expected model gemini-1.5-pro, got %s", cfg.Model.Model)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "unknown search provider",
			mutate:  func(c *Config) { c.Search.Provider = "altavista" },
			wantErr: true,
		},
		{
			name: "searxng without base url",
			mutate: func(c *Config) {
				c.Search.Provider = "searxng"
				c.Search.BaseURL = ""
			},
			wantErr: true,
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Budget.Workers = 0 },
			wantErr: true,
		},
		{
			name:    "article cap above context cap",
			mutate:  func(c *Config) { c.Budget.MaxArticleTokens = 30000 },
			wantErr: true,
		},
		{
			name:    "negative cache age",
			mutate:  func(c *Config) { c.Cache.MaxAgeHours = -1 },
			wantErr: true,
		},
		{
			name:    "invalid Temperature",
			mutate:  func(c *Config) { c.Model.Temperature = 3.0 },
			wantErr: true,
		},
		{
			name: "openai without base url",
			mutate: func(c *Config) {
				c.Model.Provider = "openai"
				c.Model.BaseURL = ""
			},
			wantErr: true,
		},
		{
			name:    "direct scraper",
			mutate:  func(c *Config) { c.Scraper.Provider = "direct" },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "webrag-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	configTestDir := filepath.Join(tmpDir, "config")
	SetConfigDir(configTestDir)

	cfg := DefaultConfig()
	cfg.Search.APIKey = "should-not-be-written"
	cfg.Budget.Workers = 3

	if err := Save(cfg); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	configPath := filepath.Join(configTestDir, "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatal("Config file not created")
	}
	if strings.Contains(string(data), "should-not-be-written") {
		t.Error("API key leaked into config.yaml")
	}

	secrets := "# keys\nSERPER_API_KEY=serper-secret\nGEMINI_API_KEY=\"gemini-secret\"\n"
	if err := os.WriteFile(filepath.Join(configTestDir, ".secrets"), []byte(secrets), 0600); err != nil {
		t.Fatal(err)
	}

	loadedCfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loadedCfg.Budget.Workers != 3 {
		t.Errorf("Expected workers 3, got %d", loadedCfg.Budget.Workers)
	}
	if loadedCfg.Search.APIKey != "serper-secret" {
		t.Errorf("Expected search key from .secrets, got %q", loadedCfg.Search.APIKey)
	}
	if loadedCfg.Model.APIKey != "gemini-secret" {
		t.Errorf("Expected model key from .secrets, got %q", loadedCfg.Model.APIKey)
	}
}

func TestLoadCreatesDefault(t *testing.T) {
	tmpDir := t.TempDir()
	SetConfigDir(filepath.Join(tmpDir, "fresh"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Search.MaxResults != 5 {
		t.Errorf("Expected default MaxResults, got %d", cfg.Search.MaxResults)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "fresh", "config.yaml")); err != nil {
		t.Errorf("Expected default config file to be written: %v", err)
	}
}

func TestSecretsLookupFallsBackToEnv(t *testing.T) {
	s := NewSecrets()
	s.getenv = func(key string) string {
		if key == ScrapingBeeAPIKey {
			return "from-env"
		}
		return ""
	}
	if got := s.Lookup(ScrapingBeeAPIKey); got != "from-env" {
		t.Errorf("Expected env fallback, got %q", got)
	}

	s.values[ScrapingBeeAPIKey] = "from-file"
	if got := s.Lookup(ScrapingBeeAPIKey); got != "from-file" {
		t.Errorf("Expected .secrets value to win, got %q", got)
	}
}

func TestIsAPIKeyConfigured(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.IsAPIKeyConfigured() {
		t.Error("Default config should not have API Key")
	}

	cfg.Model.APIKey = "test-key"
	if !cfg.IsAPIKeyConfigured() {
		t.Error("Should return true after setting API Key")
	}
}

func TestStringRedactsKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scraper.APIKey = "abcdefghijklmnop"
	out := cfg.String()
	if strings.Contains(out, "abcdefghijklmnop") {
		t.Error("String() should not print the full API key")
	}
	if !strings.Contains(out, "abcdefgh...") {
		t.Errorf("Expected redacted prefix, got:\n%s", out)
	}
}

func TestLoadPromptConfigOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	SetConfigDir(tmpDir)

	if err := os.WriteFile(filepath.Join(tmpDir, "prompt.yaml"), []byte("fallback: nothing found\n"), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadPromptConfig()
	if err != nil {
		t.Fatalf("Failed to load prompt config: %v", err)
	}
	if p.Fallback != "nothing found" {
		t.Errorf("Expected overridden fallback, got %q", p.Fallback)
	}
	if p.GenerationError != DefaultGenerationError {
		t.Errorf("Expected default generation error, got %q", p.GenerationError)
	}
}
