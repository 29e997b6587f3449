package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Secret names understood in .secrets and the environment
const (
	SerperAPIKey      = "SERPER_API_KEY"
	SearXNGAPIKey     = "SEARXNG_API_KEY"
	ScrapingBeeAPIKey = "SCRAPINGBEE_API_KEY"
	GeminiAPIKey      = "GEMINI_API_KEY"
	OpenAIAPIKey      = "OPENAI_API_KEY"
)

// Secrets sensitive configuration loaded from .secrets file
type Secrets struct {
	values map[string]string
	getenv func(string) string
}

// NewSecrets creates a new Secrets instance
func NewSecrets() *Secrets {
	return &Secrets{
		values: make(map[string]string),
		getenv: os.Getenv,
	}
}

// SecretsPath returns the secrets file path
func SecretsPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".secrets"), nil
}

// LoadSecrets loads secrets from the .secrets file
func LoadSecrets() (*Secrets, error) {
	secrets := NewSecrets()

	secretsPath, err := SecretsPath()
	if err != nil {
		return secrets, nil
	}

	file, err := os.Open(secretsPath)
	if err != nil {
		// Missing or unreadable file leaves only the environment
		return secrets, nil
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
			secrets.values[key] = value
		}
	}

	return secrets, scanner.Err()
}

// Get returns the value for a key from the .secrets file only
func (s *Secrets) Get(key string) string {
	if s == nil || s.values == nil {
		return ""
	}
	return s.values[key]
}

// Lookup returns the .secrets value for key, falling back to the environment
func (s *Secrets) Lookup(key string) string {
	if v := s.Get(key); v != "" {
		return v
	}
	if s == nil || s.getenv == nil {
		return os.Getenv(key)
	}
	return s.getenv(key)
}

// Has checks if a key exists in the .secrets file
func (s *Secrets) Has(key string) bool {
	if s == nil || s.values == nil {
		return false
	}
	_, ok := s.values[key]
	return ok
}
