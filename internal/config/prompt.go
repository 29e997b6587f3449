package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PromptConfig prompt configuration structure
type PromptConfig struct {
	// Answer is a text/template rendered with .Query and .Context
	Answer string `yaml:"answer"`
	// Fallback is returned without calling the model when no context survived
	Fallback string `yaml:"fallback"`
	// GenerationError is returned when the model call fails
	GenerationError string `yaml:"generation_error"`
}

// DefaultAnswerPrompt is the synthesis instruction sent to the model
const DefaultAnswerPrompt = `Using the provided context, answer the query: '{{.Query}}'.
Ensure the response:
- Directly addresses all aspects of the query with specific details (e.g., facts, figures, examples).
- Uses information from multiple sources, avoiding reliance on a single source.
- Is structured clearly, using bullet points or sections for readability.
- Is concise yet comprehensive, focusing on relevance to the query.
If context is insufficient, state: 'Limited information available; please try again.'
Context: {{.Context}}
`

// DefaultFallback is the answer when nothing could be fetched
const DefaultFallback = "Unable to fetch sufficient content due to search or scraping limitations. " +
	"Please try again with a more specific query or check source accessibility."

// DefaultGenerationError is the answer when the model call fails
const DefaultGenerationError = "Error generating response"

// DefaultPromptConfig returns default prompt configuration
func DefaultPromptConfig() *PromptConfig {
	return &PromptConfig{
		Answer:          DefaultAnswerPrompt,
		Fallback:        DefaultFallback,
		GenerationError: DefaultGenerationError,
	}
}

// PromptConfigPath returns the prompt config file path
func PromptConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "prompt.yaml"), nil
}

// LoadPromptConfig loads prompt configuration from file, keeping defaults for
// any field the file leaves empty
func LoadPromptConfig() (*PromptConfig, error) {
	configPath, err := PromptConfigPath()
	if err != nil {
		return DefaultPromptConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultPromptConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt config: %w", err)
	}

	var loaded PromptConfig
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse prompt config: %w", err)
	}

	cfg := DefaultPromptConfig()
	if loaded.Answer != "" {
		cfg.Answer = loaded.Answer
	}
	if loaded.Fallback != "" {
		cfg.Fallback = loaded.Fallback
	}
	if loaded.GenerationError != "" {
		cfg.GenerationError = loaded.GenerationError
	}
	return cfg, nil
}
