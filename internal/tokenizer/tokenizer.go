// Package tokenizer counts and truncates text in model token units.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/hession/webrag/internal/logger"
)

// WordsModel selects the offline whitespace encoding instead of BPE ranks
const WordsModel = "words"

// Encoding is the subset of *tiktoken.Tiktoken the tokenizer needs
type Encoding interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
	Decode(tokens []int) string
}

// directCounter is implemented by encodings that can count and truncate
// without producing token ids
type directCounter interface {
	CountTokens(text string) int
	TruncateTokens(text string, limit int) (string, int)
}

// Loader resolves an Encoding for a model name
type Loader func(model string) (Encoding, error)

// TiktokenLoader loads the BPE encoding tiktoken uses for model. The first
// call may download rank files, so failures are expected offline.
func TiktokenLoader(model string) (Encoding, error) {
	if model == WordsModel {
		return NewWordEncoding(), nil
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding for %s: %w", model, err)
	}
	return enc, nil
}

// Tokenizer counts and truncates text. Loading is lazy and retried on every
// call until it succeeds; a failed load makes counts come back as zero.
type Tokenizer struct {
	model  string
	loader Loader
	log    *logger.Logger

	mu  sync.Mutex
	enc Encoding
}

// New creates a tokenizer for model backed by tiktoken
func New(model string, log *logger.Logger) *Tokenizer {
	return NewWithLoader(model, TiktokenLoader, log)
}

// NewWithLoader creates a tokenizer with a custom encoding loader
func NewWithLoader(model string, loader Loader, log *logger.Logger) *Tokenizer {
	return &Tokenizer{model: model, loader: loader, log: log.With("tokenizer")}
}

// NewWithEncoding creates a tokenizer around an already loaded encoding
func NewWithEncoding(enc Encoding) *Tokenizer {
	return &Tokenizer{model: "custom", enc: enc}
}

func (t *Tokenizer) encoding() (Encoding, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enc != nil {
		return t.enc, nil
	}
	enc, err := t.loader(t.model)
	if err != nil {
		return nil, err
	}
	t.enc = enc
	return enc, nil
}

// Encode returns the token ids for text
func (t *Tokenizer) Encode(text string) ([]int, error) {
	enc, err := t.encoding()
	if err != nil {
		return nil, err
	}
	return enc.Encode(text, nil, nil), nil
}

// Count returns the number of tokens in text, or 0 when the encoding is unavailable
func (t *Tokenizer) Count(text string) int {
	enc, err := t.encoding()
	if err != nil {
		t.log.Error("Token counting error: %v", err)
		return 0
	}
	if dc, ok := enc.(directCounter); ok {
		return dc.CountTokens(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// Truncate keeps the first limit tokens of text. It returns the possibly
// shortened text and its token count, which never exceeds limit.
func (t *Tokenizer) Truncate(text string, limit int) (string, int) {
	enc, err := t.encoding()
	if err != nil {
		t.log.Error("Token truncation error: %v", err)
		return text, 0
	}
	if dc, ok := enc.(directCounter); ok {
		return dc.TruncateTokens(text, limit)
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= limit {
		return text, len(tokens)
	}
	return enc.Decode(tokens[:limit]), limit
}
