package tokenizer

import (
	"strings"
	"sync"
)

// MaxWordVocabulary caps how many distinct words a WordEncoding remembers
const MaxWordVocabulary = 1 << 16

// WordEncoding treats every whitespace-separated word as one token. It needs
// no rank files, which makes it usable offline and in tests; counts run
// below BPE counts for the same text.
//
// Ids come from a vocabulary of the words seen so far. Once it holds
// MaxWordVocabulary words the next Encode starts a fresh one, and ids issued
// before that no longer decode. Count and Truncate do not touch it.
type WordEncoding struct {
	mu    sync.Mutex
	limit int
	ids   map[string]int
	words []string
}

// NewWordEncoding creates an empty word vocabulary
func NewWordEncoding() *WordEncoding {
	return newWordEncoding(MaxWordVocabulary)
}

func newWordEncoding(limit int) *WordEncoding {
	return &WordEncoding{limit: limit, ids: make(map[string]int)}
}

// Encode implements Encoding
func (w *WordEncoding) Encode(text string, _ []string, _ []string) []int {
	fields := strings.Fields(text)
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.words) >= w.limit {
		w.ids = make(map[string]int)
		w.words = nil
	}
	tokens := make([]int, len(fields))
	for i, f := range fields {
		id, ok := w.ids[f]
		if !ok {
			id = len(w.words)
			w.ids[f] = id
			w.words = append(w.words, f)
		}
		tokens[i] = id
	}
	return tokens
}

// Decode implements Encoding; words are rejoined with single spaces
func (w *WordEncoding) Decode(tokens []int) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	parts := make([]string, 0, len(tokens))
	for _, id := range tokens {
		if id >= 0 && id < len(w.words) {
			parts = append(parts, w.words[id])
		}
	}
	return strings.Join(parts, " ")
}

// Size returns the number of words in the vocabulary
func (w *WordEncoding) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.words)
}

// CountTokens counts words without recording them
func (w *WordEncoding) CountTokens(text string) int {
	return len(strings.Fields(text))
}

// TruncateTokens keeps the first limit words without recording them
func (w *WordEncoding) TruncateTokens(text string, limit int) (string, int) {
	fields := strings.Fields(text)
	if len(fields) <= limit {
		return text, len(fields)
	}
	return strings.Join(fields[:limit], " "), limit
}
