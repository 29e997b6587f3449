package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hession/webrag/internal/cache"
	"github.com/hession/webrag/internal/pipeline"
)

// Runner answers one query
type Runner interface {
	Run(ctx context.Context, query string) (*pipeline.Answer, error)
}

// noContentReply is the JSON shape for a query with no search results
type noContentReply struct {
	Query string `json:"query"`
	Error string `json:"error"`
}

// Ask runs query and prints the outcome to w as text or JSON. A query with
// no search results is reported, not returned as an error.
func Ask(ctx context.Context, r Runner, query string, w io.Writer, asJSON bool) error {
	ans, err := r.Run(ctx, query)
	if errors.Is(err, pipeline.ErrNoRelevantContent) {
		if asJSON {
			return writeJSON(w, noContentReply{Query: strings.TrimSpace(query), Error: err.Error()})
		}
		fmt.Fprintf(w, "%sNo relevant articles found for %q%s\n", colorYellow, strings.TrimSpace(query), colorReset)
		return nil
	}
	if err != nil {
		return err
	}

	if asJSON {
		return writeJSON(w, ans)
	}
	printAnswer(w, ans)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode answer: %w", err)
	}
	return nil
}

// printAnswer prints the answer, its sources and any fetch diagnostics
func printAnswer(w io.Writer, ans *pipeline.Answer) {
	fmt.Fprintf(w, "\n%s\n", ans.Text)

	if !ans.Grounded {
		fmt.Fprintf(w, "\n%s(answer not generated from fetched articles)%s\n", colorYellow, colorReset)
	}

	if len(ans.Sources) > 0 {
		fmt.Fprintf(w, "\n%sSources:%s\n", colorCyan, colorReset)
		for i, s := range ans.Sources {
			title := s.Title
			if title == "" {
				title = "Unknown"
			}
			fmt.Fprintf(w, "  %d. %s\n     %s%s%s\n", i+1, truncateForDisplay(title, 80), colorGray, s.URL, colorReset)
		}
	}

	for _, d := range ans.Diagnostics {
		fmt.Fprintf(w, "%s⚠️  %s%s\n", colorRed, d, colorReset)
	}

	runID := ans.RunID
	if len(runID) > 8 {
		runID = runID[:8]
	}
	fmt.Fprintf(w, "\n%srun %s · %d articles · %d tokens · %s%s\n\n",
		colorGray, runID, ans.Articles, ans.ContextTokens, formatDuration(ans.Elapsed), colorReset)
}

// CacheStats prints the number of cached pages
func CacheStats(store cache.Store, w io.Writer) error {
	n, err := store.Len()
	if err != nil {
		return fmt.Errorf("failed to count cache entries: %w", err)
	}
	fmt.Fprintf(w, "Cached pages: %d\n", n)
	return nil
}

// CacheClear removes every cached page
func CacheClear(store cache.Store, w io.Writer) error {
	n, err := store.Len()
	if err != nil {
		return fmt.Errorf("failed to count cache entries: %w", err)
	}
	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	fmt.Fprintf(w, "%s✅ Removed %d cached pages%s\n", colorGreen, n, colorReset)
	return nil
}

// truncateForDisplay flattens text onto one line and caps it at maxLen runes
func truncateForDisplay(text string, maxLen int) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.TrimSpace(text)

	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}

// formatDuration renders d at a precision suited to its size
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}
