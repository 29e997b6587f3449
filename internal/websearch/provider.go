// Package websearch queries search services and returns ranked, filtered results.
package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Result is a single search result entry.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
	Source  string `json:"source,omitempty"`
}

// Response is a normalized search response.
type Response struct {
	Query    string   `json:"query"`
	Provider string   `json:"provider"`
	Results  []Result `json:"results"`
}

// Provider performs web searches. count is a hint for how many results the
// service should return; providers may return fewer.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, count int) (Response, error)
}

// StatusError is returned when a search service answers with a non-2xx status
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s search failed with status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s search failed with status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// checkStatus turns a non-2xx response into a *StatusError carrying a short body excerpt
func checkStatus(provider string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(excerpt)),
	}
}
