package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SearXNGProvider queries a self-hosted SearXNG instance through its JSON API
type SearXNGProvider struct {
	endpoint  string
	userAgent string
	apiKey    string
	client    *http.Client
}

func NewSearXNGProvider(baseURL, apiKey, userAgent string, timeout time.Duration) *SearXNGProvider {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = "webrag/0.1"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SearXNGProvider{
		endpoint:  strings.TrimRight(baseURL, "/") + "/search",
		userAgent: userAgent,
		apiKey:    strings.TrimSpace(apiKey),
		client:    &http.Client{Timeout: timeout},
	}
}

func (p *SearXNGProvider) Name() string {
	return "searxng"
}

type searxngHit struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type searxngPage struct {
	Query   string       `json:"query"`
	Results []searxngHit `json:"results"`
}

func (p *SearXNGProvider) Search(ctx context.Context, query string, count int) (Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Response{}, fmt.Errorf("query cannot be empty")
	}

	endpoint, err := url.Parse(p.endpoint)
	if err != nil {
		return Response{}, fmt.Errorf("invalid base url: %w", err)
	}
	params := url.Values{
		"q":          {query},
		"format":     {"json"},
		"categories": {"general"},
		"safesearch": {"1"},
	}
	if count > 0 {
		params.Set("count", strconv.Itoa(count))
	}
	if p.apiKey != "" {
		params.Set("apikey", p.apiKey)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(p.Name(), resp); err != nil {
		return Response{}, err
	}

	var page searxngPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return Response{}, fmt.Errorf("failed to decode response: %w", err)
	}

	// SearXNG treats count as advisory, so trim here
	hits := page.Results
	if count > 0 && len(hits) > count {
		hits = hits[:count]
	}
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			Title:   strings.TrimSpace(hit.Title),
			URL:     strings.TrimSpace(hit.URL),
			Snippet: strings.TrimSpace(hit.Content),
			Source:  p.Name(),
		})
	}

	return Response{Query: query, Provider: p.Name(), Results: results}, nil
}
