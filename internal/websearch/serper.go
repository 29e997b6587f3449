package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SerperProvider queries the Serper Google search API
type SerperProvider struct {
	baseURL   string
	apiKey    string
	userAgent string
	client    *http.Client
}

func NewSerperProvider(baseURL, apiKey, userAgent string, timeout time.Duration) *SerperProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://google.serper.dev"
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = "webrag/0.1"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SerperProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    strings.TrimSpace(apiKey),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

func (p *SerperProvider) Name() string {
	return "serper"
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type serperOrganic struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type serperResponse struct {
	Organic []serperOrganic `json:"organic"`
}

func (p *SerperProvider) Search(ctx context.Context, query string, count int) (Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Response{}, fmt.Errorf("query cannot be empty")
	}
	if count <= 0 {
		count = 10
	}

	body, err := json.Marshal(serperRequest{Q: query, Num: count})
	if err != nil {
		return Response{}, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-KEY", p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(p.Name(), resp); err != nil {
		return Response{}, err
	}

	var payload serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Response{}, fmt.Errorf("failed to decode response: %w", err)
	}

	results := make([]Result, 0, len(payload.Organic))
	for _, item := range payload.Organic {
		results = append(results, Result{
			Title:   strings.TrimSpace(item.Title),
			URL:     strings.TrimSpace(item.Link),
			Snippet: strings.TrimSpace(item.Snippet),
			Source:  p.Name(),
		})
	}

	return Response{
		Query:    query,
		Provider: p.Name(),
		Results:  results,
	}, nil
}
