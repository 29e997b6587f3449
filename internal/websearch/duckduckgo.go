package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DuckDuckGoProvider uses the keyless DuckDuckGo Instant Answer API. It only
// returns abstract and related-topic links, so rankings are coarse.
type DuckDuckGoProvider struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

func NewDuckDuckGoProvider(baseURL, userAgent string, timeout time.Duration) *DuckDuckGoProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.duckduckgo.com"
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = "webrag/0.1"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DuckDuckGoProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

func (p *DuckDuckGoProvider) Name() string {
	return "duckduckgo"
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgAnswer struct {
	Heading       string     `json:"Heading"`
	AbstractText  string     `json:"AbstractText"`
	AbstractURL   string     `json:"AbstractURL"`
	Results       []ddgTopic `json:"Results"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

// collector accumulates unique links up to a cap
type collector struct {
	source  string
	limit   int
	seen    map[string]bool
	results []Result
}

func (c *collector) full() bool {
	return c.limit > 0 && len(c.results) >= c.limit
}

func (c *collector) add(title, link, snippet string) {
	link = strings.TrimSpace(link)
	if c.full() || link == "" || c.seen[link] {
		return
	}
	c.seen[link] = true
	c.results = append(c.results, Result{
		Title:   strings.TrimSpace(title),
		URL:     link,
		Snippet: strings.TrimSpace(snippet),
		Source:  c.source,
	})
}

func (c *collector) walk(topics []ddgTopic) {
	for _, topic := range topics {
		if c.full() {
			return
		}
		if len(topic.Topics) > 0 {
			c.walk(topic.Topics)
			continue
		}
		c.add(topic.Text, topic.FirstURL, topic.Text)
	}
}

func (p *DuckDuckGoProvider) Search(ctx context.Context, query string, count int) (Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Response{}, fmt.Errorf("query cannot be empty")
	}

	endpoint, err := url.Parse(p.baseURL)
	if err != nil {
		return Response{}, fmt.Errorf("invalid base url: %w", err)
	}
	endpoint.RawQuery = url.Values{
		"q":             {query},
		"format":        {"json"},
		"no_html":       {"1"},
		"skip_disambig": {"1"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(p.Name(), resp); err != nil {
		return Response{}, err
	}

	var answer ddgAnswer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return Response{}, fmt.Errorf("failed to decode response: %w", err)
	}

	c := &collector{source: p.Name(), limit: count, seen: make(map[string]bool)}
	if answer.AbstractText != "" {
		title := answer.Heading
		if title == "" {
			title = answer.AbstractText
		}
		c.add(title, answer.AbstractURL, answer.AbstractText)
	}
	c.walk(answer.Results)
	c.walk(answer.RelatedTopics)

	return Response{Query: query, Provider: p.Name(), Results: c.results}, nil
}
