package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"music-concierge/internal/domain"
	"music-concierge/internal/infra/metrics"
)

const defaultBaseURL = "https://api.search.brave.com/res/v1/web/search"

// Client queries the Brave web search API.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

var _ domain.Searcher = (*Client)(nil)

// NewClient builds a search client. An empty key yields an unconfigured
// client that the consultation engine degrades around.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type webSearchResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			URL         string `json:"url"`
		} `json:"results"`
	} `json:"web"`
}

// Search returns up to count web results for the query.
func (c *Client) Search(ctx context.Context, query string, count int) ([]domain.SearchResult, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("search: api key not configured")
	}
	if count <= 0 {
		count = 5
	}
	endpoint := c.baseURL + "?q=" + url.QueryEscape(query) + "&count=" + strconv.Itoa(count)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("search: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("search", "web_search", "brave", start, err)
		return nil, fmt.Errorf("search: do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		err = fmt.Errorf("search: unexpected status %d", resp.StatusCode)
		metrics.ObserveNetworkRequest("search", "web_search", "brave", start, err)
		return nil, err
	}
	raw, err := io.ReadAll(resp.Body)
	metrics.ObserveNetworkRequest("search", "web_search", "brave", start, err)
	if err != nil {
		return nil, fmt.Errorf("search: read response: %w", err)
	}
	var parsed webSearchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}
	results := make([]domain.SearchResult, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		results = append(results, domain.SearchResult{Title: r.Title, Description: r.Description, URL: r.URL})
		if len(results) == count {
			break
		}
	}
	return results, nil
}
