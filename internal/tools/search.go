package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Searcher is the web-search capability consumed by the search tool.
type Searcher interface {
	Search(ctx context.Context, query string) (SearchResult, error)
}

type SearchResult struct {
	Query   string      `json:"query"`
	Answer  string      `json:"answer,omitempty"`
	Results []SearchHit `json:"results"`
}

type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// FormatText renders the result set as model-readable text.
func (r SearchResult) FormatText() string {
	var b strings.Builder
	if strings.TrimSpace(r.Answer) != "" {
		fmt.Fprintf(&b, "ANSWER: %s\n\n", r.Answer)
	}
	if len(r.Results) == 0 {
		b.WriteString("No results found.\n")
		return b.String()
	}
	for i, hit := range r.Results {
		fmt.Fprintf(&b, "RESULT %d: %s\nURL: %s\n%s\n\n", i+1, hit.Title, hit.URL, hit.Content)
	}
	return b.String()
}

// SearchClient talks to a Tavily-compatible search API.
type SearchClient struct {
	BaseURL string
	APIKey  string
	Depth   string
	Client  *http.Client
}

func NewSearchClient(baseURL, apiKey string) *SearchClient {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = "https://api.tavily.com"
	}
	return &SearchClient{
		BaseURL: base,
		APIKey:  strings.TrimSpace(apiKey),
		Depth:   "advanced",
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *SearchClient) Search(ctx context.Context, query string) (SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return SearchResult{}, fmt.Errorf("search query is empty")
	}
	body := map[string]any{
		"api_key":      c.APIKey,
		"query":        query,
		"search_depth": c.Depth,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return SearchResult{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/search", bytes.NewReader(b))
	if err != nil {
		return SearchResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpClient := c.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SearchResult{}, fmt.Errorf("search API status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out SearchResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return SearchResult{}, fmt.Errorf("decode search response: %w", err)
	}
	if out.Query == "" {
		out.Query = query
	}
	return out, nil
}
