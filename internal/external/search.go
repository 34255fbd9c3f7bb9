package external

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SearchResult is one organic web result.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Search runs web searches.
type Search interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// SerpAPI queries serpapi.com with the Google engine.
type SerpAPI struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewSerpAPI creates a SerpAPI client.
func NewSerpAPI(apiKey string, timeout time.Duration) *SerpAPI {
	return &SerpAPI{baseURL: "https://serpapi.com", apiKey: apiKey, client: newHTTPClient(timeout)}
}

// WithBaseURL points the client at another endpoint. Used by tests.
func (s *SerpAPI) WithBaseURL(u string) *SerpAPI {
	s.baseURL = strings.TrimRight(u, "/")
	return s
}

// Search returns at most the first five organic results.
func (s *SerpAPI) Search(ctx context.Context, query string) ([]SearchResult, error) {
	if s.apiKey == "" {
		return nil, ErrNotConfigured
	}
	q := url.Values{}
	q.Set("engine", "google")
	q.Set("q", query)
	q.Set("api_key", s.apiKey)

	var out struct {
		OrganicResults []SearchResult `json:"organic_results"`
	}
	if err := doJSON(ctx, s.client, http.MethodGet, s.baseURL+"/search.json?"+q.Encode(), nil, nil, &out); err != nil {
		return nil, err
	}
	if len(out.OrganicResults) > 5 {
		out.OrganicResults = out.OrganicResults[:5]
	}
	return out.OrganicResults, nil
}
