// Package search fetches fresh facts for time-sensitive questions.
package search

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

// Result is one augmentation fact.
type Result struct {
	Fact    string   `json:"fact"`
	Sources []string `json:"sources"`
	Cost    int64    `json:"cost"`
}

// Searcher looks up a fact for query. A nil result with a nil error means
// nothing useful was found.
type Searcher interface {
	Search(ctx context.Context, query, location string) (*Result, error)
}

// Noop never finds anything.
type Noop struct{}

func (Noop) Search(context.Context, string, string) (*Result, error) { return nil, nil }

// Client calls an HTTP search service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a Client for baseURL, or Noop when baseURL is empty.
func New(baseURL string, timeout time.Duration) Searcher {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return Noop{}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type searchRequest struct {
	Query    string `json:"query"`
	Location string `json:"location,omitempty"`
}

// Search posts the query to {base}/search.
func (c *Client) Search(ctx context.Context, query, location string) (*Result, error) {
	body, err := json.Marshal(searchRequest{Query: query, Location: location})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search error [%d]: %s", resp.StatusCode, string(respBody))
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal search response: %w", err)
	}
	if strings.TrimSpace(result.Fact) == "" {
		return nil, nil
	}
	if result.Cost < 0 {
		result.Cost = 0
	}
	return &result, nil
}
