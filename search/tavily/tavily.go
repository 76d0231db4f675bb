// Package tavily implements search.Searcher against the Tavily search API.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hupe1980/recallmesh/core"
	"github.com/hupe1980/recallmesh/search"
)

// DefaultEndpoint is the Tavily search endpoint.
const DefaultEndpoint = "https://api.tavily.com/search"

// Compile-time assertion
var _ search.Searcher = (*Client)(nil)

// Options configure the client.
type Options struct {
	Endpoint   string
	HTTPClient *http.Client
}

// Client is a minimal Tavily API client.
type Client struct {
	apiKey   string
	endpoint string
	http     *http.Client
}

// New creates a client authenticating with apiKey.
func New(apiKey string, optFns ...func(o *Options)) *Client {
	opts := Options{
		Endpoint:   DefaultEndpoint,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{apiKey: apiKey, endpoint: opts.Endpoint, http: opts.HTTPClient}
}

type request struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth,omitempty"`
}

type response struct {
	Results []search.Result `json:"results"`
}

// Search queries Tavily. Every transport, status or decoding failure wraps
// core.ErrExternalService.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]search.Result, error) {
	if maxResults <= 0 {
		maxResults = 1
	}

	body, err := json.Marshal(request{Query: query, MaxResults: maxResults, SearchDepth: "basic"})
	if err != nil {
		return nil, fmt.Errorf("encode tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tavily request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: tavily: %v", core.ErrExternalService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: tavily status %d: %s", core.ErrExternalService, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode tavily response: %v", core.ErrExternalService, err)
	}

	if len(out.Results) > maxResults {
		out.Results = out.Results[:maxResults]
	}

	return out.Results, nil
}
