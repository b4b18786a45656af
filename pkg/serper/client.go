// Package serper is a client for the Serper Google Search API.
package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/forecast-cli/internal/resilience"
)

const defaultBaseURL = "https://google.serper.dev"

// Vertical selects the Serper endpoint.
type Vertical string

const (
	Search Vertical = "search"
	News   Vertical = "news"
)

// resultKey is the response field holding the hits for a vertical.
func (v Vertical) resultKey() string {
	if v == News {
		return "news"
	}
	return "organic"
}

// Client issues batched search requests. One call sends every query in a
// single request and returns one result list per query, positionally.
type Client interface {
	Search(ctx context.Context, vertical Vertical, queries []string) ([][]Result, error)
}

// Result is a single ranked hit.
type Result struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Date     string `json:"date,omitempty"`
	Position int    `json:"position,omitempty"`
}

type queryBody struct {
	Q string `json:"q"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Serper API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, vertical Vertical, queries []string) ([][]Result, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	payload := make([]queryBody, len(queries))
	for i, q := range queries {
		payload[i] = queryBody{Q: q}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "serper: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+string(vertical), bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "serper: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "serper: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "serper: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.HTTPStatusError("serper", resp.StatusCode, respBody)
	}

	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, eris.Wrap(err, "serper: unmarshal response")
	}

	out := make([][]Result, len(queries))
	key := vertical.resultKey()
	for i := range out {
		if i >= len(raw) {
			break
		}
		hits, ok := raw[i][key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(hits, &out[i]); err != nil {
			return nil, eris.Wrapf(err, "serper: unmarshal %s results", key)
		}
	}
	return out, nil
}
