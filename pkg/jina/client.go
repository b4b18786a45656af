// Package jina is a client for the Jina Reader (r.jina.ai) and Search
// (s.jina.ai) APIs.
package jina

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/forecast-cli/internal/resilience"
)

const (
	defaultBaseURL       = "https://r.jina.ai"
	defaultSearchBaseURL = "https://s.jina.ai"
	readerTimeoutSecs    = 20
)

// Client reads articles and runs web searches through Jina.
type Client interface {
	// Read renders targetURL and returns its main content as markdown.
	Read(ctx context.Context, targetURL string) (*ReadResponse, error)
	// Search runs one web search.
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
}

// ReadResponse is the Reader API envelope.
type ReadResponse struct {
	Code int      `json:"code"`
	Data ReadData `json:"data"`
}

// ReadData is a rendered page.
type ReadData struct {
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	Content       string    `json:"content"`
	PublishedTime string    `json:"publishedTime,omitempty"`
	Usage         ReadUsage `json:"usage"`
}

// ReadUsage reports tokens billed for a read.
type ReadUsage struct {
	Tokens int `json:"tokens"`
}

// SearchResponse is the Search API envelope.
type SearchResponse struct {
	Code int            `json:"code"`
	Data []SearchResult `json:"data"`
}

// SearchResult is a single hit.
type SearchResult struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Content       string `json:"content"`
	Description   string `json:"description"`
	PublishedTime string `json:"publishedTime,omitempty"`
}

// SearchOption configures a search request.
type SearchOption func(*searchOpts)

type searchOpts struct {
	noContent bool
}

// WithoutContent asks for links and descriptions only. Page bodies are
// fetched separately, so this keeps search fast.
func WithoutContent() SearchOption {
	return func(o *searchOpts) {
		o.noContent = true
	}
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the Reader base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithSearchBaseURL overrides the Search base URL.
func WithSearchBaseURL(url string) Option {
	return func(c *httpClient) {
		c.searchBaseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey        string
	baseURL       string
	searchBaseURL string
	http          *http.Client
	retry         resilience.RetryConfig
}

// NewClient creates a Jina client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:        apiKey,
		baseURL:       defaultBaseURL,
		searchBaseURL: defaultSearchBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("jina", "request")
	}
	return c
}

// get issues req with retries on transient failures and returns the body of
// the final response along with its status.
func (c *httpClient) get(ctx context.Context, req *http.Request) ([]byte, int, error) {
	var status int
	body, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		resp, err := c.http.Do(req.Clone(ctx))
		if err != nil {
			return nil, eris.Wrap(err, "jina: send request")
		}
		defer resp.Body.Close() //nolint:errcheck

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "jina: read response")
		}
		status = resp.StatusCode
		if resilience.IsTransientHTTPStatus(status) {
			return nil, resilience.HTTPStatusError("jina", status, b)
		}
		return b, nil
	})
	return body, status, err
}

func (c *httpClient) newRequest(ctx context.Context, reqURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *httpClient) Read(ctx context.Context, targetURL string) (*ReadResponse, error) {
	req, err := c.newRequest(ctx, c.baseURL+"/"+targetURL)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Return-Format", "markdown")
	req.Header.Set("X-Retain-Images", "none")
	req.Header.Set("X-Timeout", strconv.Itoa(readerTimeoutSecs))

	body, status, err := c.get(ctx, req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, resilience.HTTPStatusError("jina", status, body)
	}

	var result ReadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal response")
	}
	return &result, nil
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	so := &searchOpts{}
	for _, opt := range opts {
		opt(so)
	}

	req, err := c.newRequest(ctx, c.searchBaseURL+"/"+url.QueryEscape(query))
	if err != nil {
		return nil, err
	}
	if so.noContent {
		req.Header.Set("X-Respond-With", "no-content")
	}

	body, status, err := c.get(ctx, req)
	if err != nil {
		return nil, err
	}
	// 422 means the query has no results.
	if status == http.StatusUnprocessableEntity {
		return &SearchResponse{Code: status}, nil
	}
	if status != http.StatusOK {
		return nil, resilience.HTTPStatusError("jina", status, body)
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal search response")
	}
	return &result, nil
}
