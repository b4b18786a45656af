package scrape

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html/charset"

	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/internal/ratelimit"
)

const (
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxPageBytes = 2 << 20
)

// LocalFetcher downloads HTML via net/http, detects bot walls, and extracts
// the article on a ParsePool. Free, no API calls.
type LocalFetcher struct {
	client  *http.Client
	limiter *ratelimit.HostLimiter
	pool    *ParsePool
}

// LocalOption configures a LocalFetcher.
type LocalOption func(*LocalFetcher)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) LocalOption {
	return func(l *LocalFetcher) {
		l.client = c
	}
}

// WithHostLimiter throttles requests per host.
func WithHostLimiter(h *ratelimit.HostLimiter) LocalOption {
	return func(l *LocalFetcher) {
		l.limiter = h
	}
}

// WithParsePool moves extraction onto pool.
func WithParsePool(pool *ParsePool) LocalOption {
	return func(l *LocalFetcher) {
		l.pool = pool
	}
}

// NewLocalFetcher creates a LocalFetcher. timeout bounds each page download.
func NewLocalFetcher(timeout time.Duration, opts ...LocalOption) *LocalFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	l := &LocalFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *LocalFetcher) Name() string           { return "local_http" }
func (l *LocalFetcher) Supports(_ string) bool { return true }

// Fetch downloads targetURL and extracts its article.
func (l *LocalFetcher) Fetch(ctx context.Context, targetURL string) (*Article, error) {
	host := model.Domain(targetURL)
	if err := l.limiter.Wait(ctx, host); err != nil {
		return nil, &FetchError{URL: targetURL, Err: eris.Wrap(err, "local_http: rate limit wait")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, &FetchError{URL: targetURL, Err: eris.Wrap(err, "local_http: create request")}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: targetURL, Err: eris.Wrap(err, "local_http: fetch")}
	}
	defer func() { _ = resp.Body.Close() }()
	l.limiter.Observe(host, resp.StatusCode)

	var r io.Reader = io.LimitReader(resp.Body, maxPageBytes)
	if utf8, cerr := charset.NewReader(r, resp.Header.Get("Content-Type")); cerr == nil {
		r = utf8
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, &FetchError{URL: targetURL, Err: eris.Wrap(err, "local_http: read body")}
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		return nil, &FetchError{URL: targetURL, Err: &BlockedError{Type: blockType}}
	}
	if resp.StatusCode >= 400 {
		return nil, &FetchError{URL: targetURL, Err: eris.Errorf("local_http: status %d", resp.StatusCode)}
	}
	if len(body) < 100 {
		return nil, &FetchError{URL: targetURL, Err: eris.New("local_http: empty page")}
	}

	art, err := l.pool.Submit(ctx, targetURL, body)
	if err != nil {
		return nil, &FetchError{URL: targetURL, Err: err}
	}
	art.Source = l.Name()
	return art, nil
}
