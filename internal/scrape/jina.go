package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/forecast-cli/internal/pubdate"
	"github.com/sells-group/forecast-cli/internal/resilience"
	"github.com/sells-group/forecast-cli/pkg/jina"
)

// JinaFetcher reads pages through the Jina Reader API. It is the fallback for
// pages the local fetcher cannot render.
type JinaFetcher struct {
	client  jina.Client
	breaker *resilience.CircuitBreaker
}

// NewJinaFetcher wraps client. Three failures in a row take Jina out of the
// chain for a minute.
func NewJinaFetcher(client jina.Client) *JinaFetcher {
	return &JinaFetcher{
		client: client,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "jina",
			FailureThreshold: 3,
			ResetTimeout:     60 * time.Second,
		}),
	}
}

func (j *JinaFetcher) Name() string { return "jina" }

// Supports is false while the breaker is open so the chain skips straight to
// the next fetcher.
func (j *JinaFetcher) Supports(_ string) bool {
	return j.breaker.Allow()
}

// Fetch reads targetURL via Jina Reader and validates the response.
func (j *JinaFetcher) Fetch(ctx context.Context, targetURL string) (*Article, error) {
	resp, err := resilience.ExecuteVal(ctx, j.breaker, func(ctx context.Context) (*jina.ReadResponse, error) {
		resp, err := j.client.Read(ctx, targetURL)
		if err != nil {
			return nil, err
		}
		if needsFallback(resp) {
			return nil, eris.New("jina: response needs fallback")
		}
		return resp, nil
	})
	if err != nil {
		return nil, &FetchError{URL: targetURL, Err: err}
	}

	date := pubdate.Unknown
	if resp.Data.PublishedTime != "" {
		date = pubdate.Parse(resp.Data.PublishedTime)
	}
	link := resp.Data.URL
	if link == "" {
		link = targetURL
	}
	return &Article{
		URL:     link,
		Title:   resp.Data.Title,
		Date:    date,
		Content: strings.TrimSpace(resp.Data.Content),
		Source:  j.Name(),
	}, nil
}

// Reader responses shorter than jinaMinContent carry no article; ones longer
// than jinaShortContent are never just a bot wall.
const (
	jinaMinContent   = 100
	jinaShortContent = 1000
)

// jinaWallText is wall text Jina renders as markdown, on top of the raw HTML
// signatures DetectBlock looks for.
var jinaWallText = containsAny(
	"enable javascript",
	"please enable cookies",
	"access denied",
	"403 forbidden",
	"just a moment",
	"attention required",
)

// needsFallback reports whether a reader response is unusable.
func needsFallback(resp *jina.ReadResponse) bool {
	if resp == nil || (resp.Code != 0 && resp.Code != 200) {
		return true
	}
	content := strings.TrimSpace(resp.Data.Content)
	switch {
	case len(content) < jinaMinContent:
		return true
	case len(content) >= jinaShortContent:
		return false
	}

	lower := strings.ToLower(content)
	for _, sig := range bodySignatures {
		if sig.match(lower) {
			return true
		}
	}
	return jinaWallText(lower)
}
