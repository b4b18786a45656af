package scrape

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Chain tries fetchers in priority order, returning the first success.
type Chain struct {
	fetchers []Fetcher
}

// NewChain creates a Chain. Fetchers are tried in order; the first
// successful result is returned.
func NewChain(fetchers ...Fetcher) *Chain {
	return &Chain{fetchers: fetchers}
}

func (c *Chain) Name() string { return "chain" }

// Supports reports whether any fetcher accepts url.
func (c *Chain) Supports(url string) bool {
	for _, f := range c.fetchers {
		if f.Supports(url) {
			return true
		}
	}
	return false
}

// Fetch tries each fetcher in order for a single URL. When all fail the
// returned *FetchError carries the first fetcher's cause, since later
// fetchers are remote readers whose own outages say nothing about the page.
// A bot wall hit by any of them is reported instead.
func (c *Chain) Fetch(ctx context.Context, targetURL string) (*Article, error) {
	var firstErr, bypassErr error
	for _, f := range c.fetchers {
		if !f.Supports(targetURL) {
			continue
		}
		art, err := f.Fetch(ctx, targetURL)
		if err == nil && art != nil {
			return art, nil
		}
		if err != nil {
			zap.L().Debug("scrape: fetcher failed, trying next",
				zap.String("fetcher", f.Name()),
				zap.String("url", targetURL),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
			if bypassErr == nil && IsRateLimitBypass(err) {
				bypassErr = err
			}
		}
		if ctx.Err() != nil {
			break
		}
	}

	cause := firstErr
	if bypassErr != nil {
		cause = bypassErr
	}
	if cause == nil {
		return nil, &FetchError{URL: targetURL, Err: eris.New("scrape: no suitable fetcher")}
	}
	var fe *FetchError
	if errors.As(cause, &fe) {
		return nil, fe
	}
	return nil, &FetchError{URL: targetURL, Err: cause}
}
