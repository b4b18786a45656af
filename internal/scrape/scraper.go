// Package scrape fetches single news articles and extracts their body text,
// publish date and favicon.
package scrape

import "context"

// Article is the extracted content of one page.
type Article struct {
	URL     string
	Title   string
	Favicon string
	Date    string // pubdate.Layout or pubdate.Unknown
	Content string
	Source  string // e.g. "local_http", "jina"
}

// Fetcher retrieves a single URL and extracts its article.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Article, error)
	Name() string
	Supports(url string) bool
}

// FetchError carries the URL whose extraction failed.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return "scrape: fetch " + e.URL + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
