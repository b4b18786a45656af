package model

import (
	"net/url"
	"strings"
	"time"
)

// UnknownDate is the sentinel stored when a publish date cannot be resolved.
const UnknownDate = "Unknown"

// SearchResult is a single ranked hit returned by a search provider.
type SearchResult struct {
	Link    string `json:"link"`
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
	Date    string `json:"date,omitempty"`
}

// Domain returns the normalized host of the result link.
func (r SearchResult) Domain() string {
	return Domain(r.Link)
}

// Source is a fetched article. Link is its identity in the cache.
type Source struct {
	Link              string    `json:"link"`
	Title             string    `json:"title"`
	Snippet           string    `json:"snippet,omitempty"`
	Query             string    `json:"query"`
	Queries           []string  `json:"queries,omitempty"`
	Date              string    `json:"date"`
	Favicon           string    `json:"favicon,omitempty"`
	News              bool      `json:"news,omitempty"`
	RawContent        string    `json:"raw_content,omitempty"`
	SummarizedContent string    `json:"summarized_content"`
	CreatedAt         time.Time `json:"-"`
	UpdatedAt         time.Time `json:"-"`
}

// Domain returns the normalized host of the source link.
func (s Source) Domain() string {
	return Domain(s.Link)
}

// AddQuery records q as one of the queries that surfaced this source.
// It reports whether the association is new.
func (s *Source) AddQuery(q string) bool {
	if q == "" {
		return false
	}
	for _, existing := range s.Queries {
		if existing == q {
			return false
		}
	}
	s.Queries = append(s.Queries, q)
	return true
}

// View returns a copy without the raw article body.
func (s Source) View() Source {
	s.RawContent = ""
	return s
}

// BlacklistEntry marks a domain whose articles could not be fetched.
type BlacklistEntry struct {
	Domain       string `json:"domain"`
	URL          string `json:"url"`
	ErrorMessage string `json:"error_message"`
}

// Domain lowercases the host portion of link. Ports are kept, so
// "example.com:8080" and "example.com" are different domains.
// Unparseable links return "".
func Domain(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
