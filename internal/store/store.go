// Package store persists fetched sources and the domain blacklist shared by
// research calls.
package store

import (
	"context"

	"github.com/sells-group/forecast-cli/internal/model"
)

// Store is the source cache and blacklist. Writes are insert-or-skip: racing
// research calls that insert the same link or domain never fail each other.
type Store interface {
	// Blacklist
	CheckBlacklisted(ctx context.Context, domains []string) (map[string]bool, error)
	AddToBlacklist(ctx context.Context, entries []model.BlacklistEntry) error

	// Sources
	CheckExisting(ctx context.Context, links []string) (map[string]model.Source, error)
	GetSource(ctx context.Context, link string) (*model.Source, error)
	AddSources(ctx context.Context, sources []model.Source) error
	UpdateSummary(ctx context.Context, link, summary string) error
	AddQueryToSource(ctx context.Context, link, query string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// uniqueStrings drops empties and duplicates, keeping order.
func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// uniqueEntries keeps the first entry per domain.
func uniqueEntries(in []model.BlacklistEntry) []model.BlacklistEntry {
	seen := make(map[string]bool, len(in))
	out := make([]model.BlacklistEntry, 0, len(in))
	for _, e := range in {
		if e.Domain == "" || seen[e.Domain] {
			continue
		}
		seen[e.Domain] = true
		out = append(out, e)
	}
	return out
}

// uniqueSources keeps the first source per link.
func uniqueSources(in []model.Source) []model.Source {
	seen := make(map[string]bool, len(in))
	out := make([]model.Source, 0, len(in))
	for _, s := range in {
		if s.Link == "" || seen[s.Link] {
			continue
		}
		seen[s.Link] = true
		out = append(out, s)
	}
	return out
}

// sourceQueries returns the query associations to persist for s.
func sourceQueries(s model.Source) []string {
	qs := append([]string{}, s.Queries...)
	if s.Query != "" {
		qs = append(qs, s.Query)
	}
	return uniqueStrings(qs)
}
