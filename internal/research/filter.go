package research

import (
	"strings"
	"time"

	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/internal/pubdate"
	"github.com/sells-group/forecast-cli/internal/scrape"
)

// ShapeQueries keeps at most breadth queries and, when a cutoff is set,
// appends the search provider's date restriction to each.
func ShapeQueries(queries []string, breadth int, cutoff *time.Time) []string {
	if breadth < 0 {
		breadth = 0
	}
	if len(queries) > breadth {
		queries = queries[:breadth]
	}
	suffix := ""
	if cutoff != nil {
		suffix = " before:" + cutoff.Format(pubdate.SearchLayout)
	}
	out := make([]string, len(queries))
	for i, q := range queries {
		out[i] = q + suffix
	}
	return out
}

// FilterLinks drops hits the link filter denies from every list.
func FilterLinks(results [][]model.SearchResult, f *scrape.LinkFilter) [][]model.SearchResult {
	out := make([][]model.SearchResult, len(results))
	for i, list := range results {
		kept := make([]model.SearchResult, 0, len(list))
		for _, r := range list {
			if f.IsDenied(r.Link) {
				continue
			}
			kept = append(kept, r)
		}
		out[i] = kept
	}
	return out
}

// DeduplicateByDomain keeps the first hit per domain across all lists,
// walking lists in order. Positions are preserved, so a list whose hits
// were all seen earlier becomes empty rather than disappearing.
func DeduplicateByDomain(results [][]model.SearchResult) [][]model.SearchResult {
	seen := make(map[string]bool)
	out := make([][]model.SearchResult, len(results))
	for i, list := range results {
		kept := make([]model.SearchResult, 0, len(list))
		for _, r := range list {
			d := r.Domain()
			if seen[d] {
				continue
			}
			seen[d] = true
			kept = append(kept, r)
		}
		out[i] = kept
	}
	return out
}

// dropBlacklisted removes hits on blacklisted domains.
func dropBlacklisted(results [][]model.SearchResult, blacklisted map[string]bool) [][]model.SearchResult {
	if len(blacklisted) == 0 {
		return results
	}
	out := make([][]model.SearchResult, len(results))
	for i, list := range results {
		kept := make([]model.SearchResult, 0, len(list))
		for _, r := range list {
			if blacklisted[r.Domain()] {
				continue
			}
			kept = append(kept, r)
		}
		out[i] = kept
	}
	return out
}

func domainsOf(results [][]model.SearchResult) []string {
	var out []string
	for _, list := range results {
		for _, r := range list {
			if d := r.Domain(); d != "" {
				out = append(out, d)
			}
		}
	}
	return out
}

func linksOf(results [][]model.SearchResult) []string {
	var out []string
	for _, list := range results {
		for _, r := range list {
			out = append(out, r.Link)
		}
	}
	return out
}

// TruncateWords collapses whitespace and keeps the first max words.
func TruncateWords(text string, max int) string {
	words := strings.Fields(text)
	if max > 0 && len(words) > max {
		words = words[:max]
	}
	return strings.Join(words, " ")
}
