package research

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/internal/scrape"
)

func TestShapeQueries(t *testing.T) {
	t.Parallel()

	cutoff := time.Date(2024, 3, 22, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		queries []string
		breadth int
		cutoff  *time.Time
		want    []string
	}{
		{"truncates", []string{"a", "b", "c"}, 2, nil, []string{"a", "b"}},
		{"shorter than breadth", []string{"a"}, 5, nil, []string{"a"}},
		{"zero breadth", []string{"a"}, 0, nil, []string{}},
		{"negative breadth", []string{"a"}, -1, nil, []string{}},
		{"cutoff suffix", []string{"a", "b"}, 5, &cutoff, []string{"a before:2024-03-22", "b before:2024-03-22"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ShapeQueries(tt.queries, tt.breadth, tt.cutoff))
		})
	}
}

func TestDeduplicateByDomain_FirstWins(t *testing.T) {
	t.Parallel()

	in := [][]model.SearchResult{
		{{Link: "https://a.com/1"}, {Link: "https://b.com/1"}, {Link: "https://a.com/2"}},
		{{Link: "https://B.com/2"}, {Link: "https://a.com/3"}},
		{{Link: "https://c.com/1"}},
	}
	got := DeduplicateByDomain(in)

	assert.Len(t, got, 3)
	assert.Equal(t, []model.SearchResult{{Link: "https://a.com/1"}, {Link: "https://b.com/1"}}, got[0])
	assert.Empty(t, got[1])
	assert.Equal(t, []model.SearchResult{{Link: "https://c.com/1"}}, got[2])

	seen := map[string]int{}
	for _, list := range got {
		for _, r := range list {
			seen[r.Domain()]++
		}
	}
	for d, n := range seen {
		assert.Equal(t, 1, n, d)
	}
}

func TestFilterLinks(t *testing.T) {
	t.Parallel()

	in := [][]model.SearchResult{
		{{Link: "https://www.youtube.com/watch"}, {Link: "https://news.com/a"}},
		{{Link: "https://x.com/report.PDF"}, {Link: "https://www.linkedin.com/post"}},
	}
	got := FilterLinks(in, scrape.NewLinkFilter(nil))

	assert.Equal(t, []model.SearchResult{{Link: "https://news.com/a"}}, got[0])
	assert.Empty(t, got[1])
}

func TestDropBlacklisted(t *testing.T) {
	t.Parallel()

	in := [][]model.SearchResult{{{Link: "https://bad.com/a"}, {Link: "https://good.com/b"}}}
	got := dropBlacklisted(in, map[string]bool{"bad.com": true})
	assert.Equal(t, []model.SearchResult{{Link: "https://good.com/b"}}, got[0])

	assert.Equal(t, in, dropBlacklisted(in, nil))
}

func TestTruncateWords(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "one two", TruncateWords("one   two\n three", 2))
	assert.Equal(t, "one two three", TruncateWords(" one two\tthree ", 10))
	assert.Equal(t, "one two", TruncateWords("one two", 0))
	assert.Empty(t, TruncateWords("   ", 5))
}
