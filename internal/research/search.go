package research

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/pkg/jina"
	"github.com/sells-group/forecast-cli/pkg/serper"
)

// Searcher runs one batch of queries against a search provider. Results are
// positional: out[i] holds the ranked hits for queries[i].
type Searcher interface {
	Name() string
	Search(ctx context.Context, searchType model.SearchType, queries []string) ([][]model.SearchResult, error)
}

// SerperSearcher sends each batch as a single Serper request.
type SerperSearcher struct {
	client serper.Client
}

// NewSerperSearcher wraps a Serper client.
func NewSerperSearcher(client serper.Client) *SerperSearcher {
	return &SerperSearcher{client: client}
}

func (s *SerperSearcher) Name() string { return "serper" }

func (s *SerperSearcher) Search(ctx context.Context, searchType model.SearchType, queries []string) ([][]model.SearchResult, error) {
	vertical := serper.News
	if searchType == model.SearchTypeWeb {
		vertical = serper.Search
	}

	resp, err := s.client.Search(ctx, vertical, queries)
	if err != nil {
		return nil, eris.Wrap(err, "research: serper search")
	}

	out := make([][]model.SearchResult, len(queries))
	for i := range out {
		if i >= len(resp) {
			break
		}
		hits := make([]model.SearchResult, 0, len(resp[i]))
		for _, r := range resp[i] {
			hits = append(hits, model.SearchResult{
				Link:    r.Link,
				Title:   r.Title,
				Snippet: r.Snippet,
				Date:    r.Date,
			})
		}
		out[i] = hits
	}
	return out, nil
}

// JinaSearcher fans a batch out as one Jina search per query. Jina has no
// news vertical, so searchType is ignored.
type JinaSearcher struct {
	client      jina.Client
	concurrency int
}

// NewJinaSearcher wraps a Jina client. concurrency bounds in-flight
// searches per batch; values below 1 mean unbounded.
func NewJinaSearcher(client jina.Client, concurrency int) *JinaSearcher {
	return &JinaSearcher{client: client, concurrency: concurrency}
}

func (s *JinaSearcher) Name() string { return "jina" }

func (s *JinaSearcher) Search(ctx context.Context, _ model.SearchType, queries []string) ([][]model.SearchResult, error) {
	out := make([][]model.SearchResult, len(queries))

	var (
		mu     sync.Mutex
		failed int
		last   error
	)
	g, gCtx := errgroup.WithContext(ctx)
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}
	for i, q := range queries {
		g.Go(func() error {
			resp, err := s.client.Search(gCtx, q, jina.WithoutContent())
			if err != nil {
				zap.L().Warn("research: jina search failed", zap.String("query", q), zap.Error(err))
				mu.Lock()
				failed++
				last = err
				mu.Unlock()
				return nil
			}
			hits := make([]model.SearchResult, 0, len(resp.Data))
			for _, r := range resp.Data {
				hits = append(hits, model.SearchResult{
					Link:    r.URL,
					Title:   r.Title,
					Snippet: r.Description,
					Date:    r.PublishedTime,
				})
			}
			out[i] = hits
			return nil
		})
	}
	_ = g.Wait()

	if len(queries) > 0 && failed == len(queries) {
		return nil, eris.Wrap(last, "research: jina search")
	}
	return out, nil
}
