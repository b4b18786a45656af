package scrape

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/forecast-cli/pkg/jina"
)

// --- Jina Mock ---

type mockJinaClient struct {
	mock.Mock
}

func (m *mockJinaClient) Read(ctx context.Context, targetURL string) (*jina.ReadResponse, error) {
	args := m.Called(ctx, targetURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jina.ReadResponse), args.Error(1)
}

func (m *mockJinaClient) Search(ctx context.Context, query string, opts ...jina.SearchOption) (*jina.SearchResponse, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jina.SearchResponse), args.Error(1)
}

// --- Fetcher Stub ---

type stubFetcher struct {
	name     string
	supports bool
	article  *Article
	err      error
	calls    int
}

func (s *stubFetcher) Name() string           { return s.name }
func (s *stubFetcher) Supports(_ string) bool { return s.supports }
func (s *stubFetcher) Fetch(_ context.Context, _ string) (*Article, error) {
	s.calls++
	return s.article, s.err
}
