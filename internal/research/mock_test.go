package research

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/forecast-cli/internal/llm"
	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/internal/scrape"
	"github.com/sells-group/forecast-cli/internal/store"
	"github.com/sells-group/forecast-cli/pkg/jina"
)

// --- Searcher ---

type fakeSearcher struct {
	mu       sync.Mutex
	results  map[string][]model.SearchResult // keyed by query
	failOn   map[int]bool                    // batch index, 0-based
	batches  [][]string
	lastType model.SearchType
}

func (f *fakeSearcher) Name() string { return "fake" }

func (f *fakeSearcher) Search(_ context.Context, searchType model.SearchType, queries []string) ([][]model.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.batches)
	f.batches = append(f.batches, append([]string(nil), queries...))
	f.lastType = searchType
	if f.failOn[idx] {
		return nil, eris.New("status 402: out of credit")
	}
	out := make([][]model.SearchResult, len(queries))
	for i, q := range queries {
		out[i] = f.results[q]
	}
	return out, nil
}

func (f *fakeSearcher) searched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

// --- Fetcher ---

type fakeFetcher struct {
	mu       sync.Mutex
	articles map[string]*scrape.Article
	errs     map[string]error
	block    chan struct{} // when set, Fetch waits for it or ctx
	fetched  []string
}

func (f *fakeFetcher) Name() string           { return "fake" }
func (f *fakeFetcher) Supports(_ string) bool { return true }

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*scrape.Article, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, url)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := f.errs[url]; ok {
		return nil, &scrape.FetchError{URL: url, Err: err}
	}
	if art, ok := f.articles[url]; ok {
		return art, nil
	}
	return nil, &scrape.FetchError{URL: url, Err: eris.New("status 404")}
}

func (f *fakeFetcher) fetchedLinks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

// --- Agent ---

type fakeAgent struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (a *fakeAgent) Model() string { return "gpt-4o-mini" }

func (a *fakeAgent) Complete(_ context.Context, req llm.Request) (string, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	if a.err != nil {
		return llm.FallbackOutput, a.err
	}
	prompt := req.Messages[len(req.Messages)-1].Content
	body := prompt[strings.Index(prompt, "Article: ")+len("Article: "):]
	body = body[:strings.Index(body, "\n")]
	return "summary: " + body, nil
}

func (a *fakeAgent) Stream(ctx context.Context, req llm.Request, fn func(string) error) error {
	text, err := a.Complete(ctx, req)
	if err != nil {
		return err
	}
	return fn(text)
}

func (a *fakeAgent) CompleteAsync(ctx context.Context, req llm.Request) <-chan llm.Completion {
	out := make(chan llm.Completion, 1)
	go func() {
		text, err := a.Complete(ctx, req)
		out <- llm.Completion{Text: text, Err: err}
	}()
	return out
}

func (a *fakeAgent) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// --- Store ---

// failingStore fails every read and write.
type failingStore struct {
	store.MemoryStore
}

var errStoreDown = eris.New("store unavailable")

func (s *failingStore) CheckBlacklisted(context.Context, []string) (map[string]bool, error) {
	return nil, errStoreDown
}

func (s *failingStore) CheckExisting(context.Context, []string) (map[string]model.Source, error) {
	return nil, errStoreDown
}

func (s *failingStore) AddSources(context.Context, []model.Source) error { return errStoreDown }

func (s *failingStore) AddToBlacklist(context.Context, []model.BlacklistEntry) error {
	return errStoreDown
}

// --- Jina ---

type fakeJina struct {
	mu      sync.Mutex
	results map[string][]jina.SearchResult
	errs    map[string]error
}

func (f *fakeJina) Read(context.Context, string) (*jina.ReadResponse, error) {
	return nil, eris.New("not implemented")
}

func (f *fakeJina) Search(_ context.Context, query string, _ ...jina.SearchOption) (*jina.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	return &jina.SearchResponse{Code: 200, Data: f.results[query]}, nil
}
