// Package research turns planned search queries into fetched, summarized
// sources. It owns all writes to the source cache and domain blacklist.
package research

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/forecast-cli/internal/llm"
	"github.com/sells-group/forecast-cli/internal/metrics"
	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/internal/pubdate"
	"github.com/sells-group/forecast-cli/internal/scrape"
	"github.com/sells-group/forecast-cli/internal/store"
)

const summaryPrompt = `I want to make the following article shorter (condense it to no more than 256 words).
Article: %s
When doing this task for me, please do not remove any details that would be helpful for making considerations about the following forecasting question.
Forecasting Question: %s

---
Only return the summarized article. Do not answer the forecasting question yourself. No yapping!
`

// Config tunes retrieval. Zero fields take the DefaultConfig value.
type Config struct {
	Depth            int // accepted sources per query
	MaxTrials        int // failed fetches per query before the miss is logged
	MaxWords         int
	BatchSize        int // queries per search request
	SummaryMaxTokens int
	FetchConcurrency int // concurrent per-query fetch units
}

// DefaultConfig returns the production retrieval settings.
func DefaultConfig() Config {
	return Config{
		Depth:            1,
		MaxTrials:        5,
		MaxWords:         2048,
		BatchSize:        20,
		SummaryMaxTokens: 512,
		FetchConcurrency: runtime.NumCPU() * 4,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Depth <= 0 {
		c.Depth = d.Depth
	}
	if c.MaxTrials <= 0 {
		c.MaxTrials = d.MaxTrials
	}
	if c.MaxWords <= 0 {
		c.MaxWords = d.MaxWords
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.SummaryMaxTokens <= 0 {
		c.SummaryMaxTokens = d.SummaryMaxTokens
	}
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = d.FetchConcurrency
	}
	return c
}

// Params are the per-request retrieval settings.
type Params struct {
	Breadth    int
	Cutoff     *time.Time
	SearchType model.SearchType
}

// Progress is one snapshot of retrieval. Intermediate snapshots hold every
// source fetched so far and only grow; the Final one holds the summarized
// result.
type Progress struct {
	Sources []model.Source
	Final   bool
}

// Engine runs research calls. It is safe for concurrent use; calls share
// only the store.
type Engine struct {
	cfg        Config
	searcher   Searcher
	fetcher    scrape.Fetcher
	store      store.Store
	summarizer llm.Agent
	links      *scrape.LinkFilter
	metrics    *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLinkFilter replaces the default link denylist.
func WithLinkFilter(f *scrape.LinkFilter) Option {
	return func(e *Engine) { e.links = f }
}

// WithMetrics records retrieval metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine with all dependencies.
func New(
	cfg Config,
	searcher Searcher,
	fetcher scrape.Fetcher,
	st store.Store,
	summarizer llm.Agent,
	opts ...Option,
) *Engine {
	e := &Engine{
		cfg:        cfg.withDefaults(),
		searcher:   searcher,
		fetcher:    fetcher,
		store:      st,
		summarizer: summarizer,
		links:      scrape.NewLinkFilter(nil),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// fetchUnit is the outcome of fetching for one query.
type fetchUnit struct {
	sources []model.Source
	failed  []model.BlacklistEntry
}

// Research searches, fetches and summarizes sources for queries. The
// channel yields one snapshot per completed query and then a Final snapshot
// before closing. Cancelling ctx abandons in-flight work and closes the
// channel without a Final snapshot.
func (e *Engine) Research(ctx context.Context, queries []string, question string, p Params) <-chan Progress {
	out := make(chan Progress)
	go func() {
		defer close(out)
		e.run(ctx, queries, question, p, out)
	}()
	return out
}

func (e *Engine) run(ctx context.Context, queries []string, question string, p Params, out chan<- Progress) {
	log := zap.L().With(zap.String("search_provider", e.searcher.Name()))
	t := newStageTimer()

	queries = ShapeQueries(queries, p.Breadth, p.Cutoff)
	results := e.search(ctx, p.SearchType, queries)
	results = DeduplicateByDomain(FilterLinks(results, e.links))
	e.metrics.Stage("search", t.lap("search"))

	results, cached := e.preprocess(ctx, results)
	e.metrics.Stage("preprocess", t.lap("preprocess"))

	units := make(chan fetchUnit, len(queries))
	g := new(errgroup.Group)
	g.SetLimit(e.cfg.FetchConcurrency)
	go func() {
		for i, q := range queries {
			g.Go(func() error {
				units <- e.fetchForQuery(ctx, q, results[i], cached, p.Cutoff)
				return nil
			})
		}
		_ = g.Wait()
		close(units)
	}()

	var (
		fetched []model.Source
		failed  []model.BlacklistEntry
	)
	for u := range units {
		fetched = append(fetched, u.sources...)
		failed = append(failed, u.failed...)
		if !emit(ctx, out, Progress{Sources: cloneSources(fetched)}) {
			return
		}
	}
	if ctx.Err() != nil {
		return
	}
	e.metrics.Stage("fetch", t.lap("fetch"))

	e.summarize(ctx, fetched, question)
	e.metrics.Stage("summarize", t.lap("summarize"))

	e.writeBack(ctx, fetched, cached, failed)
	e.metrics.Stage("cache", t.lap("cache"))

	t.log(log, len(queries), len(fetched), len(failed))
	emit(ctx, out, Progress{Sources: fetched, Final: true})
}

// search issues the queries in fixed-size batches. A failed batch leaves
// its positions empty.
func (e *Engine) search(ctx context.Context, searchType model.SearchType, queries []string) [][]model.SearchResult {
	out := make([][]model.SearchResult, len(queries))
	for start := 0; start < len(queries); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(queries))
		batch, err := e.searcher.Search(ctx, searchType, queries[start:end])
		e.metrics.Search(e.searcher.Name(), err)
		if err != nil {
			zap.L().Warn("research: search batch failed",
				zap.String("search_provider", e.searcher.Name()),
				zap.Int("batch", start/e.cfg.BatchSize+1),
				zap.Error(err),
			)
			continue
		}
		copy(out[start:end], batch)
	}
	return out
}

// preprocess drops blacklisted domains and looks up cached sources. Store
// failures degrade to no blacklist and no cache.
func (e *Engine) preprocess(ctx context.Context, results [][]model.SearchResult) ([][]model.SearchResult, map[string]model.Source) {
	blacklisted, err := e.store.CheckBlacklisted(ctx, domainsOf(results))
	if err != nil {
		zap.L().Warn("research: check blacklisted domains failed", zap.Error(err))
		blacklisted = nil
	}
	results = dropBlacklisted(results, blacklisted)

	cached, err := e.store.CheckExisting(ctx, linksOf(results))
	if err != nil {
		zap.L().Warn("research: check existing sources failed", zap.Error(err))
		cached = nil
	}
	if cached == nil {
		cached = map[string]model.Source{}
	}
	return results, cached
}

// fetchForQuery walks candidates in rank order until Depth sources are
// accepted or the candidates run out. Failures never end the walk early.
func (e *Engine) fetchForQuery(
	ctx context.Context,
	query string,
	candidates []model.SearchResult,
	cached map[string]model.Source,
	cutoff *time.Time,
) fetchUnit {
	var (
		unit   fetchUnit
		trials int
	)
	for _, c := range candidates {
		if len(unit.sources) >= e.cfg.Depth || ctx.Err() != nil {
			break
		}

		if src, ok := cached[c.Link]; ok {
			e.metrics.CacheHits(1)
			if !pubdate.ValidateAgainstCutoff(cutoff, src.Date) {
				continue
			}
			unit.sources = append(unit.sources, e.reuse(ctx, src, c, query))
			continue
		}

		art, err := e.fetcher.Fetch(ctx, c.Link)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if scrape.IsRateLimitBypass(err) {
				e.metrics.Fetch("bypass")
				zap.L().Debug("research: skipping bot-walled page", zap.String("url", c.Link))
				continue
			}
			trials++
			e.metrics.Fetch("error")
			zap.L().Info("research: fetch failed", zap.String("url", c.Link), zap.Error(err))
			unit.failed = append(unit.failed, model.BlacklistEntry{
				Domain:       c.Domain(),
				URL:          c.Link,
				ErrorMessage: err.Error(),
			})
			continue
		}

		date := art.Date
		if date == "" {
			date = pubdate.Unknown
		}
		if !pubdate.ValidateAgainstCutoff(cutoff, date) {
			e.metrics.Fetch("rejected")
			continue
		}
		e.metrics.Fetch("ok")
		unit.sources = append(unit.sources, newSource(c, art, query, date, e.cfg.MaxWords))
	}

	if len(unit.sources) == 0 && trials >= e.cfg.MaxTrials {
		zap.L().Info("research: no article fetched for query", zap.String("query", query), zap.Int("trials", trials))
	}
	return unit
}

// reuse returns a cached source for query, recording the association.
func (e *Engine) reuse(ctx context.Context, src model.Source, hit model.SearchResult, query string) model.Source {
	src.Queries = append([]string(nil), src.Queries...)
	if src.AddQuery(query) {
		if err := e.store.AddQueryToSource(ctx, src.Link, query); err != nil {
			zap.L().Warn("research: add query to cached source failed", zap.String("url", src.Link), zap.Error(err))
		}
	}
	src.Query = query
	if src.Title == "" {
		src.Title = hit.Title
	}
	if src.Snippet == "" {
		src.Snippet = hit.Snippet
	}
	return src
}

func newSource(hit model.SearchResult, art *scrape.Article, query, date string, maxWords int) model.Source {
	title := hit.Title
	if title == "" {
		title = art.Title
	}
	return model.Source{
		Link:       hit.Link,
		Title:      title,
		Snippet:    hit.Snippet,
		Query:      query,
		Queries:    []string{query},
		Date:       date,
		Favicon:    art.Favicon,
		News:       scrape.IsNewsDomain(hit.Domain()),
		RawContent: TruncateWords(art.Content, maxWords),
	}
}

// summarize fills SummarizedContent in place for every source lacking one.
// A failed call leaves the fallback text, which is never cached.
func (e *Engine) summarize(ctx context.Context, sources []model.Source, question string) {
	pending := make(map[int]<-chan llm.Completion)
	for i, s := range sources {
		if s.SummarizedContent != "" {
			continue
		}
		req := llm.UserRequest(fmt.Sprintf(summaryPrompt, s.RawContent, question), 0, e.cfg.SummaryMaxTokens)
		pending[i] = e.summarizer.CompleteAsync(ctx, req)
	}
	for i, ch := range pending {
		c := <-ch
		e.metrics.Summary(c.Err)
		if c.Err != nil {
			zap.L().Warn("research: summarize failed", zap.String("url", sources[i].Link), zap.Error(c.Err))
		}
		sources[i].SummarizedContent = c.Text
	}
}

// writeBack persists new summarized sources and blacklist candidates.
// Failures are logged only.
func (e *Engine) writeBack(ctx context.Context, fetched []model.Source, cached map[string]model.Source, failed []model.BlacklistEntry) {
	var fresh, resummarized []model.Source
	for _, s := range fetched {
		if s.SummarizedContent == "" || s.SummarizedContent == llm.FallbackOutput {
			continue
		}
		prev, ok := cached[s.Link]
		switch {
		case !ok:
			fresh = append(fresh, s)
		case prev.SummarizedContent == "":
			resummarized = append(resummarized, s)
		}
	}

	g := new(errgroup.Group)
	for _, s := range resummarized {
		g.Go(func() error {
			if err := e.store.UpdateSummary(ctx, s.Link, s.SummarizedContent); err != nil {
				zap.L().Warn("research: update cached summary failed", zap.String("url", s.Link), zap.Error(err))
			}
			return nil
		})
	}
	if len(fresh) > 0 {
		g.Go(func() error {
			if err := e.store.AddSources(ctx, fresh); err != nil {
				zap.L().Warn("research: cache sources failed", zap.Int("count", len(fresh)), zap.Error(err))
			}
			return nil
		})
	}
	if len(failed) > 0 {
		g.Go(func() error {
			if err := e.store.AddToBlacklist(ctx, failed); err != nil {
				zap.L().Warn("research: blacklist domains failed", zap.Int("count", len(failed)), zap.Error(err))
				return nil
			}
			e.metrics.BlacklistAdds(len(failed))
			return nil
		})
	}
	_ = g.Wait()
}

func emit(ctx context.Context, out chan<- Progress, p Progress) bool {
	select {
	case out <- p:
		return true
	case <-ctx.Done():
		return false
	}
}

func cloneSources(in []model.Source) []model.Source {
	out := make([]model.Source, len(in))
	copy(out, in)
	return out
}

// stageTimer records the duration of consecutive research stages.
type stageTimer struct {
	start  time.Time
	last   time.Time
	stages []zap.Field
}

func newStageTimer() *stageTimer {
	now := time.Now()
	return &stageTimer{start: now, last: now}
}

func (t *stageTimer) lap(name string) time.Duration {
	now := time.Now()
	d := now.Sub(t.last)
	t.last = now
	t.stages = append(t.stages, zap.Duration(name, d))
	return d
}

func (t *stageTimer) log(log *zap.Logger, queries, sources, failed int) {
	fields := append([]zap.Field{
		zap.Duration("total", time.Since(t.start)),
		zap.Int("queries", queries),
		zap.Int("sources", sources),
		zap.Int("blacklisted", failed),
	}, t.stages...)
	log.Info("research: complete", fields...)
}
