package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/forecast-cli/internal/batch"
	"github.com/sells-group/forecast-cli/internal/config"
	"github.com/sells-group/forecast-cli/internal/forecast"
	"github.com/sells-group/forecast-cli/internal/llm"
	"github.com/sells-group/forecast-cli/internal/metrics"
	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/internal/ratelimit"
	"github.com/sells-group/forecast-cli/internal/research"
	"github.com/sells-group/forecast-cli/internal/scrape"
	"github.com/sells-group/forecast-cli/internal/store"
	"github.com/sells-group/forecast-cli/pkg/jina"
	"github.com/sells-group/forecast-cli/pkg/serper"
)

// forecastEnv holds everything the forecast, batch, related and serve
// commands need.
type forecastEnv struct {
	Store        store.Store
	Metrics      *metrics.Metrics
	Orchestrator *forecast.Orchestrator
	Batch        *batch.Runner
	Related      *forecast.RelatedAgent

	parsePool *scrape.ParsePool
}

// Close releases resources held by the environment.
func (fe *forecastEnv) Close() {
	if fe.parsePool != nil {
		fe.parsePool.Close()
	}
	if fe.Store != nil {
		_ = fe.Store.Close()
	}
}

// initEnv validates the configuration, opens and migrates the store, and
// wires the retrieval engine, orchestrator and batch runner. Callers should
// defer env.Close().
func initEnv(ctx context.Context) (*forecastEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	m := metrics.New()
	agents := llm.NewRegistry(func(p llm.Provider) llm.Credentials {
		pc := cfg.Provider(p)
		return llm.Credentials{Key: pc.Key, BaseURL: pc.BaseURL}
	})
	summarizer, err := agents.Agent(cfg.Research.SummaryModel)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	relatedAgent, err := agents.Agent(cfg.Forecast.RelatedModel)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	prompts, err := forecast.LoadPrompts(cfg.Forecast.PromptsFile)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	jinaOpts := []jina.Option{jina.WithBaseURL(cfg.Jina.BaseURL)}
	if cfg.Jina.SearchBaseURL != "" {
		jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
	}
	jinaClient := jina.NewClient(cfg.Jina.Key, jinaOpts...)

	pool := scrape.NewParsePool(cfg.Research.ParseWorkers)
	fetcher := initFetcher(cfg.Research, pool, jinaClient, cfg.Jina.Key != "")
	searcher := initSearcher(cfg, jinaClient)

	engine := research.New(research.Config{
		Depth:            cfg.Research.Depth,
		MaxTrials:        cfg.Research.MaxTrials,
		MaxWords:         cfg.Research.MaxWords,
		BatchSize:        cfg.Research.SearchBatchSize,
		SummaryMaxTokens: cfg.Research.SummaryMaxTokens,
		FetchConcurrency: cfg.Research.FetchConcurrency,
	}, searcher, fetcher, st, summarizer, research.WithMetrics(m))

	orch := forecast.New(forecast.Config{
		Model:              cfg.Forecast.Model,
		Breadth:            cfg.Research.Breadth,
		SearchType:         model.SearchType(cfg.Research.SearchType),
		PlannerMaxTokens:   cfg.Forecast.PlannerMaxTokens,
		PublisherMaxTokens: cfg.Forecast.PublisherMaxTokens,
	}, agents, engine, prompts, m)

	zap.L().Info("forecast environment ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("search_provider", searcher.Name()),
		zap.String("fetcher", fetcher.Name()),
		zap.String("model", cfg.Forecast.Model),
	)

	return &forecastEnv{
		Store:        st,
		Metrics:      m,
		Orchestrator: orch,
		Batch:        batch.New(orch, batch.Config{Concurrency: cfg.Batch.Concurrency, Retries: cfg.Batch.Retries}, m),
		Related:      forecast.NewRelatedAgent(relatedAgent, prompts.Related),
		parsePool:    pool,
	}, nil
}

// initFetcher builds the article fetcher: local HTTP extraction, with the
// Jina reader as fallback when enabled and keyed.
func initFetcher(rc config.ResearchConfig, pool *scrape.ParsePool, jinaClient jina.Client, jinaKeyed bool) scrape.Fetcher {
	local := scrape.NewLocalFetcher(
		time.Duration(rc.FetchTimeoutSecs)*time.Second,
		scrape.WithParsePool(pool),
		scrape.WithHostLimiter(ratelimit.NewHostLimiter(rc.HostRateLimit, 2)),
	)
	if !rc.JinaFallback || !jinaKeyed {
		return local
	}
	return scrape.NewChain(local, scrape.NewJinaFetcher(jinaClient))
}

func initSearcher(c *config.Config, jinaClient jina.Client) research.Searcher {
	if c.Research.SearchProvider == "jina" {
		return research.NewJinaSearcher(jinaClient, 5)
	}
	return research.NewSerperSearcher(serper.NewClient(c.Serper.Key, serper.WithBaseURL(c.Serper.BaseURL)))
}
