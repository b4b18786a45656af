// Package forecast sequences a forecast run: plan queries, research
// sources, then stream the published report.
package forecast

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/forecast-cli/internal/llm"
	"github.com/sells-group/forecast-cli/internal/metrics"
	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/internal/pubdate"
	"github.com/sells-group/forecast-cli/internal/research"
)

// Agents resolves a model name to an agent.
type Agents interface {
	Agent(model string) (llm.Agent, error)
}

// Researcher runs retrieval for planned queries.
type Researcher interface {
	Research(ctx context.Context, queries []string, question string, p research.Params) <-chan research.Progress
}

// Config holds run defaults. Request fields override them.
type Config struct {
	Model              string
	Breadth            int
	SearchType         model.SearchType
	PlannerMaxTokens   int
	PublisherMaxTokens int
}

// Orchestrator runs forecasts. It is safe for concurrent use.
type Orchestrator struct {
	cfg        Config
	agents     Agents
	researcher Researcher
	prompts    Prompts
	metrics    *metrics.Metrics
	now        func() time.Time
}

// New creates an Orchestrator with all dependencies.
func New(cfg Config, agents Agents, researcher Researcher, prompts Prompts, m *metrics.Metrics) *Orchestrator {
	if cfg.PlannerMaxTokens <= 0 {
		cfg.PlannerMaxTokens = 512
	}
	if cfg.PublisherMaxTokens <= 0 {
		cfg.PublisherMaxTokens = 2048
	}
	if !cfg.SearchType.Valid() {
		cfg.SearchType = model.SearchTypeNews
	}
	return &Orchestrator{
		cfg:        cfg,
		agents:     agents,
		researcher: researcher,
		prompts:    prompts,
		metrics:    m,
		now:        time.Now,
	}
}

// run holds the resolved settings of one request.
type run struct {
	agent      llm.Agent
	question   string
	breadth    int
	cutoff     *time.Time
	today      string
	searchType model.SearchType
	planner    string
	publisher  string
}

func (o *Orchestrator) resolve(req model.ForecastRequest) (*run, error) {
	name := req.Model
	if name == "" {
		name = o.cfg.Model
	}
	agent, err := o.agents.Agent(name)
	if err != nil {
		return nil, eris.Wrapf(err, "forecast: resolve model %q", name)
	}
	if len(req.Messages) == 0 {
		return nil, eris.New("forecast: request has no messages")
	}

	r := &run{
		agent:      agent,
		question:   req.Question(),
		breadth:    o.cfg.Breadth,
		cutoff:     pubdate.Cutoff(req.BeforeTimestamp),
		searchType: o.cfg.SearchType,
		planner:    o.prompts.Planner,
		publisher:  o.prompts.Publisher,
	}
	if req.Breadth != nil {
		r.breadth = *req.Breadth
	}
	if req.SearchType.Valid() {
		r.searchType = req.SearchType
	}
	if req.PlannerPrompt != "" {
		r.planner = req.PlannerPrompt
	}
	if req.PublisherPrompt != "" {
		r.publisher = req.PublisherPrompt
	}
	r.today = pubdate.Today(r.cutoff, o.now())
	return r, nil
}

// Run starts a forecast and returns its events in order: queries, one or
// more source snapshots, forecast start, report chunks, forecast end. The
// channel closes when the run is done or ctx is cancelled. Only an unknown
// model or an empty request fails; every later failure degrades the stream.
func (o *Orchestrator) Run(ctx context.Context, req model.ForecastRequest) (<-chan Event, error) {
	r, err := o.resolve(req)
	if err != nil {
		return nil, err
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		err := o.run(ctx, r, out)
		o.metrics.Forecast(err)
	}()
	return out, nil
}

func (o *Orchestrator) run(ctx context.Context, r *run, out chan<- Event) error {
	log := zap.L().With(zap.String("model", r.agent.Model()), zap.Int("breadth", r.breadth))
	send := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var planErr error
	sources := []model.Source{}
	if r.breadth < 1 {
		if !send(Event{Type: EventQueries, Queries: []string{}}) ||
			!send(Event{Type: EventSources, Sources: sources}) {
			return ctx.Err()
		}
	} else {
		var queries []string
		queries, planErr = o.plan(ctx, r)
		if !send(Event{Type: EventQueries, Queries: queries, Err: planErr}) {
			return ctx.Err()
		}

		for p := range o.researcher.Research(ctx, queries, r.question, research.Params{
			Breadth:    r.breadth,
			Cutoff:     r.cutoff,
			SearchType: r.searchType,
		}) {
			sources = p.Sources
			if !send(Event{Type: EventSources, Sources: p.Sources}) {
				return ctx.Err()
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	prompt := Render(r.publisher, map[string]string{
		"sources":  FormatSources(sources),
		"today":    r.today,
		"question": r.question,
	})
	log.Debug("forecast: publishing", zap.Int("sources", len(sources)), zap.Int("prompt_chars", len(prompt)))

	if !send(Event{Type: EventForecastStart}) {
		return ctx.Err()
	}
	chunks := 0
	err := r.agent.Stream(ctx, llm.UserRequest(prompt, 0, o.cfg.PublisherMaxTokens), func(chunk string) error {
		if !send(Event{Type: EventChunk, Chunk: chunk}) {
			return ctx.Err()
		}
		chunks++
		return nil
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		log.Warn("forecast: publisher stream failed", zap.Int("chunks", chunks), zap.Error(err))
		if chunks == 0 && !send(Event{Type: EventChunk, Chunk: llm.FallbackOutput}) {
			return ctx.Err()
		}
	}
	send(Event{Type: EventForecastEnd, Err: err})
	if err == nil {
		err = planErr
	}
	return err
}

// plan asks the planner for queries. A failed call yields the fallback
// text, which holds no queries, along with the cause.
func (o *Orchestrator) plan(ctx context.Context, r *run) ([]string, error) {
	prompt := Render(r.planner, plannerVars(r.question, r.breadth, r.today))
	text, err := r.agent.Complete(ctx, llm.UserRequest(prompt, 0, o.cfg.PlannerMaxTokens))
	if err != nil {
		zap.L().Warn("forecast: planner call failed", zap.Error(err))
		err = eris.Wrap(err, "forecast: plan queries")
	}
	return ExtractQueries(text, Numbered), err
}
