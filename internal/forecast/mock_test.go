package forecast

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/forecast-cli/internal/llm"
	"github.com/sells-group/forecast-cli/internal/research"
)

// --- Agents ---

type fakeAgents map[string]llm.Agent

func (f fakeAgents) Agent(model string) (llm.Agent, error) {
	a, ok := f[model]
	if !ok {
		return nil, eris.Errorf("llm: unknown model %q", model)
	}
	return a, nil
}

// scriptedAgent answers planner prompts with plan and streams chunks for
// everything else.
type scriptedAgent struct {
	mu         sync.Mutex
	plan       string
	planErr    error
	chunks     []string
	streamErr  error
	prompts    []string
	completion string
}

func (a *scriptedAgent) Model() string { return "gpt-4o-mini" }

func (a *scriptedAgent) record(req llm.Request) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	p := req.Messages[len(req.Messages)-1].Content
	a.prompts = append(a.prompts, p)
	return p
}

func (a *scriptedAgent) Complete(_ context.Context, req llm.Request) (string, error) {
	p := a.record(req)
	if a.planErr != nil {
		return llm.FallbackOutput, a.planErr
	}
	if strings.Contains(p, "search engine queries") {
		return a.plan, nil
	}
	return a.completion, nil
}

func (a *scriptedAgent) Stream(ctx context.Context, req llm.Request, fn func(string) error) error {
	a.record(req)
	for _, c := range a.chunks {
		if err := fn(c); err != nil {
			return err
		}
	}
	return a.streamErr
}

func (a *scriptedAgent) CompleteAsync(ctx context.Context, req llm.Request) <-chan llm.Completion {
	out := make(chan llm.Completion, 1)
	text, err := a.Complete(ctx, req)
	out <- llm.Completion{Text: text, Err: err}
	return out
}

func (a *scriptedAgent) recorded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.prompts...)
}

// --- Researcher ---

type fakeResearcher struct {
	mu       sync.Mutex
	progress []research.Progress
	calls    int
	queries  []string
	params   research.Params
}

func (f *fakeResearcher) Research(ctx context.Context, queries []string, _ string, p research.Params) <-chan research.Progress {
	f.mu.Lock()
	f.calls++
	f.queries = queries
	f.params = p
	progress := f.progress
	f.mu.Unlock()

	out := make(chan research.Progress)
	go func() {
		defer close(out)
		for _, pr := range progress {
			select {
			case out <- pr:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
