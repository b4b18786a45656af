package batch

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/forecast-cli/internal/forecast"
	"github.com/sells-group/forecast-cli/internal/model"
)

// --- Forecaster ---

// fakeForecaster answers every question with a fixed report unless the
// question contains one of the failure triggers.
type fakeForecaster struct {
	mu       sync.Mutex
	calls    map[string]int
	requests []model.ForecastRequest
	// planFail makes the planner stage degrade for matching questions.
	planFail string
	// runFail makes Run itself fail for matching questions.
	runFail string
	// flaky fails the first n attempts of every question.
	flaky int
}

func (f *fakeForecaster) Run(ctx context.Context, req model.ForecastRequest) (<-chan forecast.Event, error) {
	q := req.Question()
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[q]++
	n := f.calls[q]
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.runFail != "" && strings.Contains(q, f.runFail) {
		return nil, eris.New("llm: unknown model")
	}

	var planErr error
	if (f.planFail != "" && strings.Contains(q, f.planFail)) || n <= f.flaky {
		planErr = eris.New("planner: status 500")
	}
	src := model.Source{Link: "https://a.com/1", Title: "A", Query: "q1", Date: "Mar 20, 2024", RawContent: "body", SummarizedContent: "summary"}
	events := []forecast.Event{
		{Type: forecast.EventQueries, Queries: []string{"q1"}, Err: planErr},
		{Type: forecast.EventSources, Sources: []model.Source{src}},
		{Type: forecast.EventForecastStart},
		{Type: forecast.EventChunk, Chunk: "# Report\n# PREDICTION <answer>"},
		{Type: forecast.EventChunk, Chunk: "65%</answer>"},
		{Type: forecast.EventForecastEnd},
	}

	out := make(chan forecast.Event)
	go func() {
		defer close(out)
		for _, ev := range events {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *fakeForecaster) callsFor(q string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[q]
}
