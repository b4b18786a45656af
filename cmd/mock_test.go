package main

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/forecast-cli/internal/forecast"
	"github.com/sells-group/forecast-cli/internal/model"
)

// --- Forecaster ---

type fakeForecaster struct {
	mu     sync.Mutex
	events []forecast.Event
	err    error
	last   model.ForecastRequest
}

func (f *fakeForecaster) Run(_ context.Context, req model.ForecastRequest) (<-chan forecast.Event, error) {
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan forecast.Event, len(f.events))
	for _, ev := range f.events {
		out <- ev
	}
	close(out)
	return out, nil
}

// --- Batch ---

type fakeBatch struct {
	parallel int
	req      model.BatchRequest
}

func (f *fakeBatch) Run(_ context.Context, req model.BatchRequest, concurrency int) []model.ForecastResult {
	f.req = req
	f.parallel = concurrency
	out := make([]model.ForecastResult, len(req.Questions))
	for i, q := range req.Questions {
		p := 42.0
		out[i] = model.ForecastResult{Item: q, Prediction: &p, Response: "report"}
	}
	return out
}

// --- Related ---

type fakeSuggester struct {
	question string
}

func (f *fakeSuggester) Suggest(_ context.Context, question string) []model.RelatedQuestion {
	f.question = question
	return []model.RelatedQuestion{{Query: "Will X happen?", Icon: "🔮", Topic: "Misc"}}
}

var errUnknownModel = eris.New("forecast: resolve model \"gemini-pro\": llm: unsupported model")
