package llm

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/forecast-cli/internal/resilience"
	"github.com/sells-group/forecast-cli/pkg/anthropic"
)

const defaultAnthropicMaxTokens = 1024

type anthropicAgent struct {
	model   string
	client  anthropic.Client
	breaker *resilience.CircuitBreaker
}

func (a *anthropicAgent) Model() string { return a.model }

func (a *anthropicAgent) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := resilience.ExecuteVal(ctx, a.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.client.CreateMessage(ctx, a.toRequest(req))
	})
	if err != nil {
		return FallbackOutput, eris.Wrapf(err, "llm: complete %s", a.model)
	}
	resp.Usage.LogCost(a.model, "complete")
	return resp.Text(), nil
}

func (a *anthropicAgent) Stream(ctx context.Context, req Request, fn func(chunk string) error) error {
	err := a.breaker.Execute(ctx, func(ctx context.Context) error {
		return a.client.StreamMessage(ctx, a.toRequest(req), fn)
	})
	return eris.Wrapf(err, "llm: stream %s", a.model)
}

func (a *anthropicAgent) CompleteAsync(ctx context.Context, req Request) <-chan Completion {
	return completeAsync(ctx, a, req)
}

// toRequest moves system messages into the system prompt.
func (a *anthropicAgent) toRequest(req Request) anthropic.MessageRequest {
	var system []string
	msgs := make([]anthropic.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		msgs = append(msgs, anthropic.Message{Role: m.Role, Content: m.Content})
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	temp := req.Temperature
	return anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   maxTokens,
		System:      strings.Join(system, "\n\n"),
		Messages:    msgs,
		Temperature: &temp,
	}
}
