package llm

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/forecast-cli/internal/resilience"
	"github.com/sells-group/forecast-cli/pkg/openai"
)

// chatAgent serves every OpenAI-compatible provider.
type chatAgent struct {
	model   string
	client  openai.Client
	breaker *resilience.CircuitBreaker
}

func (a *chatAgent) Model() string { return a.model }

func (a *chatAgent) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := resilience.ExecuteVal(ctx, a.breaker, func(ctx context.Context) (*openai.ChatCompletionResponse, error) {
		return a.client.ChatCompletion(ctx, a.toRequest(req))
	})
	if err != nil {
		return FallbackOutput, eris.Wrapf(err, "llm: complete %s", a.model)
	}
	if len(resp.Choices) == 0 {
		return FallbackOutput, eris.Errorf("llm: complete %s: no choices", a.model)
	}
	return resp.Text(), nil
}

func (a *chatAgent) Stream(ctx context.Context, req Request, fn func(chunk string) error) error {
	err := a.breaker.Execute(ctx, func(ctx context.Context) error {
		return a.client.StreamChatCompletion(ctx, a.toRequest(req), fn)
	})
	return eris.Wrapf(err, "llm: stream %s", a.model)
}

func (a *chatAgent) CompleteAsync(ctx context.Context, req Request) <-chan Completion {
	return completeAsync(ctx, a, req)
}

func (a *chatAgent) toRequest(req Request) openai.ChatCompletionRequest {
	msgs := make([]openai.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.Message{Role: m.Role, Content: m.Content}
	}
	temp := req.Temperature
	out := openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    msgs,
		Temperature: &temp,
	}
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		out.MaxTokens = &maxTokens
	}
	return out
}
