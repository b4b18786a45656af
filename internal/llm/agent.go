// Package llm is the uniform model-call surface used by the planner,
// summarizer, publisher and related-question agents.
package llm

import (
	"context"

	"github.com/sells-group/forecast-cli/internal/model"
)

// FallbackOutput replaces the text of a failed completion.
const FallbackOutput = "Sorry, I can not satisfy that request."

// Request is one model call.
type Request struct {
	Messages    []model.Message
	Temperature float64
	MaxTokens   int
}

// UserRequest builds a single-message request.
func UserRequest(content string, temperature float64, maxTokens int) Request {
	return Request{
		Messages:    []model.Message{{Role: "user", Content: content}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

// Completion is the outcome of an asynchronous call.
type Completion struct {
	Text string
	Err  error
}

// Agent calls one model.
type Agent interface {
	// Model returns the model name the agent calls.
	Model() string
	// Complete returns the model output. On failure the text is
	// FallbackOutput and err carries the cause.
	Complete(ctx context.Context, req Request) (string, error)
	// Stream calls fn with each output fragment in order. A non-nil error
	// after fn has been called means the output is truncated.
	Stream(ctx context.Context, req Request, fn func(chunk string) error) error
	// CompleteAsync runs Complete on its own goroutine. The channel yields
	// exactly one value.
	CompleteAsync(ctx context.Context, req Request) <-chan Completion
}

// completeAsync is the shared CompleteAsync for agents.
func completeAsync(ctx context.Context, a Agent, req Request) <-chan Completion {
	out := make(chan Completion, 1)
	go func() {
		text, err := a.Complete(ctx, req)
		out <- Completion{Text: text, Err: err}
	}()
	return out
}
