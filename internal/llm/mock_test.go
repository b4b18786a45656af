package llm

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/forecast-cli/pkg/anthropic"
	"github.com/sells-group/forecast-cli/pkg/openai"
)

// --- OpenAI-compatible client ---

type mockChatClient struct {
	mock.Mock
	chunks []string
}

func (m *mockChatClient) ChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openai.ChatCompletionResponse), args.Error(1)
}

func (m *mockChatClient) StreamChatCompletion(ctx context.Context, req openai.ChatCompletionRequest, fn func(string) error) error {
	args := m.Called(ctx, req)
	for _, c := range m.chunks {
		if err := fn(c); err != nil {
			return err
		}
	}
	return args.Error(0)
}

// --- Anthropic client ---

type mockAnthropicClient struct {
	mock.Mock
	chunks []string
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func (m *mockAnthropicClient) StreamMessage(ctx context.Context, req anthropic.MessageRequest, fn func(string) error) error {
	args := m.Called(ctx, req)
	for _, c := range m.chunks {
		if err := fn(c); err != nil {
			return err
		}
	}
	return args.Error(0)
}
