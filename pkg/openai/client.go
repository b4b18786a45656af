// Package openai is a client for OpenAI-compatible chat completion APIs.
// The same wire format serves OpenAI, Fireworks and Perplexity; callers
// pick the vendor with WithBaseURL.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	sdk "github.com/sashabaranov/go-openai"

	"github.com/sells-group/forecast-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"

	maxRetryAttempts = 3
)

// Client performs chat completions.
type Client interface {
	ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error)
	// StreamChatCompletion calls fn with each content delta in order. It
	// returns when the stream ends, fn fails, or ctx is done.
	StreamChatCompletion(ctx context.Context, req ChatCompletionRequest, fn func(delta string) error) error
}

// ChatCompletionRequest is the request body for POST /chat/completions.
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// Message represents a single message in the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse is the response from POST /chat/completions.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is a single completion choice.
type Choice struct {
	Index   int     `json:"index"`
	Message Message `json:"message"`
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Text returns the content of the first choice.
func (r *ChatCompletionResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Option configures the client.
type Option func(*sdkClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *sdkClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *sdkClient) {
		c.model = model
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *sdkClient) {
		c.http = hc
	}
}

// WithService sets the name used in errors and retry logs.
func WithService(name string) Option {
	return func(c *sdkClient) {
		c.service = name
	}
}

// sdkClient implements Client with go-openai, one instance per base URL.
type sdkClient struct {
	apiKey  string
	baseURL string
	model   string
	service string
	http    *http.Client
	api     *sdk.Client
}

// NewClient creates a chat completion client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &sdkClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		service: "openai",
		http: &http.Client{
			// No overall timeout: streamed reports can run for minutes.
			// Callers bound requests with ctx.
			Transport: &http.Transport{
				MaxIdleConnsPerHost:   20,
				IdleConnTimeout:       90 * time.Second,
				ResponseHeaderTimeout: 120 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}

	cfg := sdk.DefaultConfig(apiKey)
	cfg.BaseURL = c.baseURL
	cfg.HTTPClient = c.http
	c.api = sdk.NewClientWithConfig(cfg)
	return c
}

func (c *sdkClient) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	sreq := c.toSDK(req)

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.MaxAttempts = maxRetryAttempts
	retryCfg.OnRetry = resilience.RetryLogger(c.service, "chat_completion")

	return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*ChatCompletionResponse, error) {
		resp, err := c.api.CreateChatCompletion(ctx, sreq)
		if err != nil {
			return nil, c.classify(err)
		}

		out := &ChatCompletionResponse{
			ID: resp.ID,
			Usage: Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
			},
		}
		for _, ch := range resp.Choices {
			out.Choices = append(out.Choices, Choice{
				Index:   ch.Index,
				Message: Message{Role: ch.Message.Role, Content: ch.Message.Content},
			})
		}
		return out, nil
	})
}

func (c *sdkClient) StreamChatCompletion(ctx context.Context, req ChatCompletionRequest, fn func(delta string) error) error {
	sreq := c.toSDK(req)
	sreq.Stream = true

	stream, err := c.api.CreateChatCompletionStream(ctx, sreq)
	if err != nil {
		return c.classify(err)
	}
	defer stream.Close() //nolint:errcheck

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return c.classify(err)
		}
		for _, ch := range chunk.Choices {
			if ch.Delta.Content == "" {
				continue
			}
			if err := fn(ch.Delta.Content); err != nil {
				return err
			}
		}
	}
}

func (c *sdkClient) toSDK(req ChatCompletionRequest) sdk.ChatCompletionRequest {
	out := sdk.ChatCompletionRequest{Model: req.Model}
	if out.Model == "" {
		out.Model = c.model
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, sdk.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if req.Temperature != nil {
		// go-openai omits a zero temperature, which providers read as 1.
		out.Temperature = max(float32(*req.Temperature), math.SmallestNonzeroFloat32)
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}
	return out
}

// classify maps go-openai errors onto the status errors the retry and
// breaker layers understand.
func (c *sdkClient) classify(err error) error {
	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return resilience.HTTPStatusError(c.service, apiErr.HTTPStatusCode, []byte(apiErr.Message))
	}
	var reqErr *sdk.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return resilience.HTTPStatusError(c.service, reqErr.HTTPStatusCode, []byte(reqErr.Error()))
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return eris.Wrapf(err, "%s: unmarshal response", c.service)
	}
	return eris.Wrapf(err, "%s: send request", c.service)
}
