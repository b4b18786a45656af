package llm

import (
	"context"
	"errors"
	"sync"

	"github.com/sells-group/forecast-cli/internal/resilience"
	"github.com/sells-group/forecast-cli/pkg/anthropic"
	"github.com/sells-group/forecast-cli/pkg/openai"
)

// Credentials holds the API key and endpoint for one provider.
type Credentials struct {
	Key     string
	BaseURL string
}

// CredentialsFunc returns the credentials for a provider.
type CredentialsFunc func(Provider) Credentials

type constructor func(r *Registry, p Provider, model string) Agent

// constructors is the closed provider → agent table.
var constructors = map[Provider]constructor{
	ProviderOpenAI:     newChatAgent,
	ProviderFireworks:  newChatAgent,
	ProviderPerplexity: newChatAgent,
	ProviderAnthropic:  newAnthropicAgent,
}

// Registry builds agents by model name. Agents for the same provider share
// one client and one circuit breaker.
type Registry struct {
	creds    CredentialsFunc
	breakers *resilience.ServiceBreakers

	mu        sync.Mutex
	chat      map[Provider]openai.Client
	anthropic anthropic.Client
	agents    map[string]Agent
}

// NewRegistry creates a Registry.
func NewRegistry(creds CredentialsFunc) *Registry {
	return &Registry{
		creds:    creds,
		breakers: resilience.NewServiceBreakers(breakerConfig()),
		chat:     make(map[Provider]openai.Client),
		agents:   make(map[string]Agent),
	}
}

// Agent returns the agent for model. Unknown models are an error.
func (r *Registry) Agent(model string) (Agent, error) {
	p, err := ResolveProvider(model)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.agents[model]; ok {
		return a, nil
	}
	a := constructors[p](r, p, model)
	r.agents[model] = a
	return a, nil
}

// newChatAgent and newAnthropicAgent run with r.mu held.
func newChatAgent(r *Registry, p Provider, model string) Agent {
	client, ok := r.chat[p]
	if !ok {
		c := r.creds(p)
		opts := []openai.Option{openai.WithService(string(p))}
		if c.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(c.BaseURL))
		}
		client = openai.NewClient(c.Key, opts...)
		r.chat[p] = client
	}
	return &chatAgent{model: model, client: client, breaker: r.breakers.Get(string(p))}
}

func newAnthropicAgent(r *Registry, p Provider, model string) Agent {
	if r.anthropic == nil {
		c := r.creds(p)
		var opts []anthropic.Option
		if c.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(c.BaseURL))
		}
		r.anthropic = anthropic.NewClient(c.Key, opts...)
	}
	return &anthropicAgent{model: model, client: r.anthropic, breaker: r.breakers.Get(string(p))}
}

// breakerConfig trips on provider failures but not on callers going away.
func breakerConfig() resilience.CircuitBreakerConfig {
	cfg := resilience.DefaultCircuitBreakerConfig()
	cfg.ShouldTrip = func(err error) bool {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return cfg
}
