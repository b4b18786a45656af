package llm

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Provider identifies a model vendor.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderAnthropic  Provider = "anthropic"
	ProviderFireworks  Provider = "fireworks"
	ProviderPerplexity Provider = "perplexity"
)

// providerMarkers maps model name substrings to providers. Order matters:
// Fireworks paths can embed other vendors' names ("accounts/fireworks/models/gpt-oss").
var providerMarkers = []struct {
	marker   string
	provider Provider
}{
	{"accounts/fireworks", ProviderFireworks},
	{"gpt", ProviderOpenAI},
	{"claude", ProviderAnthropic},
	{"sonar", ProviderPerplexity},
}

// ResolveProvider picks the provider that serves model. Unknown models,
// including Gemini, are an error.
func ResolveProvider(model string) (Provider, error) {
	m := strings.ToLower(strings.TrimSpace(model))
	if m == "" {
		return "", eris.New("llm: empty model name")
	}
	for _, pm := range providerMarkers {
		if strings.Contains(m, pm.marker) {
			return pm.provider, nil
		}
	}
	return "", eris.Errorf("llm: unsupported model %q", model)
}
