package forecast

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/forecast-cli/internal/llm"
	"github.com/sells-group/forecast-cli/internal/model"
)

const (
	relatedTemperature = 0.4
	relatedMaxTokens   = 512
)

var jsonArray = regexp.MustCompile(`(?s)\[.*\]`)

// RelatedAgent suggests follow-up forecasting questions.
type RelatedAgent struct {
	agent  llm.Agent
	prompt string
	now    func() time.Time
}

// NewRelatedAgent creates a RelatedAgent. An empty prompt uses RelatedPrompt.
func NewRelatedAgent(agent llm.Agent, prompt string) *RelatedAgent {
	if prompt == "" {
		prompt = RelatedPrompt
	}
	return &RelatedAgent{agent: agent, prompt: prompt, now: time.Now}
}

// Suggest returns related questions for the first line of question. Any
// failure yields an empty list.
func (r *RelatedAgent) Suggest(ctx context.Context, question string) []model.RelatedQuestion {
	first, _, _ := strings.Cut(question, "\n")
	prompt := Render(r.prompt, map[string]string{
		"question": first,
		"today":    r.now().Format("2006"),
	})

	text, err := r.agent.Complete(ctx, llm.UserRequest(prompt, relatedTemperature, relatedMaxTokens))
	if err != nil {
		zap.L().Warn("forecast: related questions call failed", zap.Error(err))
		return []model.RelatedQuestion{}
	}

	raw := jsonArray.FindString(text)
	if raw == "" {
		zap.L().Warn("forecast: no JSON list in related questions output", zap.String("output", text))
		return []model.RelatedQuestion{}
	}
	var out []model.RelatedQuestion
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		zap.L().Warn("forecast: malformed related questions", zap.Error(err))
		return []model.RelatedQuestion{}
	}
	return out
}
