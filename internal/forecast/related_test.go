package forecast

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/forecast-cli/internal/model"
)

func TestRelatedAgent_Suggest(t *testing.T) {
	agent := &scriptedAgent{completion: "Sure!\n[\n" +
		`{"query": "Will a crewed Mars landing happen before 2040?", "icon": "🚀", "topic": "Space"},` +
		`{"query": "Will global EV sales pass 50% in 2030?", "icon": "🔋", "topic": "Energy"}` +
		"\n]\nEnjoy."}
	r := NewRelatedAgent(agent, "")
	r.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	got := r.Suggest(context.Background(), "Will SpaceX reach orbit with Starship?\n\nBackground text: long")
	require.Len(t, got, 2)
	assert.Equal(t, model.RelatedQuestion{Query: "Will a crewed Mars landing happen before 2040?", Icon: "🚀", Topic: "Space"}, got[0])

	prompts := agent.recorded()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Forecast Question: Will SpaceX reach orbit with Starship?\n")
	assert.NotContains(t, prompts[0], "Background text")
	assert.Contains(t, prompts[0], "Today's date is 2025.")
	assert.Contains(t, prompts[0], `{"query": "What's the probability`)
}

func TestRelatedAgent_Failures(t *testing.T) {
	tests := []struct {
		name  string
		agent *scriptedAgent
	}{
		{"call error", &scriptedAgent{planErr: eris.New("timeout")}},
		{"no list", &scriptedAgent{completion: "I cannot help with that."}},
		{"bad json", &scriptedAgent{completion: `[{"query": }]`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewRelatedAgent(tt.agent, "").Suggest(context.Background(), "Q?")
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}
