package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		link string
		want string
	}{
		{"https://www.Reuters.com/world/article", "www.reuters.com"},
		{"http://example.com:8080/a", "example.com:8080"},
		{"  https://apnews.com  ", "apnews.com"},
		{"not a url", ""},
		{"://bad", ""},
	}
	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Domain(tt.link))
		})
	}
}

func TestSource_AddQuery(t *testing.T) {
	t.Parallel()

	s := Source{Link: "https://a.com"}
	assert.True(t, s.AddQuery("q1"))
	assert.False(t, s.AddQuery("q1"))
	assert.False(t, s.AddQuery(""))
	assert.True(t, s.AddQuery("q2"))
	assert.Equal(t, []string{"q1", "q2"}, s.Queries)
}

func TestSource_View(t *testing.T) {
	t.Parallel()

	s := Source{Link: "https://a.com", RawContent: "body", SummarizedContent: "sum"}
	v := s.View()
	assert.Empty(t, v.RawContent)
	assert.Equal(t, "sum", v.SummarizedContent)
	assert.Equal(t, "body", s.RawContent, "original untouched")

	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "raw_content")
}

func TestForecastRequest_Question(t *testing.T) {
	t.Parallel()

	assert.Empty(t, ForecastRequest{}.Question())

	req := ForecastRequest{Messages: []Message{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "reply"},
		{Role: "user", Content: "Will it rain?"},
	}}
	assert.Equal(t, "Will it rain?", req.Question())
}

func TestSearchType_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, SearchTypeNews.Valid())
	assert.True(t, SearchTypeWeb.Valid())
	assert.False(t, SearchType("images").Valid())
}

func TestForecastResult_MarshalJSON(t *testing.T) {
	t.Parallel()

	p := 42.5
	r := ForecastResult{
		Item:       BatchItem{"question": "Q?", "id": "abc", "prediction": "stale"},
		Prediction: &p,
		Response:   "report",
		Sources:    []Source{{Link: "https://a.com", Title: "A"}},
	}
	b, err := json.Marshal(r)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "Q?", out["question"])
	assert.Equal(t, "abc", out["id"])
	assert.InDelta(t, 42.5, out["prediction"], 0.0001)
	assert.Equal(t, "report", out["response"])
	assert.Len(t, out["sources"], 1)
}

func TestForecastResult_MarshalJSON_NullPrediction(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(ForecastResult{Item: BatchItem{"question": "Q?"}})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Nil(t, out["prediction"])
	assert.Equal(t, []any{}, out["sources"])
}
