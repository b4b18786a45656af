package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutput(t *testing.T) {
	t.Parallel()

	full := `["q1"][SEP_QUERIES]` +
		`[{"link":"https://a.com","title":"A","query":"q1","date":"Unknown","raw_content":"body","summarized_content":""}][SEP_SOURCE]` +
		`[{"link":"https://a.com","title":"A","query":"q1","date":"Unknown","raw_content":"body","summarized_content":"short"}][SEP_SOURCE]` +
		"[FORECASTING_START]# Report\n# PREDICTION\n<answer>42.5%</answer> then 10[FORECASTING_END]"

	p, err := ParseOutput(full)
	require.NoError(t, err)
	require.NotNil(t, p.Prediction)
	assert.InDelta(t, 42.5, *p.Prediction, 1e-9)
	assert.Equal(t, "# Report\n# PREDICTION\n<answer>42.5%</answer> then 10", p.Response)
	require.Len(t, p.Sources, 1)
	assert.Equal(t, "short", p.Sources[0].SummarizedContent)
	assert.Empty(t, p.Sources[0].RawContent)
}

func TestParseOutput_LastAnswerTag(t *testing.T) {
	t.Parallel()

	p, err := ParseOutput("[][SEP_QUERIES][][SEP_SOURCE][FORECASTING_START]<answer>10</answer> <answer>about 70</answer>[FORECASTING_END]")
	require.NoError(t, err)
	require.NotNil(t, p.Prediction)
	assert.InDelta(t, 70, *p.Prediction, 1e-9)
	assert.Empty(t, p.Sources)
}

func TestParseOutput_NoAnswerTagUsesReport(t *testing.T) {
	t.Parallel()

	p, err := ParseOutput("[FORECASTING_START]Roughly 15 percent.[FORECASTING_END]")
	require.NoError(t, err)
	require.NotNil(t, p.Prediction)
	assert.InDelta(t, 15, *p.Prediction, 1e-9)
	assert.NotNil(t, p.Sources)
	assert.Empty(t, p.Sources)
}

func TestParseOutput_NoNumber(t *testing.T) {
	t.Parallel()

	p, err := ParseOutput("[][SEP_QUERIES][][SEP_SOURCE][FORECASTING_START]Sorry, I can not satisfy that request.[FORECASTING_END]")
	require.NoError(t, err)
	assert.Nil(t, p.Prediction)
	assert.Equal(t, "Sorry, I can not satisfy that request.", p.Response)
}

func TestParseOutput_MalformedSources(t *testing.T) {
	t.Parallel()

	p, err := ParseOutput(`[{"link": broken[SEP_SOURCE][FORECASTING_START]<answer>3</answer>`)
	require.NoError(t, err)
	assert.Empty(t, p.Sources)
	require.NotNil(t, p.Prediction)
	assert.InDelta(t, 3, *p.Prediction, 1e-9)
}

func TestParseOutput_NoStartMarker(t *testing.T) {
	t.Parallel()

	p, err := ParseOutput(`["q"][SEP_QUERIES]`)
	assert.Error(t, err)
	assert.Nil(t, p.Prediction)
	assert.Empty(t, p.Response)
}
