package forecast

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/forecast-cli/internal/model"
)

func TestEvent_Encode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `["a","b"][SEP_QUERIES]`, Event{Type: EventQueries, Queries: []string{"a", "b"}}.Encode())
	assert.Equal(t, `[][SEP_QUERIES]`, Event{Type: EventQueries}.Encode())
	assert.Equal(t, `[][SEP_SOURCE]`, Event{Type: EventSources}.Encode())
	assert.Equal(t, "[FORECASTING_START]", Event{Type: EventForecastStart}.Encode())
	assert.Equal(t, "chunk", Event{Type: EventChunk, Chunk: "chunk"}.Encode())
	assert.Equal(t, "[FORECASTING_END]", Event{Type: EventForecastEnd}.Encode())

	enc := Event{Type: EventSources, Sources: []model.Source{{Link: "https://a.com", Title: "A"}}}.Encode()
	assert.Contains(t, enc, `"link":"https://a.com"`)
	assert.True(t, bytes.HasSuffix([]byte(enc), []byte(MarkerSources)))
}

func TestEventType_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "queries", EventQueries.String())
	assert.Equal(t, "forecast_end", EventForecastEnd.String())
	assert.Equal(t, "unknown", EventType(42).String())
}

func events(evs ...Event) <-chan Event {
	ch := make(chan Event, len(evs))
	for _, e := range evs {
		ch <- e
	}
	close(ch)
	return ch
}

func TestWriteToAndCollect(t *testing.T) {
	t.Parallel()

	seq := []Event{
		{Type: EventQueries},
		{Type: EventSources},
		{Type: EventForecastStart},
		{Type: EventChunk, Chunk: "hello"},
		{Type: EventForecastEnd},
	}
	want := "[][SEP_QUERIES][][SEP_SOURCE][FORECASTING_START]hello[FORECASTING_END]"

	var buf bytes.Buffer
	flushes := 0
	require.NoError(t, WriteTo(&buf, events(seq...), func() { flushes++ }))
	assert.Equal(t, want, buf.String())
	assert.Equal(t, len(seq), flushes)

	assert.Equal(t, want, Collect(events(seq...)))
}
