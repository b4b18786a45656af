package forecast

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/forecast-cli/internal/model"
)

// Stream protocol markers. Consumers split the text stream on them.
const (
	MarkerQueries       = "[SEP_QUERIES]"
	MarkerSources       = "[SEP_SOURCE]"
	MarkerForecastStart = "[FORECASTING_START]"
	MarkerForecastEnd   = "[FORECASTING_END]"
)

// EventType identifies a pipeline event.
type EventType int

const (
	EventQueries EventType = iota
	EventSources
	EventForecastStart
	EventChunk
	EventForecastEnd
)

func (t EventType) String() string {
	switch t {
	case EventQueries:
		return "queries"
	case EventSources:
		return "sources"
	case EventForecastStart:
		return "forecast_start"
	case EventChunk:
		return "chunk"
	case EventForecastEnd:
		return "forecast_end"
	default:
		return "unknown"
	}
}

// Event is one step of a forecast run. Only the field matching Type is set.
// Err is set when the stage degraded: a failed planner call on the queries
// event, a failed publisher stream on the forecast end event. It is not
// part of the encoded stream.
type Event struct {
	Type    EventType
	Queries []string
	Sources []model.Source
	Chunk   string
	Err     error
}

// Encode renders the event in the text stream protocol.
func (e Event) Encode() string {
	switch e.Type {
	case EventQueries:
		return encodeJSON(e.Queries, []string{}) + MarkerQueries
	case EventSources:
		return encodeJSON(e.Sources, []model.Source{}) + MarkerSources
	case EventForecastStart:
		return MarkerForecastStart
	case EventForecastEnd:
		return MarkerForecastEnd
	default:
		return e.Chunk
	}
}

func encodeJSON[T any](v []T, empty []T) string {
	if v == nil {
		v = empty
	}
	b, err := json.Marshal(v)
	if err != nil {
		zap.L().Warn("forecast: encode event", zap.Error(err))
		return "[]"
	}
	return string(b)
}

// WriteTo encodes every event to w until the channel closes. flush, when
// non-nil, runs after each event.
func WriteTo(w io.Writer, events <-chan Event, flush func()) error {
	for ev := range events {
		if _, err := io.WriteString(w, ev.Encode()); err != nil {
			// Drain so the producer can observe cancellation and exit.
			for range events {
			}
			return eris.Wrap(err, "forecast: write event")
		}
		if flush != nil {
			flush()
		}
	}
	return nil
}

// Collect concatenates the encoded events into the full stream text.
func Collect(events <-chan Event) string {
	var b strings.Builder
	for ev := range events {
		b.WriteString(ev.Encode())
	}
	return b.String()
}
