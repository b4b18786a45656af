package forecast

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/forecast-cli/internal/model"
)

// Parsed is the structured form of a collected forecast stream.
type Parsed struct {
	Prediction *float64
	Response   string
	Sources    []model.Source
}

// ParseOutput splits a collected stream into the last sources frame, the
// report text and the numeric prediction. The prediction is the first
// number after the last <answer> tag, or in the whole report when there is
// none. A missing or malformed sources frame yields no sources. Only a
// stream without a forecast start marker is an error.
func ParseOutput(full string) (Parsed, error) {
	head, report, ok := strings.Cut(full, MarkerForecastStart)
	if !ok {
		return Parsed{}, eris.New("forecast: no forecast start marker in output")
	}

	p := Parsed{
		Response: strings.ReplaceAll(report, MarkerForecastEnd, ""),
		Sources:  parseSources(head),
	}

	answer := p.Response
	if i := strings.LastIndex(answer, "<answer>"); i >= 0 {
		answer = answer[i+len("<answer>"):]
	}
	answer = strings.ReplaceAll(answer, "</answer>", "")
	p.Prediction = ExtractNumber(answer)
	if p.Prediction == nil {
		zap.L().Info("forecast: no numeric prediction in output")
	}
	return p, nil
}

// parseSources decodes the last non-empty sources frame of head. Raw
// article bodies are dropped.
func parseSources(head string) []model.Source {
	var last string
	for _, seg := range strings.Split(head, MarkerSources) {
		if s := strings.TrimSpace(seg); s != "" {
			last = s
		}
	}
	// With a single frame the segment still carries the queries frame.
	if i := strings.LastIndex(last, MarkerQueries); i >= 0 {
		last = strings.TrimSpace(last[i+len(MarkerQueries):])
	}
	if last == "" {
		return []model.Source{}
	}

	var sources []model.Source
	if err := json.Unmarshal([]byte(last), &sources); err != nil {
		zap.L().Warn("forecast: malformed sources frame", zap.Error(err))
		return []model.Source{}
	}
	for i := range sources {
		sources[i] = sources[i].View()
	}
	return sources
}
