package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SearchType selects the search provider vertical.
type SearchType string

const (
	SearchTypeWeb  SearchType = "search"
	SearchTypeNews SearchType = "news"
)

// Valid reports whether t is a known search type.
func (t SearchType) Valid() bool {
	return t == SearchTypeWeb || t == SearchTypeNews
}

// ForecastRequest is a single forecasting pipeline invocation.
type ForecastRequest struct {
	Model           string     `json:"model"`
	Messages        []Message  `json:"messages"`
	Breadth         *int       `json:"breadth,omitempty"`
	PlannerPrompt   string     `json:"plannerPrompt,omitempty"`
	PublisherPrompt string     `json:"publisherPrompt,omitempty"`
	SearchType      SearchType `json:"search_type,omitempty"`
	BeforeTimestamp *int64     `json:"beforeTimestamp,omitempty"`
}

// Question returns the content of the last message, or "" when there are none.
func (r ForecastRequest) Question() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[len(r.Messages)-1].Content
}

// BatchRequest fans a set of questions out through the pipeline.
type BatchRequest struct {
	Questions       []BatchItem `json:"questions"`
	Model           string      `json:"model"`
	Breadth         *int        `json:"breadth,omitempty"`
	PlannerPrompt   string      `json:"plannerPrompt,omitempty"`
	PublisherPrompt string      `json:"publisherPrompt,omitempty"`
	SearchType      SearchType  `json:"search_type,omitempty"`
}

// BatchItem is a free-form question record. It must carry a "question"
// field and may carry "backgroundText" and "beforeTimeStamp".
type BatchItem map[string]any

// ForecastResult is the parsed outcome of one batch item. Fields of the
// originating item are preserved when it is encoded.
type ForecastResult struct {
	Item       BatchItem `json:"-"`
	Prediction *float64  `json:"prediction"`
	Response   string    `json:"response"`
	Sources    []Source  `json:"sources"`
}

// MarshalJSON flattens the original item fields next to the parsed output.
// Parsed fields win on key collisions.
func (r ForecastResult) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Item)+3)
	for k, v := range r.Item {
		out[k] = v
	}
	out["prediction"] = r.Prediction
	out["response"] = r.Response
	sources := r.Sources
	if sources == nil {
		sources = []Source{}
	}
	out["sources"] = sources
	b, err := json.Marshal(out)
	if err != nil {
		return nil, eris.Wrap(err, "model: marshal forecast result")
	}
	return b, nil
}

// RelatedQuestion is a suggested follow-up forecasting question.
type RelatedQuestion struct {
	Query string `json:"query"`
	Icon  string `json:"icon"`
	Topic string `json:"topic"`
}
