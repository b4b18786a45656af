package forecast

import (
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Prompt templates use {name} placeholders; {{ and }} are literal braces.
const (
	PlannerPrompt = `
You are a forecasting AGI that will help human make forecasting predictions of future world events. I will provide you a search engine to query related sources for you to make predictions. First, given a user question, please generate {breadth} search engine queries that can find related sources to support your answer in later steps.

User question: {question}

RULES:
0. Your current knowledge cutoff is 2024
1. Please only return a list of search engine queries. No yapping! No description of the queries !
2. Please make sure your search queries are diverse and queries enough background and related information for your final predictions instead of asking the same user questions in your search queries.
3. Return the search engine queries in an numbered list starting from 1.
`

	PublisherPrompt = `
[SOURCES]
{sources}

----

[OBJECTIVE]
You are a forecasting AGI that will help human make forecasting predictions of future world events
You are provided with sources to help you make predictions

[RULES]
0. Your current knowledge cutoff is {today}
1. Please format your answer into an informative markdown report that analyze the resource you have. Please make sure that your analysis is in great details (with specific numbers), not just general information.
2. If your answer is based on the provided sources, please make sure to correctly cite the source with its id in the format of [source ID: ] tag after the sentence.
3. At the end, make a final prediction for the user question starting with # PREDICTION. Your prediction must be very specific and quantitative where possible, avoiding vague or overly cautious statements. Include precise figures, percentages, or date ranges in your prediction. Follow this with a detailed explanation of your reasoning, highlighting key factors that influenced your specific forecast. Remember, as a forecasting AGI, you should aim for bold, well-reasoned predictions rather than safe, non-committal ones.

[USER QUESTION]
{question}
`

	RelatedPrompt = `You are a creative recommender agent

[CONTEXT]
Given the following forecast question:
Forecast Question: {question}

[OBJECTIVE]
Generate 4 additional forecast questions in the same style that are interesting for forecasters, particularly considering the type of forecast questions that someone like a superforecaster would find intriguing.

[RULES]
0. Today's date is {today}.
1. Be bold and imaginative. Push the boundaries of conventional thinking while remaining within the realm of possibility.
2. Craft specific, unique, intriguing and concise forecast questions. Avoid general or mundane topics.
3. Incorporate elements of long-term thinking, potential paradigm shifts, or low-probability high-impact events.
4. Consider topics like existential risks, artificial intelligence, space exploration, climate change, geopolitical conflicts, biotechnology, societal transformations.
5. Aim for questions that challenge forecasters and provoke deep consideration of future scenarios.
6. Return the forecast questions in the format of a JSON list, where each dictionary contains only the "query", "icon", and "topic" fields.
    - query: The forecast question
    - icon: An emoji that represents the topic
    - topic: The general subject of the forecast question

Example Output:
[
  {{"query": "What's the probability that at the end of 2025 a frontier AI lab will release an open-weight model that tops public leaderboards?", "icon": "🧠", "topic": "AI" }},
  {{"query": "What's the probability that a crewed mission lands on the Moon before 2028?", "icon": "🚀", "topic": "Space" }},
  {{"query": "What's the probability that global mean temperature in 2026 exceeds the 2024 record?", "icon": "🌡️", "topic": "Climate" }},
  {{"query": "What's the probability that a new WHO-declared pandemic begins before 2030?", "icon": "🦠", "topic": "Pandemic" }}
]
`
)

// Prompts holds the templates used by a forecast run.
type Prompts struct {
	Planner   string `yaml:"planner"`
	Publisher string `yaml:"publisher"`
	Related   string `yaml:"related"`
}

// DefaultPrompts returns the built-in templates.
func DefaultPrompts() Prompts {
	return Prompts{
		Planner:   PlannerPrompt,
		Publisher: PublisherPrompt,
		Related:   RelatedPrompt,
	}
}

// LoadPrompts reads template overrides from a YAML file with a top-level
// "prompts" key. Templates the file leaves empty keep their defaults. An
// empty path returns the defaults.
func LoadPrompts(path string) (Prompts, error) {
	p := DefaultPrompts()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, eris.Wrapf(err, "forecast: read prompts %s", path)
	}
	var wrapper struct {
		Prompts Prompts `yaml:"prompts"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return p, eris.Wrap(err, "forecast: parse prompts")
	}

	if wrapper.Prompts.Planner != "" {
		p.Planner = wrapper.Prompts.Planner
	}
	if wrapper.Prompts.Publisher != "" {
		p.Publisher = wrapper.Prompts.Publisher
	}
	if wrapper.Prompts.Related != "" {
		p.Related = wrapper.Prompts.Related
	}
	return p, nil
}

// Render fills the {name} placeholders of tmpl. Unknown placeholders are
// left as they are.
func Render(tmpl string, vars map[string]string) string {
	pairs := []string{"{{", "{", "}}", "}"}
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func plannerVars(question string, breadth int, today string) map[string]string {
	return map[string]string{
		"question": question,
		"breadth":  strconv.Itoa(breadth),
		"today":    today,
	}
}
