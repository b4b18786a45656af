package forecast

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/forecast-cli/internal/model"
)

func TestExtractQueries_Numbered(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"strips quotes and drops empties", "1. foo\n2. 'bar'\n3. ", []string{"foo", "bar"}},
		{"ignores prose", "Here you go:\n1. \"Fed rate decision March 2024\"\n2. `CPI February 2024`\nThanks", []string{"Fed rate decision March 2024", "CPI February 2024"}},
		{"multi digit", "10. tenth\n11. eleventh", []string{"tenth", "eleventh"}},
		{"fallback text", "Sorry, I can not satisfy that request.", []string{}},
		{"empty", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExtractQueries(tt.in, Numbered))
		})
	}
}

func TestExtractQueries_Tagged(t *testing.T) {
	t.Parallel()

	in := "<ul>\n<li> first query </li>\n<li>\n'second'\n</li><li>  </li></ul>"
	assert.Equal(t, []string{"first query", "second"}, ExtractQueries(in, Tagged))
	assert.Empty(t, ExtractQueries("1. numbered only", Tagged))
}

func TestExtractNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want *float64
	}{
		{"The probability is 35%", ptr(35)},
		{" 12.5 percent, maybe 40", ptr(12.5)},
		{"7.", ptr(7)},
		{"no digits here", nil},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got := ExtractNumber(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func ptr(v float64) *float64 { return &v }

func TestFormatSources(t *testing.T) {
	t.Parallel()

	got := FormatSources([]model.Source{
		{Query: "fed", Title: "Fed holds", Date: "Mar 20, 2024", SummarizedContent: "Rates held."},
		{Query: "cpi", Title: "CPI", Date: "Unknown", SummarizedContent: "Inflation cooled."},
	})
	want := "ID: 1\nQuery: fed\nTitle: Fed holds\nDate: Mar 20, 2024\nContent:\n[start content]Rates held.\n[end content]" +
		"\n\n----\n\n" +
		"ID: 2\nQuery: cpi\nTitle: CPI\nDate: Unknown\nContent:\n[start content]Inflation cooled.\n[end content]"
	assert.Equal(t, want, got)
	assert.Empty(t, FormatSources(nil))
}

func TestRender(t *testing.T) {
	t.Parallel()

	got := Render("Q: {question} ({breadth}) {unknown} {{literal}}", map[string]string{
		"question": "Will {x} happen?",
		"breadth":  "5",
	})
	assert.Equal(t, "Q: Will {x} happen? (5) {unknown} {literal}", got)
}

func TestLoadPrompts(t *testing.T) {
	t.Parallel()

	p, err := LoadPrompts("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPrompts(), p)

	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prompts:\n  planner: |\n    Give {breadth} queries for {question}\n"), 0o600))

	p, err = LoadPrompts(path)
	require.NoError(t, err)
	assert.Equal(t, "Give {breadth} queries for {question}\n", p.Planner)
	assert.Equal(t, PublisherPrompt, p.Publisher)
	assert.Equal(t, RelatedPrompt, p.Related)

	_, err = LoadPrompts(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("prompts: [unclosed"), 0o600))
	_, err = LoadPrompts(bad)
	assert.Error(t, err)
}
