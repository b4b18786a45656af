package forecast

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/forecast-cli/internal/model"
)

var (
	numberedLine = regexp.MustCompile(`(?m)^\d+\.\s*(.+)$`)
	taggedItem   = regexp.MustCompile(`(?s)<li>\s*(.+?)\s*</li>`)
	firstNumber  = regexp.MustCompile(`(\d+(\.\d+)?)`)
	quoteChars   = strings.NewReplacer(`'`, "", `"`, "", "`", "")
)

// QueryFormat selects how planner output lists its queries.
type QueryFormat int

const (
	// Numbered is "1. query" per line.
	Numbered QueryFormat = iota
	// Tagged is "<li>query</li>".
	Tagged
)

// ExtractQueries pulls search queries from planner output. Quote characters
// are removed and empty entries dropped.
func ExtractQueries(text string, format QueryFormat) []string {
	re := numberedLine
	if format == Tagged {
		re = taggedItem
	}

	out := []string{}
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		q := strings.TrimSpace(quoteChars.Replace(m[1]))
		if q != "" {
			out = append(out, q)
		}
	}
	return out
}

// ExtractNumber returns the first integer or decimal number in text.
func ExtractNumber(text string) *float64 {
	m := firstNumber.FindString(text)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &v
}

const (
	sourceTemplate  = "ID: %d\nQuery: %s\nTitle: %s\nDate: %s\nContent:\n[start content]%s\n[end content]"
	sourceSeparator = "\n\n----\n\n"
)

// FormatSources renders sources for the publisher prompt, numbered from 1.
func FormatSources(sources []model.Source) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = fmt.Sprintf(sourceTemplate, i+1, s.Query, s.Title, s.Date, s.SummarizedContent)
	}
	return strings.Join(parts, sourceSeparator)
}
