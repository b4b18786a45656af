// Package pubdate resolves article publish dates from page markup.
package pubdate

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"github.com/sells-group/forecast-cli/internal/model"
)

const (
	// Layout is the canonical stored date format, e.g. "Jan 02, 2006".
	Layout = "Jan 02, 2006"
	// SearchLayout is the format search providers expect in before: filters.
	SearchLayout = "2006-01-02"
	// Unknown marks a date that could not be resolved.
	Unknown = model.UnknownDate
)

// metaTags are checked in priority order.
var metaTags = []string{
	"article:published_time",
	"datePublished",
	"date",
	"pubdate",
	"og:published_time",
	"publishdate",
}

// patterns are tried against raw markup once no meta tag matched.
// Each yields its candidate in capture group 1.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`),
	regexp.MustCompile(`(\d{2}/\d{2}/\d{4})`),
	regexp.MustCompile(`\b((?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\s+\d{1,2},?\s+\d{4})\b`),
	regexp.MustCompile(`<time\s+datetime="([^"]+)"`),
	regexp.MustCompile(`(\d{8})`),
}

// Extract returns the canonical publish date found in html, or Unknown.
func Extract(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fromPatterns(html)
	}
	return ExtractDocument(doc, html)
}

// ExtractDocument is Extract for an already-parsed document. raw is the
// markup the document was built from and feeds the pattern fallback.
func ExtractDocument(doc *goquery.Document, raw string) string {
	if d, ok := fromMeta(doc); ok {
		return d
	}
	return fromPatterns(raw)
}

func fromMeta(doc *goquery.Document) (string, bool) {
	metas := doc.Find("meta")
	for _, tag := range metaTags {
		var found string
		metas.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if !metaMatches(s, tag) {
				return true
			}
			content, ok := s.Attr("content")
			if !ok || strings.TrimSpace(content) == "" {
				return true
			}
			found = content
			return false
		})
		if found == "" {
			continue
		}
		if d := Parse(found); d != Unknown {
			return d, true
		}
	}
	return "", false
}

func metaMatches(s *goquery.Selection, tag string) bool {
	for _, attr := range []string{"name", "property", "itemprop"} {
		if v, ok := s.Attr(attr); ok && strings.EqualFold(v, tag) {
			return true
		}
	}
	return false
}

func fromPatterns(raw string) string {
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(raw, 3) {
			if d := Parse(m[1]); d != Unknown {
				return d
			}
		}
	}
	return Unknown
}

// Parse normalizes a loosely formatted date string to Layout. Input that
// cannot be parsed yields Unknown.
func Parse(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown
	}
	if t, err := dateparse.ParseAny(s); err == nil {
		return t.Format(Layout)
	}
	if len(s) == 8 && isDigits(s) {
		if t, err := time.Parse("20060102", s); err == nil {
			return t.Format(Layout)
		}
		return Unknown
	}
	if strings.Contains(s, "T") {
		if t, err := time.Parse(time.RFC3339, strings.Replace(s, "Z", "+00:00", 1)); err == nil {
			return t.Format(Layout)
		}
	}
	return Unknown
}

// ValidateAgainstCutoff reports whether a source dated date may be used
// when forecasting as of cutoff. With no cutoff every date is valid; with
// one, the date must be known and strictly before it.
func ValidateAgainstCutoff(cutoff *time.Time, date string) bool {
	if cutoff == nil {
		return true
	}
	if date == Unknown {
		return false
	}
	t, err := time.Parse(Layout, date)
	if err != nil {
		return false
	}
	return t.Before(*cutoff)
}

// FromTimestamp converts a unix timestamp in seconds or milliseconds to a
// UTC time. Values with more than 10 digits are treated as milliseconds.
func FromTimestamp(ts int64) time.Time {
	if len(strconv.FormatInt(ts, 10)) > 10 {
		ts /= 1000
	}
	return time.Unix(ts, 0).UTC()
}

// Cutoff converts an optional request timestamp into an optional cutoff.
func Cutoff(ts *int64) *time.Time {
	if ts == nil {
		return nil
	}
	t := FromTimestamp(*ts)
	return &t
}

// Today returns the reference date for prompts: the cutoff when set,
// otherwise now.
func Today(cutoff *time.Time, now time.Time) string {
	if cutoff != nil {
		return cutoff.Format(SearchLayout)
	}
	return now.Format(SearchLayout)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
