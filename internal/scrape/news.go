package scrape

import "strings"

// newsDomains are outlets treated as news publishers.
var newsDomains = []string{
	"pbs",
	"directorsandboards",
	"thestreet",
	"crunchbase",
	"dealroom",
	"bloomberg",
	"washingtonpost",
	"nytimes",
	"reuters",
	"cnn",
	"legaldive",
	"wsj",
	"bbc",
	"apnews",
	"nbcnews",
	"abcnews",
	"cbsnews",
	"foxnews",
	"usatoday",
	"latimes",
	"theguardian",
	"economist",
	"time",
	"forbes",
	"businessinsider",
	"cnbc",
	"ft",
	"huffpost",
	"npr",
	"politico",
	"vox",
	"aljazeera",
	"thehill",
	"nypost",
	"dailymail",
	"newsweek",
	"usnews",
	"chathamhouse",
	"morningconsult",
	"spf",
	"observer",
}

// IsNewsDomain reports whether domain contains one of the known outlet names.
// Matching is by substring, so it is generous.
func IsNewsDomain(domain string) bool {
	domain = strings.ToLower(domain)
	if domain == "" {
		return false
	}
	for _, d := range newsDomains {
		if strings.Contains(domain, d) {
			return true
		}
	}
	return false
}
