package scrape

import (
	"net/url"
	"path"
	"strings"
)

// DefaultDenylist lists links that never hold a readable article: video
// hosts, social networks and document downloads.
var DefaultDenylist = []string{
	"youtube.com",
	".pdf",
	"linkedin.com",
	".ashx",
	"facebook.com",
	"instagram.com",
}

// LinkFilter drops search results that are not worth fetching.
//
// Plain entries match anywhere in the lowercased link. Entries starting with
// "/" are path globs, so "/video/*" matches "/video/a/b" as well.
type LinkFilter struct {
	substrings []string
	globs      []string
}

// NewLinkFilter creates a LinkFilter. Falls back to DefaultDenylist if no
// entries are provided.
func NewLinkFilter(entries []string) *LinkFilter {
	if len(entries) == 0 {
		entries = DefaultDenylist
	}
	f := &LinkFilter{}
	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		switch {
		case e == "":
		case strings.HasPrefix(e, "/"):
			f.globs = append(f.globs, e)
		default:
			f.substrings = append(f.substrings, e)
		}
	}
	return f
}

// IsDenied reports whether link matches any entry.
func (f *LinkFilter) IsDenied(link string) bool {
	lower := strings.ToLower(link)
	for _, s := range f.substrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	if len(f.globs) == 0 {
		return false
	}
	u, err := url.Parse(lower)
	if err != nil {
		return true
	}
	for _, g := range f.globs {
		if matchSegmented(g, u.Path) {
			return true
		}
	}
	return false
}

// matchSegmented performs glob matching where a pattern like "/video/*"
// matches both "/video/clip" and "/video/deep/nested/clip".
func matchSegmented(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}

	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}
	return false
}
