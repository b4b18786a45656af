package scrape

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/rotisserie/eris"

	"github.com/sells-group/forecast-cli/internal/pubdate"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = eris.New("scrape: parse pool closed")

var spaceRe = regexp.MustCompile(`\s+`)

// Parse extracts the article from raw page HTML.
func Parse(pageURL string, html []byte) (*Article, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: parse url %s", pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse html")
	}

	var title, text string
	art, rerr := readability.FromReader(bytes.NewReader(html), base)
	if rerr == nil {
		title = strings.TrimSpace(art.Title)
		text = art.TextContent
	}
	if strings.TrimSpace(text) == "" {
		body := doc.Find("body").Clone()
		body.Find("script, style, nav, footer, header, noscript").Remove()
		text = body.Text()
	}
	text = strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
	if text == "" {
		return nil, eris.New("scrape: no article text")
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	return &Article{
		URL:     pageURL,
		Title:   title,
		Favicon: Favicon(doc, base),
		Date:    pubdate.ExtractDocument(doc, string(html)),
		Content: text,
	}, nil
}

// Favicon returns the absolute URL of the page icon. Pages without an icon
// link fall back to their first image. Returns "" when neither exists.
func Favicon(doc *goquery.Document, base *url.URL) string {
	var href string
	doc.Find("link[rel][href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel := strings.ToLower(strings.TrimSpace(s.AttrOr("rel", "")))
		if rel == "icon" || rel == "shortcut icon" {
			href = s.AttrOr("href", "")
			return false
		}
		return true
	})
	if href == "" {
		href = doc.Find("img[src]").First().AttrOr("src", "")
	}
	if href == "" {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

type parseJob struct {
	url  string
	html []byte
	out  chan parseResult
}

type parseResult struct {
	article *Article
	err     error
}

// ParsePool runs Parse on a fixed set of worker goroutines so HTML parsing
// never runs on the goroutines that drive network I/O.
type ParsePool struct {
	jobs      chan parseJob
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewParsePool starts workers parse goroutines. Non-positive means one per CPU.
func NewParsePool(workers int) *ParsePool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &ParsePool{
		jobs: make(chan parseJob),
		done: make(chan struct{}),
	}
	p.wg.Add(workers)
	for range workers {
		go p.work()
	}
	return p
}

func (p *ParsePool) work() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case j := <-p.jobs:
			art, err := Parse(j.url, j.html)
			j.out <- parseResult{article: art, err: err}
		}
	}
}

// Submit parses html on a pool worker and waits for the result. A nil pool
// parses on the calling goroutine.
func (p *ParsePool) Submit(ctx context.Context, pageURL string, html []byte) (*Article, error) {
	if p == nil {
		return Parse(pageURL, html)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(chan parseResult, 1)
	select {
	case p.jobs <- parseJob{url: pageURL, html: html, out: out}:
	case <-p.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-out:
		return r.article, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the workers. In-flight parses finish first.
func (p *ParsePool) Close() {
	if p == nil {
		return
	}
	p.closeOnce.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}
