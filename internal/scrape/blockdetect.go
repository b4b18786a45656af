package scrape

import (
	"errors"
	"net/http"
	"strings"
)

// BlockType names the bot wall in front of a page.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockPerimeterX BlockType = "perimeterx"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// Transient reports whether the wall clears on its own, so the domain must
// not be blacklisted for it.
func (b BlockType) Transient() bool {
	return b == BlockPerimeterX
}

// BlockedError reports a page hidden behind a bot wall.
type BlockedError struct {
	Type BlockType
}

func (e *BlockedError) Error() string {
	return "blocked (" + string(e.Type) + ")"
}

// bodySignatures are checked in order. PerimeterX serves its own captcha, so
// it precedes the generic captcha check.
var bodySignatures = []struct {
	block BlockType
	match func(lower string) bool
}{
	{BlockCloudflare, func(s string) bool {
		return strings.Contains(s, "checking your browser") ||
			strings.Contains(s, "cf-browser-verification") ||
			(strings.Contains(s, "cloudflare") && strings.Contains(s, "challenge"))
	}},
	{BlockPerimeterX, containsAny("perimeterx", "px-captcha", "_pxhd")},
	{BlockCaptcha, containsAny("captcha")},
}

func containsAny(subs ...string) func(string) bool {
	return func(s string) bool {
		for _, sub := range subs {
			if strings.Contains(s, sub) {
				return true
			}
		}
		return false
	}
}

// jsShellMaxBytes bounds the size of a page that can be a JS-only shell.
const jsShellMaxBytes = 2000

// DetectBlock inspects a response for an anti-bot wall.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		h := resp.Header
		if h.Get("cf-ray") != "" || h.Get("cf-cache-status") != "" || strings.EqualFold(h.Get("server"), "cloudflare") {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))
	for _, sig := range bodySignatures {
		if sig.match(lower) {
			return true, sig.block
		}
	}

	if len(body) < jsShellMaxBytes {
		noscript := strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript")
		if noscript || strings.Contains(lower, `meta http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}
	return false, BlockNone
}

// IsRateLimitBypass reports whether err was caused by a bot wall that clears
// on its own. Errors from remote readers only carry the wall in their text.
func IsRateLimitBypass(err error) bool {
	if err == nil {
		return false
	}
	var be *BlockedError
	if errors.As(err, &be) {
		return be.Type.Transient()
	}
	return strings.Contains(strings.ToLower(err.Error()), string(BlockPerimeterX))
}
