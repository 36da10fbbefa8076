// Package classify validates Kuaishou share links and extracts the content
// identifier. It is pure string work: deterministic, no network access.
package classify

import (
	"regexp"
	"strings"

	"github.com/Raks-kmt/kaishou/internal/domain"
)

// Links rejected outright. The block-list is checked before the allow-list
// and wins ties: the bare homepage also matches the generic www pattern.
var blockPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^https?://www\.kuaishou\.com/?$`),
	regexp.MustCompile(`(?i)^https?://www\.kuaishou\.com/new-reco`),
	regexp.MustCompile(`(?i)^https?://www\.kuaishou\.com/explore`),
	regexp.MustCompile(`(?i)^https?://www\.kuaishou\.com/profile`),
	regexp.MustCompile(`(?i)^https?://www\.kuaishou\.com/following`),
}

// Accepted link shapes: the share short-host, the web host, the app's custom
// URI scheme, and scheme-less copies of both hosts.
var allowPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^https?://v\.kuaishou\.com/\w+`),
	regexp.MustCompile(`(?i)^https?://www\.kuaishou\.com/\w+`),
	regexp.MustCompile(`(?i)^ksy://\w+`),
	regexp.MustCompile(`(?i)^kuaishou\.com/\w+`),
	regexp.MustCompile(`(?i)^kuaishouapp\.com/\w+`),
}

// Markers distinguishing an individual video page from profile/feed links.
// Checked against the lowercased text.
var videoMarkers = []string{
	"/short-video/",
	"/video/",
	"v.kuaishou.com",
	"ksy://video",
	"photoid=",
	"fid=",
}

// Identifier extraction patterns, most specific first.
var (
	schemePayloadRe = regexp.MustCompile(`(?i)^ksy://([A-Za-z0-9_-]+)`)
	shortHostRe     = regexp.MustCompile(`(?i)v\.kuaishou\.com/([A-Za-z0-9_-]+)`)
	keywordPathRe   = regexp.MustCompile(`(?i)(?:short-video|video)/([A-Za-z0-9_-]+)`)
	photoIDParamRe  = regexp.MustCompile(`(?i)[?&]photoId=([A-Za-z0-9_-]+)`)
	fidParamRe      = regexp.MustCompile(`(?i)[?&]fid=([A-Za-z0-9_-]+)`)
	longSegmentRe   = regexp.MustCompile(`^[A-Za-z0-9]{10,}$`)
	genericTokenRe  = regexp.MustCompile(`^[A-Za-z0-9_-]{6,}$`)
)

const canonicalTemplate = "https://v.kuaishou.com/"

// Classify validates text as a Kuaishou video link and extracts its content
// identifier. Repeated calls with the same text yield the same identifier.
func Classify(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.ErrInvalidLink
	}

	for _, re := range blockPatterns {
		if re.MatchString(text) {
			return "", domain.ErrInvalidLink
		}
	}

	allowed := false
	for _, re := range allowPatterns {
		if re.MatchString(text) {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", domain.ErrInvalidLink
	}

	lower := strings.ToLower(text)
	marked := false
	for _, marker := range videoMarkers {
		if strings.Contains(lower, marker) {
			marked = true
			break
		}
	}
	if !marked {
		return "", domain.ErrNotVideoLink
	}

	id := extractID(text)
	if id == "" {
		return "", domain.ErrNoIdentifier
	}
	return id, nil
}

// CanonicalURL re-embeds an identifier into the fixed share-link template.
func CanonicalURL(id string) string {
	return canonicalTemplate + id
}

// extractID walks the extraction steps most specific first; the first step
// producing an identifier wins. The final generic fallback must yield a token
// of at least 6 characters.
func extractID(text string) string {
	// 1. Custom-scheme payload. A bare "video" payload is the app's route
	// word, not an identifier; fall through to the deeper steps.
	if m := schemePayloadRe.FindStringSubmatch(text); len(m) > 1 {
		if !strings.EqualFold(m[1], "video") {
			return m[1]
		}
	}

	// 2. Segment after the short share host.
	if m := shortHostRe.FindStringSubmatch(text); len(m) > 1 {
		return m[1]
	}

	// 3. Segment after the short-video/video path keyword.
	if m := keywordPathRe.FindStringSubmatch(text); len(m) > 1 {
		return m[1]
	}

	// 4. Named query parameters, photoId before fid.
	if m := photoIDParamRe.FindStringSubmatch(text); len(m) > 1 {
		return m[1]
	}
	if m := fidParamRe.FindStringSubmatch(text); len(m) > 1 {
		return m[1]
	}

	segs := pathSegments(text)

	// 5. First long alphanumeric path segment.
	for _, seg := range segs {
		if longSegmentRe.MatchString(seg) {
			return seg
		}
	}

	// 6. Fallback: last path segment, minus query, if token-like.
	if len(segs) > 0 {
		last := segs[len(segs)-1]
		if genericTokenRe.MatchString(last) {
			return last
		}
	}

	return ""
}

// pathSegments returns the non-empty path parts of text after the host,
// with query and fragment stripped.
func pathSegments(text string) []string {
	s := text
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}

	parts := strings.Split(s, "/")
	if len(parts) < 2 {
		return nil
	}

	segs := make([]string, 0, len(parts)-1)
	for _, p := range parts[1:] {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}
