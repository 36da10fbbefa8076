package kuaishou

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Raks-kmt/kaishou/internal/domain"
)

const apolloMarker = "window.__APOLLO_STATE__"

// PageScraper pulls video metadata out of the player page markup when the
// graphql API refuses to answer. It reads the embedded apollo state first
// and falls back to OpenGraph meta tags.
type PageScraper struct {
	httpClient *http.Client
	headers    *HeaderPool
}

// NewPageScraper creates a scraper with its own cookie jar so redirects
// through the short-link host carry their cookies to the landing page.
func NewPageScraper(timeout time.Duration, headers *HeaderPool) *PageScraper {
	jar, _ := cookiejar.New(nil)
	return &PageScraper{
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		headers: headers,
	}
}

// Scrape fetches pageURL, following short-link redirects, and extracts
// video metadata from the landing page.
func (s *PageScraper) Scrape(ctx context.Context, pageURL string, quality domain.Quality) (*domain.VideoMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	s.headers.Apply(req)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page error (status %d)", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	if meta, ok := fromApolloState(doc, quality); ok {
		return meta, nil
	}
	if meta, ok := fromOpenGraph(doc); ok {
		return meta, nil
	}
	return nil, errors.New("page carries no playable source")
}

// fromApolloState reads the state object the player embeds as a script
// and resolves the photo and author entities out of it.
func fromApolloState(doc *goquery.Document, quality domain.Quality) (*domain.VideoMetadata, bool) {
	var raw json.RawMessage
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if state, ok := extractApolloJSON(sel.Text()); ok {
			raw = state
			return false
		}
		return true
	})
	if raw == nil {
		return nil, false
	}

	var state struct {
		DefaultClient map[string]json.RawMessage `json:"defaultClient"`
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, false
	}

	var (
		photo  photoPayload
		author struct {
			Name string `json:"name"`
		}
	)
	for key, entity := range state.DefaultClient {
		switch {
		case strings.HasPrefix(key, "VisionVideoDetailPhoto:"):
			if err := json.Unmarshal(entity, &photo); err != nil {
				return nil, false
			}
		case strings.HasPrefix(key, "VisionVideoDetailAuthor:"):
			json.Unmarshal(entity, &author)
		}
	}
	if photo.ID == "" {
		return nil, false
	}

	meta := &domain.VideoMetadata{
		Title:        photo.Caption,
		Uploader:     author.Name,
		Duration:     int(photo.Duration / 1000),
		ThumbnailURL: photo.CoverURL,
		ViewCount:    parseCount(photo.ViewCount),
		Description:  photo.Caption,
		Source:       "page",
	}
	fillMediaURL(meta, &photo, quality)
	if meta.MediaURL == "" {
		return nil, false
	}
	return meta, true
}

// extractApolloJSON locates the apollo assignment inside a script body and
// decodes exactly one JSON value after it, so trailing statements on the
// same line do not break the parse.
func extractApolloJSON(script string) (json.RawMessage, bool) {
	idx := strings.Index(script, apolloMarker)
	if idx < 0 {
		return nil, false
	}
	rest := script[idx+len(apolloMarker):]
	eq := strings.IndexByte(rest, '=')
	if eq < 0 {
		return nil, false
	}

	dec := json.NewDecoder(strings.NewReader(rest[eq+1:]))
	var state json.RawMessage
	if err := dec.Decode(&state); err != nil {
		return nil, false
	}
	return state, true
}

func fromOpenGraph(doc *goquery.Document) (*domain.VideoMetadata, bool) {
	get := func(prop string) string {
		val, _ := doc.Find(`meta[property='` + prop + `']`).First().Attr("content")
		return strings.TrimSpace(val)
	}

	mediaURL := get("og:video")
	if mediaURL == "" {
		mediaURL = get("og:video:url")
	}
	if mediaURL == "" {
		return nil, false
	}

	return &domain.VideoMetadata{
		Title:        get("og:title"),
		Description:  get("og:description"),
		ThumbnailURL: get("og:image"),
		MediaURL:     mediaURL,
		Source:       "page",
	}, true
}
