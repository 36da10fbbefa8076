// Package kuaishou implements the web API and page-scraping backends used
// to resolve Kuaishou share links into playable video metadata.
package kuaishou

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Raks-kmt/kaishou/internal/domain"
)

const defaultGraphQLURL = "https://www.kuaishou.com/graphql"

// videoDetailQuery is the query the web player sends for a single video.
const videoDetailQuery = `query visionVideoDetail($photoId: String, $page: String, $webPageArea: String) {
  visionVideoDetail(photoId: $photoId, page: $page, webPageArea: $webPageArea) {
    status
    author {
      id
      name
      headerUrl
    }
    photo {
      id
      caption
      duration
      coverUrl
      photoUrl
      photoH265Url
      viewCount
      realLikeCount
      manifest {
        adaptationSet {
          representation {
            url
            avgBitrate
            maxBitrate
            width
            height
            qualityType
            qualityLabel
          }
        }
      }
    }
  }
}`

// Client talks to the Kuaishou web API.
type Client struct {
	httpClient *http.Client
	headers    *HeaderPool
	graphqlURL string
}

// NewClient creates a web API client. The cookie jar is shared between
// share-link resolution and the graphql call because the endpoint rejects
// requests without the did cookie issued while resolving.
func NewClient(timeout time.Duration, headers *HeaderPool) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		headers:    headers,
		graphqlURL: defaultGraphQLURL,
	}
}

// ResolveShareLink returns the photo ID behind a share link. Links that
// already carry the ID are answered without a network round trip; short
// links are followed through their redirect chain to the landing page.
func (c *Client) ResolveShareLink(ctx context.Context, shareURL string) (string, error) {
	if id := PhotoIDFromURL(shareURL); id != "" {
		return id, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, shareURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	c.headers.Apply(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolve share link: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	landing := resp.Request.URL.String()
	if id := PhotoIDFromURL(landing); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("no photo ID in resolved URL %s", landing)
}

// VideoDetail fetches metadata for a photo ID and selects the stream that
// best matches the requested quality.
func (c *Client) VideoDetail(ctx context.Context, photoID string, quality domain.Quality) (*domain.VideoMetadata, error) {
	payload, err := json.Marshal(graphqlRequest{
		OperationName: "visionVideoDetail",
		Variables: detailVariables{
			PhotoID: photoID,
			Page:    "detail",
		},
		Query: videoDetailQuery,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.headers.Apply(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("graphql error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var detail detailResponse
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return parseDetail(photoID, &detail, quality)
}

// graphqlRequest is the request body for the web graphql endpoint.
type graphqlRequest struct {
	OperationName string          `json:"operationName"`
	Variables     detailVariables `json:"variables"`
	Query         string          `json:"query"`
}

type detailVariables struct {
	PhotoID     string `json:"photoId"`
	Page        string `json:"page"`
	WebPageArea string `json:"webPageArea,omitempty"`
}

// detailResponse is the graphql envelope for visionVideoDetail.
type detailResponse struct {
	Data struct {
		VisionVideoDetail struct {
			Status string `json:"status"`
			Author struct {
				ID        string `json:"id"`
				Name      string `json:"name"`
				HeaderURL string `json:"headerUrl"`
			} `json:"author"`
			Photo photoPayload `json:"photo"`
		} `json:"visionVideoDetail"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// photoPayload is the photo object shared by the graphql response and the
// apollo state embedded in the player page. Counters arrive either as
// bare numbers or as localized strings, so they stay raw until parsed.
type photoPayload struct {
	ID            string          `json:"id"`
	Caption       string          `json:"caption"`
	Duration      int64           `json:"duration"`
	CoverURL      string          `json:"coverUrl"`
	PhotoURL      string          `json:"photoUrl"`
	PhotoH265URL  string          `json:"photoH265Url"`
	ViewCount     json.RawMessage `json:"viewCount"`
	RealLikeCount json.RawMessage `json:"realLikeCount"`
	Manifest      json.RawMessage `json:"manifest"`
}

type manifest struct {
	AdaptationSet []adaptationSet `json:"adaptationSet"`
}

type adaptationSet struct {
	Representation []representation `json:"representation"`
}

type representation struct {
	URL          string `json:"url"`
	AvgBitrate   int    `json:"avgBitrate"`
	MaxBitrate   int    `json:"maxBitrate"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	QualityType  string `json:"qualityType"`
	QualityLabel string `json:"qualityLabel"`
}

func parseDetail(photoID string, resp *detailResponse, quality domain.Quality) (*domain.VideoMetadata, error) {
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", resp.Errors[0].Message)
	}

	d := &resp.Data.VisionVideoDetail
	if d.Photo.ID == "" {
		return nil, fmt.Errorf("photo %s: empty detail payload", photoID)
	}
	if d.Status != "" && !strings.EqualFold(d.Status, "success") {
		return nil, fmt.Errorf("photo %s: detail status %s", photoID, d.Status)
	}

	meta := &domain.VideoMetadata{
		Title:        d.Photo.Caption,
		Uploader:     d.Author.Name,
		Duration:     int(d.Photo.Duration / 1000),
		ThumbnailURL: d.Photo.CoverURL,
		ViewCount:    parseCount(d.Photo.ViewCount),
		Description:  d.Photo.Caption,
		Source:       "api",
	}

	fillMediaURL(meta, &d.Photo, quality)
	return meta, nil
}

// fillMediaURL picks the playable source for meta: the manifest stream
// closest to the quality cap when one exists, the direct photo URLs
// otherwise.
func fillMediaURL(meta *domain.VideoMetadata, photo *photoPayload, quality domain.Quality) {
	m := decodeManifest(photo.Manifest)
	if rep := pickRepresentation(m.AdaptationSet, quality.MaxHeight()); rep != nil {
		meta.MediaURL = rep.URL
		meta.Width = rep.Width
		meta.Height = rep.Height
		return
	}
	if photo.PhotoURL != "" {
		meta.MediaURL = photo.PhotoURL
		return
	}
	meta.MediaURL = photo.PhotoH265URL
}

// decodeManifest reads a manifest that is either inline JSON (graphql) or
// wrapped in apollo's {"type":"json","json":...} scalar envelope.
func decodeManifest(raw json.RawMessage) manifest {
	if len(raw) == 0 {
		return manifest{}
	}
	var direct manifest
	if err := json.Unmarshal(raw, &direct); err == nil && len(direct.AdaptationSet) > 0 {
		return direct
	}
	var wrapped struct {
		Type string   `json:"type"`
		JSON manifest `json:"json"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return wrapped.JSON
	}
	return manifest{}
}

// pickRepresentation selects the stream closest to the requested height
// cap. maxHeight 0 means no cap. When every stream exceeds the cap the
// smallest one is returned so a strict preference still downloads.
func pickRepresentation(sets []adaptationSet, maxHeight int) *representation {
	var reps []*representation
	for i := range sets {
		for j := range sets[i].Representation {
			r := &sets[i].Representation[j]
			if r.URL != "" {
				reps = append(reps, r)
			}
		}
	}
	if len(reps) == 0 {
		return nil
	}

	sort.Slice(reps, func(i, j int) bool {
		if reps[i].Height != reps[j].Height {
			return reps[i].Height > reps[j].Height
		}
		return reps[i].AvgBitrate > reps[j].AvgBitrate
	})

	if maxHeight <= 0 {
		return reps[0]
	}
	for _, r := range reps {
		if r.Height <= maxHeight {
			return r
		}
	}
	return reps[len(reps)-1]
}

// parseCount reads a counter the web API serves either as a bare number
// or as a localized string such as "4.5万".
func parseCount(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int64(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	return parseCountString(s)
}

func parseCountString(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "万"):
		mult = 1e4
		s = strings.TrimSuffix(s, "万")
	case strings.HasSuffix(s, "亿"):
		mult = 1e8
		s = strings.TrimSuffix(s, "亿")
	case strings.HasSuffix(s, "w"), strings.HasSuffix(s, "W"):
		mult = 1e4
		s = s[:len(s)-1]
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return int64(f * mult)
}

// photoIDRes match the photo identifier in player page URLs. Short-host
// tokens are deliberately absent: those need a redirect to resolve.
var photoIDRes = []*regexp.Regexp{
	regexp.MustCompile(`/short-video/([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`/fw/photo/([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`[?&]photoId=([A-Za-z0-9_-]+)`),
}

// PhotoIDFromURL extracts the photo identifier from a Kuaishou page URL.
// Returns "" when the URL carries no recognizable identifier.
func PhotoIDFromURL(pageURL string) string {
	for _, re := range photoIDRes {
		if m := re.FindStringSubmatch(pageURL); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}
