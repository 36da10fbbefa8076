package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/Raks-kmt/kaishou/internal/config"
	"github.com/Raks-kmt/kaishou/internal/domain"
)

// YtDlpStrategy shells out to yt-dlp as the last-resort resolver. The
// chain consults it only on the configured fallback attempt, so a broken
// or missing binary never blocks the native strategies.
type YtDlpStrategy struct {
	path    string
	timeout time.Duration

	checkOnce sync.Once
	available bool
}

func NewYtDlpStrategy(cfg config.ExtractConfig) *YtDlpStrategy {
	return &YtDlpStrategy{
		path:    cfg.YtDlpPath,
		timeout: cfg.Timeout,
	}
}

func (s *YtDlpStrategy) Name() string {
	return "ytdlp"
}

// Available reports whether the binary can be found. Checked once per
// process; installing yt-dlp mid-run requires a restart.
func (s *YtDlpStrategy) Available() bool {
	s.checkOnce.Do(func() {
		_, err := exec.LookPath(s.path)
		s.available = err == nil
	})
	return s.available
}

func (s *YtDlpStrategy) Resolve(ctx context.Context, shareURL string, quality domain.Quality) (*domain.VideoMetadata, error) {
	if !s.Available() {
		return nil, fmt.Errorf("%w: %s not found", domain.ErrStrategyUnavailable, s.path)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// yt-dlp -J --no-playlist -f best[height<=N] url
	cmd := exec.CommandContext(ctx, s.path,
		"-J", "--no-playlist", "--no-warnings",
		"-f", FormatSelector(quality),
		shareURL,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := extractorError(stderr.String()); msg != "" {
			return nil, fmt.Errorf("yt-dlp: %s", msg)
		}
		return nil, fmt.Errorf("yt-dlp: %w", err)
	}

	return parseInfoJSON(stdout.Bytes(), quality)
}

// FormatSelector translates a quality preference into yt-dlp's format
// filter syntax.
func FormatSelector(q domain.Quality) string {
	if h := q.MaxHeight(); h > 0 {
		return fmt.Sprintf("best[height<=%d]", h)
	}
	return "best"
}

// infoJSON matches the fields we use from yt-dlp -J output. With a
// format filter the top level carries the chosen format's url; older
// extractors only fill the formats list.
type infoJSON struct {
	Title       string            `json:"title"`
	Uploader    string            `json:"uploader"`
	Duration    float64           `json:"duration"`
	Thumbnail   string            `json:"thumbnail"`
	ViewCount   int64             `json:"view_count"`
	Description string            `json:"description"`
	URL         string            `json:"url"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	HTTPHeaders map[string]string `json:"http_headers"`
	Formats     []ytFormat        `json:"formats"`
}

type ytFormat struct {
	URL         string            `json:"url"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	TBR         float64           `json:"tbr"`
	VCodec      string            `json:"vcodec"`
	HTTPHeaders map[string]string `json:"http_headers"`
}

func parseInfoJSON(data []byte, quality domain.Quality) (*domain.VideoMetadata, error) {
	var info infoJSON
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse yt-dlp output: %w", err)
	}

	meta := &domain.VideoMetadata{
		Title:        info.Title,
		Uploader:     info.Uploader,
		Duration:     int(info.Duration),
		ThumbnailURL: info.Thumbnail,
		ViewCount:    info.ViewCount,
		Description:  info.Description,
		MediaURL:     info.URL,
		Width:        info.Width,
		Height:       info.Height,
		Source:       "ytdlp",
		Headers:      info.HTTPHeaders,
	}

	if meta.MediaURL == "" {
		if f := bestFormat(&info, quality.MaxHeight()); f != nil {
			meta.MediaURL = f.URL
			meta.Width = f.Width
			meta.Height = f.Height
			meta.Headers = f.HTTPHeaders
		}
	}
	return meta, nil
}

// bestFormat mirrors the height-capped pick yt-dlp itself performs, for
// info dumps that carry formats without a top level url.
func bestFormat(info *infoJSON, maxHeight int) *ytFormat {
	var best *ytFormat
	for i := range info.Formats {
		f := &info.Formats[i]
		if f.URL == "" || f.VCodec == "none" {
			continue
		}
		if maxHeight > 0 && f.Height > maxHeight {
			continue
		}
		if best == nil || f.Height > best.Height ||
			(f.Height == best.Height && f.TBR > best.TBR) {
			best = f
		}
	}
	if best == nil {
		// Everything exceeded the cap; take the smallest stream instead
		// of failing the whole resolve.
		for i := range info.Formats {
			f := &info.Formats[i]
			if f.URL == "" || f.VCodec == "none" {
				continue
			}
			if best == nil || f.Height < best.Height {
				best = f
			}
		}
	}
	return best
}

// extractorError pulls the ERROR line out of yt-dlp stderr, which buries
// it under progress noise.
func extractorError(stderr string) string {
	var firstLine string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if firstLine == "" {
			firstLine = line
		}
		if strings.HasPrefix(line, "ERROR") {
			return line
		}
	}
	return firstLine
}
