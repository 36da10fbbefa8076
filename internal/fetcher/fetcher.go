// Package fetcher streams resolved media URLs into scratch directories.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Raks-kmt/kaishou/internal/config"
	"github.com/Raks-kmt/kaishou/internal/domain"
	"github.com/Raks-kmt/kaishou/pkg/kuaishou"
)

const (
	directFileName = "video.mp4"
	hlsFileName    = "video.ts"

	progressLogInterval = 30 * time.Second
)

// Fetcher downloads media over HTTP with spoofed browser headers. A fetch
// failure is terminal: the retry envelope lives upstream in the
// extraction chain, not here.
type Fetcher struct {
	// client serves short requests (playlists) with an overall timeout.
	client *http.Client
	// streamClient serves media downloads without an overall timeout;
	// stall detection covers dead connections instead.
	streamClient *http.Client
	headers      *kuaishou.HeaderPool
	maxFileSize  int64
	readTimeout  time.Duration
	logger       *slog.Logger
}

// New creates a fetcher. maxFileSize bounds the artifact both before the
// download (declared length) and during it (bytes written).
func New(cfg config.DownloadConfig, maxFileSize int64, headers *kuaishou.HeaderPool, logger *slog.Logger) *Fetcher {
	streamTransport := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		streamClient: &http.Client{
			Transport: streamTransport,
		},
		headers:     headers,
		maxFileSize: maxFileSize,
		readTimeout: cfg.ReadTimeout,
		logger:      logger,
	}
}

// Fetch streams the media described by meta into destDir and returns the
// file path and size. File names are deterministic, so a scratch
// directory never holds more than one artifact.
func (f *Fetcher) Fetch(ctx context.Context, meta *domain.VideoMetadata, destDir string) (string, int64, error) {
	if meta.MediaURL == "" {
		return "", 0, domain.ErrNoMediaURL
	}
	if IsHLS(meta.MediaURL) {
		return f.fetchHLS(ctx, meta, destDir)
	}
	return f.fetchDirect(ctx, meta, destDir)
}

// IsHLS reports whether mediaURL points at an HLS playlist.
func IsHLS(mediaURL string) bool {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".m3u8")
}

// artifactName keeps the container extension when the URL path carries a
// recognizable one, defaulting to mp4.
func artifactName(mediaURL string) string {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return directFileName
	}
	switch ext := strings.ToLower(filepath.Ext(u.Path)); ext {
	case ".mp4", ".mov", ".webm", ".mkv":
		return "video" + ext
	default:
		return directFileName
	}
}

func (f *Fetcher) fetchDirect(ctx context.Context, meta *domain.VideoMetadata, destDir string) (string, int64, error) {
	resp, err := f.openStream(ctx, meta)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.ContentLength > f.maxFileSize {
		return "", 0, fmt.Errorf("%w: %d bytes declared", domain.ErrFileTooLarge, resp.ContentLength)
	}

	path := filepath.Join(destDir, artifactName(meta.MediaURL))
	written, err := f.writeStream(resp.Body, resp.ContentLength, meta.MediaURL, path)
	if err != nil {
		return "", 0, err
	}

	f.logger.Info("download complete",
		"url", meta.MediaURL, "path", path, "size", written)
	return path, written, nil
}

func (f *Fetcher) openStream(ctx context.Context, meta *domain.VideoMetadata) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.MediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	f.headers.Apply(req)
	req.Header.Set("Accept", "video/mp4,video/*;q=0.9,*/*;q=0.8")
	req.Header.Set("Range", "bytes=0-")
	// Headers reported by the resolving strategy win over the defaults.
	for k, v := range meta.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}

	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// checkStatus maps upstream status codes onto the domain errors the bot
// turns into user guidance.
func checkStatus(code int) error {
	switch code {
	case http.StatusOK, http.StatusPartialContent:
		return nil
	case http.StatusForbidden, http.StatusUnauthorized:
		return domain.ErrURLExpired
	case http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case http.StatusNotFound, http.StatusGone:
		return domain.ErrMediaUnavailable
	default:
		return fmt.Errorf("%w: unexpected status %d", domain.ErrDownloadFailed, code)
	}
}

// writeStream copies body to path, enforcing the size cap mid-stream so
// responses without a declared length cannot overflow the disk.
func (f *Fetcher) writeStream(body io.Reader, declared int64, mediaURL, path string) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	reader := newProgressReader(body, declared, f.readTimeout, f.logger, mediaURL)
	written, err := io.Copy(file, io.LimitReader(reader, f.maxFileSize+1))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	if written > f.maxFileSize {
		return 0, fmt.Errorf("%w: exceeded %d bytes", domain.ErrFileTooLarge, f.maxFileSize)
	}
	if written == 0 {
		return 0, domain.ErrEmptyFile
	}
	return written, nil
}

// progressReader tracks bytes read, logs progress periodically, and fails
// the stream when no data arrives within readTimeout.
type progressReader struct {
	reader      io.Reader
	total       int64
	downloaded  int64
	readTimeout time.Duration
	lastRead    time.Time
	lastLog     time.Time
	logger      *slog.Logger
	url         string
}

func newProgressReader(r io.Reader, total int64, readTimeout time.Duration, logger *slog.Logger, url string) *progressReader {
	now := time.Now()
	return &progressReader{
		reader:      r,
		total:       total,
		readTimeout: readTimeout,
		lastRead:    now,
		lastLog:     now,
		logger:      logger,
		url:         url,
	}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)

	if n > 0 {
		p.downloaded += int64(n)
		p.lastRead = time.Now()

		if time.Since(p.lastLog) > progressLogInterval {
			p.logProgress()
			p.lastLog = time.Now()
		}
	}

	// Zero-byte reads past the stall window mean a dead connection.
	if err == nil && p.readTimeout > 0 && time.Since(p.lastRead) > p.readTimeout {
		return n, fmt.Errorf("download stalled: no data received for %v", p.readTimeout)
	}

	return n, err
}

func (p *progressReader) logProgress() {
	if p.total > 0 {
		pct := float64(p.downloaded) / float64(p.total) * 100
		p.logger.Info("download progress",
			"downloaded_mb", p.downloaded/(1024*1024),
			"total_mb", p.total/(1024*1024),
			"percent", fmt.Sprintf("%.1f%%", pct),
		)
	} else {
		p.logger.Info("download progress",
			"downloaded_mb", p.downloaded/(1024*1024),
		)
	}
}
