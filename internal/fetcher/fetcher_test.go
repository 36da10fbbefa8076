package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Raks-kmt/kaishou/internal/config"
	"github.com/Raks-kmt/kaishou/internal/domain"
	"github.com/Raks-kmt/kaishou/pkg/kuaishou"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFetcher(maxSize int64) *Fetcher {
	cfg := config.DownloadConfig{
		Timeout:     5 * time.Second,
		ReadTimeout: 2 * time.Second,
	}
	pool := kuaishou.NewHeaderPool([]string{"agent-one"}, "https://www.kuaishou.com/", "https://www.kuaishou.com")
	return New(cfg, maxSize, pool, testLogger())
}

func metaFor(mediaURL string) *domain.VideoMetadata {
	return &domain.VideoMetadata{Title: "t", MediaURL: mediaURL}
}

func TestFetcher_Fetch_Success(t *testing.T) {
	payload := bytes.Repeat([]byte("v"), 1024)
	var gotUA, gotReferer, gotRange string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		gotRange = r.Header.Get("Range")
		w.Write(payload)
	}))
	defer srv.Close()

	f := newTestFetcher(1 << 20)
	dir := t.TempDir()

	path, size, err := f.Fetch(context.Background(), metaFor(srv.URL+"/v.mp4"), dir)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if path != filepath.Join(dir, "video.mp4") {
		t.Errorf("path = %q, want deterministic video.mp4 name", path)
	}
	if size != int64(len(payload)) {
		t.Errorf("size = %d, want %d", size, len(payload))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Error("artifact content does not match the served payload")
	}

	if gotUA != "agent-one" {
		t.Errorf("User-Agent = %q, want the pool agent", gotUA)
	}
	if gotReferer != "https://www.kuaishou.com/" {
		t.Errorf("Referer = %q, want the pinned value", gotReferer)
	}
	if gotRange != "bytes=0-" {
		t.Errorf("Range = %q, want bytes=0-", gotRange)
	}
}

func TestFetcher_Fetch_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "403 means expired URL", status: http.StatusForbidden, wantErr: domain.ErrURLExpired},
		{name: "401 means expired URL", status: http.StatusUnauthorized, wantErr: domain.ErrURLExpired},
		{name: "429 means rate limited", status: http.StatusTooManyRequests, wantErr: domain.ErrRateLimited},
		{name: "404 means media gone", status: http.StatusNotFound, wantErr: domain.ErrMediaUnavailable},
		{name: "410 means media gone", status: http.StatusGone, wantErr: domain.ErrMediaUnavailable},
		{name: "500 is a generic failure", status: http.StatusInternalServerError, wantErr: domain.ErrDownloadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			f := newTestFetcher(1 << 20)
			_, _, err := f.Fetch(context.Background(), metaFor(srv.URL), t.TempDir())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFetcher_Fetch_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newTestFetcher(1 << 20)
	_, _, err := f.Fetch(context.Background(), metaFor(srv.URL), t.TempDir())
	if !errors.Is(err, domain.ErrEmptyFile) {
		t.Errorf("error = %v, want ErrEmptyFile", err)
	}
}

func TestFetcher_Fetch_TooLarge_DeclaredLength(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.Write(payload)
	}))
	defer srv.Close()

	f := newTestFetcher(50)
	_, _, err := f.Fetch(context.Background(), metaFor(srv.URL), t.TempDir())
	if !errors.Is(err, domain.ErrFileTooLarge) {
		t.Errorf("error = %v, want ErrFileTooLarge from the declared length", err)
	}
}

func TestFetcher_Fetch_TooLarge_MidStream(t *testing.T) {
	// Flushing forces chunked encoding, so the cap can only trip while
	// streaming.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Write(bytes.Repeat([]byte("a"), 40))
		flusher.Flush()
		w.Write(bytes.Repeat([]byte("b"), 40))
	}))
	defer srv.Close()

	f := newTestFetcher(50)
	_, _, err := f.Fetch(context.Background(), metaFor(srv.URL), t.TempDir())
	if !errors.Is(err, domain.ErrFileTooLarge) {
		t.Errorf("error = %v, want ErrFileTooLarge mid-stream", err)
	}
}

func TestFetcher_Fetch_StrategyHeadersOverride(t *testing.T) {
	var gotReferer, gotCustom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		gotCustom = r.Header.Get("X-Custom")
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	meta := metaFor(srv.URL)
	meta.Headers = map[string]string{
		"Referer":  "https://override.example/",
		"X-Custom": "1",
	}

	f := newTestFetcher(1 << 20)
	if _, _, err := f.Fetch(context.Background(), meta, t.TempDir()); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if gotReferer != "https://override.example/" {
		t.Errorf("Referer = %q, want the strategy override", gotReferer)
	}
	if gotCustom != "1" {
		t.Errorf("X-Custom = %q, want 1", gotCustom)
	}
}

func TestFetcher_Fetch_NoMediaURL(t *testing.T) {
	f := newTestFetcher(1 << 20)
	_, _, err := f.Fetch(context.Background(), &domain.VideoMetadata{Title: "meta only"}, t.TempDir())
	if !errors.Is(err, domain.ErrNoMediaURL) {
		t.Errorf("error = %v, want ErrNoMediaURL", err)
	}
}

func TestArtifactName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://cdn.example/clip.mp4", "video.mp4"},
		{"https://cdn.example/clip.webm", "video.webm"},
		{"https://cdn.example/clip.MOV?sig=1", "video.mov"},
		{"https://cdn.example/clip.exe", "video.mp4"},
		{"https://cdn.example/clip", "video.mp4"},
	}

	for _, tt := range tests {
		if got := artifactName(tt.url); got != tt.want {
			t.Errorf("artifactName(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestIsHLS(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://cdn.example/play/index.m3u8", true},
		{"https://cdn.example/play/index.M3U8?sig=abc", true},
		{"https://cdn.example/video.mp4", false},
		{"https://cdn.example/video.mp4?fake=.m3u8", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsHLS(tt.url); got != tt.want {
			t.Errorf("IsHLS(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
