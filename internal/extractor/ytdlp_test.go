package extractor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Raks-kmt/kaishou/internal/config"
	"github.com/Raks-kmt/kaishou/internal/domain"
)

func TestFormatSelector(t *testing.T) {
	tests := []struct {
		quality domain.Quality
		want    string
	}{
		{domain.QualityBest, "best"},
		{domain.Quality1080, "best[height<=1080]"},
		{domain.Quality720, "best[height<=720]"},
		{domain.Quality480, "best[height<=480]"},
		{domain.Quality360, "best[height<=360]"},
	}

	for _, tt := range tests {
		t.Run(string(tt.quality), func(t *testing.T) {
			if got := FormatSelector(tt.quality); got != tt.want {
				t.Errorf("FormatSelector(%s) = %q, want %q", tt.quality, got, tt.want)
			}
		})
	}
}

func TestParseInfoJSON_TopLevelURL(t *testing.T) {
	data := []byte(`{
		"title": "Test clip",
		"uploader": "someone",
		"duration": 12.8,
		"thumbnail": "https://cdn.example/t.jpg",
		"view_count": 999,
		"description": "a clip",
		"url": "https://cdn.example/v.mp4",
		"width": 720,
		"height": 1280,
		"http_headers": {"Referer": "https://www.kuaishou.com/"}
	}`)

	meta, err := parseInfoJSON(data, domain.QualityBest)
	if err != nil {
		t.Fatalf("parseInfoJSON failed: %v", err)
	}

	if meta.Title != "Test clip" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.Duration != 12 {
		t.Errorf("Duration = %d, want 12", meta.Duration)
	}
	if meta.MediaURL != "https://cdn.example/v.mp4" {
		t.Errorf("MediaURL = %q", meta.MediaURL)
	}
	if meta.Headers["Referer"] != "https://www.kuaishou.com/" {
		t.Errorf("Headers = %v, want the extractor's referer carried through", meta.Headers)
	}
	if meta.Source != "ytdlp" {
		t.Errorf("Source = %q, want ytdlp", meta.Source)
	}
}

func TestParseInfoJSON_FormatsFallback(t *testing.T) {
	data := []byte(`{
		"title": "Formats only",
		"formats": [
			{"url": "https://cdn.example/audio", "vcodec": "none", "height": 0},
			{"url": "https://cdn.example/480.mp4", "vcodec": "h264", "height": 480, "tbr": 700},
			{"url": "https://cdn.example/1080.mp4", "vcodec": "h264", "height": 1080, "tbr": 2400},
			{"url": "https://cdn.example/720.mp4", "vcodec": "h264", "height": 720, "tbr": 1400}
		]
	}`)

	t.Run("no cap picks highest", func(t *testing.T) {
		meta, err := parseInfoJSON(data, domain.QualityBest)
		if err != nil {
			t.Fatalf("parseInfoJSON failed: %v", err)
		}
		if meta.MediaURL != "https://cdn.example/1080.mp4" {
			t.Errorf("MediaURL = %q, want the 1080p format", meta.MediaURL)
		}
	})

	t.Run("cap at 720", func(t *testing.T) {
		meta, err := parseInfoJSON(data, domain.Quality720)
		if err != nil {
			t.Fatalf("parseInfoJSON failed: %v", err)
		}
		if meta.MediaURL != "https://cdn.example/720.mp4" {
			t.Errorf("MediaURL = %q, want the 720p format", meta.MediaURL)
		}
	})

	t.Run("cap below all takes smallest", func(t *testing.T) {
		tight := []byte(`{
			"formats": [
				{"url": "https://cdn.example/1080.mp4", "vcodec": "h264", "height": 1080},
				{"url": "https://cdn.example/720.mp4", "vcodec": "h264", "height": 720}
			]
		}`)
		meta, err := parseInfoJSON(tight, domain.Quality360)
		if err != nil {
			t.Fatalf("parseInfoJSON failed: %v", err)
		}
		if meta.MediaURL != "https://cdn.example/720.mp4" {
			t.Errorf("MediaURL = %q, want the smallest stream", meta.MediaURL)
		}
	})
}

func TestParseInfoJSON_Invalid(t *testing.T) {
	if _, err := parseInfoJSON([]byte("ERROR: not json"), domain.QualityBest); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestYtDlpStrategy_Unavailable(t *testing.T) {
	s := NewYtDlpStrategy(config.ExtractConfig{
		YtDlpPath: "definitely-not-a-real-binary-kaishou-test",
		Timeout:   time.Second,
	})

	if s.Available() {
		t.Fatal("nonexistent binary reported available")
	}

	_, err := s.Resolve(context.Background(), "https://v.kuaishou.com/x", domain.QualityBest)
	if !errors.Is(err, domain.ErrStrategyUnavailable) {
		t.Errorf("error = %v, want ErrStrategyUnavailable", err)
	}
}

func TestExtractorError(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   string
	}{
		{
			name:   "error line under noise",
			stderr: "[kuaishou] resolving\nWARNING: slow\nERROR: Unable to extract video data",
			want:   "ERROR: Unable to extract video data",
		},
		{
			name:   "no error line falls back to first line",
			stderr: "  something odd happened\nmore context",
			want:   "something odd happened",
		},
		{
			name:   "empty stderr",
			stderr: "",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractorError(tt.stderr); got != tt.want {
				t.Errorf("extractorError = %q, want %q", got, tt.want)
			}
		})
	}
}
