package domain

import "fmt"

// Quality is the user-selected upper bound on video resolution. It is
// honored where a strategy exposes format selection (API representations,
// yt-dlp format filters, HLS variant playlists) and advisory everywhere
// else: strategies that yield a single fixed media URL ignore it.
type Quality string

const (
	QualityBest Quality = "best"
	Quality1080 Quality = "1080p"
	Quality720  Quality = "720p"
	Quality480  Quality = "480p"
	Quality360  Quality = "360p"
)

// DefaultQuality is applied when a requester has no stored preference.
const DefaultQuality = QualityBest

// SupportedQualities lists selectable qualities in descending order.
func SupportedQualities() []Quality {
	return []Quality{QualityBest, Quality1080, Quality720, Quality480, Quality360}
}

// ParseQuality validates a raw preference string.
func ParseQuality(s string) (Quality, error) {
	q := Quality(s)
	if !q.Valid() {
		return "", fmt.Errorf("unsupported quality %q", s)
	}
	return q, nil
}

// Valid reports whether q is one of the supported values.
func (q Quality) Valid() bool {
	switch q {
	case QualityBest, Quality1080, Quality720, Quality480, Quality360:
		return true
	}
	return false
}

// MaxHeight returns the pixel-height cap for q, 0 meaning unconstrained.
func (q Quality) MaxHeight() int {
	switch q {
	case Quality1080:
		return 1080
	case Quality720:
		return 720
	case Quality480:
		return 480
	case Quality360:
		return 360
	default:
		return 0
	}
}

// String returns the string representation of the Quality.
func (q Quality) String() string {
	return string(q)
}
