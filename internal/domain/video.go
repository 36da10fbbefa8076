package domain

// DownloadID is the short random identifier naming one request's scratch directory.
type DownloadID string

// String returns the string representation of the DownloadID.
func (id DownloadID) String() string {
	return string(id)
}

// MaxDescriptionChars caps the description carried in metadata.
const MaxDescriptionChars = 500

// VideoMetadata describes one Kuaishou video as resolved by a single
// extraction strategy. Fields are never merged across strategies.
type VideoMetadata struct {
	Title        string `json:"title"`
	Uploader     string `json:"uploader"`
	Duration     int    `json:"duration_seconds"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	ViewCount    int64  `json:"view_count"`
	Description  string `json:"description,omitempty"`

	// MediaURL is the direct, fetchable URL. Empty means the strategy
	// resolved metadata only, which is not enough to download.
	MediaURL string `json:"media_url,omitempty"`

	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	// Source names the strategy that produced this metadata.
	Source string `json:"source,omitempty"`

	// Headers carries request headers the media host requires, as
	// reported by the resolving strategy.
	Headers map[string]string `json:"-"`
}

// DownloadResult is the artifact of one successful download request.
// It is owned by exactly one request and never shared.
type DownloadResult struct {
	ID      DownloadID
	Path    string
	Size    int64
	Quality Quality
	Meta    VideoMetadata
}

// TruncateDescription clamps s to MaxDescriptionChars runes.
func TruncateDescription(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxDescriptionChars {
		return s
	}
	return string(runes[:MaxDescriptionChars])
}
