package domain

import "errors"

// Domain errors.
var (
	// ErrInvalidLink is returned when the text is not a supported Kuaishou link.
	ErrInvalidLink = errors.New("invalid kuaishou link")

	// ErrNotVideoLink is returned for Kuaishou links that do not point to an
	// individual video (homepage, profile, feed).
	ErrNotVideoLink = errors.New("link does not point to a video")

	// ErrNoIdentifier is returned when no content identifier can be extracted.
	ErrNoIdentifier = errors.New("no content identifier in link")

	// ErrExtractionFailed is returned after every strategy attempt is exhausted.
	ErrExtractionFailed = errors.New("all extraction strategies failed")

	// ErrNoMediaURL is returned when metadata resolved but carries no media URL.
	ErrNoMediaURL = errors.New("no media URL found for download")

	// ErrStrategyUnavailable is returned by a strategy that cannot run at all
	// (missing binary, disabled in config).
	ErrStrategyUnavailable = errors.New("extraction strategy unavailable")

	// ErrDownloadFailed is returned when the media download fails.
	ErrDownloadFailed = errors.New("media download failed")

	// ErrEmptyFile is returned when the fetched artifact has zero size.
	ErrEmptyFile = errors.New("downloaded file is empty")

	// ErrFileTooLarge is returned when the media exceeds the delivery size limit.
	ErrFileTooLarge = errors.New("media file exceeds size limit")

	// ErrURLExpired is returned when the media URL has expired or is forbidden.
	ErrURLExpired = errors.New("media URL has expired")

	// ErrRateLimited is returned when rate limited by the upstream host.
	ErrRateLimited = errors.New("rate limited")

	// ErrMediaUnavailable is returned when the media no longer exists upstream.
	ErrMediaUnavailable = errors.New("media not available")

	// ErrStorageFull is returned when there is insufficient disk space.
	ErrStorageFull = errors.New("insufficient storage space")
)

// FailureKind sorts terminal failures into the categories surfaced to users.
type FailureKind int

const (
	// FailureClassification covers invalid or unsupported links. Never retried.
	FailureClassification FailureKind = iota
	// FailureResolution covers exhausted extraction attempts and media-less metadata.
	FailureResolution
	// FailureFetch covers transport errors, bad statuses and empty artifacts.
	FailureFetch
	// FailureUnexpected covers any fault caught at the request boundary.
	FailureUnexpected
)

// String returns the log label for the failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailureClassification:
		return "classification"
	case FailureResolution:
		return "resolution"
	case FailureFetch:
		return "fetch"
	default:
		return "unexpected"
	}
}

// KindOfFailure maps an error chain to its failure category.
func KindOfFailure(err error) FailureKind {
	switch {
	case errors.Is(err, ErrInvalidLink),
		errors.Is(err, ErrNotVideoLink),
		errors.Is(err, ErrNoIdentifier):
		return FailureClassification
	case errors.Is(err, ErrExtractionFailed),
		errors.Is(err, ErrNoMediaURL):
		return FailureResolution
	case errors.Is(err, ErrDownloadFailed),
		errors.Is(err, ErrEmptyFile),
		errors.Is(err, ErrFileTooLarge),
		errors.Is(err, ErrURLExpired),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrMediaUnavailable),
		errors.Is(err, ErrStorageFull):
		return FailureFetch
	default:
		return FailureUnexpected
	}
}

// DownloadError wraps an error with request context.
type DownloadError struct {
	ID  DownloadID
	Op  string
	Err error
}

func (e *DownloadError) Error() string {
	if e.ID != "" {
		return e.Op + " [" + e.ID.String() + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// NewDownloadError creates a new DownloadError.
func NewDownloadError(id DownloadID, op string, err error) *DownloadError {
	return &DownloadError{
		ID:  id,
		Op:  op,
		Err: err,
	}
}
