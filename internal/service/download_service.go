package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Raks-kmt/kaishou/internal/config"
	"github.com/Raks-kmt/kaishou/internal/domain"
)

// Resolver turns a share URL into playable video metadata.
type Resolver interface {
	Resolve(ctx context.Context, shareURL string, quality domain.Quality) (*domain.VideoMetadata, error)
}

// MediaFetcher transfers the media behind resolved metadata into destDir
// and reports the artifact path and size.
type MediaFetcher interface {
	Fetch(ctx context.Context, meta *domain.VideoMetadata, destDir string) (string, int64, error)
}

// Fallback values for fields a strategy may resolve empty.
const (
	defaultTitle    = "Kuaishou Video"
	defaultUploader = "Unknown"
)

// DownloadService orchestrates the download workflow: resolve metadata,
// fetch the media into a per-request scratch directory, deliver the
// artifact, clean up.
type DownloadService struct {
	resolver Resolver
	fetcher  MediaFetcher
	cfg      config.StorageConfig
	logger   *slog.Logger
}

// NewDownloadService creates a new download service.
func NewDownloadService(resolver Resolver, fetcher MediaFetcher, cfg config.StorageConfig, logger *slog.Logger) *DownloadService {
	return &DownloadService{
		resolver: resolver,
		fetcher:  fetcher,
		cfg:      cfg,
		logger:   logger,
	}
}

// Options carries the per-request knobs for Download.
type Options struct {
	// Quality caps stream selection. Invalid or empty values fall back
	// to the default quality.
	Quality domain.Quality

	// OnResolved, if set, runs once metadata is known, before the media
	// transfer starts.
	OnResolved func(meta *domain.VideoMetadata)

	// Deliver, if set, consumes the finished artifact. The file exists
	// only until Deliver returns.
	Deliver func(ctx context.Context, result *domain.DownloadResult) error
}

// Download runs the full pipeline for one share URL. The scratch
// directory holding the artifact is removed before Download returns, on
// success and on every failure path.
func (s *DownloadService) Download(ctx context.Context, shareURL string, opts Options) (result *domain.DownloadResult, err error) {
	id := domain.DownloadID(uuid.New().String()[:8])
	logger := s.logger.With("download_id", id)

	quality := opts.Quality
	if !quality.Valid() {
		quality = domain.DefaultQuality
	}

	if err := s.ensureSpace(); err != nil {
		return nil, domain.NewDownloadError(id, "init", err)
	}

	// Step 1: Create scratch directory
	scratchDir := filepath.Join(s.cfg.DownloadsRoot, id.String())
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, domain.NewDownloadError(id, "init", fmt.Errorf("create scratch dir: %w", err))
	}

	defer func() {
		if rmErr := os.RemoveAll(scratchDir); rmErr != nil {
			logger.Error("scratch dir cleanup failed", "dir", scratchDir, "error", rmErr)
		}
		if r := recover(); r != nil {
			result = nil
			err = domain.NewDownloadError(id, "download", fmt.Errorf("internal fault: %v", r))
		}
	}()

	// Step 2: Resolve metadata
	logger.Info("resolving metadata", "url", shareURL, "quality", quality)
	meta, err := s.resolver.Resolve(ctx, shareURL, quality)
	if err != nil {
		return nil, domain.NewDownloadError(id, "resolve", err)
	}
	normalizeMeta(meta)

	if meta.MediaURL == "" {
		return nil, domain.NewDownloadError(id, "resolve", domain.ErrNoMediaURL)
	}

	if opts.OnResolved != nil {
		opts.OnResolved(meta)
	}

	// Step 3: Fetch media into the scratch directory
	logger.Info("fetching media", "source", meta.Source, "title", meta.Title)
	path, size, err := s.fetcher.Fetch(ctx, meta, scratchDir)
	if err != nil {
		return nil, domain.NewDownloadError(id, "fetch", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, domain.NewDownloadError(id, "fetch", fmt.Errorf("artifact missing: %w", err))
	}
	if info.Size() == 0 {
		return nil, domain.NewDownloadError(id, "fetch", domain.ErrEmptyFile)
	}

	result = &domain.DownloadResult{
		ID:      id,
		Path:    path,
		Size:    size,
		Quality: quality,
		Meta:    *meta,
	}

	// Step 4: Deliver while the artifact still exists
	if opts.Deliver != nil {
		if err := opts.Deliver(ctx, result); err != nil {
			return nil, domain.NewDownloadError(id, "deliver", err)
		}
	}

	logger.Info("download complete",
		"title", meta.Title,
		"size_bytes", size,
		"quality", quality,
	)

	return result, nil
}

// normalizeMeta fills defaults for fields a strategy may leave empty and
// clamps out-of-range values.
func normalizeMeta(meta *domain.VideoMetadata) {
	if meta.Title == "" {
		meta.Title = defaultTitle
	}
	if meta.Uploader == "" {
		meta.Uploader = defaultUploader
	}
	if meta.Duration < 0 {
		meta.Duration = 0
	}
	if meta.ViewCount < 0 {
		meta.ViewCount = 0
	}
	meta.Description = domain.TruncateDescription(meta.Description)
}

// ensureSpace rejects new downloads when free disk space is known to be
// below the configured floor. The probe reports zero on failure, which is
// treated as unknown rather than full.
func (s *DownloadService) ensureSpace() error {
	free := getFreeDiskSpace(s.cfg.DownloadsRoot)
	if free > 0 && free < s.cfg.MinFreeSpace {
		return fmt.Errorf("%w: %d bytes free, need %d", domain.ErrStorageFull, free, s.cfg.MinFreeSpace)
	}
	return nil
}
