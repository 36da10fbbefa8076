package extractor

import (
	"context"
	"fmt"

	"github.com/Raks-kmt/kaishou/internal/domain"
	"github.com/Raks-kmt/kaishou/pkg/kuaishou"
)

// PageStrategy scrapes the web player page for metadata when the API
// strategy comes back empty.
type PageStrategy struct {
	scraper *kuaishou.PageScraper
}

func NewPageStrategy(scraper *kuaishou.PageScraper) *PageStrategy {
	return &PageStrategy{scraper: scraper}
}

func (s *PageStrategy) Name() string {
	return "page"
}

func (s *PageStrategy) Resolve(ctx context.Context, shareURL string, quality domain.Quality) (*domain.VideoMetadata, error) {
	meta, err := s.scraper.Scrape(ctx, shareURL, quality)
	if err != nil {
		return nil, fmt.Errorf("page strategy: %w", err)
	}
	return meta, nil
}
