package extractor

import (
	"context"
	"fmt"

	"github.com/Raks-kmt/kaishou/internal/domain"
	"github.com/Raks-kmt/kaishou/pkg/kuaishou"
)

// APIStrategy resolves share links through the Kuaishou web API: the
// share link is followed to its photo ID, then the graphql endpoint is
// asked for metadata and stream URLs.
type APIStrategy struct {
	client *kuaishou.Client
}

func NewAPIStrategy(client *kuaishou.Client) *APIStrategy {
	return &APIStrategy{client: client}
}

func (s *APIStrategy) Name() string {
	return "api"
}

func (s *APIStrategy) Resolve(ctx context.Context, shareURL string, quality domain.Quality) (*domain.VideoMetadata, error) {
	photoID, err := s.client.ResolveShareLink(ctx, shareURL)
	if err != nil {
		return nil, fmt.Errorf("api strategy: %w", err)
	}

	meta, err := s.client.VideoDetail(ctx, photoID, quality)
	if err != nil {
		return nil, fmt.Errorf("api strategy: %w", err)
	}
	return meta, nil
}
