// Package extractor resolves Kuaishou share links into video metadata by
// trying an ordered set of independent strategies under a shared retry
// envelope.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Raks-kmt/kaishou/internal/config"
	"github.com/Raks-kmt/kaishou/internal/domain"
)

// Strategy is one self-contained technique for resolving a share URL to
// metadata plus a fetchable media URL. Implementations are stateless per
// call and never inspect another strategy's output.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, shareURL string, quality domain.Quality) (*domain.VideoMetadata, error)
}

// SleepFunc pauses between attempts. Injected so tests can observe the
// backoff schedule without waiting it out.
type SleepFunc func(ctx context.Context, d time.Duration)

func defaultSleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Chain runs strategies in order until one succeeds. Every attempt starts
// from the first strategy; the fallback strategy joins only on the
// configured attempt index. The quality preference is honored by
// strategies that expose format selection and is advisory for the rest.
type Chain struct {
	strategies []Strategy
	fallback   Strategy
	cfg        config.ExtractConfig
	logger     *slog.Logger
	sleep      SleepFunc
}

// NewChain builds a chain over the ordered strategies. fallback may be
// nil when the last-resort resolver is disabled.
func NewChain(cfg config.ExtractConfig, logger *slog.Logger, strategies []Strategy, fallback Strategy) *Chain {
	return &Chain{
		strategies: strategies,
		fallback:   fallback,
		cfg:        cfg,
		logger:     logger,
		sleep:      defaultSleep,
	}
}

// Resolve tries the chain for up to the configured attempt count and
// returns the first successful metadata. The terminal error wraps
// domain.ErrExtractionFailed and carries the last strategy error text.
func (c *Chain) Resolve(ctx context.Context, shareURL string, quality domain.Quality) (*domain.VideoMetadata, error) {
	var lastErr error
	delay := c.cfg.InitialBackoff

	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		meta, err := c.runAttempt(ctx, attempt, shareURL, quality)
		if err == nil {
			return meta, nil
		}
		lastErr = err

		// Don't wait after the last attempt
		if attempt == c.cfg.MaxAttempts-1 {
			break
		}

		c.logger.Debug("extraction attempt failed, backing off",
			"attempt", attempt, "delay", delay, "error", err)
		c.sleep(ctx, delay)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		delay = time.Duration(float64(delay) * c.cfg.BackoffFactor)
		if delay > c.cfg.MaxBackoff {
			delay = c.cfg.MaxBackoff
		}
	}

	if lastErr == nil {
		lastErr = errors.New("no strategies configured")
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", domain.ErrExtractionFailed, c.cfg.MaxAttempts, lastErr)
}

// runAttempt walks the strategies for one attempt, short-circuiting on
// the first success.
func (c *Chain) runAttempt(ctx context.Context, attempt int, shareURL string, quality domain.Quality) (*domain.VideoMetadata, error) {
	var lastErr error
	for _, s := range c.strategiesFor(attempt) {
		meta, err := s.Resolve(ctx, shareURL, quality)
		if err == nil {
			c.logger.Info("extraction succeeded",
				"strategy", s.Name(), "attempt", attempt)
			return meta, nil
		}

		if errors.Is(err, domain.ErrStrategyUnavailable) {
			c.logger.Debug("strategy unavailable", "strategy", s.Name())
			if lastErr == nil {
				lastErr = err
			}
			continue
		}

		lastErr = err
		c.logger.Warn("strategy failed",
			"strategy", s.Name(), "attempt", attempt, "error", err)
	}
	if lastErr == nil {
		lastErr = errors.New("no strategies configured")
	}
	return nil, lastErr
}

func (c *Chain) strategiesFor(attempt int) []Strategy {
	if c.fallback != nil && attempt == c.cfg.FallbackAttempt {
		out := make([]Strategy, 0, len(c.strategies)+1)
		out = append(out, c.strategies...)
		return append(out, c.fallback)
	}
	return c.strategies
}
