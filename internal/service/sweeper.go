package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Raks-kmt/kaishou/internal/config"
)

// ErrShutdownTimeout is returned when the sweeper doesn't stop within timeout.
var ErrShutdownTimeout = errors.New("sweeper shutdown timed out")

// Sweeper periodically removes scratch directories that outlived their
// request. Normal requests clean up after themselves; the sweeper only
// catches leftovers from an earlier crashed process.
type Sweeper struct {
	root     string
	interval time.Duration
	maxAge   time.Duration
	logger   *slog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSweeper creates a sweeper over the downloads root.
func NewSweeper(cfg config.StorageConfig, logger *slog.Logger) *Sweeper {
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	maxAge := cfg.SweepMaxAge
	if maxAge <= 0 {
		maxAge = time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Sweeper{
		root:     cfg.DownloadsRoot,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the background sweep loop. The first sweep runs
// immediately to clear anything a previous process left behind.
func (s *Sweeper) Start() {
	s.logger.Info("starting sweeper", "interval", s.interval, "max_age", s.maxAge)

	s.wg.Add(1)
	go s.run()
}

// Stop gracefully stops the sweeper.
func (s *Sweeper) Stop(timeout time.Duration) error {
	s.logger.Info("stopping sweeper")
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("sweeper stopped gracefully")
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	s.SweepOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("sweeper stopping")
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce scans the downloads root and removes every directory whose
// modification time is older than the age threshold. It returns the
// number of directories removed.
func (s *Sweeper) SweepOnce() int {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Error("sweep cannot read downloads root", "root", s.root, "error", err)
		}
		return 0
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		dir := filepath.Join(s.root, entry.Name())
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Error("failed to remove stale scratch dir", "dir", dir, "error", err)
			continue
		}

		s.logger.Info("removed stale scratch dir", "dir", dir)
		removed++
	}

	if removed > 0 {
		s.logger.Info("sweep complete", "removed", removed)
	}

	return removed
}
