package service

import (
	"context"
	"time"

	"github.com/oguzk/shortkit/internal/app/repository"
	"go.uber.org/zap"
)

// ExpirySweeper periodically deactivates records whose expiry has passed and
// invalidates their cache entries. Expired records are never deleted so their
// codes stay reserved forever.
type ExpirySweeper struct {
	logger   *zap.Logger
	repo     repository.URLRepository
	cache    *URLCache
	interval time.Duration
	stopChan chan struct{}
}

// NewExpirySweeper creates a sweeper that runs on the given interval.
func NewExpirySweeper(logger *zap.Logger, repo repository.URLRepository, cache *URLCache, interval time.Duration) *ExpirySweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &ExpirySweeper{
		logger:   logger,
		repo:     repo,
		cache:    cache,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic sweep.
func (s *ExpirySweeper) Start() {
	go s.run()
}

// Stop stops the periodic sweep.
func (s *ExpirySweeper) Stop() {
	close(s.stopChan)
}

func (s *ExpirySweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopChan:
			s.logger.Info("expiry sweeper stopped")
			return
		}
	}
}

// Sweep performs one pass. Each swept code is invalidated before the sweep
// returns so stale cached redirects do not outlive the mutation.
func (s *ExpirySweeper) Sweep(ctx context.Context) {
	codes, err := s.repo.SweepExpired(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("failed to sweep expired urls", zap.Error(err))
		return
	}
	if len(codes) == 0 {
		return
	}

	for _, code := range codes {
		if err := s.cache.Invalidate(ctx, code); err != nil {
			s.logger.Warn("failed to invalidate swept code", zap.String("code", code), zap.Error(err))
		}
	}
	s.logger.Info("deactivated expired short urls", zap.Int("count", len(codes)))
}
