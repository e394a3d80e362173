package service

import (
	"context"
	"time"

	"github.com/oguzk/shortkit/internal/app/repository"
	"github.com/oguzk/shortkit/internal/infra/metrics"
	"go.uber.org/zap"
)

// ClickReconciler periodically recomputes click_count aggregates from the
// click_events table. The event table is the source of truth; the aggregate is
// allowed to drift between runs (dropped increments, lost updates) and is
// corrected here, off the hot path.
type ClickReconciler struct {
	logger   *zap.Logger
	repo     repository.URLRepository
	interval time.Duration
	stopChan chan struct{}
}

// NewClickReconciler creates a reconciler that runs on the given interval.
func NewClickReconciler(logger *zap.Logger, repo repository.URLRepository, interval time.Duration) *ClickReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ClickReconciler{
		logger:   logger,
		repo:     repo,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic reconciliation.
func (c *ClickReconciler) Start() {
	go c.run()
}

// Stop stops the periodic reconciliation.
func (c *ClickReconciler) Stop() {
	close(c.stopChan)
}

func (c *ClickReconciler) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Reconcile(context.Background())
		case <-c.stopChan:
			c.logger.Info("click reconciler stopped")
			return
		}
	}
}

// Reconcile performs one correction pass. Exposed so tests and admin tooling
// can trigger it directly.
func (c *ClickReconciler) Reconcile(ctx context.Context) {
	corrected, err := c.repo.ReconcileClickCounts(ctx)
	if err != nil {
		c.logger.Error("failed to reconcile click counts", zap.Error(err))
		return
	}

	if corrected > 0 {
		metrics.ReconcilerCorrections.Add(float64(corrected))
		c.logger.Info("corrected drifted click counts", zap.Int64("count", corrected))
	}
}
