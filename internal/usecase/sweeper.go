package usecase

import (
	"context"
	"time"

	domrepo "NewsPull/internal/domain/repository"
	"NewsPull/pkg/logger"
)

// Sweeper returns items stuck in processing back to pending so a crashed
// pass never strands work.
type Sweeper struct {
	staging      domrepo.StagingStore
	metrics      domrepo.Metrics
	l            *logger.Logger
	claimTimeout time.Duration
}

func NewSweeper(staging domrepo.StagingStore, metrics domrepo.Metrics, l *logger.Logger, claimTimeout time.Duration) *Sweeper {
	if claimTimeout <= 0 {
		claimTimeout = 5 * time.Minute
	}
	return &Sweeper{staging: staging, metrics: metrics, l: l, claimTimeout: claimTimeout}
}

// Sweep requeues stale claims once and returns how many were recovered.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	n, err := s.staging.RequeueStale(ctx, s.claimTimeout)
	if err != nil {
		s.metrics.RecordError("sweep")
		return 0, err
	}
	if n > 0 {
		s.l.Warn("requeued stale claims", logger.Int("count", n))
	}
	return n, nil
}

// Run sweeps on the given interval until the context is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.l.Error("sweep failed", logger.Error(err))
			}
		}
	}
}
