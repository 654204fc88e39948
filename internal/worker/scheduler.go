package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hookline/hookline/internal/store"
)

// claimStore is the slice of the delivery store the scheduler reads from.
type claimStore interface {
	ClaimDue(ctx context.Context, limit int) ([]store.ClaimedDelivery, error)
	ReleaseStale(ctx context.Context, timeout time.Duration) (int64, error)
}

// Scheduler polls the delivery store for due work and feeds the worker pool.
// It also runs the stale-claim sweep that rescues deliveries stranded in
// "sending" by a crashed worker. Both loops stop when the context is
// cancelled.
type Scheduler struct {
	store  claimStore
	pool   *Pool
	logger *slog.Logger

	pollInterval time.Duration
	batchSize    int

	staleTimeout  time.Duration
	sweepInterval time.Duration
}

func NewScheduler(pg *store.PostgresStore, pool *Pool, pollInterval time.Duration, batchSize int, staleTimeout, sweepInterval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:         pg,
		pool:          pool,
		logger:        logger,
		pollInterval:  pollInterval,
		batchSize:     batchSize,
		staleTimeout:  staleTimeout,
		sweepInterval: sweepInterval,
	}
}

// Start launches the claim loop and the stale sweep as goroutines.
func (s *Scheduler) Start(ctx context.Context) {
	go s.claimLoop(ctx)
	go s.sweepLoop(ctx)
	s.logger.Info("scheduler started",
		"poll_interval", s.pollInterval.String(),
		"batch_size", s.batchSize,
		"stale_timeout", s.staleTimeout.String(),
	)
}

func (s *Scheduler) claimLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.claim(ctx)
		}
	}
}

// claim fetches one batch of due deliveries and submits them to the pool.
// A batch claimed by a concurrent scheduler instance just comes back empty;
// that is not an error.
func (s *Scheduler) claim(ctx context.Context) {
	claimed, err := s.store.ClaimDue(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("failed to claim due deliveries", "error", err)
		return
	}

	for _, job := range claimed {
		if !s.pool.Submit(job) {
			// Pool is shutting down; the rest of the batch stays in
			// "sending" until the stale sweep releases it.
			return
		}
	}

	if len(claimed) > 0 {
		s.logger.Debug("claimed deliveries", "count", len(claimed))
	}
}

func (s *Scheduler) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			released, err := s.store.ReleaseStale(ctx, s.staleTimeout)
			if err != nil {
				s.logger.Error("stale claim sweep failed", "error", err)
				continue
			}
			if released > 0 {
				s.logger.Warn("released stale deliveries", "count", released)
			}
		}
	}
}
