package scheduler

import (
	"context"
	"sync"
	"time"

	"glint/internal/shared/logger"
)

// LapsedExpirer revokes authorizations whose billing period has passed.
// Implemented by the entitlement gate service.
type LapsedExpirer interface {
	ExpireLapsed(ctx context.Context) (int, error)
}

// ExpiryScheduler periodically revokes subscription authorizations whose
// billing period has lapsed. The sweep is the only expiry path: until it
// runs, a lapsed record still authorizes its guild.
type ExpiryScheduler struct {
	gate     LapsedExpirer
	logger   logger.Interface
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	interval time.Duration
}

// NewExpiryScheduler creates a new ExpiryScheduler.
func NewExpiryScheduler(
	gate LapsedExpirer,
	interval time.Duration,
	logger logger.Interface,
) *ExpiryScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpiryScheduler{
		gate:     gate,
		logger:   logger,
		stopChan: make(chan struct{}),
		interval: interval,
	}
}

// Start starts the scheduler.
func (s *ExpiryScheduler) Start(ctx context.Context) {
	s.logger.Infow("starting expiry scheduler", "interval", s.interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runLoop(ctx)
	}()
}

// Stop stops the scheduler gracefully.
func (s *ExpiryScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Infow("stopping expiry scheduler")
		close(s.stopChan)
		s.wg.Wait()
		s.logger.Infow("expiry scheduler stopped")
	})
}

func (s *ExpiryScheduler) runLoop(ctx context.Context) {
	// Sweep immediately on startup to clear anything that lapsed while down.
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Infow("expiry scheduler stopped due to context cancellation")
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpiryScheduler) sweep(ctx context.Context) {
	startTime := time.Now()

	revoked, err := s.gate.ExpireLapsed(ctx)
	if err != nil {
		s.logger.Errorw("failed to sweep lapsed authorizations",
			"error", err,
			"duration", time.Since(startTime),
		)
		return
	}

	if revoked > 0 {
		s.logger.Infow("lapsed authorizations revoked",
			"count", revoked,
			"duration", time.Since(startTime),
		)
	} else {
		s.logger.Debugw("no lapsed authorizations",
			"duration", time.Since(startTime),
		)
	}
}
