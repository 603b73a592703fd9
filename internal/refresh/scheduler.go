package refresh

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aevon-lab/salestrack/internal/core/aggregation"
)

// Refresher is the part of the Coordinator the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context, trigger Trigger) (*aggregation.CachedResult, error)
}

// Scheduler fires periodic refreshes. Failures are logged and retried on the
// next tick; they never reach a user.
type Scheduler struct {
	interval  time.Duration
	refresher Refresher
}

// NewScheduler creates a scheduler for a positive interval.
func NewScheduler(interval time.Duration, refresher Refresher) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("refresh interval must be positive")
	}
	return &Scheduler{interval: interval, refresher: refresher}, nil
}

// Start ticks until ctx is cancelled. The first refresh happens one interval
// after Start; the startup refresh is the coordinator's job.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting periodic refresh", "interval", s.interval)

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)")
			return nil
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	result, err := s.refresher.Refresh(ctx, TriggerPeriodic)
	if err != nil {
		slog.Warn("[Scheduler] Periodic refresh failed, will retry next interval",
			"interval", s.interval,
			"error", err,
		)
		return
	}
	slog.Debug("[Scheduler] Periodic refresh complete", "result_id", result.ID)
}
