package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// OutboxSweepJobName is the name of the outbox recovery job
const OutboxSweepJobName = "outbox_sweep"

// DefaultSweepMinAge leaves fresh rows to the dispatcher's own nudges
const DefaultSweepMinAge = 30 * time.Second

// OutboxSweeper re-enqueues outbox rows whose events were never processed
type OutboxSweeper interface {
	Sweep(ctx context.Context, minAge time.Duration) (int, error)
}

// RegisterOutboxSweepJob registers the outbox sweep with the scheduler
func RegisterOutboxSweepJob(scheduler *Scheduler, sweeper OutboxSweeper, logger *zap.Logger, cronExpr string, timeout time.Duration) error {
	return scheduler.AddJob(OutboxSweepJobName, cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		n, err := sweeper.Sweep(ctx, DefaultSweepMinAge)
		if err != nil {
			logger.Error("outbox sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Info("outbox sweep re-enqueued events", zap.Int("count", n))
		}
	})
}
