package jobs

import (
	"context"
	"time"

	"github.com/stroyteh/kanban-service/internal/domain"
	"go.uber.org/zap"
)

// OverdueJobName is the name of the overdue object task scan
const OverdueJobName = "overdue_scan"

// OverdueScanner defines the overdue scan the job runs.
// This interface allows the job to call the service without importing the service package directly.
type OverdueScanner interface {
	Today() time.Time
	Scan(ctx context.Context, today time.Time) (*domain.OverdueScanResult, error)
}

// OverdueJob emits task_overdue events for object tasks past their due date
type OverdueJob struct {
	scanner OverdueScanner
	logger  *zap.Logger
	timeout time.Duration
}

// NewOverdueJob creates a new overdue scan job.
// The timeout controls how long one scan is allowed to run.
func NewOverdueJob(scanner OverdueScanner, logger *zap.Logger, timeout time.Duration) *OverdueJob {
	return &OverdueJob{scanner: scanner, logger: logger, timeout: timeout}
}

// Run executes the scan for the current day
func (j *OverdueJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	result, err := j.scanner.Scan(ctx, j.scanner.Today())
	if err != nil {
		j.logger.Error("overdue scan job failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}
	j.logger.Info("overdue scan job completed",
		zap.Int("scanned", result.Scanned),
		zap.Int("emitted", result.Emitted),
		zap.Duration("duration", time.Since(start)))
}

// RegisterOverdueJob registers the overdue scan with the scheduler.
// If runAtStartup is true a scan also runs immediately in a background goroutine;
// the daily markers make that safe when the cron run already happened today.
func RegisterOverdueJob(scheduler *Scheduler, scanner OverdueScanner, logger *zap.Logger, cronExpr string, timeout time.Duration, runAtStartup bool) error {
	job := NewOverdueJob(scanner, logger, timeout)
	if runAtStartup {
		go job.Run()
	}
	return scheduler.AddJob(OverdueJobName, cronExpr, job.Run)
}
