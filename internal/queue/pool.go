package queue

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stroyteh/kanban-service/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Handler processes one task. Returning an error wrapped with Permanent
// stops retries for that task.
type Handler func(ctx context.Context, t Task) error

// GiveUpFunc is called once a task has failed for good
type GiveUpFunc func(ctx context.Context, t Task, err error)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// PoolConfig sizes the worker pool and its per-task retry policy
type PoolConfig struct {
	Size     int
	Attempts int
	Backoff  time.Duration
}

// Pool runs Size workers that consume the queue
type Pool struct {
	queue   Queue
	handler Handler
	giveUp  GiveUpFunc
	cfg     PoolConfig
	logger  *zap.Logger
}

// NewPool creates a worker pool. giveUp may be nil.
func NewPool(q Queue, handler Handler, giveUp GiveUpFunc, cfg PoolConfig, logger *zap.Logger) *Pool {
	if cfg.Size <= 0 {
		cfg.Size = 4
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	return &Pool{queue: q, handler: handler, giveUp: giveUp, cfg: cfg, logger: logger}
}

// Run blocks until ctx is cancelled or the queue is closed. A task in
// progress is allowed to finish.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info("worker pool started", zap.Int("workers", p.cfg.Size))
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Size; i++ {
		worker := i
		g.Go(func() error {
			return p.work(gctx, worker)
		})
	}
	err := g.Wait()
	p.logger.Info("worker pool stopped")
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

func (p *Pool) work(ctx context.Context, worker int) error {
	for {
		t, err := p.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrClosed) {
				return err
			}
			p.logger.Warn("queue pop failed", zap.Int("worker", worker), zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.cfg.Backoff):
			}
			continue
		}
		logger.WithTask(p.logger, worker, t.EventID).Debug("task received")
		// Detached so shutdown does not abort a half-run task.
		p.Process(context.WithoutCancel(ctx), t)
	}
}

// Process runs the handler for t with retries
func (p *Pool) Process(ctx context.Context, t Task) {
	log := p.logger.With(zap.Int64("event_id", t.EventID))
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(p.cfg.Attempts-1), retry.NewExponential(p.cfg.Backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := p.handler(ctx, t)
		if err == nil || IsPermanent(err) {
			return err
		}
		log.Warn("task attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		return retry.RetryableError(err)
	})
	if err == nil {
		return
	}
	log.Error("task failed", zap.Int("attempts", attempt), zap.Bool("permanent", IsPermanent(err)), zap.Error(err))
	if p.giveUp != nil {
		p.giveUp(ctx, t, err)
	}
}
