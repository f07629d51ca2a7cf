package outbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stroyteh/kanban-service/internal/queue"
	"github.com/stroyteh/kanban-service/internal/repository"
	"github.com/stroyteh/kanban-service/internal/service"
	"go.uber.org/zap"
)

// EventProcessor runs the rule engine for one event
type EventProcessor interface {
	ProcessEvent(ctx context.Context, eventID int64) error
}

// Config tunes the dispatcher
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	// MaxAttempts is how many failed deliveries an event gets before its
	// outbox row is marked failed
	MaxAttempts int
}

// Dispatcher moves committed events from the outbox table into the task
// queue. Services nudge it through Publish right after commit; polling picks
// up whatever a nudge missed. An outbox row is stamped only once its event
// has been processed, so a crash between enqueue and processing is repaired
// by the next sweep.
type Dispatcher struct {
	repo      *repository.EventRepository
	queue     queue.Queue
	processor EventProcessor
	cfg       Config
	logger    *zap.Logger

	nudges   chan int64
	inflight sync.Map
}

var _ service.EventPublisher = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher. processor may be set later with SetProcessor.
func NewDispatcher(repo *repository.EventRepository, q queue.Queue, processor EventProcessor, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Dispatcher{
		repo:      repo,
		queue:     q,
		processor: processor,
		cfg:       cfg,
		logger:    logger,
		nudges:    make(chan int64, 1024),
	}
}

// SetProcessor wires the rule engine. The engine depends on services that
// publish to the dispatcher, so it is attached after construction.
func (d *Dispatcher) SetProcessor(p EventProcessor) {
	d.processor = p
}

// Publish nudges the dispatcher. It never blocks; a dropped nudge is picked
// up by the next poll.
func (d *Dispatcher) Publish(eventIDs ...int64) {
	for _, id := range eventIDs {
		select {
		case d.nudges <- id:
		default:
			d.logger.Debug("nudge buffer full, leaving event to polling", zap.Int64("event_id", id))
		}
	}
}

// Run handles nudges and polls the outbox until ctx is cancelled
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	d.logger.Info("outbox dispatcher started", zap.Duration("poll_interval", d.cfg.PollInterval))
	if _, err := d.Sweep(ctx, 0); err != nil && ctx.Err() == nil {
		d.logger.Error("initial outbox sweep failed", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher stopped")
			return nil
		case id := <-d.nudges:
			d.enqueue(ctx, id)
		case <-ticker.C:
			if _, err := d.Sweep(ctx, 0); err != nil && ctx.Err() == nil {
				d.logger.Error("outbox poll failed", zap.Error(err))
			}
		}
	}
}

// Sweep enqueues undispatched events older than minAge that are not already
// in flight, and returns how many were enqueued
func (d *Dispatcher) Sweep(ctx context.Context, minAge time.Duration) (int, error) {
	entries, err := d.repo.ListUndispatched(ctx, time.Now().UTC().Add(-minAge), d.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if d.enqueue(ctx, e.EventID) {
			n++
		}
	}
	if n > 0 {
		d.logger.Debug("outbox sweep enqueued events", zap.Int("count", n))
	}
	return n, nil
}

func (d *Dispatcher) enqueue(ctx context.Context, eventID int64) bool {
	if _, loaded := d.inflight.LoadOrStore(eventID, struct{}{}); loaded {
		return false
	}
	if err := d.queue.Push(ctx, queue.Task{EventID: eventID}); err != nil {
		d.inflight.Delete(eventID)
		if ctx.Err() == nil {
			d.logger.Error("failed to enqueue event", zap.Int64("event_id", eventID), zap.Error(err))
		}
		return false
	}
	return true
}

// Handle is the worker pool handler. A processed event has its outbox row
// stamped. Only transient storage errors are returned for retry; anything
// else is permanent.
func (d *Dispatcher) Handle(ctx context.Context, t queue.Task) error {
	if d.processor == nil {
		return errors.New("outbox dispatcher has no event processor")
	}
	if err := d.processor.ProcessEvent(ctx, t.EventID); err != nil {
		if errors.Is(err, service.ErrNotFound) || !repository.IsTransient(err) {
			return queue.Permanent(err)
		}
		return err
	}
	// Stamp before leaving the in-flight set so a concurrent poll cannot re-enqueue it.
	if err := d.repo.MarkDispatched(ctx, []int64{t.EventID}); err != nil {
		d.logger.Error("failed to stamp outbox row", zap.Int64("event_id", t.EventID), zap.Error(err))
	}
	d.inflight.Delete(t.EventID)
	return nil
}

// GiveUp is the worker pool give-up hook. Events that no longer exist are
// stamped and permanent failures are marked failed at once. A transient
// failure leaves the event pending for the next sweep until MaxAttempts
// deliveries have failed.
func (d *Dispatcher) GiveUp(ctx context.Context, t queue.Task, err error) {
	defer d.inflight.Delete(t.EventID)
	log := d.logger.With(zap.Int64("event_id", t.EventID))

	switch {
	case errors.Is(err, service.ErrNotFound):
		if err := d.repo.MarkDispatched(ctx, []int64{t.EventID}); err != nil {
			log.Error("failed to stamp outbox row", zap.Error(err))
		}
	case queue.IsPermanent(err):
		if markErr := d.repo.MarkFailed(ctx, t.EventID, err.Error()); markErr != nil {
			log.Error("failed to mark outbox row failed", zap.Error(markErr))
			return
		}
		log.Error("event marked failed", zap.Bool("permanent", true), zap.Error(err))
	default:
		failed, recErr := d.repo.RecordDispatchFailure(ctx, t.EventID, err.Error(), d.cfg.MaxAttempts)
		if recErr != nil {
			log.Error("failed to record dispatch failure", zap.Error(recErr))
			return
		}
		if failed {
			log.Error("event marked failed", zap.Int("max_attempts", d.cfg.MaxAttempts), zap.Error(err))
		}
	}
}
