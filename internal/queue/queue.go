package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/stroyteh/kanban-service/internal/config"
	"go.uber.org/zap"
)

// ErrClosed is returned by a queue after Close
var ErrClosed = errors.New("queue closed")

// Task asks a worker to run the rule engine for one card event
type Task struct {
	EventID int64 `json:"event_id"`
}

// Queue carries tasks from the outbox dispatcher to the worker pool.
// Pop blocks until a task arrives, ctx is done or the queue is closed.
type Queue interface {
	Push(ctx context.Context, t Task) error
	Pop(ctx context.Context) (Task, error)
	Len(ctx context.Context) (int, error)
	Close() error
}

// NewQueue creates the backend selected by cfg.QueueBackend
func NewQueue(ctx context.Context, cfg *config.WorkerConfig, logger *zap.Logger) (Queue, error) {
	switch cfg.QueueBackend {
	case "", "memory":
		return NewMemoryQueue(cfg.QueueBuffer), nil
	case "redis":
		return NewRedisQueue(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported queue backend: %s", cfg.QueueBackend)
	}
}

// MemoryQueue is a buffered channel. Tasks do not survive a restart; the
// outbox sweep re-enqueues anything left undispatched.
type MemoryQueue struct {
	ch        chan Task
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryQueue creates an in-process queue holding up to size tasks
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1024
	}
	return &MemoryQueue{ch: make(chan Task, size), done: make(chan struct{})}
}

func (q *MemoryQueue) Push(ctx context.Context, t Task) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case q.ch <- t:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Pop(ctx context.Context) (Task, error) {
	select {
	case t := <-q.ch:
		return t, nil
	case <-q.done:
		return Task{}, ErrClosed
	case <-ctx.Done():
		return Task{}, ctx.Err()
	}
}

func (q *MemoryQueue) Len(context.Context) (int, error) {
	return len(q.ch), nil
}

func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}
