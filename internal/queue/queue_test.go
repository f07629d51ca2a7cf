package queue_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stroyteh/kanban-service/internal/config"
	"github.com/stroyteh/kanban-service/internal/queue"
	"go.uber.org/zap"
)

func TestMemoryQueue_PushPop(t *testing.T) {
	q := queue.NewMemoryQueue(4)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, queue.Task{EventID: 1}))
	require.NoError(t, q.Push(ctx, queue.Task{EventID: 2}))
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	task, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), task.EventID)
	task, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), task.EventID)
}

func TestMemoryQueue_PopHonoursContextAndClose(t *testing.T) {
	q := queue.NewMemoryQueue(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, q.Close())
	require.NoError(t, q.Close(), "close is idempotent")
	_, err = q.Pop(context.Background())
	assert.ErrorIs(t, err, queue.ErrClosed)
	assert.ErrorIs(t, q.Push(context.Background(), queue.Task{EventID: 1}), queue.ErrClosed)
}

func TestMemoryQueue_PushBlocksWhenFull(t *testing.T) {
	q := queue.NewMemoryQueue(1)
	require.NoError(t, q.Push(context.Background(), queue.Task{EventID: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Push(ctx, queue.Task{EventID: 2}), context.DeadlineExceeded)
}

func TestNewQueue_Backends(t *testing.T) {
	q, err := queue.NewQueue(context.Background(), &config.WorkerConfig{QueueBackend: "memory"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &queue.MemoryQueue{}, q)

	_, err = queue.NewQueue(context.Background(), &config.WorkerConfig{QueueBackend: "kafka"}, zap.NewNop())
	assert.Error(t, err)

	_, err = queue.NewQueue(context.Background(), &config.WorkerConfig{QueueBackend: "redis"}, zap.NewNop())
	assert.Error(t, err, "redis needs an address")
}

func testPool(q queue.Queue, h queue.Handler, giveUp queue.GiveUpFunc) *queue.Pool {
	return queue.NewPool(q, h, giveUp, queue.PoolConfig{Size: 2, Attempts: 3, Backoff: time.Millisecond}, zap.NewNop())
}

func TestPool_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	var gaveUp atomic.Bool
	p := testPool(queue.NewMemoryQueue(1), func(ctx context.Context, task queue.Task) error {
		if calls.Add(1) < 3 {
			return errors.New("database is locked")
		}
		return nil
	}, func(context.Context, queue.Task, error) { gaveUp.Store(true) })

	p.Process(context.Background(), queue.Task{EventID: 7})
	assert.Equal(t, int32(3), calls.Load())
	assert.False(t, gaveUp.Load())
}

func TestPool_GivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	var lastErr error
	p := testPool(queue.NewMemoryQueue(1), func(ctx context.Context, task queue.Task) error {
		calls.Add(1)
		return errors.New("still broken")
	}, func(_ context.Context, task queue.Task, err error) {
		lastErr = err
	})

	p.Process(context.Background(), queue.Task{EventID: 7})
	assert.Equal(t, int32(3), calls.Load())
	assert.EqualError(t, lastErr, "still broken")
	assert.False(t, queue.IsPermanent(lastErr))
}

func TestPool_PermanentErrorStopsRetries(t *testing.T) {
	var calls atomic.Int32
	var lastErr error
	p := testPool(queue.NewMemoryQueue(1), func(ctx context.Context, task queue.Task) error {
		calls.Add(1)
		return queue.Permanent(errors.New("event is gone"))
	}, func(_ context.Context, task queue.Task, err error) {
		lastErr = err
	})

	p.Process(context.Background(), queue.Task{EventID: 7})
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, queue.IsPermanent(lastErr))
	assert.Nil(t, queue.Permanent(nil))
}

func TestPool_RunConsumesQueue(t *testing.T) {
	q := queue.NewMemoryQueue(16)
	var mu sync.Mutex
	seen := map[int64]bool{}
	var wg sync.WaitGroup
	wg.Add(5)
	p := testPool(q, func(ctx context.Context, task queue.Task) error {
		mu.Lock()
		seen[task.EventID] = true
		mu.Unlock()
		wg.Done()
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, q.Push(ctx, queue.Task{EventID: i}))
	}
	wg.Wait()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop")
	}
	assert.Len(t, seen, 5)
}

// Requires a reachable Redis, e.g. KANBAN_TEST_REDIS_ADDR=localhost:6379
func TestRedisQueue_PushPop(t *testing.T) {
	addr := os.Getenv("KANBAN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("KANBAN_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	q, err := queue.NewRedisQueue(ctx, queue.RedisOptions{Addr: addr, Key: "kanban:test:" + t.Name()}, zap.NewNop())
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.Push(ctx, queue.Task{EventID: 11}))
	require.NoError(t, q.Push(ctx, queue.Task{EventID: 12}))

	task, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(11), task.EventID, "FIFO order")
	task, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), task.EventID)
}
