package outbox_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/outbox"
	"github.com/stroyteh/kanban-service/internal/queue"
	"github.com/stroyteh/kanban-service/internal/repository"
	"github.com/stroyteh/kanban-service/internal/service"
	"github.com/stroyteh/kanban-service/internal/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeProcessor struct {
	mu    sync.Mutex
	calls []int64
	err   error
}

func (p *fakeProcessor) ProcessEvent(_ context.Context, eventID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, eventID)
	return p.err
}

type fixture struct {
	db        *gorm.DB
	repo      *repository.EventRepository
	queue     *queue.MemoryQueue
	processor *fakeProcessor
	dispatch  *outbox.Dispatcher
	card      *domain.Card
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, outbox.Config{PollInterval: 10 * time.Millisecond, BatchSize: 10})
}

func newFixtureWith(t *testing.T, cfg outbox.Config) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	board, cols := testutil.CreateBoard(t, db, "outbox", "new")
	f := &fixture{
		db:        db,
		repo:      repository.NewEventRepository(db),
		queue:     queue.NewMemoryQueue(16),
		processor: &fakeProcessor{},
		card:      testutil.CreateCard(t, db, board, cols[0], domain.CardTypeGeneric, "c"),
	}
	f.dispatch = outbox.NewDispatcher(f.repo, f.queue, f.processor, cfg, zap.NewNop())
	return f
}

func (f *fixture) appendEvent(t *testing.T) int64 {
	t.Helper()
	ev := &domain.CardEvent{CardID: f.card.ID, BoardID: f.card.BoardID, EventType: domain.EventCardUpdated, ActorUsername: "test"}
	require.NoError(t, f.repo.Append(context.Background(), nil, ev))
	return ev.ID
}

func (f *fixture) entry(t *testing.T, eventID int64) *domain.OutboxEntry {
	t.Helper()
	e, err := f.repo.GetOutboxEntry(context.Background(), eventID)
	require.NoError(t, err)
	return e
}

func TestDispatcher_SweepEnqueuesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.appendEvent(t)
	b := f.appendEvent(t)

	n, err := f.dispatch.Sweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Both are in flight; a second sweep adds nothing
	n, err = f.dispatch.Sweep(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	first, err := f.queue.Pop(ctx)
	require.NoError(t, err)
	second, err := f.queue.Pop(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{a, b}, []int64{first.EventID, second.EventID})
}

func TestDispatcher_SweepRespectsMinAge(t *testing.T) {
	f := newFixture(t)
	f.appendEvent(t)

	n, err := f.dispatch.Sweep(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDispatcher_HandleStampsOutbox(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.appendEvent(t)

	require.NoError(t, f.dispatch.Handle(ctx, queue.Task{EventID: id}))
	assert.Equal(t, []int64{id}, f.processor.calls)
	assert.NotNil(t, f.entry(t, id).DispatchedAt)

	n, err := f.dispatch.Sweep(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n, "dispatched events are not swept again")
}

func TestDispatcher_HandleFailureLeavesEventPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.appendEvent(t)
	f.processor.err = errors.New("database is locked")

	err := f.dispatch.Handle(ctx, queue.Task{EventID: id})
	require.Error(t, err)
	assert.False(t, queue.IsPermanent(err))

	f.dispatch.GiveUp(ctx, queue.Task{EventID: id}, err)
	e := f.entry(t, id)
	assert.Nil(t, e.DispatchedAt)
	assert.Equal(t, 1, e.Attempts)

	n, err := f.dispatch.Sweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "given-up events are retried by the next sweep")
}

func (p *fakeProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// cycle runs one sweep and processes whatever it enqueued, the way the
// dispatcher and the worker pool do in production
func (f *fixture) cycle(t *testing.T, pool *queue.Pool) int {
	t.Helper()
	ctx := context.Background()
	n, err := f.dispatch.Sweep(ctx, 0)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		task, err := f.queue.Pop(ctx)
		require.NoError(t, err)
		pool.Process(ctx, task)
	}
	return n
}

func TestDispatcher_BadDataIsNotRetried(t *testing.T) {
	f := newFixture(t)
	pool := queue.NewPool(f.queue, f.dispatch.Handle, f.dispatch.GiveUp,
		queue.PoolConfig{Size: 1, Attempts: 3, Backoff: time.Millisecond}, zap.NewNop())
	id := f.appendEvent(t)
	f.processor.err = errors.New("fatal: bad data")

	err := f.dispatch.Handle(context.Background(), queue.Task{EventID: id})
	assert.True(t, queue.IsPermanent(err))

	f.processor.calls = nil
	for i := 0; i < 5; i++ {
		f.cycle(t, pool)
	}
	assert.Equal(t, 1, f.processor.count(), "a permanent failure runs once and is never swept again")

	e := f.entry(t, id)
	assert.Nil(t, e.DispatchedAt)
	require.NotNil(t, e.FailedAt)
	assert.Contains(t, e.LastError, "bad data")
}

func TestDispatcher_TransientFailuresStopAtMaxAttempts(t *testing.T) {
	f := newFixtureWith(t, outbox.Config{BatchSize: 10, MaxAttempts: 3})
	pool := queue.NewPool(f.queue, f.dispatch.Handle, f.dispatch.GiveUp,
		queue.PoolConfig{Size: 1, Attempts: 2, Backoff: time.Millisecond}, zap.NewNop())
	id := f.appendEvent(t)
	f.processor.err = errors.New("database is locked")

	var enqueued []int
	for i := 0; i < 5; i++ {
		enqueued = append(enqueued, f.cycle(t, pool))
	}
	assert.Equal(t, []int{1, 1, 1, 0, 0}, enqueued)
	assert.Equal(t, 6, f.processor.count(), "three deliveries of two attempts each")

	e := f.entry(t, id)
	assert.Equal(t, 3, e.Attempts)
	assert.Nil(t, e.DispatchedAt)
	require.NotNil(t, e.FailedAt)
	assert.Equal(t, "database is locked", e.LastError)
}

func TestDispatcher_MissingEventIsPermanent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.appendEvent(t)
	f.processor.err = fmt.Errorf("%w: event not found", service.ErrNotFound)

	err := f.dispatch.Handle(ctx, queue.Task{EventID: id})
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))

	f.dispatch.GiveUp(ctx, queue.Task{EventID: id}, err)
	assert.NotNil(t, f.entry(t, id).DispatchedAt)
}

func TestDispatcher_HandleWithoutProcessor(t *testing.T) {
	f := newFixture(t)
	d := outbox.NewDispatcher(f.repo, f.queue, nil, outbox.Config{}, zap.NewNop())
	assert.Error(t, d.Handle(context.Background(), queue.Task{EventID: 1}))
}

func TestDispatcher_RunDeliversNudges(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := queue.NewPool(f.queue, f.dispatch.Handle, f.dispatch.GiveUp,
		queue.PoolConfig{Size: 1, Attempts: 1, Backoff: time.Millisecond}, zap.NewNop())
	go func() { _ = f.dispatch.Run(ctx) }()
	go func() { _ = pool.Run(ctx) }()

	id := f.appendEvent(t)
	f.dispatch.Publish(id)

	require.Eventually(t, func() bool {
		e, err := f.repo.GetOutboxEntry(context.Background(), id)
		return err == nil && e.DispatchedAt != nil
	}, 2*time.Second, 10*time.Millisecond)

	f.processor.mu.Lock()
	defer f.processor.mu.Unlock()
	assert.Equal(t, []int64{id}, f.processor.calls, "each event is processed once")
}
