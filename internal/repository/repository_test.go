package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/repository"
	"github.com/stroyteh/kanban-service/internal/testutil"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func TestNewPage(t *testing.T) {
	tests := []struct {
		number, size    int
		wantNum, wantSz int
		wantOffset      int
	}{
		{0, 0, 1, repository.DefaultPageSize, 0},
		{3, 20, 3, 20, 40},
		{1, 10000, 1, repository.MaxPageSize, 0},
		{-2, -5, 1, repository.DefaultPageSize, 0},
	}
	for _, tt := range tests {
		p := repository.NewPage(tt.number, tt.size)
		assert.Equal(t, tt.wantNum, p.Number)
		assert.Equal(t, tt.wantSz, p.Size)
		assert.Equal(t, tt.wantOffset, p.Offset())
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, repository.IsUniqueViolation(nil))
	assert.True(t, repository.IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, repository.IsUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "boards_key_key" (SQLSTATE 23505)`)))
	assert.False(t, repository.IsUniqueViolation(errors.New("connection refused")))

	db := testutil.SetupTestDB(t)
	boards := repository.NewBoardRepository(db)
	require.NoError(t, boards.Create(context.Background(), &domain.Board{Key: "dup", Title: "A"}))
	err := boards.Create(context.Background(), &domain.Board{Key: "dup", Title: "B"})
	assert.True(t, repository.IsUniqueViolation(err), "sqlite error: %v", err)
}

func TestEventRepository_OrderingAndOutbox(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewEventRepository(db)
	ctx := context.Background()
	board, cols := testutil.CreateBoard(t, db, "ev", "new")
	card := testutil.CreateCard(t, db, board, cols[0], domain.CardTypeGeneric, "c")

	// Same timestamp: id breaks the tie
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var ids []int64
	for _, typ := range []domain.EventType{domain.EventCardCreated, domain.EventCardMoved, domain.EventCardUpdated} {
		ev := &domain.CardEvent{CardID: card.ID, BoardID: board.ID, EventType: typ, CreatedAt: at}
		require.NoError(t, repo.Append(ctx, nil, ev))
		ids = append(ids, ev.ID)
	}

	events, total, err := repo.ListByCard(ctx, card.ID, repository.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, events, 3)
	assert.Equal(t, ids, []int64{events[0].ID, events[1].ID, events[2].ID})

	moved := domain.EventCardMoved
	timeline, total, err := repo.ListByBoard(ctx, board.ID, &moved, repository.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, ids[1], timeline[0].ID)

	pending, err := repo.ListUndispatched(ctx, time.Now().UTC().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	require.NoError(t, repo.MarkDispatched(ctx, ids[:2]))
	require.NoError(t, repo.MarkDispatched(ctx, ids[:1]), "already dispatched rows are left alone")
	pending, err = repo.ListUndispatched(ctx, time.Now().UTC().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ids[2], pending[0].EventID)

	entry, err := repo.GetOutboxEntry(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Attempts)
}

func TestEventRepository_OverdueMarkerOncePerDay(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewEventRepository(db)
	ctx := context.Background()
	board, cols := testutil.CreateBoard(t, db, "ot", "todo")
	card := testutil.CreateCard(t, db, board, cols[0], domain.CardTypeObjectTask, "task")

	inserted, err := repo.InsertOverdueMarker(ctx, nil, card.ID, "2026-03-02")
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.InsertOverdueMarker(ctx, nil, card.ID, "2026-03-02")
	require.NoError(t, err)
	assert.False(t, inserted)

	inserted, err = repo.InsertOverdueMarker(ctx, nil, card.ID, "2026-03-03")
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestRuleRepository_ClaimExecutionOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	board, cols := testutil.CreateBoard(t, db, "rules", "new")
	card := testutil.CreateCard(t, db, board, cols[0], domain.CardTypeGeneric, "c")
	events := repository.NewEventRepository(db)
	ev := &domain.CardEvent{CardID: card.ID, BoardID: board.ID, EventType: domain.EventCardMoved}
	require.NoError(t, events.Append(ctx, nil, ev))

	repo := repository.NewRuleRepository(db)
	rule := &domain.Rule{
		BoardID:   board.ID,
		Title:     "notify",
		IsActive:  true,
		EventType: domain.EventCardMoved,
		Actions: datatypes.JSONSlice[domain.RuleAction]{
			{Type: domain.ActionSetMeta, Payload: map[string]any{"seen": true}},
		},
	}
	require.NoError(t, repo.Create(ctx, rule))

	active, err := repo.ListActiveFor(ctx, board.ID, domain.EventCardMoved)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, domain.ActionSetMeta, active[0].Actions[0].Type)

	exec, claimed, err := repo.ClaimExecution(ctx, rule.ID, ev.ID, domain.ExecutionPending)
	require.NoError(t, err)
	require.True(t, claimed)

	_, claimed, err = repo.ClaimExecution(ctx, rule.ID, ev.ID, domain.ExecutionPending)
	require.NoError(t, err)
	assert.False(t, claimed, "second delivery of the same event")

	require.NoError(t, repo.FinishExecution(ctx, exec.ID, domain.ExecutionOK, ""))
	execs, err := repo.ListEventExecutions(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, domain.ExecutionOK, execs[0].Status)
	assert.NotNil(t, execs[0].FinishedAt)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.DeadlineExceeded, true},
		{fmt.Errorf("load rules: %w", context.Canceled), true},
		{errors.New("database is locked"), true},
		{errors.New(`ERROR: could not serialize access due to concurrent update (SQLSTATE 40001)`), true},
		{errors.New("dial tcp 10.0.0.5:5432: connect: connection refused"), true},
		{gorm.ErrRecordNotFound, false},
		{errors.New("fatal: bad data"), false},
		{errors.New(`ERROR: null value in column "title" violates not-null constraint (SQLSTATE 23502)`), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, repository.IsTransient(tt.err), "%v", tt.err)
	}
}

func TestEventRepository_DispatchFailuresAreCapped(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewEventRepository(db)
	ctx := context.Background()
	board, cols := testutil.CreateBoard(t, db, "cap", "new")
	card := testutil.CreateCard(t, db, board, cols[0], domain.CardTypeGeneric, "c")

	var ids []int64
	for i := 0; i < 2; i++ {
		ev := &domain.CardEvent{CardID: card.ID, BoardID: board.ID, EventType: domain.EventCardUpdated}
		require.NoError(t, repo.Append(ctx, nil, ev))
		ids = append(ids, ev.ID)
	}
	later := time.Now().UTC().Add(time.Minute)

	for i := 1; i <= 3; i++ {
		failed, err := repo.RecordDispatchFailure(ctx, ids[0], "timeout", 3)
		require.NoError(t, err)
		assert.Equal(t, i == 3, failed, "attempt %d", i)
	}
	entry, err := repo.GetOutboxEntry(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, 3, entry.Attempts)
	assert.Equal(t, "timeout", entry.LastError)
	require.NotNil(t, entry.FailedAt)

	failed, err := repo.RecordDispatchFailure(ctx, ids[0], "timeout", 3)
	require.NoError(t, err)
	assert.False(t, failed, "already failed rows are not failed again")

	require.NoError(t, repo.MarkFailed(ctx, ids[1], "bad data"))
	entry, err = repo.GetOutboxEntry(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Attempts)
	assert.NotNil(t, entry.FailedAt)

	pending, err := repo.ListUndispatched(ctx, later, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "failed rows leave the sweep")
}
