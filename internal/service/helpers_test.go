package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/repository"
	"github.com/stroyteh/kanban-service/internal/service"
	"github.com/stroyteh/kanban-service/internal/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// fakeNotifier records notifications instead of calling the ERP
type fakeNotifier struct {
	mu    sync.Mutex
	calls []domain.Notification
	keys  []string
	err   error
}

func (f *fakeNotifier) Notify(_ context.Context, n domain.Notification, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, n)
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// recordingPublisher collects published event ids for the test to process
type recordingPublisher struct {
	mu  sync.Mutex
	ids []int64
}

func (p *recordingPublisher) Publish(ids ...int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, ids...)
}

func (p *recordingPublisher) take() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := p.ids
	p.ids = nil
	return ids
}

type harness struct {
	db        *gorm.DB
	boards    *service.BoardService
	cards     *service.CardService
	rules     *service.RuleService
	engine    *service.RuleEngine
	overdue   *service.OverdueService
	warehouse *service.WarehouseService
	ruleRepo  *repository.RuleRepository
	publisher *recordingPublisher
	notifier  *fakeNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	boardRepo := repository.NewBoardRepository(db)
	cardRepo := repository.NewCardRepository(db)
	eventRepo := repository.NewEventRepository(db)
	ruleRepo := repository.NewRuleRepository(db)

	h := &harness{
		db:        db,
		ruleRepo:  ruleRepo,
		publisher: &recordingPublisher{},
		notifier:  &fakeNotifier{},
	}
	h.boards = service.NewBoardService(db, boardRepo, logger)
	h.cards = service.NewCardService(db, cardRepo, boardRepo, eventRepo, h.publisher, logger)
	h.rules = service.NewRuleService(ruleRepo, boardRepo, logger)
	h.engine = service.NewRuleEngine(eventRepo, ruleRepo, h.cards, h.notifier, logger)
	h.overdue = service.NewOverdueService(db, cardRepo, eventRepo, h.publisher, time.UTC, logger)
	h.warehouse = service.NewWarehouseService(db, repository.NewWarehouseRepository(db), logger)
	return h
}

// drain runs the engine over every published event, including events
// emitted by rule actions, until nothing is left
func (h *harness) drain(t *testing.T) {
	t.Helper()
	for i := 0; i < 20; i++ {
		ids := h.publisher.take()
		if len(ids) == 0 {
			return
		}
		for _, id := range ids {
			require.NoError(t, h.engine.ProcessEvent(context.Background(), id))
		}
	}
	t.Fatal("rule processing did not settle")
}

func (h *harness) board(t *testing.T, key string, columns ...string) *domain.Board {
	t.Helper()
	ctx := context.Background()
	b, err := h.boards.CreateBoard(ctx, &domain.CreateBoardRequest{Key: key, Title: key})
	require.NoError(t, err)
	for i, c := range columns {
		_, err := h.boards.CreateColumn(ctx, &domain.CreateColumnRequest{BoardID: b.ID, Key: c, Title: c, Order: i + 1})
		require.NoError(t, err)
	}
	return b
}

func (h *harness) card(t *testing.T, board *domain.Board, column string, cardType domain.CardType) *domain.CardDTO {
	t.Helper()
	c, err := h.cards.Create(context.Background(), &domain.CreateCardRequest{
		BoardID:   board.ID,
		ColumnKey: column,
		Type:      cardType,
		Title:     "card in " + column,
	}, testActor)
	require.NoError(t, err)
	return c
}

func (h *harness) rule(t *testing.T, board *domain.Board, eventType domain.EventType, conditions map[string]any, actions ...domain.RuleAction) *domain.Rule {
	t.Helper()
	r, err := h.rules.Create(context.Background(), &domain.CreateRuleRequest{
		BoardID:    board.ID,
		Title:      "rule",
		EventType:  eventType,
		Conditions: conditions,
		Actions:    actions,
	})
	require.NoError(t, err)
	return r
}

func (h *harness) executions(t *testing.T, ruleID int64) []domain.RuleExecution {
	t.Helper()
	var execs []domain.RuleExecution
	require.NoError(t, h.db.Where("rule_id = ?", ruleID).Order("id").Find(&execs).Error)
	return execs
}

func notifyAction(title string) domain.RuleAction {
	return domain.RuleAction{
		Type: domain.ActionNotifyERP,
		Payload: map[string]any{
			"user_id":           1,
			"notification_type": "general",
			"title":             title,
		},
	}
}

var testActor = domain.Actor{UserID: testutil.Int64(7), Username: "tester"}

func requireValidationField(t *testing.T, err error, field string) {
	t.Helper()
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	require.Contains(t, verr.Fields, field)
}
