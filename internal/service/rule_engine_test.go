package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/service"
	"github.com/stroyteh/kanban-service/internal/testutil"
)

func TestRuleEngine_NotifiesOnceWhenCardReachesDone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	board := h.board(t, "supply_notify", "new", "done")
	rule := h.rule(t, board, domain.EventCardMoved,
		map[string]any{"to_column_key": "done"}, notifyAction("x"))
	card := h.card(t, board, "new", domain.CardTypeSupplyCase)

	_, moved, err := h.cards.Move(ctx, card.ID, "done", testActor)
	require.NoError(t, err)
	assert.True(t, moved)
	h.drain(t)
	require.Equal(t, 1, h.notifier.count())

	_, moved, err = h.cards.Move(ctx, card.ID, "done", testActor)
	require.NoError(t, err)
	assert.False(t, moved)
	h.drain(t)
	assert.Equal(t, 1, h.notifier.count())

	n := h.notifier.calls[0]
	assert.Equal(t, int64(1), n.UserID)
	assert.Equal(t, "general", n.NotificationType)
	assert.Equal(t, "x", n.Title)

	execs := h.executions(t, rule.ID)
	require.Len(t, execs, 1)
	assert.Equal(t, domain.ExecutionOK, execs[0].Status)
	assert.NotNil(t, execs[0].FinishedAt)
}

func TestRuleEngine_RedeliveryDoesNotRepeatActions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	board := h.board(t, "redelivery", "new", "done")
	rule := h.rule(t, board, domain.EventCardMoved, nil, notifyAction("moved"))
	card := h.card(t, board, "new", domain.CardTypeGeneric)
	h.publisher.take()

	_, _, err := h.cards.Move(ctx, card.ID, "done", testActor)
	require.NoError(t, err)
	ids := h.publisher.take()
	require.Len(t, ids, 1)

	for i := 0; i < 3; i++ {
		require.NoError(t, h.engine.ProcessEvent(ctx, ids[0]))
	}

	assert.Equal(t, 1, h.notifier.count())
	assert.Len(t, h.executions(t, rule.ID), 1)
	assert.Equal(t, []string{fmt.Sprintf("rule-%d-event-%d", rule.ID, ids[0])}, h.notifier.keys)
}

func TestRuleEngine_ConditionsAreConjunctive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	board := h.board(t, "conj", "new", "done")
	matching := h.rule(t, board, domain.EventCardMoved,
		map[string]any{"to_column_key": "done", "card_type": "object_task"}, notifyAction("object"))
	other := h.rule(t, board, domain.EventCardMoved,
		map[string]any{"to_column_key": "done", "card_type": "supply_case"}, notifyAction("supply"))

	card := h.card(t, board, "new", domain.CardTypeObjectTask)
	_, _, err := h.cards.Move(ctx, card.ID, "done", testActor)
	require.NoError(t, err)
	h.drain(t)

	assert.Len(t, h.executions(t, matching.ID), 1)
	assert.Empty(t, h.executions(t, other.ID))
	require.Equal(t, 1, h.notifier.count())
	assert.Equal(t, "object", h.notifier.calls[0].Title)
}

func TestRuleEngine_MetaConditionAndSetMeta(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	board := h.board(t, "meta", "new", "review", "done")
	h.rule(t, board, domain.EventCardMoved,
		map[string]any{"to_column_key": "review"},
		domain.RuleAction{Type: domain.ActionSetMeta, Payload: map[string]any{"priority": "high"}})
	notify := h.rule(t, board, domain.EventCardMoved,
		map[string]any{"to_column_key": "done", "meta.priority": "high"}, notifyAction("urgent done"))

	card := h.card(t, board, "new", domain.CardTypeGeneric)
	_, _, err := h.cards.Move(ctx, card.ID, "review", testActor)
	require.NoError(t, err)
	h.drain(t)

	got, err := h.cards.Get(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, "high", got.Meta["priority"])
	assert.Equal(t, int64(1), testutil.CountEvents(t, h.db, card.ID, domain.EventCardUpdated))

	_, _, err = h.cards.Move(ctx, card.ID, "done", testActor)
	require.NoError(t, err)
	h.drain(t)
	assert.Len(t, h.executions(t, notify.ID), 1)
	assert.Equal(t, 1, h.notifier.count())
}

func TestRuleEngine_SetMetaWithoutChangeEmitsNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	board := h.board(t, "meta_same", "new", "done")
	rule := h.rule(t, board, domain.EventCardMoved, nil,
		domain.RuleAction{Type: domain.ActionSetMeta, Payload: map[string]any{"stage": "moved"}})

	card, err := h.cards.Create(ctx, &domain.CreateCardRequest{
		BoardID: board.ID, ColumnKey: "new", Title: "c", Meta: map[string]any{"stage": "moved"},
	}, testActor)
	require.NoError(t, err)

	_, _, err = h.cards.Move(ctx, card.ID, "done", testActor)
	require.NoError(t, err)
	h.drain(t)

	assert.Equal(t, int64(0), testutil.CountEvents(t, h.db, card.ID, domain.EventCardUpdated))
	execs := h.executions(t, rule.ID)
	require.Len(t, execs, 1)
	assert.Equal(t, domain.ExecutionOK, execs[0].Status)
}

func TestRuleEngine_MoveToAction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	board := h.board(t, "auto_move", "new", "triage", "assigned")
	h.rule(t, board, domain.EventCardCreated, map[string]any{"card_type": "object_task"},
		domain.RuleAction{Type: domain.ActionMoveTo, Payload: map[string]any{"to_column_key": "triage"}})

	card := h.card(t, board, "new", domain.CardTypeObjectTask)
	h.drain(t)

	got, err := h.cards.Get(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, "triage", got.ColumnKey)
	assert.Equal(t, int64(1), testutil.CountEvents(t, h.db, card.ID, domain.EventCardMoved))
}

func TestRuleEngine_MoveRulesDoNotBounceCards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	board := h.board(t, "bounce", "new", "done")
	back := h.rule(t, board, domain.EventCardMoved, map[string]any{"to_column_key": "done"},
		domain.RuleAction{Type: domain.ActionMoveTo, Payload: map[string]any{"to_column_key": "new"}})
	forth := h.rule(t, board, domain.EventCardMoved, map[string]any{"to_column_key": "new"},
		domain.RuleAction{Type: domain.ActionMoveTo, Payload: map[string]any{"to_column_key": "done"}})
	audit := h.rule(t, board, domain.EventCardMoved, map[string]any{"to_column_key": "new"},
		domain.RuleAction{Type: domain.ActionSetMeta, Payload: map[string]any{"reopened": true}})

	card := h.card(t, board, "new", domain.CardTypeGeneric)
	_, _, err := h.cards.Move(ctx, card.ID, "done", testActor)
	require.NoError(t, err)
	h.drain(t)

	got, err := h.cards.Get(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.ColumnKey)
	assert.Equal(t, int64(2), testutil.CountEvents(t, h.db, card.ID, domain.EventCardMoved))
	assert.Len(t, h.executions(t, back.ID), 1)
	assert.Empty(t, h.executions(t, forth.ID), "rule-made moves do not trigger moving rules")
	assert.Len(t, h.executions(t, audit.ID), 1, "other rules still see rule-made moves")
	assert.Equal(t, true, got.Meta["reopened"])
}

func TestRuleEngine_FailedActionHaltsRuleButNotOthers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.notifier.err = errors.New("erp returned 500")

	board := h.board(t, "failing", "new", "done")
	failing := h.rule(t, board, domain.EventCardMoved, nil,
		notifyAction("boom"),
		domain.RuleAction{Type: domain.ActionSetMeta, Payload: map[string]any{"never": true}})
	second := h.rule(t, board, domain.EventCardMoved, nil,
		domain.RuleAction{Type: domain.ActionSetMeta, Payload: map[string]any{"checked": true}})

	card := h.card(t, board, "new", domain.CardTypeGeneric)
	_, _, err := h.cards.Move(ctx, card.ID, "done", testActor)
	require.NoError(t, err)
	h.drain(t)

	execs := h.executions(t, failing.ID)
	require.Len(t, execs, 1)
	assert.Equal(t, domain.ExecutionFailed, execs[0].Status)
	assert.Contains(t, execs[0].Error, "erp returned 500")

	execs = h.executions(t, second.ID)
	require.Len(t, execs, 1)
	assert.Equal(t, domain.ExecutionOK, execs[0].Status)

	got, err := h.cards.Get(ctx, card.ID)
	require.NoError(t, err)
	assert.NotContains(t, got.Meta, "never")
	assert.Equal(t, true, got.Meta["checked"])
}

func TestRuleEngine_InactiveAndOtherBoardRulesIgnored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	board := h.board(t, "mine", "new", "done")
	otherBoard := h.board(t, "theirs", "new", "done")
	inactive := false
	r, err := h.rules.Create(ctx, &domain.CreateRuleRequest{
		BoardID: board.ID, Title: "off", IsActive: &inactive,
		EventType: domain.EventCardMoved, Actions: []domain.RuleAction{notifyAction("off")},
	})
	require.NoError(t, err)
	foreign := h.rule(t, otherBoard, domain.EventCardMoved, nil, notifyAction("foreign"))

	card := h.card(t, board, "new", domain.CardTypeGeneric)
	_, _, err = h.cards.Move(ctx, card.ID, "done", testActor)
	require.NoError(t, err)
	h.drain(t)

	assert.Zero(t, h.notifier.count())
	assert.Empty(t, h.executions(t, r.ID))
	assert.Empty(t, h.executions(t, foreign.ID))
}

func TestRuleEngine_RulesOnlySeeLaterEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	board := h.board(t, "history", "new", "done")
	card := h.card(t, board, "new", domain.CardTypeGeneric)
	_, _, err := h.cards.Move(ctx, card.ID, "done", testActor)
	require.NoError(t, err)
	old := h.publisher.take()

	rule := h.rule(t, board, domain.EventCardMoved, nil, notifyAction("late"))
	for _, id := range old {
		require.NoError(t, h.engine.ProcessEvent(ctx, id))
	}

	assert.Zero(t, h.notifier.count())
	assert.Empty(t, h.executions(t, rule.ID))
}

func TestRuleEngine_EditedRuleOnlySeesLaterEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	board := h.board(t, "revised", "new", "done")
	rule := h.rule(t, board, domain.EventCardUpdated, nil, notifyAction("revised"))
	card := h.card(t, board, "new", domain.CardTypeGeneric)
	_, _, err := h.cards.Move(ctx, card.ID, "done", testActor)
	require.NoError(t, err)
	old := h.publisher.take()

	moved := domain.EventCardMoved
	updated, err := h.rules.Update(ctx, rule.ID, &domain.UpdateRuleRequest{EventType: &moved})
	require.NoError(t, err)
	assert.True(t, updated.DefinitionChangedAt.After(rule.DefinitionChangedAt))

	for _, id := range old {
		require.NoError(t, h.engine.ProcessEvent(ctx, id))
	}
	assert.Zero(t, h.notifier.count(), "the move happened before the rule watched moves")
	assert.Empty(t, h.executions(t, rule.ID))

	_, _, err = h.cards.Move(ctx, card.ID, "new", testActor)
	require.NoError(t, err)
	h.drain(t)
	assert.Equal(t, 1, h.notifier.count())
}

func TestRuleEngine_TitleEditKeepsRevision(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	board := h.board(t, "renamed", "new", "done")
	rule := h.rule(t, board, domain.EventCardMoved, nil, notifyAction("renamed"))
	card := h.card(t, board, "new", domain.CardTypeGeneric)
	_, _, err := h.cards.Move(ctx, card.ID, "done", testActor)
	require.NoError(t, err)
	pending := h.publisher.take()

	title := "renamed rule"
	updated, err := h.rules.Update(ctx, rule.ID, &domain.UpdateRuleRequest{Title: &title})
	require.NoError(t, err)
	assert.True(t, updated.DefinitionChangedAt.Equal(rule.DefinitionChangedAt))

	for _, id := range pending {
		require.NoError(t, h.engine.ProcessEvent(ctx, id))
	}
	assert.Equal(t, 1, h.notifier.count())
}

func TestRuleEngine_UnknownConditionKeySkipsRule(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	board := h.board(t, "legacy", "new", "done")
	rule := h.rule(t, board, domain.EventCardMoved, nil, notifyAction("legacy"))
	// Stored before the closed schema existed
	require.NoError(t, h.db.Model(&domain.Rule{}).Where("id = ?", rule.ID).
		Update("conditions", `{"color":"red"}`).Error)

	card := h.card(t, board, "new", domain.CardTypeGeneric)
	_, _, err := h.cards.Move(ctx, card.ID, "done", testActor)
	require.NoError(t, err)
	h.drain(t)

	assert.Zero(t, h.notifier.count())
	execs := h.executions(t, rule.ID)
	require.Len(t, execs, 1)
	assert.Equal(t, domain.ExecutionSkipped, execs[0].Status)
	assert.Contains(t, execs[0].Error, "color")
}

func TestRuleEngine_ProcessMissingEvent(t *testing.T) {
	h := newHarness(t)
	err := h.engine.ProcessEvent(context.Background(), 424242)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestMatches(t *testing.T) {
	card := &domain.Card{Type: domain.CardTypeSupplyCase, Meta: map[string]any{"priority": "high", "qty": float64(3)}}
	event := &domain.CardEvent{Data: map[string]any{"from_column_key": "new", "to_column_key": "done"}}

	tests := []struct {
		name       string
		conditions map[string]any
		want       bool
	}{
		{"empty matches everything", map[string]any{}, true},
		{"to column", map[string]any{"to_column_key": "done"}, true},
		{"wrong to column", map[string]any{"to_column_key": "new"}, false},
		{"from column", map[string]any{"from_column_key": "new"}, true},
		{"card type", map[string]any{"card_type": "supply_case"}, true},
		{"wrong card type", map[string]any{"card_type": "object_task"}, false},
		{"meta string", map[string]any{"meta.priority": "high"}, true},
		{"meta number", map[string]any{"meta.qty": 3}, true},
		{"missing meta key", map[string]any{"meta.owner": "x"}, false},
		{"all keys must hold", map[string]any{"to_column_key": "done", "card_type": "object_task"}, false},
		{"unknown key", map[string]any{"color": "red"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.Matches(tt.conditions, event, card))
		})
	}

	created := &domain.CardEvent{Data: map[string]any{"column_key": "new"}}
	assert.False(t, service.Matches(map[string]any{"to_column_key": "new"}, created, card),
		"missing event field is a non-match")
}
