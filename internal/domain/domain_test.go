package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stroyteh/kanban-service/internal/domain"
)

func ptr(v int64) *int64 { return &v }

func fields(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	return verr.Fields
}

func TestMoveType_ValidateEndpoints(t *testing.T) {
	tests := []struct {
		name     string
		moveType domain.MoveType
		from, to *int64
		bad      []string
	}{
		{"in ok", domain.MoveIn, nil, ptr(1), nil},
		{"in without destination", domain.MoveIn, nil, nil, []string{"to_location"}},
		{"in with source", domain.MoveIn, ptr(1), ptr(2), []string{"from_location"}},
		{"out ok", domain.MoveOut, ptr(1), nil, nil},
		{"out with destination", domain.MoveOut, ptr(1), ptr(2), []string{"to_location"}},
		{"transfer ok", domain.MoveTransfer, ptr(1), ptr(2), nil},
		{"transfer same location", domain.MoveTransfer, ptr(1), ptr(1), []string{"to_location"}},
		{"transfer missing both", domain.MoveTransfer, nil, nil, []string{"from_location", "to_location"}},
		{"unknown type", domain.MoveType("SWAP"), ptr(1), ptr(2), []string{"move_type"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.moveType.ValidateEndpoints(tt.from, tt.to)
			if tt.bad == nil {
				assert.NoError(t, err)
				return
			}
			got := fields(t, err)
			for _, f := range tt.bad {
				assert.Contains(t, got, f)
			}
			assert.Len(t, got, len(tt.bad))
		})
	}
}

func TestCreateMoveRequest_Validate(t *testing.T) {
	req := &domain.CreateMoveRequest{
		MoveType:   domain.MoveIn,
		ToLocation: ptr(3),
		Lines: []domain.MoveLineRequest{
			{ErpProductID: 1, Qty: decimal.RequireFromString("1.5")},
			{ErpProductID: 2, Qty: decimal.Zero},
			{ErpProductID: 3, Qty: decimal.RequireFromString("0.0001")},
			{ErpProductID: 4, Qty: decimal.RequireFromString("-2")},
			{ErpProductID: 5, Qty: decimal.RequireFromString("100000000000")},
			{ErpProductID: 6, Qty: decimal.RequireFromString("-99999999999.999")},
		},
	}
	got := fields(t, req.Validate())
	assert.NotContains(t, got, "lines[0].qty")
	assert.Equal(t, []string{"must not be zero"}, got["lines[1].qty"])
	assert.Equal(t, []string{"at most 3 decimal places are allowed"}, got["lines[2].qty"])
	assert.NotContains(t, got, "lines[3].qty", "negative lines are corrections")
	assert.Equal(t, []string{"Ensure that there are no more than 11 digits before the decimal point."}, got["lines[4].qty"])
	assert.NotContains(t, got, "lines[5].qty")

	req.Lines = []domain.MoveLineRequest{req.Lines[0], req.Lines[3]}
	assert.NoError(t, req.Validate())
}

func TestNewBalanceRow(t *testing.T) {
	row := domain.NewBalanceRow(7, "Cement", "bag", decimal.RequireFromString("-2"))
	assert.Equal(t, "-2.000", row.Qty)
	assert.True(t, row.Ahhtung)

	row = domain.NewBalanceRow(7, "Cement", "bag", decimal.RequireFromString("12.5"))
	assert.Equal(t, "12.500", row.Qty)
	assert.False(t, row.Ahhtung)
}

func TestValidateRuleDefinition(t *testing.T) {
	notify := domain.RuleAction{Type: domain.ActionNotifyERP, Payload: map[string]any{
		"user_id": float64(3), "notification_type": "general", "title": "Done",
	}}
	assert.NoError(t, domain.ValidateRuleDefinition(domain.EventCardMoved,
		map[string]any{"to_column_key": "done", "meta.priority": "high"}, []domain.RuleAction{notify}))

	tests := []struct {
		name       string
		eventType  domain.EventType
		conditions map[string]any
		actions    []domain.RuleAction
		field      string
	}{
		{"unknown event", "card_exploded", nil, []domain.RuleAction{notify}, "event_type"},
		{"unknown condition", domain.EventCardMoved, map[string]any{"colour": "red"}, []domain.RuleAction{notify}, "conditions"},
		{"empty meta key", domain.EventCardMoved, map[string]any{"meta.": "x"}, []domain.RuleAction{notify}, "conditions"},
		{"non-string column", domain.EventCardMoved, map[string]any{"to_column_key": 5}, []domain.RuleAction{notify}, "conditions"},
		{"bad card type", domain.EventCardMoved, map[string]any{"card_type": "rocket"}, []domain.RuleAction{notify}, "conditions"},
		{"no actions", domain.EventCardMoved, nil, nil, "actions"},
		{"unknown action", domain.EventCardMoved, nil, []domain.RuleAction{{Type: "email"}}, "actions[0]"},
		{"notify missing user", domain.EventCardMoved, nil, []domain.RuleAction{{Type: domain.ActionNotifyERP,
			Payload: map[string]any{"notification_type": "general", "title": "x"}}}, "actions[0]"},
		{"notify extra key", domain.EventCardMoved, nil, []domain.RuleAction{{Type: domain.ActionNotifyERP,
			Payload: map[string]any{"user_id": 1, "notification_type": "general", "title": "x", "cc": "boss"}}}, "actions[0]"},
		{"set_meta empty", domain.EventCardMoved, nil, []domain.RuleAction{{Type: domain.ActionSetMeta}}, "actions[0]"},
		{"move_to without column", domain.EventCardMoved, nil, []domain.RuleAction{{Type: domain.ActionMoveTo,
			Payload: map[string]any{}}}, "actions[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := domain.ValidateRuleDefinition(tt.eventType, tt.conditions, tt.actions)
			assert.Contains(t, fields(t, err), tt.field)
		})
	}
}

func TestUnknownConditionKeys(t *testing.T) {
	keys := domain.UnknownConditionKeys(map[string]any{
		"to_column_key": "done", "meta.x": 1, "zeta": 1, "alpha": 1,
	})
	assert.Equal(t, []string{"alpha", "zeta"}, keys)
	assert.Empty(t, domain.UnknownConditionKeys(nil))
}

func TestPayloadInt(t *testing.T) {
	tests := []struct {
		value any
		want  int64
		ok    bool
	}{
		{float64(12), 12, true},
		{float64(1.5), 0, false},
		{7, 7, true},
		{int64(8), 8, true},
		{json.Number("42"), 42, true},
		{json.Number("4.2"), 0, false},
		{"12", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := domain.PayloadInt(map[string]any{"k": tt.value}, "k")
		assert.Equal(t, tt.ok, ok, "%v", tt.value)
		assert.Equal(t, tt.want, got, "%v", tt.value)
	}
}

func TestJSONEqual(t *testing.T) {
	assert.True(t, domain.JSONEqual(map[string]any{"a": 1, "b": []any{"x"}}, map[string]any{"b": []any{"x"}, "a": float64(1)}))
	assert.False(t, domain.JSONEqual(map[string]any{"a": 1}, map[string]any{"a": "1"}))
	assert.False(t, domain.JSONEqual(func() {}, nil))
}

func TestNotificationFromPayload(t *testing.T) {
	n := domain.NotificationFromPayload(map[string]any{
		"user_id": float64(9), "notification_type": "general", "title": "T", "message": "M",
		"data": map[string]any{"card_id": float64(1)},
	})
	assert.Equal(t, int64(9), n.UserID)
	assert.Equal(t, "general", n.NotificationType)
	assert.Equal(t, "T", n.Title)
	assert.Equal(t, "M", n.Message)
	assert.Equal(t, map[string]any{"card_id": float64(1)}, n.Data)

	assert.NotNil(t, domain.NotificationFromPayload(map[string]any{}).Data, "data defaults to an empty object")
}

func TestValidationError(t *testing.T) {
	var empty *domain.ValidationError
	assert.NoError(t, empty.OrNil())
	assert.NoError(t, (&domain.ValidationError{}).OrNil())

	verr := domain.NewValidationError("title", "This field is required.")
	verr.Add("board_id", "Ensure this value is greater than zero.")
	verr.Add("title", "Ensure this field is not too long.")
	require.Error(t, verr.OrNil())
	assert.Equal(t,
		"validation failed: board_id: Ensure this value is greater than zero., title: This field is required.; Ensure this field is not too long.",
		verr.Error())
}

func TestFromValidatorError(t *testing.T) {
	v := domain.NewValidator()
	err := v.Struct(domain.CreateCardRequest{Title: "x", Type: "rocket"})
	got := fields(t, domain.FromValidatorError(err))
	assert.Equal(t, []string{"This field is required."}, got["board_id"])
	assert.Equal(t, []string{"Not a valid choice."}, got["type"])

	other := errors.New("boom")
	assert.Same(t, other, domain.FromValidatorError(other))
}

func TestParseOptionalDate(t *testing.T) {
	got, err := domain.ParseOptionalDate("due_date", nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	s := " 2026-03-01 "
	got, err = domain.ParseOptionalDate("due_date", &s)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T00:00:00Z", got.Format("2006-01-02T15:04:05Z07:00"))

	bad := "01.03.2026"
	_, err = domain.ParseOptionalDate("due_date", &bad)
	assert.Contains(t, fields(t, err), "due_date")
}

func TestCardType(t *testing.T) {
	assert.True(t, domain.CardTypeSupplyCase.HasOverlay())
	assert.True(t, domain.CardTypeGeneric.IsValid())
	assert.False(t, domain.CardTypeGeneric.HasOverlay())
	assert.False(t, domain.CardType("rocket").IsValid())
	assert.False(t, domain.CardType("rocket").HasOverlay())
}

func TestCardEvent_DataString(t *testing.T) {
	ev := &domain.CardEvent{Data: map[string]any{"to_column_key": "done", "n": float64(1), "nil": nil}}
	s, ok := ev.DataString("to_column_key")
	assert.True(t, ok)
	assert.Equal(t, "done", s)
	_, ok = ev.DataString("n")
	assert.False(t, ok)
	_, ok = ev.DataString("nil")
	assert.False(t, ok)
	_, ok = (&domain.CardEvent{}).DataString("x")
	assert.False(t, ok)
}
