package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Condition keys understood by the rule matcher
const (
	CondToColumnKey   = "to_column_key"
	CondFromColumnKey = "from_column_key"
	CondCardType      = "card_type"
	CondMetaPrefix    = "meta."
)

// ActionType is the kind of side effect a rule performs
type ActionType string

const (
	ActionNotifyERP ActionType = "notify_erp"
	ActionSetMeta   ActionType = "set_meta"
	ActionMoveTo    ActionType = "move_to"
)

// IsValid reports whether a is a known action type
func (a ActionType) IsValid() bool {
	switch a {
	case ActionNotifyERP, ActionSetMeta, ActionMoveTo:
		return true
	}
	return false
}

// RuleAction is one step of a rule, executed in list order
type RuleAction struct {
	Type    ActionType     `json:"type"`
	Payload map[string]any `json:"payload"`
}

// Rule binds an event type and a condition object to an ordered action list
type Rule struct {
	BaseModel
	BoardID    int64                           `gorm:"not null;index:idx_rules_board_event,priority:1" json:"board_id"`
	Title      string                          `gorm:"type:varchar(200);not null" json:"title"`
	IsActive   bool                            `gorm:"not null" json:"is_active"`
	EventType  EventType                       `gorm:"type:varchar(64);not null;index:idx_rules_board_event,priority:2" json:"event_type"`
	Conditions datatypes.JSONMap               `json:"conditions"`
	Actions    datatypes.JSONSlice[RuleAction] `json:"actions"`
	// DefinitionChangedAt moves forward whenever the rule starts matching a
	// different set of events: new event type, conditions or actions, or
	// reactivation. Events older than it never fire the rule.
	DefinitionChangedAt time.Time `gorm:"not null" json:"definition_changed_at"`
	Board               *Board    `gorm:"foreignKey:BoardID;constraint:OnDelete:CASCADE" json:"-"`
}

// Moves reports whether the rule relocates cards
func (r *Rule) Moves() bool {
	for _, a := range r.Actions {
		if a.Type == ActionMoveTo {
			return true
		}
	}
	return false
}

// Revision returns the time the current definition took effect
func (r *Rule) Revision() time.Time {
	if r.DefinitionChangedAt.IsZero() {
		return r.CreatedAt
	}
	return r.DefinitionChangedAt
}

// ExecutionStatus is the state of one (rule, event) execution
type ExecutionStatus string

const (
	ExecutionPending ExecutionStatus = "pending"
	ExecutionOK      ExecutionStatus = "ok"
	ExecutionSkipped ExecutionStatus = "skipped"
	ExecutionFailed  ExecutionStatus = "failed"
)

// RuleExecution is the audit record and exactly-once key for a rule applied to an event
type RuleExecution struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	RuleID     int64           `gorm:"not null;uniqueIndex:idx_rule_executions_rule_event,priority:1" json:"rule_id"`
	EventID    int64           `gorm:"not null;uniqueIndex:idx_rule_executions_rule_event,priority:2;index" json:"event_id"`
	Status     ExecutionStatus `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	Error      string          `gorm:"type:text" json:"error"`
	CreatedAt  time.Time       `gorm:"not null" json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Rule       *Rule           `gorm:"foreignKey:RuleID;constraint:OnDelete:CASCADE" json:"-"`
	Event      *CardEvent      `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"-"`
}

// UnknownConditionKeys returns the condition keys the matcher does not understand, sorted
func UnknownConditionKeys(conditions map[string]any) []string {
	var unknown []string
	for key := range conditions {
		if !isKnownConditionKey(key) {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func isKnownConditionKey(key string) bool {
	switch key {
	case CondToColumnKey, CondFromColumnKey, CondCardType:
		return true
	}
	return strings.HasPrefix(key, CondMetaPrefix) && len(key) > len(CondMetaPrefix)
}

// ValidateRuleDefinition checks event type, conditions and actions against the
// closed rule schema. Field errors are keyed like the request body.
func ValidateRuleDefinition(eventType EventType, conditions map[string]any, actions []RuleAction) error {
	verr := &ValidationError{}

	if !eventType.IsValid() {
		verr.Add("event_type", fmt.Sprintf("unknown event type %q", eventType))
	}

	for _, key := range UnknownConditionKeys(conditions) {
		verr.Add("conditions", fmt.Sprintf("unknown condition key %q", key))
	}
	for key, value := range conditions {
		if !isKnownConditionKey(key) || strings.HasPrefix(key, CondMetaPrefix) {
			continue
		}
		s, ok := value.(string)
		if !ok || s == "" {
			verr.Add("conditions", fmt.Sprintf("%s must be a non-empty string", key))
			continue
		}
		if key == CondCardType && !CardType(s).IsValid() {
			verr.Add("conditions", fmt.Sprintf("unknown card type %q", s))
		}
	}

	if len(actions) == 0 {
		verr.Add("actions", "at least one action is required")
	}
	for i, action := range actions {
		field := fmt.Sprintf("actions[%d]", i)
		for _, msg := range validateAction(action) {
			verr.Add(field, msg)
		}
	}

	return verr.OrNil()
}

var notifyPayloadKeys = map[string]bool{
	"user_id":           true,
	"notification_type": true,
	"title":             true,
	"message":           true,
	"data":              true,
}

func validateAction(action RuleAction) []string {
	var msgs []string
	switch action.Type {
	case ActionNotifyERP:
		for key := range action.Payload {
			if !notifyPayloadKeys[key] {
				msgs = append(msgs, fmt.Sprintf("unknown payload key %q", key))
			}
		}
		if id, ok := PayloadInt(action.Payload, "user_id"); !ok || id <= 0 {
			msgs = append(msgs, "payload.user_id must be a positive integer")
		}
		if s, _ := action.Payload["notification_type"].(string); s == "" {
			msgs = append(msgs, "payload.notification_type is required")
		}
		if s, _ := action.Payload["title"].(string); s == "" {
			msgs = append(msgs, "payload.title is required")
		}
		if v, ok := action.Payload["message"]; ok && v != nil {
			if _, isString := v.(string); !isString {
				msgs = append(msgs, "payload.message must be a string")
			}
		}
		if v, ok := action.Payload["data"]; ok && v != nil {
			if _, isObject := v.(map[string]any); !isObject {
				msgs = append(msgs, "payload.data must be an object")
			}
		}
	case ActionSetMeta:
		if len(action.Payload) == 0 {
			msgs = append(msgs, "payload must be a non-empty object")
		}
	case ActionMoveTo:
		for key := range action.Payload {
			if key != "to_column_key" {
				msgs = append(msgs, fmt.Sprintf("unknown payload key %q", key))
			}
		}
		if s, _ := action.Payload["to_column_key"].(string); s == "" {
			msgs = append(msgs, "payload.to_column_key is required")
		}
	default:
		msgs = append(msgs, fmt.Sprintf("unknown action type %q", action.Type))
	}
	sort.Strings(msgs)
	return msgs
}

// PayloadInt reads an integral number from a decoded JSON object.
// Values may arrive as float64 (encoding/json) or json.Number.
func PayloadInt(payload map[string]any, key string) (int64, bool) {
	switch v := payload[key].(type) {
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	}
	return 0, false
}

// JSONEqual compares two decoded JSON values by their canonical encoding
func JSONEqual(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ab) == string(bb)
}
