package domain

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// EventType names a card state transition
type EventType string

const (
	EventCardCreated     EventType = "card_created"
	EventCardMoved       EventType = "card_moved"
	EventCardUpdated     EventType = "card_updated"
	EventCardArchived    EventType = "card_archived"
	EventTaskOverdue     EventType = "task_overdue"
	EventAttachmentAdded EventType = "attachment_added"
)

// KnownEventTypes lists the event types a rule may subscribe to
var KnownEventTypes = []EventType{
	EventCardCreated,
	EventCardMoved,
	EventCardUpdated,
	EventCardArchived,
	EventTaskOverdue,
	EventAttachmentAdded,
}

// IsValid reports whether t is a known event type
func (t EventType) IsValid() bool {
	for _, known := range KnownEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Keys used inside CardEvent.Data
const (
	DataFromColumnKey = "from_column_key"
	DataToColumnKey   = "to_column_key"
	DataColumnKey     = "column_key"
	DataChangedFields = "changed_fields"
	DataDueDate       = "due_date"
	DataMarkerDate    = "marker_date"
	DataAttachmentID  = "attachment_id"
	DataRuleID        = "rule_id"
)

// Actor identifies who caused an event. A nil UserID is a system actor.
type Actor struct {
	UserID   *int64
	Username string
}

// SystemActor is used for events produced by jobs and rule actions
func SystemActor(name string) Actor {
	return Actor{Username: name}
}

const ruleActorPrefix = "rule:"

// RuleActor is the actor recorded on events produced by a rule's actions
func RuleActor(ruleID int64) Actor {
	return SystemActor(fmt.Sprintf("%s%d", ruleActorPrefix, ruleID))
}

// CardEvent is an immutable record of a card transition
type CardEvent struct {
	ID            int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	CardID        int64             `gorm:"not null;index:idx_card_events_card_order,priority:1" json:"card_id"`
	BoardID       int64             `gorm:"not null;index" json:"board_id"`
	EventType     EventType         `gorm:"type:varchar(64);not null;index" json:"event_type"`
	Data          datatypes.JSONMap `json:"data"`
	ActorUserID   *int64            `json:"actor_user_id,omitempty"`
	ActorUsername string            `gorm:"type:varchar(150)" json:"actor_username"`
	CreatedAt     time.Time         `gorm:"not null;index:idx_card_events_card_order,priority:2" json:"created_at"`
	Card          *Card             `gorm:"foreignKey:CardID;constraint:OnDelete:CASCADE" json:"-"`
}

// FromRule reports whether the event was produced by a rule action
func (e *CardEvent) FromRule() bool {
	return e.ActorUserID == nil && strings.HasPrefix(e.ActorUsername, ruleActorPrefix)
}

// DataString returns a string value from the event payload
func (e *CardEvent) DataString(key string) (string, bool) {
	if e.Data == nil {
		return "", false
	}
	v, ok := e.Data[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// OutboxEntry is written in the same transaction as its CardEvent and
// drained by the dispatcher into the task queue.
type OutboxEntry struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID      int64      `gorm:"not null;uniqueIndex" json:"event_id"`
	Attempts     int        `gorm:"not null;default:0" json:"attempts"`
	DispatchedAt *time.Time `gorm:"index" json:"dispatched_at,omitempty"`
	FailedAt     *time.Time `gorm:"index" json:"failed_at,omitempty"`
	LastError    string     `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
}

// TableName keeps the table name singular like the other log tables
func (OutboxEntry) TableName() string { return "event_outbox" }

// OverdueMarker guarantees at most one task_overdue event per card per day
type OverdueMarker struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CardID     int64     `gorm:"not null;uniqueIndex:idx_overdue_markers_card_date" json:"card_id"`
	MarkerDate string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_overdue_markers_card_date" json:"marker_date"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	Card       *Card     `gorm:"foreignKey:CardID;constraint:OnDelete:CASCADE" json:"-"`
}
