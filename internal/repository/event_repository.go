package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/stroyteh/kanban-service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventRepository appends card events and manages their outbox rows
type EventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new event repository instance
func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append inserts an event and its outbox row. Must run inside the
// transaction that performed the card mutation.
func (r *EventRepository) Append(ctx context.Context, tx *gorm.DB, event *domain.CardEvent) error {
	db := conn(r.db, tx).WithContext(ctx)
	if err := db.Create(event).Error; err != nil {
		return fmt.Errorf("failed to insert card event: %w", err)
	}
	entry := &domain.OutboxEntry{EventID: event.ID}
	if err := db.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to insert outbox entry: %w", err)
	}
	return nil
}

// GetByID retrieves an event with its card
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*domain.CardEvent, error) {
	var event domain.CardEvent
	if err := r.db.WithContext(ctx).Preload("Card").First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// ListByCard returns the events of a card in (created_at, id) order
func (r *EventRepository) ListByCard(ctx context.Context, cardID int64, page Page) ([]domain.CardEvent, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.CardEvent{}).Where("card_id = ?", cardID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var events []domain.CardEvent
	err := page.Apply(query).Order("created_at ASC").Order("id ASC").Find(&events).Error
	return events, total, err
}

// ListByBoard returns the activity timeline of a board, newest first
func (r *EventRepository) ListByBoard(ctx context.Context, boardID int64, eventType *domain.EventType, page Page) ([]domain.CardEvent, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.CardEvent{}).Where("board_id = ?", boardID)
	if eventType != nil {
		query = query.Where("event_type = ?", *eventType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var events []domain.CardEvent
	err := page.Apply(query).Order("created_at DESC").Order("id DESC").Find(&events).Error
	return events, total, err
}

// InsertOverdueMarker claims the (card, day) marker. It returns false when
// the marker already exists.
func (r *EventRepository) InsertOverdueMarker(ctx context.Context, tx *gorm.DB, cardID int64, day string) (bool, error) {
	marker := &domain.OverdueMarker{CardID: cardID, MarkerDate: day}
	result := conn(r.db, tx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(marker)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert overdue marker: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ListUndispatched returns outbox rows whose events are neither processed nor
// marked failed, oldest first
func (r *EventRepository) ListUndispatched(ctx context.Context, olderThan time.Time, limit int) ([]domain.OutboxEntry, error) {
	var entries []domain.OutboxEntry
	err := r.db.WithContext(ctx).
		Where("dispatched_at IS NULL AND failed_at IS NULL AND created_at <= ?", olderThan).
		Order("id ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// MarkDispatched stamps outbox rows of the given events as processed
func (r *EventRepository) MarkDispatched(ctx context.Context, eventIDs []int64) error {
	if len(eventIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&domain.OutboxEntry{}).
		Where("event_id IN ? AND dispatched_at IS NULL", eventIDs).
		Updates(map[string]interface{}{
			"dispatched_at": time.Now().UTC(),
			"attempts":      gorm.Expr("attempts + 1"),
		}).Error
}

// RecordDispatchFailure counts a delivery that gave up. The row stays pending
// until maxAttempts deliveries have failed, then it is marked failed and the
// sweep stops picking it up. It reports whether the row was marked failed.
func (r *EventRepository) RecordDispatchFailure(ctx context.Context, eventID int64, errMsg string, maxAttempts int) (bool, error) {
	failed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.OutboxEntry{}).
			Where("event_id = ? AND dispatched_at IS NULL", eventID).
			Updates(map[string]interface{}{
				"attempts":   gorm.Expr("attempts + 1"),
				"last_error": errMsg,
			}).Error; err != nil {
			return err
		}
		if maxAttempts <= 0 {
			return nil
		}
		result := tx.Model(&domain.OutboxEntry{}).
			Where("event_id = ? AND dispatched_at IS NULL AND failed_at IS NULL AND attempts >= ?", eventID, maxAttempts).
			Update("failed_at", time.Now().UTC())
		failed = result.RowsAffected == 1
		return result.Error
	})
	if err != nil {
		return false, fmt.Errorf("failed to record dispatch failure: %w", err)
	}
	return failed, nil
}

// MarkFailed takes an outbox row out of circulation after an error that
// retrying cannot fix
func (r *EventRepository) MarkFailed(ctx context.Context, eventID int64, errMsg string) error {
	return r.db.WithContext(ctx).
		Model(&domain.OutboxEntry{}).
		Where("event_id = ? AND dispatched_at IS NULL AND failed_at IS NULL", eventID).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": errMsg,
			"failed_at":  time.Now().UTC(),
		}).Error
}

// GetOutboxEntry returns the outbox row of an event
func (r *EventRepository) GetOutboxEntry(ctx context.Context, eventID int64) (*domain.OutboxEntry, error) {
	var entry domain.OutboxEntry
	if err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}
