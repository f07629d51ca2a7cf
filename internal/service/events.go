package service

import (
	"context"

	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EventPublisher is told about events after the transaction that wrote them
// commits. The outbox row is the durable handoff; Publish only shortens the
// delay before the dispatcher picks it up.
type EventPublisher interface {
	Publish(eventIDs ...int64)
}

// NopPublisher leaves delivery to outbox polling
type NopPublisher struct{}

func (NopPublisher) Publish(...int64) {}

// eventLog appends card events together with their outbox rows
type eventLog struct {
	repo      *repository.EventRepository
	publisher EventPublisher
	logger    *zap.Logger
}

func newEventLog(repo *repository.EventRepository, publisher EventPublisher, logger *zap.Logger) *eventLog {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &eventLog{repo: repo, publisher: publisher, logger: logger}
}

// append writes an event for card inside tx
func (l *eventLog) append(ctx context.Context, tx *gorm.DB, card *domain.Card, eventType domain.EventType, data map[string]interface{}, actor domain.Actor) (*domain.CardEvent, error) {
	if data == nil {
		data = map[string]interface{}{}
	}
	event := &domain.CardEvent{
		CardID:        card.ID,
		BoardID:       card.BoardID,
		EventType:     eventType,
		Data:          data,
		ActorUserID:   actor.UserID,
		ActorUsername: actor.Username,
	}
	if err := l.repo.Append(ctx, tx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// publish nudges the dispatcher; call only after commit
func (l *eventLog) publish(events ...*domain.CardEvent) {
	ids := make([]int64, 0, len(events))
	for _, e := range events {
		if e != nil {
			ids = append(ids, e.ID)
		}
	}
	if len(ids) == 0 {
		return
	}
	l.logger.Debug("card events committed", zap.Int64s("event_ids", ids))
	l.publisher.Publish(ids...)
}
