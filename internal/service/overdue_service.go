package service

import (
	"context"
	"fmt"
	"time"

	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OverdueService emits task_overdue for object tasks past their due date,
// at most once per card per calendar day.
type OverdueService struct {
	db        *gorm.DB
	cardRepo  *repository.CardRepository
	eventRepo *repository.EventRepository
	events    *eventLog
	location  *time.Location
	logger    *zap.Logger
}

// NewOverdueService creates a new overdue service. loc decides what "today" is.
func NewOverdueService(
	db *gorm.DB,
	cardRepo *repository.CardRepository,
	eventRepo *repository.EventRepository,
	publisher EventPublisher,
	loc *time.Location,
	logger *zap.Logger,
) *OverdueService {
	if loc == nil {
		loc = time.UTC
	}
	return &OverdueService{
		db:        db,
		cardRepo:  cardRepo,
		eventRepo: eventRepo,
		events:    newEventLog(eventRepo, publisher, logger),
		location:  loc,
		logger:    logger,
	}
}

// Today returns the current calendar day in the service location as UTC midnight
func (s *OverdueService) Today() time.Time {
	now := time.Now().In(s.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// Scan runs the overdue check for the given day. Running it again on the
// same day emits nothing new.
func (s *OverdueService) Scan(ctx context.Context, today time.Time) (*domain.OverdueScanResult, error) {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	marker := day.Format(domain.DateLayout)

	cards, err := s.cardRepo.ListOverdueCandidates(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue candidates: %w", err)
	}

	result := &domain.OverdueScanResult{Scanned: len(cards)}
	for i := range cards {
		card := &cards[i]
		var event *domain.CardEvent
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			inserted, err := s.eventRepo.InsertOverdueMarker(ctx, tx, card.ID, marker)
			if err != nil || !inserted {
				return err
			}
			event, err = s.events.append(ctx, tx, card, domain.EventTaskOverdue, map[string]interface{}{
				domain.DataDueDate:    card.DueDate.UTC().Format(domain.DateLayout),
				domain.DataMarkerDate: marker,
			}, domain.SystemActor("overdue-scan"))
			return err
		})
		if err != nil {
			return result, fmt.Errorf("overdue scan failed on card %d: %w", card.ID, err)
		}
		if event != nil {
			s.events.publish(event)
			result.Emitted++
		}
	}

	s.logger.Info("overdue scan finished",
		zap.String("marker_date", marker),
		zap.Int("scanned", result.Scanned),
		zap.Int("emitted", result.Emitted),
	)
	return result, nil
}
