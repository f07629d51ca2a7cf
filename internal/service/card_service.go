package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OverlayReader loads the typed overlay of a card. Readers are registered
// per card type; the card type tag selects which one is asked.
type OverlayReader interface {
	CardType() domain.CardType
	FindForCard(ctx context.Context, cardID int64) (domain.Overlay, error)
}

// CardService implements the card lifecycle. Every mutation writes its
// CardEvent in the same transaction.
type CardService struct {
	db        *gorm.DB
	cardRepo  *repository.CardRepository
	boardRepo *repository.BoardRepository
	eventRepo *repository.EventRepository
	events    *eventLog
	overlays  map[domain.CardType]OverlayReader
	logger    *zap.Logger
}

// NewCardService creates a new card service instance
func NewCardService(
	db *gorm.DB,
	cardRepo *repository.CardRepository,
	boardRepo *repository.BoardRepository,
	eventRepo *repository.EventRepository,
	publisher EventPublisher,
	logger *zap.Logger,
) *CardService {
	return &CardService{
		db:        db,
		cardRepo:  cardRepo,
		boardRepo: boardRepo,
		eventRepo: eventRepo,
		events:    newEventLog(eventRepo, publisher, logger),
		overlays:  make(map[domain.CardType]OverlayReader),
		logger:    logger,
	}
}

// RegisterOverlays makes card reads include the overlay of each reader's type
func (s *CardService) RegisterOverlays(readers ...OverlayReader) {
	for _, r := range readers {
		s.overlays[r.CardType()] = r
	}
}

// Create places a new card in a column and emits card_created
func (s *CardService) Create(ctx context.Context, req *domain.CreateCardRequest, actor domain.Actor) (*domain.CardDTO, error) {
	cardType := req.Type
	if cardType == "" {
		cardType = domain.CardTypeGeneric
	}
	if !cardType.IsValid() {
		return nil, domain.NewValidationError("type", domain.GetValidationMessage("oneof"))
	}
	dueDate, err := domain.ParseOptionalDate("due_date", req.DueDate)
	if err != nil {
		return nil, err
	}

	if _, err := s.boardRepo.GetByID(ctx, req.BoardID); err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.NewValidationError("board_id", "board does not exist")
		}
		return nil, err
	}

	column, err := s.resolveColumn(ctx, req)
	if err != nil {
		return nil, err
	}

	meta := datatypes.JSONMap{}
	for k, v := range req.Meta {
		meta[k] = v
	}
	card := &domain.Card{
		BoardID:     req.BoardID,
		ColumnID:    column.ID,
		Type:        cardType,
		Title:       req.Title,
		Description: req.Description,
		Meta:        meta,
		DueDate:     dueDate,
	}

	var event *domain.CardEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.cardRepo.Create(ctx, tx, card); err != nil {
			return fmt.Errorf("failed to create card: %w", err)
		}
		event, err = s.events.append(ctx, tx, card, domain.EventCardCreated, map[string]interface{}{
			domain.DataColumnKey: column.Key,
			"type":               string(cardType),
		}, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.events.publish(event)

	s.logger.Info("card created",
		zap.Int64("card_id", card.ID),
		zap.Int64("board_id", card.BoardID),
		zap.String("column_key", column.Key),
		zap.String("type", string(cardType)),
	)
	card.Column = column
	return s.toDTO(ctx, card), nil
}

func (s *CardService) resolveColumn(ctx context.Context, req *domain.CreateCardRequest) (*domain.Column, error) {
	switch {
	case req.ColumnKey != "":
		column, err := s.boardRepo.GetColumnByKey(ctx, nil, req.BoardID, req.ColumnKey)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, domain.NewValidationError("column_key", "column does not exist on this board")
			}
			return nil, err
		}
		return column, nil
	case req.ColumnID != nil:
		column, err := s.boardRepo.GetColumn(ctx, nil, *req.ColumnID)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, domain.NewValidationError("column_id", "column does not exist")
			}
			return nil, err
		}
		if column.BoardID != req.BoardID {
			return nil, domain.NewValidationError("column_id", "column belongs to another board")
		}
		return column, nil
	}
	return nil, domain.NewValidationError("column_key", domain.GetValidationMessage("required"))
}

// Get retrieves a card with its overlay
func (s *CardService) Get(ctx context.Context, id int64) (*domain.CardDTO, error) {
	card, err := s.cardRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, translate(err, "card")
	}
	return s.toDTO(ctx, card), nil
}

// List returns a page of cards
func (s *CardService) List(ctx context.Context, filters domain.CardFilters, page repository.Page) (*domain.PaginatedResponse[domain.CardDTO], error) {
	cards, total, err := s.cardRepo.List(ctx, filters, page)
	if err != nil {
		return nil, err
	}
	results := make([]domain.CardDTO, 0, len(cards))
	for i := range cards {
		results = append(results, *s.toDTO(ctx, &cards[i]))
	}
	return paginated(results, total, page), nil
}

// Move relocates a card to another column of its board. Moving to the
// current column is a no-op: no event, moved is false.
func (s *CardService) Move(ctx context.Context, id int64, toColumnKey string, actor domain.Actor) (*domain.CardDTO, bool, error) {
	var event *domain.CardEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		card, err := s.cardRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return translate(err, "card")
		}
		if card.IsArchived() {
			return conflict("card %d is archived", id)
		}
		fromKey := card.Column.Key
		if fromKey == toColumnKey {
			return nil
		}

		target, err := s.boardRepo.GetColumnByKey(ctx, tx, card.BoardID, toColumnKey)
		if err != nil {
			if repository.IsNotFound(err) {
				return domain.NewValidationError("to_column_key", "column does not exist on this board")
			}
			return err
		}

		if err := s.cardRepo.UpdateFields(ctx, tx, card.ID, map[string]interface{}{"column_id": target.ID}); err != nil {
			return err
		}
		event, err = s.events.append(ctx, tx, card, domain.EventCardMoved, map[string]interface{}{
			domain.DataFromColumnKey: fromKey,
			domain.DataToColumnKey:   toColumnKey,
		}, actor)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	moved := event != nil
	if moved {
		s.events.publish(event)
		s.logger.Info("card moved",
			zap.Int64("card_id", id),
			zap.String("to_column_key", toColumnKey),
			zap.Int64("event_id", event.ID),
		)
	}

	dto, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return dto, moved, nil
}

// Update applies a partial update and emits card_updated listing the changed
// fields. When nothing changes no event is written.
func (s *CardService) Update(ctx context.Context, id int64, req *domain.UpdateCardRequest, actor domain.Actor) (*domain.CardDTO, error) {
	var dueDate *time.Time
	if req.DueDate != nil {
		var err error
		if dueDate, err = domain.ParseOptionalDate("due_date", req.DueDate); err != nil {
			return nil, err
		}
	}

	_, err := s.update(ctx, id, actor, func(card *domain.Card) (map[string]interface{}, []string) {
		updates := map[string]interface{}{}
		var changed []string
		if req.Title != nil && *req.Title != card.Title {
			updates["title"] = *req.Title
			changed = append(changed, "title")
		}
		if req.Description != nil && *req.Description != card.Description {
			updates["description"] = *req.Description
			changed = append(changed, "description")
		}
		if req.Meta != nil {
			if merged, ok := mergeMeta(card.Meta, req.Meta); ok {
				updates["meta"] = merged
				changed = append(changed, "meta")
			}
		}
		if req.DueDate != nil && !sameDate(card.DueDate, dueDate) {
			updates["due_date"] = dueDate
			changed = append(changed, "due_date")
		}
		return updates, changed
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// SetMeta merges patch into the card meta. It reports whether meta changed.
func (s *CardService) SetMeta(ctx context.Context, id int64, patch map[string]interface{}, actor domain.Actor) (bool, error) {
	return s.update(ctx, id, actor, func(card *domain.Card) (map[string]interface{}, []string) {
		merged, ok := mergeMeta(card.Meta, patch)
		if !ok {
			return nil, nil
		}
		return map[string]interface{}{"meta": merged}, []string{"meta"}
	})
}

func (s *CardService) update(ctx context.Context, id int64, actor domain.Actor, diff func(*domain.Card) (map[string]interface{}, []string)) (bool, error) {
	var event *domain.CardEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		card, err := s.cardRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return translate(err, "card")
		}
		if card.IsArchived() {
			return conflict("card %d is archived", id)
		}

		updates, changed := diff(card)
		if len(changed) == 0 {
			return nil
		}
		if err := s.cardRepo.UpdateFields(ctx, tx, id, updates); err != nil {
			return err
		}
		sort.Strings(changed)
		event, err = s.events.append(ctx, tx, card, domain.EventCardUpdated, map[string]interface{}{
			domain.DataChangedFields: changed,
		}, actor)
		return err
	})
	if err != nil {
		return false, err
	}
	if event == nil {
		return false, nil
	}
	s.events.publish(event)
	return true, nil
}

// Archive soft-deletes a card and emits card_archived. Archiving twice is a no-op.
func (s *CardService) Archive(ctx context.Context, id int64, actor domain.Actor) (*domain.CardDTO, error) {
	var event *domain.CardEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		card, err := s.cardRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return translate(err, "card")
		}
		if card.IsArchived() {
			return nil
		}
		now := time.Now().UTC()
		if err := s.cardRepo.UpdateFields(ctx, tx, id, map[string]interface{}{"archived_at": now}); err != nil {
			return err
		}
		event, err = s.events.append(ctx, tx, card, domain.EventCardArchived, map[string]interface{}{
			domain.DataColumnKey: card.Column.Key,
		}, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.events.publish(event)
	return s.Get(ctx, id)
}

// ListEvents returns the event log of a card in (created_at, id) order
func (s *CardService) ListEvents(ctx context.Context, cardID int64, page repository.Page) (*domain.PaginatedResponse[domain.CardEvent], error) {
	if _, err := s.cardRepo.GetByID(ctx, nil, cardID); err != nil {
		return nil, translate(err, "card")
	}
	events, total, err := s.eventRepo.ListByCard(ctx, cardID, page)
	if err != nil {
		return nil, err
	}
	return paginated(events, total, page), nil
}

// ListBoardEvents returns the activity timeline of a board
func (s *CardService) ListBoardEvents(ctx context.Context, boardID int64, eventType *domain.EventType, page repository.Page) (*domain.PaginatedResponse[domain.CardEvent], error) {
	events, total, err := s.eventRepo.ListByBoard(ctx, boardID, eventType, page)
	if err != nil {
		return nil, err
	}
	return paginated(events, total, page), nil
}

func (s *CardService) toDTO(ctx context.Context, card *domain.Card) *domain.CardDTO {
	dto := &domain.CardDTO{Card: card}
	if card.Column != nil {
		dto.ColumnKey = card.Column.Key
	}
	if reader, ok := s.overlays[card.Type]; ok {
		overlay, err := reader.FindForCard(ctx, card.ID)
		if err != nil {
			s.logger.Warn("failed to load card overlay", zap.Int64("card_id", card.ID), zap.Error(err))
		}
		if overlay != nil {
			dto.Overlay = overlay
		}
	}
	return dto
}

func paginated[T any](items []T, total int64, page repository.Page) *domain.PaginatedResponse[T] {
	if items == nil {
		items = []T{}
	}
	return &domain.PaginatedResponse[T]{
		Count:    total,
		Page:     page.Number,
		PageSize: page.Size,
		Results:  items,
	}
}

// mergeMeta applies patch onto current. A nil value removes the key.
// ok is false when the result equals current.
func mergeMeta(current datatypes.JSONMap, patch map[string]interface{}) (datatypes.JSONMap, bool) {
	base := map[string]interface{}{}
	for k, v := range current {
		base[k] = v
	}
	merged := datatypes.JSONMap{}
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	if domain.JSONEqual(base, map[string]interface{}(merged)) {
		return nil, false
	}
	return merged, true
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UTC().Format(domain.DateLayout) == b.UTC().Format(domain.DateLayout)
}
