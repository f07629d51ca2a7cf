package service

import (
	"context"
	"fmt"

	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/repository"
	"go.uber.org/zap"
)

// OverlayModel is satisfied by pointers to the overlay structs of package domain
type OverlayModel[T any] interface {
	*T
	domain.Overlay
}

// OverlayService manages one overlay table. Writers enforce that the overlay
// type equals the type of the card it is attached to.
type OverlayService[T any, PT OverlayModel[T]] struct {
	repo     *repository.OverlayRepository[T]
	cardRepo *repository.CardRepository
	logger   *zap.Logger
}

// NewOverlayService creates an overlay service for T
func NewOverlayService[T any, PT OverlayModel[T]](
	repo *repository.OverlayRepository[T],
	cardRepo *repository.CardRepository,
	logger *zap.Logger,
) *OverlayService[T, PT] {
	return &OverlayService[T, PT]{repo: repo, cardRepo: cardRepo, logger: logger}
}

// CardType returns the card type this overlay belongs to
func (s *OverlayService[T, PT]) CardType() domain.CardType {
	var zero T
	return PT(&zero).OverlayType()
}

// FindForCard returns the overlay of a card, or nil when the card has none
func (s *OverlayService[T, PT]) FindForCard(ctx context.Context, cardID int64) (domain.Overlay, error) {
	overlay, err := s.repo.GetByCardID(ctx, nil, cardID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return PT(overlay), nil
}

// Create attaches an overlay to its card
func (s *OverlayService[T, PT]) Create(ctx context.Context, overlay PT) (PT, error) {
	card, err := s.cardRepo.GetByID(ctx, nil, overlay.OverlayCardID())
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.NewValidationError("card_id", "card does not exist")
		}
		return nil, err
	}
	if card.IsArchived() {
		return nil, conflict("card %d is archived", card.ID)
	}
	if card.Type != overlay.OverlayType() {
		return nil, domain.NewValidationError("card_id",
			fmt.Sprintf("card type %q does not match overlay type %q", card.Type, overlay.OverlayType()))
	}

	if err := s.repo.Create(ctx, nil, (*T)(overlay)); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, conflict("card %d already has a %s overlay", card.ID, overlay.OverlayType())
		}
		return nil, fmt.Errorf("failed to create overlay: %w", err)
	}

	s.logger.Info("overlay created",
		zap.Int64("card_id", card.ID),
		zap.String("type", string(overlay.OverlayType())),
	)
	return overlay, nil
}

// Get retrieves an overlay by id
func (s *OverlayService[T, PT]) Get(ctx context.Context, id int64) (PT, error) {
	overlay, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, string(s.CardType()))
	}
	return PT(overlay), nil
}

// List returns a page of overlays of non-archived cards
func (s *OverlayService[T, PT]) List(ctx context.Context, boardID *int64, page repository.Page) (*domain.PaginatedResponse[T], error) {
	items, total, err := s.repo.List(ctx, boardID, page)
	if err != nil {
		return nil, err
	}
	return paginated(items, total, page), nil
}

// Update loads an overlay, lets apply mutate it and saves it. The card link
// cannot change.
func (s *OverlayService[T, PT]) Update(ctx context.Context, id int64, apply func(PT)) (PT, error) {
	overlay, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cardID := overlay.OverlayCardID()
	apply(overlay)
	if overlay.OverlayCardID() != cardID {
		return nil, invalid("card_id cannot be changed")
	}
	if err := s.repo.Save(ctx, nil, (*T)(overlay)); err != nil {
		return nil, fmt.Errorf("failed to update overlay: %w", err)
	}
	return overlay, nil
}

// Delete removes an overlay
func (s *OverlayService[T, PT]) Delete(ctx context.Context, id int64) error {
	return translate(s.repo.Delete(ctx, id), string(s.CardType()))
}
