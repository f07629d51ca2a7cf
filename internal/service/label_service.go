package service

import (
	"context"
	"fmt"

	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/erpdirectory"
	"github.com/stroyteh/kanban-service/internal/repository"
	"go.uber.org/zap"
)

// LabelDirectory resolves ERP ids to display names
type LabelDirectory interface {
	Enabled() bool
	Lookup(ctx context.Context, kind erpdirectory.Kind, id int64) (string, bool, error)
}

// LabelService refreshes the ERP labels cached on card overlays
type LabelService struct {
	cardRepo        *repository.CardRepository
	supplyCases     *repository.OverlayRepository[domain.SupplyCase]
	commercialCases *repository.OverlayRepository[domain.CommercialCase]
	objectTasks     *repository.OverlayRepository[domain.ObjectTask]
	warehouseLines  *repository.OverlayRepository[domain.WarehouseLine]
	directory       LabelDirectory
	logger          *zap.Logger
}

// NewLabelService creates a new label service instance
func NewLabelService(
	cardRepo *repository.CardRepository,
	supplyCases *repository.OverlayRepository[domain.SupplyCase],
	commercialCases *repository.OverlayRepository[domain.CommercialCase],
	objectTasks *repository.OverlayRepository[domain.ObjectTask],
	warehouseLines *repository.OverlayRepository[domain.WarehouseLine],
	directory LabelDirectory,
	logger *zap.Logger,
) *LabelService {
	return &LabelService{
		cardRepo:        cardRepo,
		supplyCases:     supplyCases,
		commercialCases: commercialCases,
		objectTasks:     objectTasks,
		warehouseLines:  warehouseLines,
		directory:       directory,
		logger:          logger,
	}
}

// RefreshLabels reloads the names referenced by a card's overlay and returns
// the updated overlay. Unknown ids keep their current label.
func (s *LabelService) RefreshLabels(ctx context.Context, cardID int64) (domain.Overlay, error) {
	if s.directory == nil || !s.directory.Enabled() {
		return nil, conflict("ERP directory is not configured")
	}
	card, err := s.cardRepo.GetByID(ctx, nil, cardID)
	if err != nil {
		return nil, translate(err, "card")
	}

	switch card.Type {
	case domain.CardTypeSupplyCase:
		o, err := s.supplyCases.GetByCardID(ctx, nil, cardID)
		if err != nil {
			return nil, translate(err, "supply case")
		}
		if err := s.refresh(ctx, erpdirectory.KindObject, o.ErpObjectID, &o.ObjectLabel); err != nil {
			return nil, err
		}
		if err := s.refresh(ctx, erpdirectory.KindCounterparty, o.ErpCounterpartyID, &o.CounterpartyLabel); err != nil {
			return nil, err
		}
		return o, s.supplyCases.Save(ctx, nil, o)
	case domain.CardTypeCommercialCase:
		o, err := s.commercialCases.GetByCardID(ctx, nil, cardID)
		if err != nil {
			return nil, translate(err, "commercial case")
		}
		if err := s.refresh(ctx, erpdirectory.KindCounterparty, o.ErpCounterpartyID, &o.CounterpartyLabel); err != nil {
			return nil, err
		}
		if err := s.refresh(ctx, erpdirectory.KindContract, o.ErpContractID, &o.ContractLabel); err != nil {
			return nil, err
		}
		return o, s.commercialCases.Save(ctx, nil, o)
	case domain.CardTypeObjectTask:
		o, err := s.objectTasks.GetByCardID(ctx, nil, cardID)
		if err != nil {
			return nil, translate(err, "object task")
		}
		if err := s.refresh(ctx, erpdirectory.KindObject, o.ErpObjectID, &o.ObjectLabel); err != nil {
			return nil, err
		}
		return o, s.objectTasks.Save(ctx, nil, o)
	case domain.CardTypeWarehouseLine:
		o, err := s.warehouseLines.GetByCardID(ctx, nil, cardID)
		if err != nil {
			return nil, translate(err, "warehouse line")
		}
		if err := s.refresh(ctx, erpdirectory.KindProduct, o.ErpProductID, &o.ProductName); err != nil {
			return nil, err
		}
		return o, s.warehouseLines.Save(ctx, nil, o)
	}
	return nil, invalid("card type %q has no overlay", card.Type)
}

func (s *LabelService) refresh(ctx context.Context, kind erpdirectory.Kind, id *int64, label *string) error {
	if id == nil {
		return nil
	}
	name, found, err := s.directory.Lookup(ctx, kind, *id)
	if err != nil {
		return fmt.Errorf("failed to look up %s %d: %w", kind, *id, err)
	}
	if !found {
		s.logger.Warn("ERP record not found", zap.String("kind", string(kind)), zap.Int64("id", *id))
		return nil
	}
	*label = name
	return nil
}
