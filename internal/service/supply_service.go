package service

import (
	"context"
	"fmt"

	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/repository"
	"go.uber.org/zap"
)

// SupplyService handles invoice references and deliveries of supply cases
type SupplyService struct {
	supplyRepo *repository.SupplyRepository
	caseRepo   *repository.OverlayRepository[domain.SupplyCase]
	logger     *zap.Logger
}

// NewSupplyService creates a new supply service instance
func NewSupplyService(
	supplyRepo *repository.SupplyRepository,
	caseRepo *repository.OverlayRepository[domain.SupplyCase],
	logger *zap.Logger,
) *SupplyService {
	return &SupplyService{supplyRepo: supplyRepo, caseRepo: caseRepo, logger: logger}
}

func (s *SupplyService) requireCase(ctx context.Context, id int64) error {
	if _, err := s.caseRepo.GetByID(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return domain.NewValidationError("supply_case_id", "supply case does not exist")
		}
		return err
	}
	return nil
}

// CreateInvoiceRef registers an ERP invoice against a supply case
func (s *SupplyService) CreateInvoiceRef(ctx context.Context, req *domain.CreateInvoiceRefRequest) (*domain.SupplyInvoiceRef, error) {
	if err := s.requireCase(ctx, req.SupplyCaseID); err != nil {
		return nil, err
	}
	issuedAt, err := domain.ParseOptionalDate("issued_at", req.IssuedAt)
	if err != nil {
		return nil, err
	}
	ref := &domain.SupplyInvoiceRef{
		SupplyCaseID: req.SupplyCaseID,
		ErpInvoiceID: req.ErpInvoiceID,
		Number:       req.Number,
		Amount:       req.Amount.Round(2),
		IssuedAt:     issuedAt,
	}
	if err := s.supplyRepo.CreateInvoiceRef(ctx, ref); err != nil {
		return nil, fmt.Errorf("failed to create invoice ref: %w", err)
	}
	return ref, nil
}

func (s *SupplyService) GetInvoiceRef(ctx context.Context, id int64) (*domain.SupplyInvoiceRef, error) {
	ref, err := s.supplyRepo.GetInvoiceRef(ctx, id)
	if err != nil {
		return nil, translate(err, "invoice ref")
	}
	return ref, nil
}

func (s *SupplyService) ListInvoiceRefs(ctx context.Context, supplyCaseID *int64) ([]domain.SupplyInvoiceRef, error) {
	return s.supplyRepo.ListInvoiceRefs(ctx, supplyCaseID)
}

func (s *SupplyService) UpdateInvoiceRef(ctx context.Context, id int64, req *domain.UpdateInvoiceRefRequest) (*domain.SupplyInvoiceRef, error) {
	ref, err := s.GetInvoiceRef(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.ErpInvoiceID != nil {
		ref.ErpInvoiceID = req.ErpInvoiceID
	}
	if req.Number != nil {
		ref.Number = *req.Number
	}
	if req.Amount != nil {
		ref.Amount = req.Amount.Round(2)
	}
	if req.IssuedAt != nil {
		if ref.IssuedAt, err = domain.ParseOptionalDate("issued_at", req.IssuedAt); err != nil {
			return nil, err
		}
	}
	if err := s.supplyRepo.SaveInvoiceRef(ctx, ref); err != nil {
		return nil, fmt.Errorf("failed to update invoice ref: %w", err)
	}
	return ref, nil
}

func (s *SupplyService) DeleteInvoiceRef(ctx context.Context, id int64) error {
	return translate(s.supplyRepo.DeleteInvoiceRef(ctx, id), "invoice ref")
}

// CreateDelivery schedules a delivery for a supply case
func (s *SupplyService) CreateDelivery(ctx context.Context, req *domain.CreateDeliveryRequest) (*domain.SupplyDelivery, error) {
	if err := s.requireCase(ctx, req.SupplyCaseID); err != nil {
		return nil, err
	}
	planned, err := domain.ParseOptionalDate("planned_date", req.PlannedDate)
	if err != nil {
		return nil, err
	}
	actual, err := domain.ParseOptionalDate("actual_date", req.ActualDate)
	if err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = domain.DeliveryStatusPlanned
	}
	d := &domain.SupplyDelivery{
		SupplyCaseID: req.SupplyCaseID,
		PlannedDate:  planned,
		ActualDate:   actual,
		Status:       status,
		Note:         req.Note,
	}
	if err := s.supplyRepo.CreateDelivery(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to create delivery: %w", err)
	}
	return d, nil
}

func (s *SupplyService) GetDelivery(ctx context.Context, id int64) (*domain.SupplyDelivery, error) {
	d, err := s.supplyRepo.GetDelivery(ctx, id)
	if err != nil {
		return nil, translate(err, "delivery")
	}
	return d, nil
}

func (s *SupplyService) ListDeliveries(ctx context.Context, supplyCaseID *int64) ([]domain.SupplyDelivery, error) {
	return s.supplyRepo.ListDeliveries(ctx, supplyCaseID)
}

func (s *SupplyService) UpdateDelivery(ctx context.Context, id int64, req *domain.UpdateDeliveryRequest) (*domain.SupplyDelivery, error) {
	d, err := s.GetDelivery(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.PlannedDate != nil {
		if d.PlannedDate, err = domain.ParseOptionalDate("planned_date", req.PlannedDate); err != nil {
			return nil, err
		}
	}
	if req.ActualDate != nil {
		if d.ActualDate, err = domain.ParseOptionalDate("actual_date", req.ActualDate); err != nil {
			return nil, err
		}
	}
	if req.Status != nil {
		d.Status = *req.Status
	}
	if req.Note != nil {
		d.Note = *req.Note
	}
	if err := s.supplyRepo.SaveDelivery(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to update delivery: %w", err)
	}
	return d, nil
}

func (s *SupplyService) DeleteDelivery(ctx context.Context, id int64) error {
	return translate(s.supplyRepo.DeleteDelivery(ctx, id), "delivery")
}
