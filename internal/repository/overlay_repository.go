package repository

import (
	"context"

	"github.com/stroyteh/kanban-service/internal/domain"
	"gorm.io/gorm"
)

// OverlayRepository persists one overlay table. T is one of the overlay
// structs of package domain.
type OverlayRepository[T any] struct {
	db *gorm.DB
}

// NewOverlayRepository creates a repository for overlay type T
func NewOverlayRepository[T any](db *gorm.DB) *OverlayRepository[T] {
	return &OverlayRepository[T]{db: db}
}

// Create inserts an overlay record
func (r *OverlayRepository[T]) Create(ctx context.Context, tx *gorm.DB, overlay *T) error {
	return conn(r.db, tx).WithContext(ctx).Create(overlay).Error
}

// GetByID retrieves an overlay by its own id
func (r *OverlayRepository[T]) GetByID(ctx context.Context, id int64) (*T, error) {
	var overlay T
	if err := r.db.WithContext(ctx).First(&overlay, id).Error; err != nil {
		return nil, err
	}
	return &overlay, nil
}

// GetByCardID retrieves the overlay attached to a card
func (r *OverlayRepository[T]) GetByCardID(ctx context.Context, tx *gorm.DB, cardID int64) (*T, error) {
	var overlay T
	if err := conn(r.db, tx).WithContext(ctx).Where("card_id = ?", cardID).First(&overlay).Error; err != nil {
		return nil, err
	}
	return &overlay, nil
}

// List returns a page of overlays whose card is not archived, newest first
func (r *OverlayRepository[T]) List(ctx context.Context, boardID *int64, page Page) ([]T, int64, error) {
	var model T
	query := r.db.WithContext(ctx).Model(&model)
	stmt := &gorm.Statement{DB: r.db}
	if err := stmt.Parse(&model); err != nil {
		return nil, 0, err
	}
	table := stmt.Schema.Table
	query = query.Joins("JOIN cards ON cards.id = " + table + ".card_id").
		Where("cards.archived_at IS NULL")
	if boardID != nil {
		query = query.Where("cards.board_id = ?", *boardID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []T
	err := page.Apply(query).Order(table + ".id DESC").Find(&items).Error
	return items, total, err
}

// Save persists every field of an overlay
func (r *OverlayRepository[T]) Save(ctx context.Context, tx *gorm.DB, overlay *T) error {
	return conn(r.db, tx).WithContext(ctx).Save(overlay).Error
}

// Delete removes an overlay by id
func (r *OverlayRepository[T]) Delete(ctx context.Context, id int64) error {
	var model T
	result := r.db.WithContext(ctx).Delete(&model, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SupplyRepository handles the invoice and delivery records of supply cases
type SupplyRepository struct {
	db *gorm.DB
}

// NewSupplyRepository creates a new supply repository instance
func NewSupplyRepository(db *gorm.DB) *SupplyRepository {
	return &SupplyRepository{db: db}
}

// CreateInvoiceRef inserts an invoice reference
func (r *SupplyRepository) CreateInvoiceRef(ctx context.Context, ref *domain.SupplyInvoiceRef) error {
	return r.db.WithContext(ctx).Create(ref).Error
}

// GetInvoiceRef retrieves an invoice reference by id
func (r *SupplyRepository) GetInvoiceRef(ctx context.Context, id int64) (*domain.SupplyInvoiceRef, error) {
	var ref domain.SupplyInvoiceRef
	if err := r.db.WithContext(ctx).First(&ref, id).Error; err != nil {
		return nil, err
	}
	return &ref, nil
}

// ListInvoiceRefs returns invoice references, optionally of one supply case
func (r *SupplyRepository) ListInvoiceRefs(ctx context.Context, supplyCaseID *int64) ([]domain.SupplyInvoiceRef, error) {
	query := r.db.WithContext(ctx).Model(&domain.SupplyInvoiceRef{})
	if supplyCaseID != nil {
		query = query.Where("supply_case_id = ?", *supplyCaseID)
	}
	var refs []domain.SupplyInvoiceRef
	err := query.Order("id ASC").Find(&refs).Error
	return refs, err
}

// SaveInvoiceRef persists an invoice reference
func (r *SupplyRepository) SaveInvoiceRef(ctx context.Context, ref *domain.SupplyInvoiceRef) error {
	return r.db.WithContext(ctx).Save(ref).Error
}

// DeleteInvoiceRef removes an invoice reference
func (r *SupplyRepository) DeleteInvoiceRef(ctx context.Context, id int64) error {
	return deleteByID(r.db.WithContext(ctx), &domain.SupplyInvoiceRef{}, id)
}

// CreateDelivery inserts a delivery
func (r *SupplyRepository) CreateDelivery(ctx context.Context, d *domain.SupplyDelivery) error {
	return r.db.WithContext(ctx).Create(d).Error
}

// GetDelivery retrieves a delivery by id
func (r *SupplyRepository) GetDelivery(ctx context.Context, id int64) (*domain.SupplyDelivery, error) {
	var d domain.SupplyDelivery
	if err := r.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDeliveries returns deliveries ordered by planned date
func (r *SupplyRepository) ListDeliveries(ctx context.Context, supplyCaseID *int64) ([]domain.SupplyDelivery, error) {
	query := r.db.WithContext(ctx).Model(&domain.SupplyDelivery{})
	if supplyCaseID != nil {
		query = query.Where("supply_case_id = ?", *supplyCaseID)
	}
	var ds []domain.SupplyDelivery
	err := query.Order("planned_date ASC").Order("id ASC").Find(&ds).Error
	return ds, err
}

// SaveDelivery persists a delivery
func (r *SupplyRepository) SaveDelivery(ctx context.Context, d *domain.SupplyDelivery) error {
	return r.db.WithContext(ctx).Save(d).Error
}

// DeleteDelivery removes a delivery
func (r *SupplyRepository) DeleteDelivery(ctx context.Context, id int64) error {
	return deleteByID(r.db.WithContext(ctx), &domain.SupplyDelivery{}, id)
}

func deleteByID(db *gorm.DB, model interface{}, id int64) error {
	result := db.Delete(model, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
