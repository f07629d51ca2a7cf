package repository

import (
	"context"

	"github.com/stroyteh/kanban-service/internal/domain"
	"gorm.io/gorm"
)

type AttachmentRepository struct {
	db *gorm.DB
}

func NewAttachmentRepository(db *gorm.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

func (r *AttachmentRepository) Create(ctx context.Context, tx *gorm.DB, a *domain.Attachment) error {
	return conn(r.db, tx).WithContext(ctx).Create(a).Error
}

func (r *AttachmentRepository) GetByID(ctx context.Context, id int64) (*domain.Attachment, error) {
	var a domain.Attachment
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// ListByCard returns all attachments of a card, newest first
func (r *AttachmentRepository) ListByCard(ctx context.Context, cardID int64) ([]domain.Attachment, error) {
	var items []domain.Attachment
	err := r.db.WithContext(ctx).
		Where("card_id = ?", cardID).
		Order("created_at DESC").Order("id DESC").
		Find(&items).Error
	return items, err
}

// CountByCard returns the number of attachments of a card
func (r *AttachmentRepository) CountByCard(ctx context.Context, cardID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Attachment{}).
		Where("card_id = ?", cardID).
		Count(&count).Error
	return count, err
}

func (r *AttachmentRepository) Delete(ctx context.Context, id int64) error {
	return deleteByID(r.db.WithContext(ctx), &domain.Attachment{}, id)
}
