package service

import (
	"context"
	"fmt"
	"io"

	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/repository"
	"github.com/stroyteh/kanban-service/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AttachmentService stores card files and records attachment_added events
type AttachmentService struct {
	db             *gorm.DB
	attachmentRepo *repository.AttachmentRepository
	cardRepo       *repository.CardRepository
	events         *eventLog
	storage        storage.Storage
	logger         *zap.Logger
}

// NewAttachmentService creates a new attachment service instance
func NewAttachmentService(
	db *gorm.DB,
	attachmentRepo *repository.AttachmentRepository,
	cardRepo *repository.CardRepository,
	eventRepo *repository.EventRepository,
	publisher EventPublisher,
	storage storage.Storage,
	logger *zap.Logger,
) *AttachmentService {
	return &AttachmentService{
		db:             db,
		attachmentRepo: attachmentRepo,
		cardRepo:       cardRepo,
		events:         newEventLog(eventRepo, publisher, logger),
		storage:        storage,
		logger:         logger,
	}
}

// Upload stores a file for a card
func (s *AttachmentService) Upload(ctx context.Context, cardID int64, filename, contentType string, data io.Reader, actor domain.Actor) (*domain.Attachment, error) {
	card, err := s.cardRepo.GetByID(ctx, nil, cardID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.NewValidationError("card_id", "card does not exist")
		}
		return nil, err
	}
	if card.IsArchived() {
		return nil, conflict("card %d is archived", cardID)
	}

	storagePath, size, err := s.storage.Upload(ctx, filename, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	attachment := &domain.Attachment{
		CardID:       cardID,
		FileName:     filename,
		ContentType:  contentType,
		Size:         size,
		StoragePath:  storagePath,
		UploadedByID: actor.UserID,
		UploadedBy:   actor.Username,
	}

	var event *domain.CardEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.attachmentRepo.Create(ctx, tx, attachment); err != nil {
			return err
		}
		event, err = s.events.append(ctx, tx, card, domain.EventAttachmentAdded, map[string]interface{}{
			domain.DataAttachmentID: attachment.ID,
			"file_name":             filename,
		}, actor)
		return err
	})
	if err != nil {
		if delErr := s.storage.Delete(ctx, storagePath); delErr != nil {
			s.logger.Warn("failed to cleanup file from storage after DB error",
				zap.Error(delErr),
				zap.String("storage_path", storagePath),
			)
		}
		return nil, fmt.Errorf("failed to create attachment record: %w", err)
	}
	s.events.publish(event)
	return attachment, nil
}

func (s *AttachmentService) Get(ctx context.Context, id int64) (*domain.Attachment, error) {
	a, err := s.attachmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "attachment")
	}
	return a, nil
}

func (s *AttachmentService) ListByCard(ctx context.Context, cardID int64) ([]domain.Attachment, error) {
	return s.attachmentRepo.ListByCard(ctx, cardID)
}

// Download returns the attachment record and a reader over its content
func (s *AttachmentService) Download(ctx context.Context, id int64) (*domain.Attachment, io.ReadCloser, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	reader, err := s.storage.Download(ctx, a.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download file: %w", err)
	}
	return a, reader, nil
}

// Delete removes an attachment from storage and database
func (s *AttachmentService) Delete(ctx context.Context, id int64) error {
	a, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, a.StoragePath); err != nil {
		s.logger.Warn("failed to delete file from storage",
			zap.Error(err),
			zap.String("storage_path", a.StoragePath),
			zap.Int64("attachment_id", id),
		)
	}
	return translate(s.attachmentRepo.Delete(ctx, id), "attachment")
}
