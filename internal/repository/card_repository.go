package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/stroyteh/kanban-service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CardRepository handles card persistence
type CardRepository struct {
	db *gorm.DB
}

// NewCardRepository creates a new card repository instance
func NewCardRepository(db *gorm.DB) *CardRepository {
	return &CardRepository{db: db}
}

// Create inserts a card
func (r *CardRepository) Create(ctx context.Context, tx *gorm.DB, card *domain.Card) error {
	return conn(r.db, tx).WithContext(ctx).Create(card).Error
}

// GetByID retrieves a card with its column
func (r *CardRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*domain.Card, error) {
	var card domain.Card
	if err := conn(r.db, tx).WithContext(ctx).Preload("Column").First(&card, id).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// GetForUpdate loads a card and takes a row lock for the rest of tx.
// Concurrent moves of the same card are serialized here.
func (r *CardRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*domain.Card, error) {
	var card domain.Card
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&card, id).Error
	if err != nil {
		return nil, err
	}
	var column domain.Column
	if err := tx.WithContext(ctx).First(&column, card.ColumnID).Error; err != nil {
		return nil, fmt.Errorf("failed to load card column: %w", err)
	}
	card.Column = &column
	return &card, nil
}

// List returns a page of cards matching filters, newest first
func (r *CardRepository) List(ctx context.Context, filters domain.CardFilters, page Page) ([]domain.Card, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.Card{})

	if filters.BoardID != nil {
		query = query.Where("cards.board_id = ?", *filters.BoardID)
	}
	if filters.Type != nil {
		query = query.Where("cards.type = ?", *filters.Type)
	}
	if filters.ColumnKey != "" {
		query = query.Joins("JOIN columns ON columns.id = cards.column_id").
			Where("columns.key = ?", filters.ColumnKey)
	}
	if !filters.IncludeArchived {
		query = query.Where("cards.archived_at IS NULL")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count cards: %w", err)
	}

	var cards []domain.Card
	err := page.Apply(query).
		Preload("Column").
		Order("cards.id DESC").
		Find(&cards).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list cards: %w", err)
	}
	return cards, total, nil
}

// UpdateFields writes the given columns of a card
func (r *CardRepository) UpdateFields(ctx context.Context, tx *gorm.DB, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now().UTC()
	result := conn(r.db, tx).WithContext(ctx).Model(&domain.Card{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update card: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListOverdueCandidates returns active object tasks whose due date is before day
func (r *CardRepository) ListOverdueCandidates(ctx context.Context, day time.Time) ([]domain.Card, error) {
	var cards []domain.Card
	err := r.db.WithContext(ctx).
		Where("type = ? AND archived_at IS NULL AND due_date IS NOT NULL AND due_date < ?",
			domain.CardTypeObjectTask, day).
		Order("id ASC").
		Find(&cards).Error
	return cards, err
}
