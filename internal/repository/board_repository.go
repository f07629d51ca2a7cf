package repository

import (
	"context"
	"fmt"

	"github.com/stroyteh/kanban-service/internal/domain"
	"gorm.io/gorm"
)

// BoardRepository handles boards and their columns
type BoardRepository struct {
	db *gorm.DB
}

// NewBoardRepository creates a new board repository instance
func NewBoardRepository(db *gorm.DB) *BoardRepository {
	return &BoardRepository{db: db}
}

// Create inserts a board
func (r *BoardRepository) Create(ctx context.Context, board *domain.Board) error {
	return r.db.WithContext(ctx).Create(board).Error
}

// GetByID retrieves a board by id
func (r *BoardRepository) GetByID(ctx context.Context, id int64) (*domain.Board, error) {
	var board domain.Board
	if err := r.db.WithContext(ctx).First(&board, id).Error; err != nil {
		return nil, err
	}
	return &board, nil
}

// GetByKey retrieves a board by its unique key
func (r *BoardRepository) GetByKey(ctx context.Context, key string) (*domain.Board, error) {
	var board domain.Board
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&board).Error; err != nil {
		return nil, err
	}
	return &board, nil
}

// List returns all boards ordered by key
func (r *BoardRepository) List(ctx context.Context) ([]domain.Board, error) {
	var boards []domain.Board
	err := r.db.WithContext(ctx).Order("key ASC").Find(&boards).Error
	return boards, err
}

// UpdateTitle changes the board title; the key is immutable
func (r *BoardRepository) UpdateTitle(ctx context.Context, id int64, title string) error {
	result := r.db.WithContext(ctx).Model(&domain.Board{}).Where("id = ?", id).Update("title", title)
	if result.Error != nil {
		return fmt.Errorf("failed to update board: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes a board together with its columns and rules
func (r *BoardRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	db := conn(r.db, tx).WithContext(ctx)
	if err := db.Where("board_id = ?", id).Delete(&domain.Rule{}).Error; err != nil {
		return fmt.Errorf("failed to delete board rules: %w", err)
	}
	if err := db.Where("board_id = ?", id).Delete(&domain.Column{}).Error; err != nil {
		return fmt.Errorf("failed to delete board columns: %w", err)
	}
	result := db.Delete(&domain.Board{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete board: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountCards counts cards on a board, archived included
func (r *BoardRepository) CountCards(ctx context.Context, tx *gorm.DB, boardID int64) (int64, error) {
	var n int64
	err := conn(r.db, tx).WithContext(ctx).Model(&domain.Card{}).Where("board_id = ?", boardID).Count(&n).Error
	return n, err
}

// CreateColumn inserts a column
func (r *BoardRepository) CreateColumn(ctx context.Context, column *domain.Column) error {
	return r.db.WithContext(ctx).Create(column).Error
}

// GetColumn retrieves a column by id
func (r *BoardRepository) GetColumn(ctx context.Context, tx *gorm.DB, id int64) (*domain.Column, error) {
	var column domain.Column
	if err := conn(r.db, tx).WithContext(ctx).First(&column, id).Error; err != nil {
		return nil, err
	}
	return &column, nil
}

// GetColumnByKey retrieves a column of a board by key
func (r *BoardRepository) GetColumnByKey(ctx context.Context, tx *gorm.DB, boardID int64, key string) (*domain.Column, error) {
	var column domain.Column
	err := conn(r.db, tx).WithContext(ctx).
		Where("board_id = ? AND key = ?", boardID, key).
		First(&column).Error
	if err != nil {
		return nil, err
	}
	return &column, nil
}

// ListColumns returns the columns of a board ordered by (order, key)
func (r *BoardRepository) ListColumns(ctx context.Context, boardID int64) ([]domain.Column, error) {
	var columns []domain.Column
	err := r.db.WithContext(ctx).
		Where("board_id = ?", boardID).
		Order("sort_order ASC").Order("key ASC").
		Find(&columns).Error
	return columns, err
}

// UpdateColumn persists title and order of a column
func (r *BoardRepository) UpdateColumn(ctx context.Context, column *domain.Column) error {
	return r.db.WithContext(ctx).Model(column).Updates(map[string]interface{}{
		"title":      column.Title,
		"sort_order": column.Order,
	}).Error
}

// SetColumnOrder updates the order of a single column of a board
func (r *BoardRepository) SetColumnOrder(ctx context.Context, tx *gorm.DB, boardID, columnID int64, order int) (int64, error) {
	result := conn(r.db, tx).WithContext(ctx).
		Model(&domain.Column{}).
		Where("id = ? AND board_id = ?", columnID, boardID).
		Update("sort_order", order)
	return result.RowsAffected, result.Error
}

// CountColumnCards counts cards referencing a column, archived included
func (r *BoardRepository) CountColumnCards(ctx context.Context, tx *gorm.DB, columnID int64) (int64, error) {
	var n int64
	err := conn(r.db, tx).WithContext(ctx).Model(&domain.Card{}).Where("column_id = ?", columnID).Count(&n).Error
	return n, err
}

// DeleteColumn removes a column
func (r *BoardRepository) DeleteColumn(ctx context.Context, tx *gorm.DB, id int64) error {
	return conn(r.db, tx).WithContext(ctx).Delete(&domain.Column{}, id).Error
}
