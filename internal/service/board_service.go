package service

import (
	"context"
	"fmt"

	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BoardService handles boards and columns. Board level mutations emit no card events.
type BoardService struct {
	db        *gorm.DB
	boardRepo *repository.BoardRepository
	logger    *zap.Logger
}

// NewBoardService creates a new board service instance
func NewBoardService(db *gorm.DB, boardRepo *repository.BoardRepository, logger *zap.Logger) *BoardService {
	return &BoardService{
		db:        db,
		boardRepo: boardRepo,
		logger:    logger,
	}
}

// CreateBoard creates a board with a unique key
func (s *BoardService) CreateBoard(ctx context.Context, req *domain.CreateBoardRequest) (*domain.Board, error) {
	board := &domain.Board{Key: req.Key, Title: req.Title}
	if err := s.boardRepo.Create(ctx, board); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, conflict("board with key %q already exists", req.Key)
		}
		return nil, fmt.Errorf("failed to create board: %w", err)
	}

	s.logger.Info("board created", zap.Int64("board_id", board.ID), zap.String("key", board.Key))
	return board, nil
}

// GetBoard retrieves a board by id
func (s *BoardService) GetBoard(ctx context.Context, id int64) (*domain.Board, error) {
	board, err := s.boardRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "board")
	}
	return board, nil
}

// ListBoards returns all boards
func (s *BoardService) ListBoards(ctx context.Context) ([]domain.Board, error) {
	return s.boardRepo.List(ctx)
}

// UpdateBoard changes the title of a board
func (s *BoardService) UpdateBoard(ctx context.Context, id int64, req *domain.UpdateBoardRequest) (*domain.Board, error) {
	if err := s.boardRepo.UpdateTitle(ctx, id, req.Title); err != nil {
		return nil, translate(err, "board")
	}
	return s.GetBoard(ctx, id)
}

// DeleteBoard removes an empty board together with its columns and rules
func (s *BoardService) DeleteBoard(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := s.boardRepo.CountCards(ctx, tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return conflict("board has %d cards", n)
		}
		if err := s.boardRepo.Delete(ctx, tx, id); err != nil {
			return translate(err, "board")
		}
		return nil
	})
}

// CreateColumn adds a column to a board. The key is unique per board.
func (s *BoardService) CreateColumn(ctx context.Context, req *domain.CreateColumnRequest) (*domain.Column, error) {
	if _, err := s.boardRepo.GetByID(ctx, req.BoardID); err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.NewValidationError("board_id", "board does not exist")
		}
		return nil, err
	}

	column := &domain.Column{
		BoardID: req.BoardID,
		Key:     req.Key,
		Title:   req.Title,
		Order:   req.Order,
	}
	if err := s.boardRepo.CreateColumn(ctx, column); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, conflict("column with key %q already exists on this board", req.Key)
		}
		return nil, fmt.Errorf("failed to create column: %w", err)
	}
	return column, nil
}

// GetColumn retrieves a column by id
func (s *BoardService) GetColumn(ctx context.Context, id int64) (*domain.Column, error) {
	column, err := s.boardRepo.GetColumn(ctx, nil, id)
	if err != nil {
		return nil, translate(err, "column")
	}
	return column, nil
}

// ListColumns returns the columns of a board ordered by (order, key)
func (s *BoardService) ListColumns(ctx context.Context, boardID int64) ([]domain.Column, error) {
	return s.boardRepo.ListColumns(ctx, boardID)
}

// UpdateColumn changes title and/or order of a column
func (s *BoardService) UpdateColumn(ctx context.Context, id int64, req *domain.UpdateColumnRequest) (*domain.Column, error) {
	column, err := s.GetColumn(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		column.Title = *req.Title
	}
	if req.Order != nil {
		column.Order = *req.Order
	}
	if err := s.boardRepo.UpdateColumn(ctx, column); err != nil {
		return nil, fmt.Errorf("failed to update column: %w", err)
	}
	return column, nil
}

// ReorderColumns assigns new orders to columns of one board in a single
// transaction. Any column outside the board aborts the whole update.
func (s *BoardService) ReorderColumns(ctx context.Context, req *domain.ReorderColumnsRequest) ([]domain.Column, error) {
	seen := make(map[int64]bool, len(req.Columns))
	for _, c := range req.Columns {
		if seen[c.ColumnID] {
			return nil, domain.NewValidationError("columns", fmt.Sprintf("column %d listed twice", c.ColumnID))
		}
		seen[c.ColumnID] = true
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range req.Columns {
			n, err := s.boardRepo.SetColumnOrder(ctx, tx, req.BoardID, c.ColumnID, c.Order)
			if err != nil {
				return fmt.Errorf("failed to reorder columns: %w", err)
			}
			if n == 0 {
				return domain.NewValidationError("columns", fmt.Sprintf("column %d does not belong to board %d", c.ColumnID, req.BoardID))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.boardRepo.ListColumns(ctx, req.BoardID)
}

// DeleteColumn removes a column that no card references, archived cards included
func (s *BoardService) DeleteColumn(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.boardRepo.GetColumn(ctx, tx, id); err != nil {
			return translate(err, "column")
		}
		n, err := s.boardRepo.CountColumnCards(ctx, tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return conflict("column is referenced by %d cards", n)
		}
		return s.boardRepo.DeleteColumn(ctx, tx, id)
	})
}
