package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stroyteh/kanban-service/internal/domain"
	"gorm.io/gorm"
)

// WarehouseRepository handles stock locations and the move ledger
type WarehouseRepository struct {
	db *gorm.DB
}

// NewWarehouseRepository creates a new warehouse repository instance
func NewWarehouseRepository(db *gorm.DB) *WarehouseRepository {
	return &WarehouseRepository{db: db}
}

// CreateLocation inserts a location
func (r *WarehouseRepository) CreateLocation(ctx context.Context, loc *domain.StockLocation) error {
	return r.db.WithContext(ctx).Create(loc).Error
}

// GetLocation retrieves a location by id
func (r *WarehouseRepository) GetLocation(ctx context.Context, tx *gorm.DB, id int64) (*domain.StockLocation, error) {
	var loc domain.StockLocation
	if err := conn(r.db, tx).WithContext(ctx).First(&loc, id).Error; err != nil {
		return nil, err
	}
	return &loc, nil
}

// ListLocations returns locations ordered by title
func (r *WarehouseRepository) ListLocations(ctx context.Context, kind *domain.LocationKind) ([]domain.StockLocation, error) {
	query := r.db.WithContext(ctx).Model(&domain.StockLocation{})
	if kind != nil {
		query = query.Where("kind = ?", *kind)
	}
	var locs []domain.StockLocation
	err := query.Order("title ASC").Order("id ASC").Find(&locs).Error
	return locs, err
}

// SaveLocation persists a location
func (r *WarehouseRepository) SaveLocation(ctx context.Context, loc *domain.StockLocation) error {
	return r.db.WithContext(ctx).Save(loc).Error
}

// DeleteLocation removes a location
func (r *WarehouseRepository) DeleteLocation(ctx context.Context, tx *gorm.DB, id int64) error {
	return deleteByID(conn(r.db, tx).WithContext(ctx), &domain.StockLocation{}, id)
}

// CreateMove inserts a move header and its lines in tx
func (r *WarehouseRepository) CreateMove(ctx context.Context, tx *gorm.DB, move *domain.StockMove) error {
	db := conn(r.db, tx).WithContext(ctx)
	lines := move.Lines
	move.Lines = nil
	if err := db.Create(move).Error; err != nil {
		return fmt.Errorf("failed to insert stock move: %w", err)
	}
	for i := range lines {
		lines[i].MoveID = move.ID
	}
	if err := db.Create(&lines).Error; err != nil {
		return fmt.Errorf("failed to insert stock move lines: %w", err)
	}
	move.Lines = lines
	return nil
}

// GetMove retrieves a move with its lines
func (r *WarehouseRepository) GetMove(ctx context.Context, id int64) (*domain.StockMove, error) {
	var move domain.StockMove
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&move, id).Error
	if err != nil {
		return nil, err
	}
	return &move, nil
}

// ListMoves returns a page of moves, newest first. A location filter matches
// either endpoint.
func (r *WarehouseRepository) ListMoves(ctx context.Context, filters domain.MoveFilters, page Page) ([]domain.StockMove, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.StockMove{})
	if filters.LocationID != nil {
		query = query.Where("from_location_id = ? OR to_location_id = ?", *filters.LocationID, *filters.LocationID)
	}
	if filters.MoveType != nil {
		query = query.Where("move_type = ?", *filters.MoveType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var moves []domain.StockMove
	err := page.Apply(query).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("id DESC").
		Find(&moves).Error
	return moves, total, err
}

// LedgerLine is a move line joined with the endpoints of its move
type LedgerLine struct {
	LineID         int64
	MoveType       domain.MoveType
	FromLocationID *int64
	ToLocationID   *int64
	ErpProductID   int64
	ProductName    string
	Unit           string
	Qty            decimal.Decimal
}

// ListLedgerLines returns every line of every move touching a location, in
// line id order
func (r *WarehouseRepository) ListLedgerLines(ctx context.Context, tx *gorm.DB, locationID int64) ([]LedgerLine, error) {
	var rows []LedgerLine
	err := conn(r.db, tx).WithContext(ctx).
		Table("stock_move_lines AS l").
		Select("l.id AS line_id, m.move_type, m.from_location_id, m.to_location_id, "+
			"l.erp_product_id, l.product_name, l.unit, l.qty").
		Joins("JOIN stock_moves AS m ON m.id = l.move_id").
		Where("m.from_location_id = ? OR m.to_location_id = ?", locationID, locationID).
		Order("l.id ASC").
		Scan(&rows).Error
	return rows, err
}
