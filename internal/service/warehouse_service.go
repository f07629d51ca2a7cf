package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WarehouseService maintains the stock move ledger. Balances are projected on
// demand from move lines; negative balances are allowed and flagged.
type WarehouseService struct {
	db     *gorm.DB
	repo   *repository.WarehouseRepository
	logger *zap.Logger
}

// NewWarehouseService creates a new warehouse service instance
func NewWarehouseService(db *gorm.DB, repo *repository.WarehouseRepository, logger *zap.Logger) *WarehouseService {
	return &WarehouseService{db: db, repo: repo, logger: logger}
}

func (s *WarehouseService) CreateLocation(ctx context.Context, req *domain.CreateLocationRequest) (*domain.StockLocation, error) {
	kind := req.Kind
	if kind == "" {
		kind = domain.LocationWarehouse
	}
	loc := &domain.StockLocation{Kind: kind, Title: req.Title, ErpObjectID: req.ErpObjectID}
	if err := s.repo.CreateLocation(ctx, loc); err != nil {
		return nil, fmt.Errorf("failed to create location: %w", err)
	}
	return loc, nil
}

func (s *WarehouseService) GetLocation(ctx context.Context, id int64) (*domain.StockLocation, error) {
	loc, err := s.repo.GetLocation(ctx, nil, id)
	if err != nil {
		return nil, translate(err, "location")
	}
	return loc, nil
}

func (s *WarehouseService) ListLocations(ctx context.Context, kind *domain.LocationKind) ([]domain.StockLocation, error) {
	return s.repo.ListLocations(ctx, kind)
}

func (s *WarehouseService) UpdateLocation(ctx context.Context, id int64, req *domain.UpdateLocationRequest) (*domain.StockLocation, error) {
	loc, err := s.GetLocation(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Kind != nil {
		loc.Kind = *req.Kind
	}
	if req.Title != nil {
		loc.Title = *req.Title
	}
	if req.ErpObjectID != nil {
		loc.ErpObjectID = req.ErpObjectID
	}
	if err := s.repo.SaveLocation(ctx, loc); err != nil {
		return nil, fmt.Errorf("failed to update location: %w", err)
	}
	return loc, nil
}

// DeleteLocation removes a location that holds no stock and no move history
func (s *WarehouseService) DeleteLocation(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.repo.GetLocation(ctx, tx, id); err != nil {
			return translate(err, "location")
		}
		lines, err := s.repo.ListLedgerLines(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, row := range projectBalances(id, lines) {
			if row.Qty != decimal.Zero.StringFixed(domain.QtyScale) {
				return conflict("location has non-zero balance for product %d", row.ErpProductID)
			}
		}
		if len(lines) > 0 {
			return conflict("location is referenced by stock moves")
		}
		return s.repo.DeleteLocation(ctx, tx, id)
	})
}

// CreateMove validates endpoints and lines and writes the move in one transaction
func (s *WarehouseService) CreateMove(ctx context.Context, req *domain.CreateMoveRequest, actor domain.Actor) (*domain.StockMove, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	move := &domain.StockMove{
		MoveType:       req.MoveType,
		FromLocationID: req.FromLocation,
		ToLocationID:   req.ToLocation,
		Reason:         req.Reason,
		CreatedByID:    actor.UserID,
		CreatedBy:      actor.Username,
	}
	for _, l := range req.Lines {
		move.Lines = append(move.Lines, domain.StockMoveLine{
			ErpProductID: l.ErpProductID,
			ProductName:  l.ProductName,
			Unit:         l.Unit,
			Qty:          l.Qty,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		verr := &domain.ValidationError{}
		for field, id := range map[string]*int64{"from_location": req.FromLocation, "to_location": req.ToLocation} {
			if id == nil {
				continue
			}
			if _, err := s.repo.GetLocation(ctx, tx, *id); err != nil {
				if !repository.IsNotFound(err) {
					return err
				}
				verr.Add(field, "location does not exist")
			}
		}
		if err := verr.OrNil(); err != nil {
			return err
		}
		return s.repo.CreateMove(ctx, tx, move)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock move created",
		zap.Int64("move_id", move.ID),
		zap.String("move_type", string(move.MoveType)),
		zap.Int("lines", len(move.Lines)),
	)
	return move, nil
}

func (s *WarehouseService) GetMove(ctx context.Context, id int64) (*domain.StockMove, error) {
	move, err := s.repo.GetMove(ctx, id)
	if err != nil {
		return nil, translate(err, "stock move")
	}
	return move, nil
}

func (s *WarehouseService) ListMoves(ctx context.Context, filters domain.MoveFilters, page repository.Page) (*domain.PaginatedResponse[domain.StockMove], error) {
	moves, total, err := s.repo.ListMoves(ctx, filters, page)
	if err != nil {
		return nil, err
	}
	return paginated(moves, total, page), nil
}

// Balances returns the signed quantity per product at a location, sorted by product id
func (s *WarehouseService) Balances(ctx context.Context, locationID int64) ([]domain.BalanceRow, error) {
	if _, err := s.GetLocation(ctx, locationID); err != nil {
		return nil, err
	}
	lines, err := s.repo.ListLedgerLines(ctx, nil, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	return projectBalances(locationID, lines), nil
}

// projectBalances sums signed contributions: +qty where the location is the
// destination, -qty where it is the source. Name and unit come from the latest line.
func projectBalances(locationID int64, lines []repository.LedgerLine) []domain.BalanceRow {
	type acc struct {
		qty  decimal.Decimal
		name string
		unit string
	}
	byProduct := make(map[int64]*acc)
	for _, l := range lines {
		a, ok := byProduct[l.ErpProductID]
		if !ok {
			a = &acc{qty: decimal.Zero}
			byProduct[l.ErpProductID] = a
		}
		if l.ToLocationID != nil && *l.ToLocationID == locationID {
			a.qty = a.qty.Add(l.Qty)
		}
		if l.FromLocationID != nil && *l.FromLocationID == locationID {
			a.qty = a.qty.Sub(l.Qty)
		}
		a.name = l.ProductName
		a.unit = l.Unit
	}

	ids := make([]int64, 0, len(byProduct))
	for id := range byProduct {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows := make([]domain.BalanceRow, 0, len(ids))
	for _, id := range ids {
		a := byProduct[id]
		rows = append(rows, domain.NewBalanceRow(id, a.name, a.unit, a.qty))
	}
	return rows
}
