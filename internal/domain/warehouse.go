package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// QtyScale is the number of fractional digits kept for stock quantities
const QtyScale = 3

// QtyPrecision is the total number of digits of the qty column
const QtyPrecision = 14

// MaxQtyMagnitude is the first absolute quantity the qty column cannot hold
var MaxQtyMagnitude = decimal.New(1, QtyPrecision-QtyScale)

// LocationKind classifies a stock location
type LocationKind string

const (
	LocationWarehouse LocationKind = "warehouse"
	LocationObject    LocationKind = "object"
	LocationVirtual   LocationKind = "virtual"
)

// StockLocation is a place where stock is counted
type StockLocation struct {
	BaseModel
	Kind        LocationKind `gorm:"type:varchar(16);not null;default:'warehouse'" json:"kind"`
	Title       string       `gorm:"type:varchar(200);not null" json:"title"`
	ErpObjectID *int64       `gorm:"index" json:"erp_object_id,omitempty"`
}

// MoveType selects which endpoints a stock move touches
type MoveType string

const (
	MoveIn       MoveType = "IN"
	MoveOut      MoveType = "OUT"
	MoveTransfer MoveType = "TRANSFER"
)

// ValidateEndpoints checks the per-type endpoint rules:
// IN has only a destination, OUT only a source, TRANSFER both and distinct.
func (t MoveType) ValidateEndpoints(from, to *int64) error {
	verr := &ValidationError{}
	switch t {
	case MoveIn:
		if to == nil {
			verr.Add("to_location", "required for IN moves")
		}
		if from != nil {
			verr.Add("from_location", "must be empty for IN moves")
		}
	case MoveOut:
		if from == nil {
			verr.Add("from_location", "required for OUT moves")
		}
		if to != nil {
			verr.Add("to_location", "must be empty for OUT moves")
		}
	case MoveTransfer:
		if from == nil {
			verr.Add("from_location", "required for TRANSFER moves")
		}
		if to == nil {
			verr.Add("to_location", "required for TRANSFER moves")
		}
		if from != nil && to != nil && *from == *to {
			verr.Add("to_location", "must differ from from_location")
		}
	default:
		verr.Add("move_type", "must be one of IN, OUT, TRANSFER")
	}
	return verr.OrNil()
}

// StockMove records goods entering, leaving or moving between locations
type StockMove struct {
	BaseModel
	MoveType       MoveType        `gorm:"type:varchar(16);not null" json:"move_type"`
	FromLocationID *int64          `gorm:"index" json:"from_location,omitempty"`
	ToLocationID   *int64          `gorm:"index" json:"to_location,omitempty"`
	Reason         string          `gorm:"type:varchar(500)" json:"reason"`
	CreatedByID    *int64          `json:"created_by_id,omitempty"`
	CreatedBy      string          `gorm:"type:varchar(150)" json:"created_by"`
	Lines          []StockMoveLine `gorm:"foreignKey:MoveID" json:"lines,omitempty"`
	FromLocation   *StockLocation  `gorm:"foreignKey:FromLocationID;constraint:OnDelete:RESTRICT" json:"-"`
	ToLocation     *StockLocation  `gorm:"foreignKey:ToLocationID;constraint:OnDelete:RESTRICT" json:"-"`
}

// StockMoveLine is a single product quantity within a move
type StockMoveLine struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	MoveID       int64           `gorm:"not null;index" json:"move_id"`
	ErpProductID int64           `gorm:"not null;index" json:"erp_product_id"`
	ProductName  string          `gorm:"type:varchar(300)" json:"product_name"`
	Unit         string          `gorm:"type:varchar(32)" json:"unit"`
	Qty          decimal.Decimal `gorm:"type:numeric(14,3);not null" json:"qty"`
	CreatedAt    time.Time       `gorm:"not null" json:"created_at"`
}

// BalanceRow is the projected quantity of one product at one location
type BalanceRow struct {
	ErpProductID int64  `json:"erp_product_id"`
	ProductName  string `json:"product_name"`
	Unit         string `json:"unit"`
	Qty          string `json:"qty"`
	Ahhtung      bool   `json:"ahhtung"`
}

// NewBalanceRow renders a signed quantity and flags it when negative
func NewBalanceRow(productID int64, name, unit string, qty decimal.Decimal) BalanceRow {
	return BalanceRow{
		ErpProductID: productID,
		ProductName:  name,
		Unit:         unit,
		Qty:          qty.StringFixed(QtyScale),
		Ahhtung:      qty.IsNegative(),
	}
}
