package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Overlay is a typed 1:1 sidecar record of a card. The overlay type must
// match the card type; readers dispatch on Card.Type.
type Overlay interface {
	OverlayType() CardType
	OverlayCardID() int64
}

// SupplyCaseStatus tracks the procurement state of a supply case
type SupplyCaseStatus string

const (
	SupplyCaseStatusNew       SupplyCaseStatus = "new"
	SupplyCaseStatusOrdered   SupplyCaseStatus = "ordered"
	SupplyCaseStatusInvoiced  SupplyCaseStatus = "invoiced"
	SupplyCaseStatusDelivered SupplyCaseStatus = "delivered"
	SupplyCaseStatusClosed    SupplyCaseStatus = "closed"
)

// SupplyCase carries procurement fields for supply_case cards
type SupplyCase struct {
	BaseModel
	CardID            int64            `gorm:"not null;uniqueIndex" json:"card_id"`
	ErpObjectID       *int64           `json:"erp_object_id,omitempty"`
	ErpCounterpartyID *int64           `json:"erp_counterparty_id,omitempty"`
	ObjectLabel       string           `gorm:"type:varchar(300)" json:"object_label"`
	CounterpartyLabel string           `gorm:"type:varchar(300)" json:"counterparty_label"`
	Status            SupplyCaseStatus `gorm:"type:varchar(32);not null;default:'new'" json:"status"`
	Card              *Card            `gorm:"foreignKey:CardID;constraint:OnDelete:CASCADE" json:"-"`
}

func (SupplyCase) OverlayType() CardType  { return CardTypeSupplyCase }
func (s SupplyCase) OverlayCardID() int64 { return s.CardID }

// SupplyInvoiceRef links a supply case to an invoice registered in the ERP
type SupplyInvoiceRef struct {
	BaseModel
	SupplyCaseID int64           `gorm:"not null;index" json:"supply_case_id"`
	ErpInvoiceID *int64          `json:"erp_invoice_id,omitempty"`
	Number       string          `gorm:"type:varchar(100);not null" json:"number"`
	Amount       decimal.Decimal `gorm:"type:numeric(16,2);not null;default:0" json:"amount"`
	IssuedAt     *time.Time      `gorm:"type:date" json:"issued_at,omitempty"`
	SupplyCase   *SupplyCase     `gorm:"foreignKey:SupplyCaseID;constraint:OnDelete:CASCADE" json:"-"`
}

// DeliveryStatus is the state of a planned delivery
type DeliveryStatus string

const (
	DeliveryStatusPlanned   DeliveryStatus = "planned"
	DeliveryStatusShipped   DeliveryStatus = "shipped"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusCancelled DeliveryStatus = "cancelled"
)

// SupplyDelivery is a delivery scheduled against a supply case
type SupplyDelivery struct {
	BaseModel
	SupplyCaseID int64          `gorm:"not null;index" json:"supply_case_id"`
	PlannedDate  *time.Time     `gorm:"type:date" json:"planned_date,omitempty"`
	ActualDate   *time.Time     `gorm:"type:date" json:"actual_date,omitempty"`
	Status       DeliveryStatus `gorm:"type:varchar(32);not null;default:'planned'" json:"status"`
	Note         string         `gorm:"type:text" json:"note"`
	SupplyCase   *SupplyCase    `gorm:"foreignKey:SupplyCaseID;constraint:OnDelete:CASCADE" json:"-"`
}

// CommercialCase carries contract fields for commercial_case cards
type CommercialCase struct {
	BaseModel
	CardID            int64           `gorm:"not null;uniqueIndex" json:"card_id"`
	ErpCounterpartyID *int64          `json:"erp_counterparty_id,omitempty"`
	ErpContractID     *int64          `json:"erp_contract_id,omitempty"`
	CounterpartyLabel string          `gorm:"type:varchar(300)" json:"counterparty_label"`
	ContractLabel     string          `gorm:"type:varchar(300)" json:"contract_label"`
	Amount            decimal.Decimal `gorm:"type:numeric(16,2);not null;default:0" json:"amount"`
	Card              *Card           `gorm:"foreignKey:CardID;constraint:OnDelete:CASCADE" json:"-"`
}

func (CommercialCase) OverlayType() CardType  { return CardTypeCommercialCase }
func (c CommercialCase) OverlayCardID() int64 { return c.CardID }

// TaskPriority orders object tasks
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityNormal TaskPriority = "normal"
	TaskPriorityHigh   TaskPriority = "high"
)

// ObjectTask carries construction-site fields for object_task cards
type ObjectTask struct {
	BaseModel
	CardID      int64        `gorm:"not null;uniqueIndex" json:"card_id"`
	ErpObjectID *int64       `json:"erp_object_id,omitempty"`
	ObjectLabel string       `gorm:"type:varchar(300)" json:"object_label"`
	Priority    TaskPriority `gorm:"type:varchar(16);not null;default:'normal'" json:"priority"`
	AssigneeID  *int64       `json:"assignee_id,omitempty"`
	Assignee    string       `gorm:"type:varchar(150)" json:"assignee"`
	Card        *Card        `gorm:"foreignKey:CardID;constraint:OnDelete:CASCADE" json:"-"`
}

func (ObjectTask) OverlayType() CardType  { return CardTypeObjectTask }
func (o ObjectTask) OverlayCardID() int64 { return o.CardID }

// WarehouseLine carries a product line for warehouse_line cards
type WarehouseLine struct {
	BaseModel
	CardID       int64           `gorm:"not null;uniqueIndex" json:"card_id"`
	ErpProductID *int64          `json:"erp_product_id,omitempty"`
	ProductName  string          `gorm:"type:varchar(300)" json:"product_name"`
	Unit         string          `gorm:"type:varchar(32)" json:"unit"`
	Qty          decimal.Decimal `gorm:"type:numeric(14,3);not null;default:0" json:"qty"`
	LocationID   *int64          `json:"location_id,omitempty"`
	Card         *Card           `gorm:"foreignKey:CardID;constraint:OnDelete:CASCADE" json:"-"`
}

func (WarehouseLine) OverlayType() CardType  { return CardTypeWarehouseLine }
func (w WarehouseLine) OverlayCardID() int64 { return w.CardID }
