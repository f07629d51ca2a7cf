package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of calendar dates
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date as UTC midnight
func ParseDate(field, value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, NewValidationError(field, GetValidationMessage("datetime"))
	}
	return t, nil
}

// ParseOptionalDate parses a nullable date. Nil or empty yields nil.
func ParseOptionalDate(field string, value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	t, err := ParseDate(field, *value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// PaginatedResponse wraps a page of results
type PaginatedResponse[T any] struct {
	Count    int64 `json:"count"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Results  []T   `json:"results"`
}

// ============================================================================
// Boards and columns
// ============================================================================

type CreateBoardRequest struct {
	Key   string `json:"key" validate:"required,max=64"`
	Title string `json:"title" validate:"required,max=200"`
}

type UpdateBoardRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

type CreateColumnRequest struct {
	BoardID int64  `json:"board_id" validate:"required,gt=0"`
	Key     string `json:"key" validate:"required,max=64"`
	Title   string `json:"title" validate:"required,max=200"`
	Order   int    `json:"order"`
}

type UpdateColumnRequest struct {
	Title *string `json:"title" validate:"omitempty,min=1,max=200"`
	Order *int    `json:"order"`
}

// ColumnOrder assigns a new order to one column
type ColumnOrder struct {
	ColumnID int64 `json:"column_id" validate:"required,gt=0"`
	Order    int   `json:"order"`
}

type ReorderColumnsRequest struct {
	BoardID int64         `json:"board_id" validate:"required,gt=0"`
	Columns []ColumnOrder `json:"columns" validate:"required,min=1,dive"`
}

// ============================================================================
// Cards
// ============================================================================

// CreateCardRequest places a new card in a column given by key or id
type CreateCardRequest struct {
	BoardID     int64          `json:"board_id" validate:"required,gt=0"`
	ColumnKey   string         `json:"column_key" validate:"omitempty,max=64"`
	ColumnID    *int64         `json:"column_id"`
	Type        CardType       `json:"type" validate:"omitempty,oneof=supply_case commercial_case object_task warehouse_line generic"`
	Title       string         `json:"title" validate:"required,max=300"`
	Description string         `json:"description"`
	Meta        map[string]any `json:"meta"`
	DueDate     *string        `json:"due_date"`
}

// UpdateCardRequest is a partial update. Meta keys are merged into the
// current meta; a null value removes the key. An empty due_date clears it.
type UpdateCardRequest struct {
	Title       *string        `json:"title" validate:"omitempty,min=1,max=300"`
	Description *string        `json:"description"`
	Meta        map[string]any `json:"meta"`
	DueDate     *string        `json:"due_date"`
}

type MoveCardRequest struct {
	ToColumnKey string `json:"to_column_key" validate:"required,max=64"`
}

// CardDTO is a card with its column key and typed overlay
type CardDTO struct {
	*Card
	ColumnKey string `json:"column_key"`
	Overlay   any    `json:"overlay,omitempty"`
}

// CardFilters narrows card listings
type CardFilters struct {
	BoardID         *int64
	ColumnKey       string
	Type            *CardType
	IncludeArchived bool
}

// ============================================================================
// Rules
// ============================================================================

type CreateRuleRequest struct {
	BoardID    int64          `json:"board_id" validate:"required,gt=0"`
	Title      string         `json:"title" validate:"required,max=200"`
	IsActive   *bool          `json:"is_active"`
	EventType  EventType      `json:"event_type" validate:"required"`
	Conditions map[string]any `json:"conditions"`
	Actions    []RuleAction   `json:"actions" validate:"required,min=1"`
}

type UpdateRuleRequest struct {
	Title      *string        `json:"title" validate:"omitempty,min=1,max=200"`
	IsActive   *bool          `json:"is_active"`
	EventType  *EventType     `json:"event_type"`
	Conditions map[string]any `json:"conditions"`
	Actions    []RuleAction   `json:"actions"`
}

// ============================================================================
// Overlays
// ============================================================================

type CreateSupplyCaseRequest struct {
	CardID            int64            `json:"card_id" validate:"required,gt=0"`
	ErpObjectID       *int64           `json:"erp_object_id"`
	ErpCounterpartyID *int64           `json:"erp_counterparty_id"`
	ObjectLabel       string           `json:"object_label" validate:"max=300"`
	CounterpartyLabel string           `json:"counterparty_label" validate:"max=300"`
	Status            SupplyCaseStatus `json:"status" validate:"omitempty,oneof=new ordered invoiced delivered closed"`
}

func (r CreateSupplyCaseRequest) ToModel() *SupplyCase {
	status := r.Status
	if status == "" {
		status = SupplyCaseStatusNew
	}
	return &SupplyCase{
		CardID:            r.CardID,
		ErpObjectID:       r.ErpObjectID,
		ErpCounterpartyID: r.ErpCounterpartyID,
		ObjectLabel:       r.ObjectLabel,
		CounterpartyLabel: r.CounterpartyLabel,
		Status:            status,
	}
}

type UpdateSupplyCaseRequest struct {
	ErpObjectID       *int64            `json:"erp_object_id"`
	ErpCounterpartyID *int64            `json:"erp_counterparty_id"`
	ObjectLabel       *string           `json:"object_label" validate:"omitempty,max=300"`
	CounterpartyLabel *string           `json:"counterparty_label" validate:"omitempty,max=300"`
	Status            *SupplyCaseStatus `json:"status" validate:"omitempty,oneof=new ordered invoiced delivered closed"`
}

func (r UpdateSupplyCaseRequest) ApplyTo(o *SupplyCase) {
	if r.ErpObjectID != nil {
		o.ErpObjectID = r.ErpObjectID
	}
	if r.ErpCounterpartyID != nil {
		o.ErpCounterpartyID = r.ErpCounterpartyID
	}
	if r.ObjectLabel != nil {
		o.ObjectLabel = *r.ObjectLabel
	}
	if r.CounterpartyLabel != nil {
		o.CounterpartyLabel = *r.CounterpartyLabel
	}
	if r.Status != nil {
		o.Status = *r.Status
	}
}

type CreateCommercialCaseRequest struct {
	CardID            int64           `json:"card_id" validate:"required,gt=0"`
	ErpCounterpartyID *int64          `json:"erp_counterparty_id"`
	ErpContractID     *int64          `json:"erp_contract_id"`
	CounterpartyLabel string          `json:"counterparty_label" validate:"max=300"`
	ContractLabel     string          `json:"contract_label" validate:"max=300"`
	Amount            decimal.Decimal `json:"amount"`
}

func (r CreateCommercialCaseRequest) ToModel() *CommercialCase {
	return &CommercialCase{
		CardID:            r.CardID,
		ErpCounterpartyID: r.ErpCounterpartyID,
		ErpContractID:     r.ErpContractID,
		CounterpartyLabel: r.CounterpartyLabel,
		ContractLabel:     r.ContractLabel,
		Amount:            r.Amount,
	}
}

type UpdateCommercialCaseRequest struct {
	ErpCounterpartyID *int64           `json:"erp_counterparty_id"`
	ErpContractID     *int64           `json:"erp_contract_id"`
	CounterpartyLabel *string          `json:"counterparty_label" validate:"omitempty,max=300"`
	ContractLabel     *string          `json:"contract_label" validate:"omitempty,max=300"`
	Amount            *decimal.Decimal `json:"amount"`
}

func (r UpdateCommercialCaseRequest) ApplyTo(o *CommercialCase) {
	if r.ErpCounterpartyID != nil {
		o.ErpCounterpartyID = r.ErpCounterpartyID
	}
	if r.ErpContractID != nil {
		o.ErpContractID = r.ErpContractID
	}
	if r.CounterpartyLabel != nil {
		o.CounterpartyLabel = *r.CounterpartyLabel
	}
	if r.ContractLabel != nil {
		o.ContractLabel = *r.ContractLabel
	}
	if r.Amount != nil {
		o.Amount = *r.Amount
	}
}

type CreateObjectTaskRequest struct {
	CardID      int64        `json:"card_id" validate:"required,gt=0"`
	ErpObjectID *int64       `json:"erp_object_id"`
	ObjectLabel string       `json:"object_label" validate:"max=300"`
	Priority    TaskPriority `json:"priority" validate:"omitempty,oneof=low normal high"`
	AssigneeID  *int64       `json:"assignee_id"`
	Assignee    string       `json:"assignee" validate:"max=150"`
}

func (r CreateObjectTaskRequest) ToModel() *ObjectTask {
	priority := r.Priority
	if priority == "" {
		priority = TaskPriorityNormal
	}
	return &ObjectTask{
		CardID:      r.CardID,
		ErpObjectID: r.ErpObjectID,
		ObjectLabel: r.ObjectLabel,
		Priority:    priority,
		AssigneeID:  r.AssigneeID,
		Assignee:    r.Assignee,
	}
}

type UpdateObjectTaskRequest struct {
	ErpObjectID *int64        `json:"erp_object_id"`
	ObjectLabel *string       `json:"object_label" validate:"omitempty,max=300"`
	Priority    *TaskPriority `json:"priority" validate:"omitempty,oneof=low normal high"`
	AssigneeID  *int64        `json:"assignee_id"`
	Assignee    *string       `json:"assignee" validate:"omitempty,max=150"`
}

func (r UpdateObjectTaskRequest) ApplyTo(o *ObjectTask) {
	if r.ErpObjectID != nil {
		o.ErpObjectID = r.ErpObjectID
	}
	if r.ObjectLabel != nil {
		o.ObjectLabel = *r.ObjectLabel
	}
	if r.Priority != nil {
		o.Priority = *r.Priority
	}
	if r.AssigneeID != nil {
		o.AssigneeID = r.AssigneeID
	}
	if r.Assignee != nil {
		o.Assignee = *r.Assignee
	}
}

type CreateWarehouseLineRequest struct {
	CardID       int64           `json:"card_id" validate:"required,gt=0"`
	ErpProductID *int64          `json:"erp_product_id"`
	ProductName  string          `json:"product_name" validate:"max=300"`
	Unit         string          `json:"unit" validate:"max=32"`
	Qty          decimal.Decimal `json:"qty"`
	LocationID   *int64          `json:"location_id"`
}

func (r CreateWarehouseLineRequest) ToModel() *WarehouseLine {
	return &WarehouseLine{
		CardID:       r.CardID,
		ErpProductID: r.ErpProductID,
		ProductName:  r.ProductName,
		Unit:         r.Unit,
		Qty:          r.Qty,
		LocationID:   r.LocationID,
	}
}

type UpdateWarehouseLineRequest struct {
	ErpProductID *int64           `json:"erp_product_id"`
	ProductName  *string          `json:"product_name" validate:"omitempty,max=300"`
	Unit         *string          `json:"unit" validate:"omitempty,max=32"`
	Qty          *decimal.Decimal `json:"qty"`
	LocationID   *int64           `json:"location_id"`
}

func (r UpdateWarehouseLineRequest) ApplyTo(o *WarehouseLine) {
	if r.ErpProductID != nil {
		o.ErpProductID = r.ErpProductID
	}
	if r.ProductName != nil {
		o.ProductName = *r.ProductName
	}
	if r.Unit != nil {
		o.Unit = *r.Unit
	}
	if r.Qty != nil {
		o.Qty = *r.Qty
	}
	if r.LocationID != nil {
		o.LocationID = r.LocationID
	}
}

// ============================================================================
// Supply sub-records
// ============================================================================

type CreateInvoiceRefRequest struct {
	SupplyCaseID int64           `json:"supply_case_id" validate:"required,gt=0"`
	ErpInvoiceID *int64          `json:"erp_invoice_id"`
	Number       string          `json:"number" validate:"required,max=100"`
	Amount       decimal.Decimal `json:"amount"`
	IssuedAt     *string         `json:"issued_at"`
}

type UpdateInvoiceRefRequest struct {
	ErpInvoiceID *int64           `json:"erp_invoice_id"`
	Number       *string          `json:"number" validate:"omitempty,min=1,max=100"`
	Amount       *decimal.Decimal `json:"amount"`
	IssuedAt     *string          `json:"issued_at"`
}

type CreateDeliveryRequest struct {
	SupplyCaseID int64          `json:"supply_case_id" validate:"required,gt=0"`
	PlannedDate  *string        `json:"planned_date"`
	ActualDate   *string        `json:"actual_date"`
	Status       DeliveryStatus `json:"status" validate:"omitempty,oneof=planned shipped delivered cancelled"`
	Note         string         `json:"note"`
}

type UpdateDeliveryRequest struct {
	PlannedDate *string         `json:"planned_date"`
	ActualDate  *string         `json:"actual_date"`
	Status      *DeliveryStatus `json:"status" validate:"omitempty,oneof=planned shipped delivered cancelled"`
	Note        *string         `json:"note"`
}

// ============================================================================
// Warehouse
// ============================================================================

type CreateLocationRequest struct {
	Kind        LocationKind `json:"kind" validate:"omitempty,oneof=warehouse object virtual"`
	Title       string       `json:"title" validate:"required,max=200"`
	ErpObjectID *int64       `json:"erp_object_id"`
}

type UpdateLocationRequest struct {
	Kind        *LocationKind `json:"kind" validate:"omitempty,oneof=warehouse object virtual"`
	Title       *string       `json:"title" validate:"omitempty,min=1,max=200"`
	ErpObjectID *int64        `json:"erp_object_id"`
}

type MoveLineRequest struct {
	ErpProductID int64           `json:"erp_product_id" validate:"required,gt=0"`
	ProductName  string          `json:"product_name" validate:"max=300"`
	Unit         string          `json:"unit" validate:"max=32"`
	Qty          decimal.Decimal `json:"qty"`
}

type CreateMoveRequest struct {
	MoveType     MoveType          `json:"move_type" validate:"required,oneof=IN OUT TRANSFER"`
	FromLocation *int64            `json:"from_location"`
	ToLocation   *int64            `json:"to_location"`
	Reason       string            `json:"reason" validate:"max=500"`
	Lines        []MoveLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// Validate checks endpoints and line quantities of a move request. Line
// quantities are signed; a negative line records a correction.
func (r *CreateMoveRequest) Validate() error {
	verr := &ValidationError{}
	if err := r.MoveType.ValidateEndpoints(r.FromLocation, r.ToLocation); err != nil {
		if ve, ok := err.(*ValidationError); ok {
			for field, msgs := range ve.Fields {
				for _, msg := range msgs {
					verr.Add(field, msg)
				}
			}
		}
	}
	if len(r.Lines) == 0 {
		verr.Add("lines", "at least one line is required")
	}
	for i, line := range r.Lines {
		field := fmt.Sprintf("lines[%d].qty", i)
		if line.Qty.IsZero() {
			verr.Add(field, "must not be zero")
		}
		if line.Qty.Abs().GreaterThanOrEqual(MaxQtyMagnitude) {
			verr.Add(field, fmt.Sprintf("Ensure that there are no more than %d digits before the decimal point.", QtyPrecision-QtyScale))
		}
		if !line.Qty.Equal(line.Qty.Truncate(QtyScale)) {
			verr.Add(field, "at most 3 decimal places are allowed")
		}
	}
	return verr.OrNil()
}

// MoveFilters narrows move listings
type MoveFilters struct {
	LocationID *int64
	MoveType   *MoveType
}

// ============================================================================
// Auth and jobs
// ============================================================================

// IssueTokenRequest is sent by the ERP identity provider on user login
type IssueTokenRequest struct {
	UserID         int64          `json:"user_id" validate:"required,gt=0"`
	Username       string         `json:"username" validate:"required,max=150"`
	ErpPermissions map[string]any `json:"erp_permissions"`
	IsDirector     bool           `json:"is_director"`
	IsAdmin        bool           `json:"is_admin"`
	IsSuperuser    bool           `json:"is_superuser"`
}

type TokenResponse struct {
	Access    string   `json:"access"`
	ExpiresIn int64    `json:"expires_in"`
	Roles     []string `json:"roles"`
}

type MeResponse struct {
	UserID    *int64   `json:"user_id"`
	Username  string   `json:"username"`
	Roles     []string `json:"roles"`
	IsService bool     `json:"is_service"`
}

// OverdueScanResult reports how many cards were inspected and how many events emitted
type OverdueScanResult struct {
	Scanned int `json:"scanned"`
	Emitted int `json:"emitted"`
}
