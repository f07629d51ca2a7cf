package domain

import (
	"time"

	"gorm.io/datatypes"
)

// BaseModel holds the fields shared by all kanban tables.
// Ids are monotone so that ordering by id is stable.
type BaseModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// CardType selects which overlay a card carries
type CardType string

const (
	CardTypeSupplyCase     CardType = "supply_case"
	CardTypeCommercialCase CardType = "commercial_case"
	CardTypeObjectTask     CardType = "object_task"
	CardTypeWarehouseLine  CardType = "warehouse_line"
	CardTypeGeneric        CardType = "generic"
)

// IsValid reports whether t is one of the known card types
func (t CardType) IsValid() bool {
	switch t {
	case CardTypeSupplyCase, CardTypeCommercialCase, CardTypeObjectTask, CardTypeWarehouseLine, CardTypeGeneric:
		return true
	}
	return false
}

// HasOverlay reports whether cards of this type carry a typed overlay record
func (t CardType) HasOverlay() bool {
	return t.IsValid() && t != CardTypeGeneric
}

// Board is the top-level container of a kanban workflow.
// Key is unique and never changes after creation.
type Board struct {
	BaseModel
	Key   string `gorm:"type:varchar(64);not null;uniqueIndex" json:"key"`
	Title string `gorm:"type:varchar(200);not null" json:"title"`
}

// Column belongs to one board. (board_id, key) is unique, order is not.
type Column struct {
	BaseModel
	BoardID int64  `gorm:"not null;uniqueIndex:idx_columns_board_key;index" json:"board_id"`
	Key     string `gorm:"type:varchar(64);not null;uniqueIndex:idx_columns_board_key" json:"key"`
	Title   string `gorm:"type:varchar(200);not null" json:"title"`
	Order   int    `gorm:"column:sort_order;not null;default:0" json:"order"`
	Board   *Board `gorm:"foreignKey:BoardID;constraint:OnDelete:CASCADE" json:"-"`
}

// Card is a work item living in exactly one column of its board
type Card struct {
	BaseModel
	BoardID     int64             `gorm:"not null;index" json:"board_id"`
	ColumnID    int64             `gorm:"not null;index" json:"column_id"`
	Type        CardType          `gorm:"type:varchar(32);not null;default:'generic';index" json:"type"`
	Title       string            `gorm:"type:varchar(300);not null" json:"title"`
	Description string            `gorm:"type:text" json:"description"`
	Meta        datatypes.JSONMap `json:"meta"`
	DueDate     *time.Time        `gorm:"type:date;index" json:"due_date,omitempty"`
	ArchivedAt  *time.Time        `gorm:"index" json:"archived_at,omitempty"`
	Board       *Board            `gorm:"foreignKey:BoardID;constraint:OnDelete:CASCADE" json:"-"`
	Column      *Column           `gorm:"foreignKey:ColumnID;constraint:OnDelete:RESTRICT" json:"-"`
}

// IsArchived reports whether the card has been soft-deleted
func (c *Card) IsArchived() bool {
	return c.ArchivedAt != nil
}

// Attachment is a file stored against a card
type Attachment struct {
	BaseModel
	CardID       int64  `gorm:"not null;index" json:"card_id"`
	FileName     string `gorm:"type:varchar(255);not null" json:"file_name"`
	ContentType  string `gorm:"type:varchar(100)" json:"content_type"`
	Size         int64  `gorm:"not null" json:"size"`
	StoragePath  string `gorm:"type:varchar(500);not null" json:"-"`
	UploadedByID *int64 `json:"uploaded_by_id,omitempty"`
	UploadedBy   string `gorm:"type:varchar(150)" json:"uploaded_by"`
	Card         *Card  `gorm:"foreignKey:CardID;constraint:OnDelete:CASCADE" json:"-"`
}
