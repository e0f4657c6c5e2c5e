package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/olliezdai13/SmartFridge/constants"
)

// Snapshot is one captured fridge image and its processing life.
// Items exist only once the snapshot reaches the complete status.
type Snapshot struct {
	ID             uuid.UUID                `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID                `gorm:"type:uuid;not null;index:idx_snapshots_user_created"`
	ImageBucket    string                   `gorm:"size:255;not null"`
	ImageKey       string                   `gorm:"size:512;not null"`
	ImageFilename  string                   `gorm:"size:255;not null"`
	Prompt         *string                  `gorm:"type:text"`
	RawModelOutput *string                  `gorm:"type:text"`
	Status         constants.SnapshotStatus `gorm:"size:32;not null;default:pending"`
	Error          *string                  `gorm:"type:text"`
	Attempts       int                      `gorm:"not null;default:0"`
	CreatedAt      time.Time                `gorm:"not null;index:idx_snapshots_user_created"`
	UpdatedAt      time.Time                `gorm:"not null"`

	Items []SnapshotItem `gorm:"constraint:OnDelete:CASCADE"`
}

func (Snapshot) TableName() string { return "snapshots" }

// SnapshotItem is a normalized inventory record derived from a snapshot.
type SnapshotItem struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	SnapshotID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_item_product"`
	ProductID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_item_product"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Quantity   int       `gorm:"not null;default:1"`
	RawPayload []byte    `gorm:"type:jsonb"`
	CreatedAt  time.Time `gorm:"not null"`

	Product Product `gorm:"constraint:OnDelete:RESTRICT"`
}

func (SnapshotItem) TableName() string { return "items" }

// Product is a normalized product catalog entry. Category stays null until
// the categorization batch assigns one from the fixed enum.
type Product struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name     string    `gorm:"size:255;not null;uniqueIndex"`
	Category *string   `gorm:"size:120"`
	Unit     *string   `gorm:"size:32"`
}

func (Product) TableName() string { return "products" }
