package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Vehicle rows are created on the first observation of a VIN and only ever
// enriched afterwards; they are never deleted.
type Vehicle struct {
	VIN           string           `gorm:"primaryKey;type:varchar(17);comment:vehicle identification number"`
	Make          string           `gorm:"type:text;not null;comment:manufacturer"`
	Model         string           `gorm:"type:text;not null;index;comment:model name"`
	Year          *int             `gorm:"comment:model year"`
	Trim          *string          `gorm:"type:text;comment:trim level"`
	Drivetrain    *string          `gorm:"type:text;comment:drivetrain"`
	Transmission  *string          `gorm:"type:text;comment:transmission"`
	ExteriorColor *string          `gorm:"type:text;comment:exterior color"`
	InteriorColor *string          `gorm:"type:text;comment:interior color"`
	MSRP          *decimal.Decimal `gorm:"type:numeric(10,2);comment:sticker price"`
	InvoicePrice  *decimal.Decimal `gorm:"type:numeric(10,2);comment:invoice price"`
	Features      datatypes.JSON   `gorm:"type:jsonb;comment:feature set"`
	CreatedAt     time.Time        `gorm:"type:timestamptz;not null;comment:first seen"`
	UpdatedAt     *time.Time       `gorm:"type:timestamptz;comment:last enrichment"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}
