package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceEvent records an advertised-price change on an existing listing.
// Derived and immutable.
type PriceEvent struct {
	ID         uint64           `gorm:"primaryKey;autoIncrement;comment:price event id"`
	DealerID   uint             `gorm:"not null;index:idx_price_events_dealer_vin;comment:dealer id"`
	VIN        string           `gorm:"type:varchar(17);not null;index:idx_price_events_dealer_vin;comment:vehicle identification number"`
	ObservedAt time.Time        `gorm:"type:timestamptz;not null;index;comment:change detection time"`
	OldPrice   decimal.Decimal  `gorm:"type:numeric(10,2);not null;comment:previous advertised price"`
	NewPrice   decimal.Decimal  `gorm:"type:numeric(10,2);not null;comment:new advertised price"`
	Delta      decimal.Decimal  `gorm:"type:numeric(10,2);not null;comment:new minus old"`
	Pct        *decimal.Decimal `gorm:"type:numeric(6,2);comment:delta over old in percent"`
}

func (PriceEvent) TableName() string {
	return "price_events"
}
