package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing status values. A listing is never hard-deleted; it transitions to
// sold, transfer, or removed instead.
const (
	ListingStatusAvailable = "available"
	ListingStatusMissing   = "missing"
	ListingStatusSold      = "sold"
	ListingStatusTransfer  = "transfer"
	ListingStatusRemoved   = "removed"
)

// Listing is the mutable current-state projection, exactly one row per
// (dealer, VIN). Only the reconciler writes it.
type Listing struct {
	DealerID        uint             `gorm:"primaryKey;comment:dealer id"`
	VIN             string           `gorm:"primaryKey;type:varchar(17);comment:vehicle identification number"`
	VDPURL          *string          `gorm:"type:text;comment:vehicle detail page URL"`
	StockNumber     *string          `gorm:"type:text;comment:dealer stock number"`
	Status          string           `gorm:"type:text;not null;index;comment:listing status"`
	AdvertisedPrice *decimal.Decimal `gorm:"type:numeric(10,2);comment:current advertised price"`
	PriceDeltaMSRP  *decimal.Decimal `gorm:"type:numeric(10,2);index;comment:advertised price minus MSRP"`
	FirstSeenAt     time.Time        `gorm:"type:timestamptz;not null;comment:first observation time"`
	LastSeenAt      time.Time        `gorm:"type:timestamptz;not null;index;comment:latest observation time"`
	SourceRank      int              `gorm:"not null;default:100;comment:rank of the source that last won the price field"`
	PriceObservedAt *time.Time       `gorm:"type:timestamptz;comment:observation time of the current advertised price"`
	StatusChangedAt *time.Time       `gorm:"type:timestamptz;comment:last status transition time"`
}

func (Listing) TableName() string {
	return "listings"
}
