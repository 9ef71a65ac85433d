package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Observation is the append-only ground truth log. Rows are never mutated or
// deleted after insert.
type Observation struct {
	ID              uint64           `gorm:"primaryKey;autoIncrement;comment:observation id"`
	JobID           string           `gorm:"type:uuid;not null;index;comment:scrape job or upload id"`
	ObservedAt      time.Time        `gorm:"type:timestamptz;not null;index;comment:capture time"`
	DealerID        uint             `gorm:"not null;index:idx_observations_dealer_vin;comment:dealer id"`
	VIN             string           `gorm:"type:varchar(17);not null;index:idx_observations_dealer_vin;comment:vehicle identification number"`
	VDPURL          *string          `gorm:"type:text;comment:vehicle detail page URL"`
	AdvertisedPrice *decimal.Decimal `gorm:"type:numeric(10,2);comment:advertised price at capture"`
	MSRP            *decimal.Decimal `gorm:"type:numeric(10,2);comment:MSRP at capture"`
	Payload         datatypes.JSON   `gorm:"type:jsonb;comment:full raw payload"`
	RawBlobKey      *string          `gorm:"type:text;comment:raw blob store key"`
	Source          string           `gorm:"type:text;not null;comment:scrape-vdp scrape-inventory upload or import"`
	SourceRank      int              `gorm:"not null;comment:trust rank of source"`
}

func (Observation) TableName() string {
	return "observations"
}
