package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// NormalizedRow is the shape every ingestion path converges on before the
// observation writer sees it: parsed scrape rows, upload rows, and seed
// imports all become NormalizedRows.
type NormalizedRow struct {
	DealerID        uint
	VIN             string
	AdvertisedPrice *decimal.Decimal
	MSRP            *decimal.Decimal
	VDPURL          *string
	StockNumber     *string
	Status          *string
	Vehicle         VehicleData
	Payload         map[string]any
	RawBlobKey      *string
	Source          string
	SourceRank      int
	ObservedAt      time.Time
	JobID           string
}

// VehicleData carries the additive vehicle attributes extracted alongside a
// row. Nil fields never overwrite known values.
type VehicleData struct {
	Make          string
	Model         string
	Year          *int
	Trim          *string
	Drivetrain    *string
	Transmission  *string
	ExteriorColor *string
	InteriorColor *string
	MSRP          *decimal.Decimal
	InvoicePrice  *decimal.Decimal
	Features      map[string]any
}

// ValidationError marks a row the observation writer refused. The row is
// dropped and counted; the rest of the batch proceeds.
type ValidationError struct {
	Row    int
	VIN    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d (vin %q): %s", e.Row, e.VIN, e.Reason)
}
