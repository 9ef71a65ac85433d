// Package parser turns raw inventory page content into normalized vehicle
// rows. Each dealer CMS backend registers an adapter; the scrape pipeline
// treats all of them uniformly.
package parser

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Row is one normalized vehicle extracted from a page or upload.
type Row struct {
	VIN             string
	AdvertisedPrice *decimal.Decimal
	MSRP            *decimal.Decimal
	VDPURL          *string
	StockNumber     *string
	Status          *string
	Model           *string
	Trim            *string
	Year            *int
	Features        []string
	Raw             map[string]any
}

// ParseError reports content the adapter could not make sense of.
type ParseError struct {
	Backend string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Backend, e.Reason)
}

// Parser extracts rows from raw page content. Implementations must be pure
// with respect to the content argument and safe for concurrent use.
type Parser interface {
	Backend() string
	Parse(content string) ([]Row, error)
}
