package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"dealerwatch/internal/models"
	"dealerwatch/internal/repository"
)

// zeroJobID tags observations that did not come from a scrape job, e.g.
// seed imports without an upload record.
const zeroJobID = "00000000-0000-0000-0000-000000000000"

// ObservationWriterService is the only writer of observation rows. A batch
// is appended inside a single transaction; partial batches never become
// partially visible.
type ObservationWriterService struct {
	Store  repository.Repository
	Logger *zap.Logger
}

type WriteResult struct {
	Written  int
	Accepted []NormalizedRow
	Rejected []ValidationError
}

// WriteBatch validates and appends one observation per row. Rows with an
// empty VIN are rejected and counted; the remaining rows still commit.
// The price-default rule is applied here so every downstream consumer sees
// the same effective price: a row with MSRP but no advertised price gets
// advertised price := MSRP and a marker in its payload.
func (s *ObservationWriterService) WriteBatch(ctx context.Context, rows []NormalizedRow) (WriteResult, error) {
	result := WriteResult{}
	if len(rows) == 0 {
		return result, nil
	}

	observations := make([]models.Observation, 0, len(rows))
	for i := range rows {
		row := rows[i]
		row.VIN = strings.ToUpper(strings.TrimSpace(row.VIN))
		if row.VIN == "" {
			result.Rejected = append(result.Rejected, ValidationError{Row: i, Reason: "missing VIN"})
			continue
		}
		if row.DealerID == 0 {
			result.Rejected = append(result.Rejected, ValidationError{Row: i, VIN: row.VIN, Reason: "missing dealer"})
			continue
		}
		if row.ObservedAt.IsZero() {
			row.ObservedAt = time.Now().UTC()
		}
		if strings.TrimSpace(row.JobID) == "" {
			row.JobID = zeroJobID
		}
		if row.SourceRank == 0 {
			row.SourceRank = models.RankForSource(row.Source)
		}

		if row.AdvertisedPrice == nil && row.MSRP != nil {
			price := *row.MSRP
			row.AdvertisedPrice = &price
			if row.Payload == nil {
				row.Payload = map[string]any{}
			}
			row.Payload["assumptions"] = map[string]any{"ad_price_equals_msrp": true}
		}

		observations = append(observations, models.Observation{
			JobID:           row.JobID,
			ObservedAt:      row.ObservedAt,
			DealerID:        row.DealerID,
			VIN:             row.VIN,
			VDPURL:          row.VDPURL,
			AdvertisedPrice: row.AdvertisedPrice,
			MSRP:            row.MSRP,
			Payload:         mustJSON(row.Payload),
			RawBlobKey:      row.RawBlobKey,
			Source:          row.Source,
			SourceRank:      row.SourceRank,
		})
		result.Accepted = append(result.Accepted, row)
	}

	if len(observations) > 0 {
		err := s.Store.InTx(ctx, func(tx *gorm.DB) error {
			return s.Store.InsertObservationsTx(ctx, tx, observations)
		})
		if err != nil {
			return WriteResult{}, err
		}
		result.Written = len(observations)
	}

	if len(result.Rejected) > 0 && s.Logger != nil {
		s.Logger.Warn("observation rows rejected",
			zap.Int("rejected", len(result.Rejected)),
			zap.Int("written", result.Written))
	}
	return result, nil
}

func mustJSON(v any) datatypes.JSON {
	if v == nil {
		return datatypes.JSON([]byte("{}"))
	}
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(data)
}

func strPtr(s string) *string {
	return &s
}
