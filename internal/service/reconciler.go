package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"dealerwatch/internal/models"
	"dealerwatch/internal/repository"
)

// ReconcilerService is the sole writer of listings and price events. It
// projects the observation stream into current state under the source-trust
// ordering: an incoming row may overwrite the advertised price only when
// models.RankWins accepts its rank against the rank that last won the field.
type ReconcilerService struct {
	Store       repository.Repository
	Logger      *zap.Logger
	Parallelism int

	// pairLocks serializes listing writes per (dealer, VIN); vinLocks
	// serializes the vehicle merge per VIN, since the vehicle row is shared
	// across dealers. vinLocks are only ever taken while a pair lock is
	// held, never the other way around.
	pairLocks *keyedMutex
	vinLocks  *keyedMutex
}

func NewReconciler(store repository.Repository, logger *zap.Logger) *ReconcilerService {
	return &ReconcilerService{
		Store:       store,
		Logger:      logger,
		Parallelism: 8,
		pairLocks:   newKeyedMutex(),
		vinLocks:    newKeyedMutex(),
	}
}

type ReconcileResult struct {
	ListingsCreated int
	ListingsUpdated int
	PriceEvents     int
}

// Reconcile applies a batch of accepted rows. Rows for the same
// (dealer, VIN) are serialized in slice order; distinct pairs run in
// parallel.
func (s *ReconcilerService) Reconcile(ctx context.Context, rows []NormalizedRow) (ReconcileResult, error) {
	if len(rows) == 0 {
		return ReconcileResult{}, nil
	}

	// Group per pair first so same-pair rows keep their write order even
	// when the group scheduler interleaves goroutines.
	type pairKey struct {
		dealerID uint
		vin      string
	}
	grouped := map[pairKey][]NormalizedRow{}
	var order []pairKey
	for _, row := range rows {
		key := pairKey{row.DealerID, row.VIN}
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], row)
	}

	parallelism := s.Parallelism
	if parallelism <= 0 {
		parallelism = 8
	}
	if s.pairLocks == nil {
		s.pairLocks = newKeyedMutex()
	}
	if s.vinLocks == nil {
		s.vinLocks = newKeyedMutex()
	}

	results := make([]ReconcileResult, len(order))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, key := range order {
		i, key := i, key
		g.Go(func() error {
			unlock := s.pairLocks.Lock(fmt.Sprintf("%d/%s", key.dealerID, key.vin))
			defer unlock()
			for _, row := range grouped[key] {
				res, err := s.reconcileOne(gctx, row)
				if err != nil {
					return err
				}
				results[i].ListingsCreated += res.ListingsCreated
				results[i].ListingsUpdated += res.ListingsUpdated
				results[i].PriceEvents += res.PriceEvents
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ReconcileResult{}, err
	}

	var total ReconcileResult
	for _, res := range results {
		total.ListingsCreated += res.ListingsCreated
		total.ListingsUpdated += res.ListingsUpdated
		total.PriceEvents += res.PriceEvents
	}
	return total, nil
}

func (s *ReconcilerService) reconcileOne(ctx context.Context, row NormalizedRow) (ReconcileResult, error) {
	// The vehicle row is keyed by VIN alone, so concurrent pairs at
	// different dealers would otherwise interleave its read-modify-write.
	unlock := s.vinLocks.Lock(row.VIN)
	defer unlock()

	var result ReconcileResult
	err := s.Store.InTx(ctx, func(tx *gorm.DB) error {
		vehicle, err := s.mergeVehicle(ctx, tx, row)
		if err != nil {
			return err
		}

		current, err := s.Store.GetListingTx(ctx, tx, row.DealerID, row.VIN)
		if err != nil {
			return err
		}

		var vehicleMSRP *decimal.Decimal
		if vehicle != nil {
			vehicleMSRP = vehicle.MSRP
		}
		next, event, created := projectRow(current, row, vehicleMSRP)

		if err := s.Store.SaveListingTx(ctx, tx, &next); err != nil {
			return err
		}
		if event != nil {
			if err := s.Store.InsertPriceEventTx(ctx, tx, event); err != nil {
				return err
			}
			result.PriceEvents++
		}
		if created {
			result.ListingsCreated++
		} else {
			result.ListingsUpdated++
		}
		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}
	return result, nil
}

// mergeVehicle creates or enriches the global vehicle row. Merge is
// additive: nil incoming fields never erase known values.
func (s *ReconcilerService) mergeVehicle(ctx context.Context, tx *gorm.DB, row NormalizedRow) (*models.Vehicle, error) {
	existing, err := s.Store.GetVehicleByVINTx(ctx, tx, row.VIN)
	if err != nil {
		return nil, err
	}
	merged := mergeVehicleData(existing, row)
	if err := s.Store.SaveVehicleTx(ctx, tx, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

func mergeVehicleData(existing *models.Vehicle, row NormalizedRow) *models.Vehicle {
	now := row.ObservedAt
	vehicle := existing
	if vehicle == nil {
		vehicle = &models.Vehicle{
			VIN:       row.VIN,
			Make:      row.Vehicle.Make,
			Model:     row.Vehicle.Model,
			CreatedAt: now,
		}
		if vehicle.Make == "" {
			vehicle.Make = "Toyota"
		}
	}
	data := row.Vehicle
	if data.Make != "" {
		vehicle.Make = data.Make
	}
	if data.Model != "" {
		vehicle.Model = data.Model
	}
	if data.Year != nil {
		vehicle.Year = data.Year
	}
	if data.Trim != nil {
		vehicle.Trim = data.Trim
	}
	if data.Drivetrain != nil {
		vehicle.Drivetrain = data.Drivetrain
	}
	if data.Transmission != nil {
		vehicle.Transmission = data.Transmission
	}
	if data.ExteriorColor != nil {
		vehicle.ExteriorColor = data.ExteriorColor
	}
	if data.InteriorColor != nil {
		vehicle.InteriorColor = data.InteriorColor
	}
	if data.MSRP != nil {
		vehicle.MSRP = data.MSRP
	} else if vehicle.MSRP == nil && row.MSRP != nil {
		vehicle.MSRP = row.MSRP
	}
	if data.InvoicePrice != nil {
		vehicle.InvoicePrice = data.InvoicePrice
	}
	if len(data.Features) > 0 {
		vehicle.Features = mustJSON(data.Features)
	}
	vehicle.UpdatedAt = &now
	return vehicle
}

// projectRow computes the next listing state and the price event, if any,
// without touching storage. All trust-ordering decisions live here.
func projectRow(current *models.Listing, row NormalizedRow, vehicleMSRP *decimal.Decimal) (models.Listing, *models.PriceEvent, bool) {
	effectiveMSRP := row.MSRP
	if effectiveMSRP == nil {
		effectiveMSRP = vehicleMSRP
	}

	if current == nil {
		next := models.Listing{
			DealerID:    row.DealerID,
			VIN:         row.VIN,
			VDPURL:      row.VDPURL,
			StockNumber: row.StockNumber,
			Status:      models.ListingStatusAvailable,
			FirstSeenAt: row.ObservedAt,
			LastSeenAt:  row.ObservedAt,
			SourceRank:  models.RankUnset,
		}
		if row.Status != nil && *row.Status != "" {
			next.Status = *row.Status
		}
		if row.AdvertisedPrice != nil {
			price := *row.AdvertisedPrice
			next.AdvertisedPrice = &price
			next.SourceRank = row.SourceRank
			next.PriceDeltaMSRP = priceDelta(&price, effectiveMSRP)
			at := row.ObservedAt
			next.PriceObservedAt = &at
		}
		// No price event on creation; there is no prior price to compare.
		return next, nil, true
	}

	next := *current
	if row.ObservedAt.After(next.LastSeenAt) {
		next.LastSeenAt = row.ObservedAt
	}
	if row.ObservedAt.Before(next.FirstSeenAt) {
		next.FirstSeenAt = row.ObservedAt
	}
	if row.VDPURL != nil && *row.VDPURL != "" {
		next.VDPURL = row.VDPURL
	}
	if row.StockNumber != nil && *row.StockNumber != "" {
		next.StockNumber = row.StockNumber
	}
	// A fresh observation means the vehicle is on the lot again; a row
	// without an explicit status resets sold/missing back to available.
	status := models.ListingStatusAvailable
	if row.Status != nil && *row.Status != "" {
		status = *row.Status
	}
	if status != next.Status {
		next.Status = status
		at := row.ObservedAt
		next.StatusChangedAt = &at
	}

	var event *models.PriceEvent
	if row.AdvertisedPrice != nil && models.RankWins(row.SourceRank, next.SourceRank) && !priceIsStale(next.PriceObservedAt, row.ObservedAt) {
		oldPrice := next.AdvertisedPrice
		price := *row.AdvertisedPrice
		next.AdvertisedPrice = &price
		next.SourceRank = row.SourceRank
		next.PriceDeltaMSRP = priceDelta(&price, effectiveMSRP)
		at := row.ObservedAt
		next.PriceObservedAt = &at

		if oldPrice != nil && !oldPrice.Equal(price) {
			delta := price.Sub(*oldPrice)
			event = &models.PriceEvent{
				DealerID:   row.DealerID,
				VIN:        row.VIN,
				ObservedAt: row.ObservedAt,
				OldPrice:   *oldPrice,
				NewPrice:   price,
				Delta:      delta,
			}
			if !oldPrice.IsZero() {
				pct := delta.Div(*oldPrice).Mul(decimal.NewFromInt(100)).Round(2)
				event.Pct = &pct
			}
		}
	}
	return next, event, false
}

// priceIsStale rejects a price whose observation predates the one that set
// the current value. Writer and reconciler run as separate calls, so two
// overlapping batches for the same pair can arrive out of observation order.
func priceIsStale(current *time.Time, observedAt time.Time) bool {
	return current != nil && observedAt.Before(*current)
}

func priceDelta(price, msrp *decimal.Decimal) *decimal.Decimal {
	if price == nil || msrp == nil {
		return nil
	}
	delta := price.Sub(*msrp)
	return &delta
}
