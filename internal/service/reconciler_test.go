package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"dealerwatch/internal/models"
)

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func baseRow(rank int, price *decimal.Decimal) NormalizedRow {
	return NormalizedRow{
		DealerID:        1,
		VIN:             "JTEAAAAA1234X5678",
		AdvertisedPrice: price,
		Source:          models.SourceScrapeInventory,
		SourceRank:      rank,
		ObservedAt:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestProjectRowCreatesListingWithoutEvent(t *testing.T) {
	row := baseRow(models.RankScrapeInventory, dec(45000))
	row.MSRP = dec(47000)

	next, event, created := projectRow(nil, row, nil)
	if !created {
		t.Fatal("expected creation")
	}
	if event != nil {
		t.Fatal("no price event on listing creation")
	}
	if next.AdvertisedPrice == nil || !next.AdvertisedPrice.Equal(decimal.NewFromInt(45000)) {
		t.Errorf("price = %v", next.AdvertisedPrice)
	}
	if next.SourceRank != models.RankScrapeInventory {
		t.Errorf("rank = %d", next.SourceRank)
	}
	if next.PriceDeltaMSRP == nil || !next.PriceDeltaMSRP.Equal(decimal.NewFromInt(-2000)) {
		t.Errorf("delta msrp = %v", next.PriceDeltaMSRP)
	}
	if next.Status != models.ListingStatusAvailable {
		t.Errorf("status = %s", next.Status)
	}
}

func TestTrustOrderAcrossSources(t *testing.T) {
	// Inventory scrape sets 45000, VDP scrape lowers to 43000, a later
	// upload at 50000 must not win the field back.
	inv := baseRow(models.RankScrapeInventory, dec(45000))
	listing, _, _ := projectRow(nil, inv, nil)

	vdp := baseRow(models.RankScrapeVDP, dec(43000))
	vdp.Source = models.SourceScrapeVDP
	next, event, created := projectRow(&listing, vdp, nil)
	if created {
		t.Fatal("should update, not create")
	}
	if event == nil {
		t.Fatal("expected a price event for 45000 -> 43000")
	}
	if !event.Delta.Equal(decimal.NewFromInt(-2000)) {
		t.Errorf("delta = %s", event.Delta)
	}
	if event.Pct == nil || !event.Pct.Equal(decimal.RequireFromString("-4.44")) {
		t.Errorf("pct = %v, want -4.44", event.Pct)
	}
	if next.AdvertisedPrice == nil || !next.AdvertisedPrice.Equal(decimal.NewFromInt(43000)) {
		t.Errorf("price = %v", next.AdvertisedPrice)
	}
	if next.SourceRank != models.RankScrapeVDP {
		t.Errorf("rank = %d", next.SourceRank)
	}

	upload := baseRow(models.RankUpload, dec(50000))
	upload.Source = models.SourceUpload
	upload.ObservedAt = vdp.ObservedAt.Add(time.Hour)
	final, event2, _ := projectRow(&next, upload, nil)
	if event2 != nil {
		t.Fatal("less trusted source must not emit a price event")
	}
	if final.AdvertisedPrice == nil || !final.AdvertisedPrice.Equal(decimal.NewFromInt(43000)) {
		t.Errorf("price = %v, upload must not overwrite VDP price", final.AdvertisedPrice)
	}
	if final.SourceRank != models.RankScrapeVDP {
		t.Errorf("rank = %d, must stay at VDP rank", final.SourceRank)
	}
	if !final.LastSeenAt.Equal(upload.ObservedAt) {
		t.Errorf("last_seen_at = %s, should advance regardless of trust", final.LastSeenAt)
	}
}

func TestEqualRankWins(t *testing.T) {
	first := baseRow(models.RankScrapeInventory, dec(45000))
	listing, _, _ := projectRow(nil, first, nil)

	second := baseRow(models.RankScrapeInventory, dec(44000))
	second.ObservedAt = first.ObservedAt.Add(time.Hour)
	next, event, _ := projectRow(&listing, second, nil)
	if next.AdvertisedPrice == nil || !next.AdvertisedPrice.Equal(decimal.NewFromInt(44000)) {
		t.Errorf("equal rank should update price, got %v", next.AdvertisedPrice)
	}
	if event == nil {
		t.Error("expected price event")
	}
}

func TestReplayIsIdempotent(t *testing.T) {
	row := baseRow(models.RankScrapeInventory, dec(45000))
	listing, _, _ := projectRow(nil, row, nil)

	replayed, event, created := projectRow(&listing, row, nil)
	if created {
		t.Fatal("replay must not create")
	}
	if event != nil {
		t.Fatal("replay must not emit a price event")
	}
	if !replayed.LastSeenAt.Equal(listing.LastSeenAt) {
		t.Error("replay must not move last_seen_at")
	}
	if replayed.SourceRank != listing.SourceRank {
		t.Error("replay must not change rank")
	}
}

func TestNoEventWhenEitherSideNull(t *testing.T) {
	// Listing created with no price at all.
	row := baseRow(models.RankScrapeInventory, nil)
	listing, _, _ := projectRow(nil, row, nil)
	if listing.AdvertisedPrice != nil {
		t.Fatal("price should stay null, not zero")
	}
	if listing.SourceRank != models.RankUnset {
		t.Errorf("rank = %d, want unset", listing.SourceRank)
	}

	// First priced observation fills the field but emits nothing.
	priced := baseRow(models.RankScrapeInventory, dec(41000))
	priced.ObservedAt = row.ObservedAt.Add(time.Hour)
	next, event, _ := projectRow(&listing, priced, nil)
	if event != nil {
		t.Fatal("no event when the old price was null")
	}
	if next.AdvertisedPrice == nil || !next.AdvertisedPrice.Equal(decimal.NewFromInt(41000)) {
		t.Errorf("price = %v", next.AdvertisedPrice)
	}
}

func TestStaleObservationNeverOverwritesNewerPrice(t *testing.T) {
	first := baseRow(models.RankScrapeInventory, dec(45000))
	listing, _, _ := projectRow(nil, first, nil)

	newer := baseRow(models.RankScrapeInventory, dec(43000))
	newer.ObservedAt = first.ObservedAt.Add(2 * time.Hour)
	updated, event, _ := projectRow(&listing, newer, nil)
	if event == nil {
		t.Fatal("expected a price event for 45000 -> 43000")
	}

	// An older observation arriving late, e.g. from a batch that raced a
	// faster one, must not roll the price back or emit an event.
	stale := baseRow(models.RankScrapeInventory, dec(45000))
	stale.ObservedAt = first.ObservedAt.Add(time.Hour)
	final, staleEvent, _ := projectRow(&updated, stale, nil)
	if staleEvent != nil {
		t.Fatal("stale observation must not emit a price event")
	}
	if final.AdvertisedPrice == nil || !final.AdvertisedPrice.Equal(decimal.NewFromInt(43000)) {
		t.Errorf("price = %v, stale row must not win", final.AdvertisedPrice)
	}
	if final.PriceObservedAt == nil || !final.PriceObservedAt.Equal(newer.ObservedAt) {
		t.Errorf("price observed at = %v, want the newer observation", final.PriceObservedAt)
	}
}

func TestConcurrentDealersMergeVehicleAdditively(t *testing.T) {
	// The vehicle row is keyed by VIN alone. Two dealers reporting the
	// same VIN in one batch run on parallel goroutines; neither merge may
	// erase what the other filled in.
	store := newFakeStore()
	rec := NewReconciler(store, nil)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rows := []NormalizedRow{
		{
			DealerID:   1,
			VIN:        "JTEAAAAA1234X5678",
			Vehicle:    VehicleData{Model: "Land Cruiser", Trim: strPtr("Limited")},
			Source:     models.SourceScrapeInventory,
			SourceRank: models.RankScrapeInventory,
			ObservedAt: now,
		},
		{
			DealerID:   2,
			VIN:        "JTEAAAAA1234X5678",
			Vehicle:    VehicleData{Model: "Land Cruiser", Drivetrain: strPtr("4WD")},
			Source:     models.SourceScrapeInventory,
			SourceRank: models.RankScrapeInventory,
			ObservedAt: now,
		},
	}
	if _, err := rec.Reconcile(context.Background(), rows); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	vehicle := store.vehicles["JTEAAAAA1234X5678"]
	if vehicle.Trim == nil || *vehicle.Trim != "Limited" {
		t.Errorf("trim = %v, one dealer's merge erased the other's", vehicle.Trim)
	}
	if vehicle.Drivetrain == nil || *vehicle.Drivetrain != "4WD" {
		t.Errorf("drivetrain = %v, one dealer's merge erased the other's", vehicle.Drivetrain)
	}
}

func TestReappearanceResetsStatus(t *testing.T) {
	row := baseRow(models.RankScrapeInventory, dec(45000))
	listing, _, _ := projectRow(nil, row, nil)
	listing.Status = models.ListingStatusSold

	later := baseRow(models.RankScrapeInventory, dec(45000))
	later.ObservedAt = row.ObservedAt.Add(48 * time.Hour)
	next, _, _ := projectRow(&listing, later, nil)
	if next.Status != models.ListingStatusAvailable {
		t.Errorf("status = %s, a fresh observation should reset to available", next.Status)
	}
	if next.StatusChangedAt == nil || !next.StatusChangedAt.Equal(later.ObservedAt) {
		t.Errorf("status_changed_at = %v", next.StatusChangedAt)
	}
}

func TestEarlierObservationClampsFirstSeen(t *testing.T) {
	row := baseRow(models.RankScrapeInventory, nil)
	listing, _, _ := projectRow(nil, row, nil)

	// A backfilled upload can carry an observation older than the listing.
	earlier := baseRow(models.RankScrapeInventory, nil)
	earlier.ObservedAt = row.ObservedAt.Add(-time.Hour)
	next, _, _ := projectRow(&listing, earlier, nil)
	if !next.FirstSeenAt.Equal(earlier.ObservedAt) {
		t.Errorf("first_seen_at = %s, want clamped to %s", next.FirstSeenAt, earlier.ObservedAt)
	}
	if !next.LastSeenAt.Equal(listing.LastSeenAt) {
		t.Errorf("last_seen_at = %s, must not move backward", next.LastSeenAt)
	}
}

func TestVehicleMergeIsAdditive(t *testing.T) {
	trim := "Limited"
	existing := &models.Vehicle{
		VIN:   "JTEAAAAA1234X5678",
		Make:  "Toyota",
		Model: "Land Cruiser",
		Trim:  &trim,
		MSRP:  dec(74995),
	}
	row := baseRow(models.RankUpload, nil)
	row.Vehicle = VehicleData{
		Model:      "Land Cruiser",
		Drivetrain: strPtr("4WD"),
	}

	merged := mergeVehicleData(existing, row)
	if merged.Trim == nil || *merged.Trim != "Limited" {
		t.Error("nil incoming trim must not erase the known value")
	}
	if merged.MSRP == nil || !merged.MSRP.Equal(decimal.NewFromInt(74995)) {
		t.Error("nil incoming MSRP must not erase the known value")
	}
	if merged.Drivetrain == nil || *merged.Drivetrain != "4WD" {
		t.Error("new field should be filled")
	}
}

func TestRankWinsTable(t *testing.T) {
	cases := []struct {
		incoming, current int
		want              bool
	}{
		{models.RankScrapeVDP, models.RankScrapeInventory, true},
		{models.RankScrapeInventory, models.RankScrapeInventory, true},
		{models.RankUpload, models.RankScrapeVDP, false},
		{models.RankScrapeInventory, models.RankUnset, true},
		{models.RankImport, models.RankUpload, false},
	}
	for _, tc := range cases {
		if got := models.RankWins(tc.incoming, tc.current); got != tc.want {
			t.Errorf("RankWins(%d, %d) = %v, want %v", tc.incoming, tc.current, got, tc.want)
		}
	}
}
