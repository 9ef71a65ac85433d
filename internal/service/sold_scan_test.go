package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"dealerwatch/internal/models"
	"dealerwatch/internal/repository"
)

func listing(dealerID uint, vin, status string) repository.AbsenceListing {
	return repository.AbsenceListing{DealerID: dealerID, VIN: vin, Model: "Camry", Status: status}
}

func seenSet(vins ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(vins))
	for _, vin := range vins {
		out[vin] = struct{}{}
	}
	return out
}

func TestAbsenceTwoCyclesGoesSold(t *testing.T) {
	listings := []repository.AbsenceListing{
		listing(1, "VINAAAAAAAAAAAA01", models.ListingStatusAvailable),
		listing(1, "VINAAAAAAAAAAAA02", models.ListingStatusAvailable),
	}
	// VIN 02 was observed in the recent window, VIN 01 was not.
	transitions := ComputeAbsenceTransitions(listings, seenSet("VINAAAAAAAAAAAA02"), true)
	if len(transitions) != 1 {
		t.Fatalf("got %d transitions, want 1", len(transitions))
	}
	tr := transitions[0]
	if tr.VIN != "VINAAAAAAAAAAAA01" || tr.To != models.ListingStatusSold {
		t.Errorf("transition = %+v", tr)
	}
}

func TestAbsenceSingleCycleOnlyGoesMissing(t *testing.T) {
	listings := []repository.AbsenceListing{listing(1, "VINAAAAAAAAAAAA01", models.ListingStatusAvailable)}
	transitions := ComputeAbsenceTransitions(listings, seenSet(), false)
	if len(transitions) != 1 || transitions[0].To != models.ListingStatusMissing {
		t.Fatalf("transitions = %+v, want single missing", transitions)
	}
}

func TestAbsenceScanIsIdempotent(t *testing.T) {
	listings := []repository.AbsenceListing{listing(1, "VINAAAAAAAAAAAA01", models.ListingStatusAvailable)}
	first := ComputeAbsenceTransitions(listings, seenSet(), true)
	if len(first) != 1 {
		t.Fatalf("first pass transitions = %d", len(first))
	}

	// Apply it, then rescan: a sold listing is out of scan scope, so the
	// rerun produces nothing.
	listings[0].Status = models.ListingStatusSold
	second := ComputeAbsenceTransitions(listings, seenSet(), true)
	if len(second) != 0 {
		t.Fatalf("second pass transitions = %+v, want none", second)
	}
}

func TestSeenListingStaysPut(t *testing.T) {
	listings := []repository.AbsenceListing{
		listing(1, "VINAAAAAAAAAAAA01", models.ListingStatusAvailable),
		listing(1, "VINAAAAAAAAAAAA02", models.ListingStatusMissing),
	}
	transitions := ComputeAbsenceTransitions(listings, seenSet("VINAAAAAAAAAAAA01", "VINAAAAAAAAAAAA02"), true)
	if len(transitions) != 0 {
		t.Fatalf("transitions = %+v, want none", transitions)
	}
}

func TestMissingThenAbsentAgainGoesSold(t *testing.T) {
	listings := []repository.AbsenceListing{listing(1, "VINAAAAAAAAAAAA01", models.ListingStatusMissing)}
	transitions := ComputeAbsenceTransitions(listings, seenSet(), true)
	if len(transitions) != 1 || transitions[0].To != models.ListingStatusSold {
		t.Fatalf("transitions = %+v, want sold", transitions)
	}
}

// soldScanStore drives the full scan with canned data. Unexpected calls
// fall through to the embedded nil interface and panic.
type soldScanStore struct {
	repository.Repository
	dealers     []models.Dealer
	jobsByModel map[string][]string
	observed    map[string][]string
	absence     []repository.AbsenceListing
	soldRows    []repository.ListingRow
	siblings    map[string][]models.Listing
	updates     []Transition
}

func (f *soldScanStore) ListActiveDealers(ctx context.Context, region *string) ([]models.Dealer, error) {
	return f.dealers, nil
}

func (f *soldScanStore) ListRecentCompletedJobIDsForDealer(ctx context.Context, dealerID uint, model string, limit int) ([]string, error) {
	ids := f.jobsByModel[model]
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *soldScanStore) ListObservedVINs(ctx context.Context, dealerID uint, jobIDs []string) ([]string, error) {
	var vins []string
	for _, id := range jobIDs {
		vins = append(vins, f.observed[id]...)
	}
	return vins, nil
}

func (f *soldScanStore) ListListingsForAbsenceScan(ctx context.Context, dealerID uint, statuses []string) ([]repository.AbsenceListing, error) {
	var out []repository.AbsenceListing
	for _, l := range f.absence {
		if l.DealerID == dealerID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *soldScanStore) ListListings(ctx context.Context, params repository.ListListingsParams) ([]repository.ListingRow, error) {
	start := params.Offset
	if start > len(f.soldRows) {
		start = len(f.soldRows)
	}
	end := start + params.Limit
	if end > len(f.soldRows) {
		end = len(f.soldRows)
	}
	return f.soldRows[start:end], nil
}

func (f *soldScanStore) ListListingsByVIN(ctx context.Context, vin string) ([]models.Listing, error) {
	return f.siblings[vin], nil
}

func (f *soldScanStore) UpdateListingStatus(ctx context.Context, dealerID uint, vin string, status string, changedAt time.Time) error {
	f.updates = append(f.updates, Transition{DealerID: dealerID, VIN: vin, To: status})
	return nil
}

func TestSoldScanIsModelScoped(t *testing.T) {
	// Two completed Camry runs exist; no Land Cruiser run ever completed.
	// The absent Camry goes sold, the Land Cruiser carries no absence
	// signal and must not move.
	store := &soldScanStore{
		dealers:     []models.Dealer{{ID: 1, Active: true}},
		jobsByModel: map[string][]string{"Camry": {"j2", "j1"}},
		observed: map[string][]string{
			"j1": {"4T1CAMRYSEEN00001"},
			"j2": {"4T1CAMRYSEEN00001"},
		},
		absence: []repository.AbsenceListing{
			{DealerID: 1, VIN: "4T1CAMRYSEEN00001", Model: "Camry", Status: models.ListingStatusAvailable},
			{DealerID: 1, VIN: "4T1CAMRYGONE00002", Model: "Camry", Status: models.ListingStatusAvailable},
			{DealerID: 1, VIN: "JTELANDCRUISER003", Model: "Land Cruiser", Status: models.ListingStatusAvailable},
		},
	}

	svc := &SoldScanService{Store: store, AbsentCycles: 2, TransferWindow: 7 * 24 * time.Hour}
	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.MarkedSold != 1 || result.MarkedMissing != 0 {
		t.Fatalf("sold=%d missing=%d, want 1/0", result.MarkedSold, result.MarkedMissing)
	}
	if len(store.updates) != 1 {
		t.Fatalf("updates = %+v, want exactly one", store.updates)
	}
	up := store.updates[0]
	if up.VIN != "4T1CAMRYGONE00002" || up.To != models.ListingStatusSold {
		t.Errorf("update = %+v, want the absent Camry sold", up)
	}
}

func TestTransferRetagScansBeyondOnePage(t *testing.T) {
	now := time.Now().UTC()
	soldAt := now.Add(-48 * time.Hour)
	target := "4T1TRANSFER000510"

	store := &soldScanStore{
		siblings: map[string][]models.Listing{
			target: {
				{DealerID: 1, VIN: target, Status: models.ListingStatusSold, StatusChangedAt: &soldAt},
				{DealerID: 2, VIN: target, Status: models.ListingStatusAvailable, LastSeenAt: soldAt.Add(24 * time.Hour)},
			},
		},
	}
	// The retag candidate sits past the first 500-row page.
	for i := 0; i < 520; i++ {
		store.soldRows = append(store.soldRows, repository.ListingRow{
			DealerID: 1,
			VIN:      fmt.Sprintf("4T1TRANSFER%06d", i),
			Status:   models.ListingStatusSold,
		})
	}

	svc := &SoldScanService{Store: store, AbsentCycles: 2, TransferWindow: 7 * 24 * time.Hour}
	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.MarkedTransfer != 1 {
		t.Fatalf("transfers = %d, want 1", result.MarkedTransfer)
	}
	if len(store.updates) != 1 || store.updates[0].VIN != target || store.updates[0].To != models.ListingStatusTransfer {
		t.Errorf("updates = %+v", store.updates)
	}
}

func TestTransferRetagWithinWindow(t *testing.T) {
	soldAt := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	week := 7 * 24 * time.Hour

	siblings := []models.Listing{
		{DealerID: 1, VIN: "VINAAAAAAAAAAAA01", Status: models.ListingStatusSold},
		{DealerID: 2, VIN: "VINAAAAAAAAAAAA01", Status: models.ListingStatusAvailable, LastSeenAt: soldAt.Add(3 * 24 * time.Hour)},
	}
	tr := ComputeTransferRetag(1, "VINAAAAAAAAAAAA01", soldAt, siblings, week)
	if tr == nil {
		t.Fatal("expected transfer retag")
	}
	if tr.DealerID != 1 || tr.To != models.ListingStatusTransfer {
		t.Errorf("retag = %+v", tr)
	}
}

func TestTransferRetagOutsideWindow(t *testing.T) {
	soldAt := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	week := 7 * 24 * time.Hour

	siblings := []models.Listing{
		{DealerID: 2, VIN: "VINAAAAAAAAAAAA01", Status: models.ListingStatusAvailable, LastSeenAt: soldAt.Add(9 * 24 * time.Hour)},
	}
	if tr := ComputeTransferRetag(1, "VINAAAAAAAAAAAA01", soldAt, siblings, week); tr != nil {
		t.Fatalf("retag = %+v, want nil beyond the window", tr)
	}
}

func TestTransferIgnoresOwnDealerAndSoldSiblings(t *testing.T) {
	soldAt := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	week := 7 * 24 * time.Hour

	siblings := []models.Listing{
		{DealerID: 1, VIN: "VINAAAAAAAAAAAA01", Status: models.ListingStatusAvailable, LastSeenAt: soldAt.Add(time.Hour)},
		{DealerID: 3, VIN: "VINAAAAAAAAAAAA01", Status: models.ListingStatusSold, LastSeenAt: soldAt.Add(time.Hour)},
	}
	if tr := ComputeTransferRetag(1, "VINAAAAAAAAAAAA01", soldAt, siblings, week); tr != nil {
		t.Fatalf("retag = %+v, want nil", tr)
	}
}
