package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dealerwatch/internal/models"
	"dealerwatch/internal/repository"
)

// SoldScanService infers sold and transferred vehicles from absence. A
// listing unseen across the two most recent completed scrape cycles for its
// dealer and model goes sold; a sold VIN resurfacing at another dealer
// within the transfer window is retagged transfer instead. Cycles are
// counted against completed job boundaries, not wall-clock intervals, and
// jobs are model-scoped, so a Camry run never judges the Tacoma inventory.
type SoldScanService struct {
	Store          repository.Repository
	Logger         *zap.Logger
	AbsentCycles   int
	TransferWindow time.Duration
}

func NewSoldScan(store repository.Repository, logger *zap.Logger) *SoldScanService {
	return &SoldScanService{
		Store:          store,
		Logger:         logger,
		AbsentCycles:   2,
		TransferWindow: 7 * 24 * time.Hour,
	}
}

// Transition is one status change the scan decided on. Applying the same
// set twice is a no-op because the From status no longer matches.
type Transition struct {
	DealerID uint
	VIN      string
	From     string
	To       string
}

type ScanResult struct {
	DealersScanned int
	MarkedMissing  int
	MarkedSold     int
	MarkedTransfer int
}

// Run scans every active dealer. Safe to invoke after each job completion
// and from the cron schedule; unchanged data yields no transitions.
func (s *SoldScanService) Run(ctx context.Context) (ScanResult, error) {
	var result ScanResult
	dealers, err := s.Store.ListActiveDealers(ctx, nil)
	if err != nil {
		return result, err
	}
	now := time.Now().UTC()
	for _, dealer := range dealers {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		res, err := s.scanDealer(ctx, dealer.ID, now)
		if err != nil {
			return result, err
		}
		result.DealersScanned++
		result.MarkedMissing += res.MarkedMissing
		result.MarkedSold += res.MarkedSold
	}

	transfers, err := s.retagTransfers(ctx, now)
	if err != nil {
		return result, err
	}
	result.MarkedTransfer = transfers

	if s.Logger != nil && (result.MarkedSold > 0 || result.MarkedTransfer > 0) {
		s.Logger.Info("sold scan applied transitions",
			zap.Int("sold", result.MarkedSold),
			zap.Int("transfer", result.MarkedTransfer),
			zap.Int("missing", result.MarkedMissing))
	}
	return result, nil
}

func (s *SoldScanService) scanDealer(ctx context.Context, dealerID uint, now time.Time) (ScanResult, error) {
	var result ScanResult
	cycles := s.AbsentCycles
	if cycles <= 0 {
		cycles = 2
	}

	listings, err := s.Store.ListListingsForAbsenceScan(ctx, dealerID, nil)
	if err != nil {
		return result, err
	}
	if len(listings) == 0 {
		return result, nil
	}

	byModel := map[string][]repository.AbsenceListing{}
	var modelOrder []string
	for _, listing := range listings {
		if _, ok := byModel[listing.Model]; !ok {
			modelOrder = append(modelOrder, listing.Model)
		}
		byModel[listing.Model] = append(byModel[listing.Model], listing)
	}

	for _, model := range modelOrder {
		jobIDs, err := s.Store.ListRecentCompletedJobIDsForDealer(ctx, dealerID, model, cycles)
		if err != nil {
			return result, err
		}
		if len(jobIDs) == 0 {
			// No completed run for this model yet; its listings carry no
			// absence signal.
			continue
		}

		seenRecent, err := s.observedSet(ctx, dealerID, jobIDs)
		if err != nil {
			return result, err
		}

		transitions := ComputeAbsenceTransitions(byModel[model], seenRecent, len(jobIDs) >= cycles)
		for _, tr := range transitions {
			if err := s.Store.UpdateListingStatus(ctx, tr.DealerID, tr.VIN, tr.To, now); err != nil {
				return result, err
			}
			switch tr.To {
			case models.ListingStatusMissing:
				result.MarkedMissing++
			case models.ListingStatusSold:
				result.MarkedSold++
			}
		}
	}
	return result, nil
}

func (s *SoldScanService) observedSet(ctx context.Context, dealerID uint, jobIDs []string) (map[string]struct{}, error) {
	vins, err := s.Store.ListObservedVINs(ctx, dealerID, jobIDs)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(vins))
	for _, vin := range vins {
		set[vin] = struct{}{}
	}
	return set, nil
}

// ComputeAbsenceTransitions derives status changes from observation absence
// alone. The listings all share one model; seenRecent is the set of VINs
// observed in that model's most recent completed cycles at the dealer, up
// to the absence threshold, and fullWindow reports whether that many cycles
// exist yet. A VIN absent from the full window goes sold; absent from a
// shorter history it only goes missing. Pure, so it is testable without any
// of the fetch or parse machinery.
func ComputeAbsenceTransitions(listings []repository.AbsenceListing, seenRecent map[string]struct{}, fullWindow bool) []Transition {
	var out []Transition
	for _, listing := range listings {
		if _, ok := seenRecent[listing.VIN]; ok {
			// Seen recently. A missing listing that resurfaced flips back
			// through the reconciler, not here.
			continue
		}
		switch listing.Status {
		case models.ListingStatusAvailable:
			if fullWindow {
				out = append(out, Transition{listing.DealerID, listing.VIN, listing.Status, models.ListingStatusSold})
			} else {
				out = append(out, Transition{listing.DealerID, listing.VIN, listing.Status, models.ListingStatusMissing})
			}
		case models.ListingStatusMissing:
			if fullWindow {
				out = append(out, Transition{listing.DealerID, listing.VIN, listing.Status, models.ListingStatusSold})
			}
		}
	}
	return out
}

// retagTransfers finds VINs that went sold at one dealer and then surfaced
// at another within the transfer window.
func (s *SoldScanService) retagTransfers(ctx context.Context, now time.Time) (int, error) {
	window := s.TransferWindow
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	soldStatus := models.ListingStatusSold
	since := now.Add(-window)

	// Collect every sold listing up front; the repository caps a single
	// page at 500 rows.
	const page = 500
	var sold []repository.ListingRow
	for offset := 0; ; offset += page {
		batch, err := s.Store.ListListings(ctx, repository.ListListingsParams{
			Status: &soldStatus,
			Limit:  page,
			Offset: offset,
		})
		if err != nil {
			return 0, err
		}
		sold = append(sold, batch...)
		if len(batch) < page {
			break
		}
	}

	count := 0
	for _, row := range sold {
		siblings, err := s.Store.ListListingsByVIN(ctx, row.VIN)
		if err != nil {
			return 0, err
		}
		var soldAt *time.Time
		for _, l := range siblings {
			if l.DealerID == row.DealerID {
				soldAt = l.StatusChangedAt
			}
		}
		if soldAt == nil || soldAt.Before(since) {
			continue
		}
		retag := ComputeTransferRetag(row.DealerID, row.VIN, *soldAt, siblings, window)
		if retag == nil {
			continue
		}
		if err := s.Store.UpdateListingStatus(ctx, retag.DealerID, retag.VIN, retag.To, now); err != nil {
			return 0, err
		}
		count++
	}
	return count, nil
}

// ComputeTransferRetag decides whether a sold listing should be retagged
// transfer: some other dealer's listing for the same VIN must have been seen
// after the sold transition and within the window.
func ComputeTransferRetag(soldDealerID uint, vin string, soldAt time.Time, siblings []models.Listing, window time.Duration) *Transition {
	deadline := soldAt.Add(window)
	for _, l := range siblings {
		if l.DealerID == soldDealerID {
			continue
		}
		if l.Status == models.ListingStatusSold {
			continue
		}
		if l.LastSeenAt.After(soldAt) && !l.LastSeenAt.After(deadline) {
			return &Transition{
				DealerID: soldDealerID,
				VIN:      vin,
				From:     models.ListingStatusSold,
				To:       models.ListingStatusTransfer,
			}
		}
	}
	return nil
}
