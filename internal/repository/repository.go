package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"dealerwatch/internal/models"
)

// Repository is the single persistence surface. Write paths are owned by
// exactly one component each: observations by the observation writer,
// listings and price events by the reconciler, tasks by the orchestrator.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Dealers
	UpsertDealer(ctx context.Context, item *models.Dealer) error
	GetDealerByID(ctx context.Context, id uint) (*models.Dealer, error)
	ListDealers(ctx context.Context, params ListDealersParams) ([]models.Dealer, error)
	CountDealers(ctx context.Context, params ListDealersParams) (int64, error)
	ListActiveDealers(ctx context.Context, region *string) ([]models.Dealer, error)
	UpdateDealerLastScraped(ctx context.Context, id uint, at time.Time) error

	// Vehicles
	GetVehicleByVIN(ctx context.Context, vin string) (*models.Vehicle, error)
	GetVehicleByVINTx(ctx context.Context, tx *gorm.DB, vin string) (*models.Vehicle, error)
	SaveVehicleTx(ctx context.Context, tx *gorm.DB, item *models.Vehicle) error
	ListVehicles(ctx context.Context, params ListVehiclesParams) ([]models.Vehicle, error)
	CountVehicles(ctx context.Context, params ListVehiclesParams) (int64, error)

	// Observations (append-only)
	InsertObservationsTx(ctx context.Context, tx *gorm.DB, items []models.Observation) error
	ListObservations(ctx context.Context, params ListObservationsParams) ([]models.Observation, error)
	CountObservations(ctx context.Context, params ListObservationsParams) (int64, error)
	ListObservedVINs(ctx context.Context, dealerID uint, jobIDs []string) ([]string, error)

	// Listings (reconciler only)
	GetListingTx(ctx context.Context, tx *gorm.DB, dealerID uint, vin string) (*models.Listing, error)
	SaveListingTx(ctx context.Context, tx *gorm.DB, item *models.Listing) error
	ListListings(ctx context.Context, params ListListingsParams) ([]ListingRow, error)
	CountListings(ctx context.Context, params ListListingsParams) (int64, error)
	ListListingsByVIN(ctx context.Context, vin string) ([]models.Listing, error)
	ListListingsForAbsenceScan(ctx context.Context, dealerID uint, statuses []string) ([]AbsenceListing, error)
	UpdateListingStatus(ctx context.Context, dealerID uint, vin string, status string, changedAt time.Time) error
	ListingStatusCounts(ctx context.Context, dealerID *uint) ([]StatusCountRow, error)

	// Price events (reconciler only)
	InsertPriceEventTx(ctx context.Context, tx *gorm.DB, item *models.PriceEvent) error
	ListPriceEvents(ctx context.Context, params ListPriceEventsParams) ([]models.PriceEvent, error)
	CountPriceEvents(ctx context.Context, params ListPriceEventsParams) (int64, error)

	// Scrape jobs
	InsertScrapeJob(ctx context.Context, item *models.ScrapeJob) error
	GetScrapeJobByID(ctx context.Context, id string) (*models.ScrapeJob, error)
	UpdateScrapeJob(ctx context.Context, id string, updates map[string]any) error
	IncrementJobCounters(ctx context.Context, id string, success, fail, empty int) error
	ListScrapeJobs(ctx context.Context, params ListScrapeJobsParams) ([]models.ScrapeJob, error)
	CountScrapeJobs(ctx context.Context, params ListScrapeJobsParams) (int64, error)
	ListRecentCompletedJobIDsForDealer(ctx context.Context, dealerID uint, model string, limit int) ([]string, error)

	// Scrape tasks (orchestrator only; one row per attempt-outcome)
	InsertScrapeTask(ctx context.Context, item *models.ScrapeTask) error
	ListScrapeTasks(ctx context.Context, params ListScrapeTasksParams) ([]models.ScrapeTask, error)
	CountScrapeTasksByStatus(ctx context.Context, jobID string) (map[string]int64, error)

	// Uploads
	InsertUpload(ctx context.Context, item *models.Upload) error
	SaveUpload(ctx context.Context, item *models.Upload) error
	GetUploadByID(ctx context.Context, id uint64) (*models.Upload, error)
	ListUploads(ctx context.Context, params ListUploadsParams) ([]models.Upload, error)

	// Analytics
	AnalyticsOverview(ctx context.Context) (AnalyticsOverview, error)
	DealerInventoryStats(ctx context.Context, limit int) ([]DealerInventoryRow, error)
}

// ListingRow is a listing joined with its vehicle and dealer for the search
// surface. Read-only.
type ListingRow struct {
	DealerID        uint
	DealerName      string
	Region          *string
	VIN             string
	Model           string
	Year            *int
	Trim            *string
	Status          string
	AdvertisedPrice *decimal.Decimal
	MSRP            *decimal.Decimal
	PriceDeltaMSRP  *decimal.Decimal
	VDPURL          *string
	FirstSeenAt     time.Time
	LastSeenAt      time.Time
	SourceRank      int
}

// AbsenceListing is the slice of a listing the sold scan works on: identity,
// status, and the vehicle model that scopes its absence window. Scrape jobs
// are model-scoped, so absence is only meaningful against jobs for the same
// model.
type AbsenceListing struct {
	DealerID uint
	VIN      string
	Model    string
	Status   string
}

type StatusCountRow struct {
	Status string
	Count  int64
}

type ListDealersParams struct {
	Limit       int
	Offset      int
	Active      *bool
	Region      *string
	BackendType *string
	OrderBy     string
	Asc         *bool
}

type ListVehiclesParams struct {
	Limit   int
	Offset  int
	Model   *string
	Year    *int
	Trim    *string
	OrderBy string
	Asc     *bool
}

type ListObservationsParams struct {
	Limit    int
	Offset   int
	DealerID *uint
	VIN      *string
	JobID    *string
	Source   *string
	Since    *time.Time
	OrderBy  string
	Asc      *bool
}

type ListListingsParams struct {
	Limit     int
	Offset    int
	DealerID  *uint
	VIN       *string
	Model     *string
	Region    *string
	Status    *string
	MaxPrice  *decimal.Decimal
	BelowMSRP *bool
	SeenSince *time.Time
	OrderBy   string
	Asc       *bool
}

type ListPriceEventsParams struct {
	Limit    int
	Offset   int
	DealerID *uint
	VIN      *string
	Since    *time.Time
	OrderBy  string
	Asc      *bool
}

type ListScrapeJobsParams struct {
	Limit   int
	Offset  int
	Status  *string
	Model   *string
	OrderBy string
	Asc     *bool
}

type ListScrapeTasksParams struct {
	Limit    int
	Offset   int
	JobID    *string
	DealerID *uint
	Status   *string
	OrderBy  string
	Asc      *bool
}

type ListUploadsParams struct {
	Limit   int
	Offset  int
	Status  *string
	OrderBy string
	Asc     *bool
}

type AnalyticsOverview struct {
	TotalDealers     int64
	ActiveDealers    int64
	TotalVehicles    int64
	TotalListings    int64
	AvailableCount   int64
	SoldCount        int64
	TransferCount    int64
	PriceEvents24h   int64
	ObservationCount int64
}

type DealerInventoryRow struct {
	DealerID       uint
	DealerName     string
	AvailableCount int64
	SoldCount      int64
	AvgDeltaMSRP   *float64
	LastSeenAt     *time.Time
}
