package gormrepository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dealerwatch/internal/models"
	"dealerwatch/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- Dealers ----------------------------------------------------------------

func (s *Store) UpsertDealer(ctx context.Context, item *models.Dealer) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if item.ID != 0 {
		return s.db.WithContext(ctx).Save(item).Error
	}
	if item.Code != nil && strings.TrimSpace(*item.Code) != "" {
		return s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name",
				"region",
				"homepage_url",
				"backend_type",
				"inventory_url_template",
				"template_scope",
				"active",
			}),
		}).Create(item).Error
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetDealerByID(ctx context.Context, id uint) (*models.Dealer, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Dealer
	err := s.db.WithContext(ctx).Model(&models.Dealer{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListDealers(ctx context.Context, params repository.ListDealersParams) ([]models.Dealer, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.dealerQuery(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "id")
	var items []models.Dealer
	if err := query.Limit(normalizeLimit(params.Limit, 200)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountDealers(ctx context.Context, params repository.ListDealersParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.dealerQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) dealerQuery(ctx context.Context, params repository.ListDealersParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Dealer{})
	if params.Active != nil {
		query = query.Where("active = ?", *params.Active)
	}
	if params.Region != nil && strings.TrimSpace(*params.Region) != "" {
		query = query.Where("region = ?", strings.TrimSpace(*params.Region))
	}
	if params.BackendType != nil && strings.TrimSpace(*params.BackendType) != "" {
		query = query.Where("backend_type = ?", strings.TrimSpace(*params.BackendType))
	}
	return query
}

func (s *Store) ListActiveDealers(ctx context.Context, region *string) ([]models.Dealer, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Dealer{}).Where("active = ?", true)
	if region != nil && strings.TrimSpace(*region) != "" {
		query = query.Where("region = ?", strings.TrimSpace(*region))
	}
	var items []models.Dealer
	if err := query.Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateDealerLastScraped(ctx context.Context, id uint, at time.Time) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Dealer{}).
		Where("id = ?", id).
		Update("last_scraped_at", at).
		Error
}

// --- Vehicles ---------------------------------------------------------------

func (s *Store) GetVehicleByVIN(ctx context.Context, vin string) (*models.Vehicle, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return getVehicle(s.db.WithContext(ctx), vin)
}

func (s *Store) GetVehicleByVINTx(ctx context.Context, tx *gorm.DB, vin string) (*models.Vehicle, error) {
	if s == nil || tx == nil {
		return nil, nil
	}
	return getVehicle(tx.WithContext(ctx), vin)
}

func getVehicle(db *gorm.DB, vin string) (*models.Vehicle, error) {
	vin = strings.ToUpper(strings.TrimSpace(vin))
	if vin == "" {
		return nil, nil
	}
	var item models.Vehicle
	err := db.Model(&models.Vehicle{}).Where("vin = ?", vin).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SaveVehicleTx(ctx context.Context, tx *gorm.DB, item *models.Vehicle) error {
	if s == nil || tx == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.VIN) == "" {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "vin"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"make",
			"model",
			"year",
			"trim",
			"drivetrain",
			"transmission",
			"exterior_color",
			"interior_color",
			"msrp",
			"invoice_price",
			"features",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListVehicles(ctx context.Context, params repository.ListVehiclesParams) ([]models.Vehicle, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.vehicleQuery(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	var items []models.Vehicle
	if err := query.Limit(normalizeLimit(params.Limit, 200)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountVehicles(ctx context.Context, params repository.ListVehiclesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.vehicleQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) vehicleQuery(ctx context.Context, params repository.ListVehiclesParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Vehicle{})
	if params.Model != nil && strings.TrimSpace(*params.Model) != "" {
		query = query.Where("LOWER(model) = LOWER(?)", strings.TrimSpace(*params.Model))
	}
	if params.Year != nil && *params.Year > 0 {
		query = query.Where("year = ?", *params.Year)
	}
	if params.Trim != nil && strings.TrimSpace(*params.Trim) != "" {
		query = query.Where("LOWER(trim) = LOWER(?)", strings.TrimSpace(*params.Trim))
	}
	return query
}

// --- Observations -----------------------------------------------------------

func (s *Store) InsertObservationsTx(ctx context.Context, tx *gorm.DB, items []models.Observation) error {
	if s == nil || tx == nil || len(items) == 0 {
		return nil
	}
	return createInBatches(tx.WithContext(ctx), items, 200)
}

func (s *Store) ListObservations(ctx context.Context, params repository.ListObservationsParams) ([]models.Observation, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.observationQuery(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "observed_at")
	var items []models.Observation
	if err := query.Limit(normalizeLimit(params.Limit, 200)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountObservations(ctx context.Context, params repository.ListObservationsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.observationQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) observationQuery(ctx context.Context, params repository.ListObservationsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Observation{})
	if params.DealerID != nil && *params.DealerID != 0 {
		query = query.Where("dealer_id = ?", *params.DealerID)
	}
	if params.VIN != nil && strings.TrimSpace(*params.VIN) != "" {
		query = query.Where("vin = ?", strings.ToUpper(strings.TrimSpace(*params.VIN)))
	}
	if params.JobID != nil && strings.TrimSpace(*params.JobID) != "" {
		query = query.Where("job_id = ?", strings.TrimSpace(*params.JobID))
	}
	if params.Source != nil && strings.TrimSpace(*params.Source) != "" {
		query = query.Where("source = ?", strings.TrimSpace(*params.Source))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("observed_at >= ?", *params.Since)
	}
	return query
}

func (s *Store) ListObservedVINs(ctx context.Context, dealerID uint, jobIDs []string) ([]string, error) {
	if s == nil || s.db == nil || dealerID == 0 {
		return nil, nil
	}
	jobIDs = cleanStrings(jobIDs)
	if len(jobIDs) == 0 {
		return nil, nil
	}
	var vins []string
	if err := s.db.WithContext(ctx).
		Model(&models.Observation{}).
		Distinct("vin").
		Where("dealer_id = ?", dealerID).
		Where("job_id IN ?", jobIDs).
		Pluck("vin", &vins).Error; err != nil {
		return nil, err
	}
	return vins, nil
}

// --- Listings ---------------------------------------------------------------

func (s *Store) GetListingTx(ctx context.Context, tx *gorm.DB, dealerID uint, vin string) (*models.Listing, error) {
	if s == nil || tx == nil || dealerID == 0 {
		return nil, nil
	}
	vin = strings.ToUpper(strings.TrimSpace(vin))
	if vin == "" {
		return nil, nil
	}
	var item models.Listing
	err := tx.WithContext(ctx).
		Model(&models.Listing{}).
		Where("dealer_id = ? AND vin = ?", dealerID, vin).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SaveListingTx(ctx context.Context, tx *gorm.DB, item *models.Listing) error {
	if s == nil || tx == nil || item == nil {
		return nil
	}
	if item.DealerID == 0 || strings.TrimSpace(item.VIN) == "" {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "dealer_id"}, {Name: "vin"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"vdp_url",
			"stock_number",
			"status",
			"advertised_price",
			"price_delta_msrp",
			"first_seen_at",
			"last_seen_at",
			"source_rank",
			"price_observed_at",
			"status_changed_at",
		}),
	}).Create(item).Error
}

const listingRowSelect = `
	l.dealer_id AS dealer_id,
	d.name AS dealer_name,
	d.region AS region,
	l.vin AS vin,
	v.model AS model,
	v.year AS year,
	v.trim AS trim,
	l.status AS status,
	l.advertised_price AS advertised_price,
	v.msrp AS msrp,
	l.price_delta_msrp AS price_delta_msrp,
	l.vdp_url AS vdp_url,
	l.first_seen_at AS first_seen_at,
	l.last_seen_at AS last_seen_at,
	l.source_rank AS source_rank
`

func (s *Store) ListListings(ctx context.Context, params repository.ListListingsParams) ([]repository.ListingRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.listingQuery(ctx, params).Select(listingRowSelect)
	orderBy := strings.TrimSpace(params.OrderBy)
	if orderBy == "" {
		orderBy = "l.last_seen_at"
	}
	direction := "desc"
	if params.Asc != nil && *params.Asc {
		direction = "asc"
	}
	var rows []repository.ListingRow
	if err := query.
		Order(orderBy + " " + direction).
		Limit(normalizeLimit(params.Limit, 200)).
		Offset(normalizeOffset(params.Offset)).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) CountListings(ctx context.Context, params repository.ListListingsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.listingQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) listingQuery(ctx context.Context, params repository.ListListingsParams) *gorm.DB {
	query := s.db.WithContext(ctx).
		Table("listings AS l").
		Joins("JOIN dealers AS d ON d.id = l.dealer_id").
		Joins("JOIN vehicles AS v ON v.vin = l.vin")
	if params.DealerID != nil && *params.DealerID != 0 {
		query = query.Where("l.dealer_id = ?", *params.DealerID)
	}
	if params.VIN != nil && strings.TrimSpace(*params.VIN) != "" {
		query = query.Where("l.vin = ?", strings.ToUpper(strings.TrimSpace(*params.VIN)))
	}
	if params.Model != nil && strings.TrimSpace(*params.Model) != "" {
		query = query.Where("LOWER(v.model) = LOWER(?)", strings.TrimSpace(*params.Model))
	}
	if params.Region != nil && strings.TrimSpace(*params.Region) != "" {
		query = query.Where("d.region = ?", strings.TrimSpace(*params.Region))
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("l.status = ?", strings.TrimSpace(*params.Status))
	}
	if params.MaxPrice != nil {
		query = query.Where("l.advertised_price IS NOT NULL AND l.advertised_price <= ?", *params.MaxPrice)
	}
	if params.BelowMSRP != nil && *params.BelowMSRP {
		query = query.Where("l.price_delta_msrp < 0")
	}
	if params.SeenSince != nil && !params.SeenSince.IsZero() {
		query = query.Where("l.last_seen_at >= ?", *params.SeenSince)
	}
	return query
}

func (s *Store) ListListingsByVIN(ctx context.Context, vin string) ([]models.Listing, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	vin = strings.ToUpper(strings.TrimSpace(vin))
	if vin == "" {
		return nil, nil
	}
	var items []models.Listing
	if err := s.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("vin = ?", vin).
		Order("last_seen_at desc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListListingsForAbsenceScan(ctx context.Context, dealerID uint, statuses []string) ([]repository.AbsenceListing, error) {
	if s == nil || s.db == nil || dealerID == 0 {
		return nil, nil
	}
	statuses = cleanStrings(statuses)
	if len(statuses) == 0 {
		statuses = []string{models.ListingStatusAvailable, models.ListingStatusMissing}
	}
	var items []repository.AbsenceListing
	if err := s.db.WithContext(ctx).
		Table("listings AS l").
		Joins("JOIN vehicles AS v ON v.vin = l.vin").
		Select("l.dealer_id AS dealer_id, l.vin AS vin, v.model AS model, l.status AS status").
		Where("l.dealer_id = ?", dealerID).
		Where("l.status IN ?", statuses).
		Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateListingStatus(ctx context.Context, dealerID uint, vin string, status string, changedAt time.Time) error {
	if s == nil || s.db == nil || dealerID == 0 {
		return nil
	}
	vin = strings.ToUpper(strings.TrimSpace(vin))
	if vin == "" || strings.TrimSpace(status) == "" {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("dealer_id = ? AND vin = ?", dealerID, vin).
		Updates(map[string]any{"status": status, "status_changed_at": changedAt}).
		Error
}

func (s *Store) ListingStatusCounts(ctx context.Context, dealerID *uint) ([]repository.StatusCountRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.Listing{}).
		Select("status, COUNT(*) AS count").
		Group("status")
	if dealerID != nil && *dealerID != 0 {
		query = query.Where("dealer_id = ?", *dealerID)
	}
	var rows []repository.StatusCountRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// --- Price events -----------------------------------------------------------

func (s *Store) InsertPriceEventTx(ctx context.Context, tx *gorm.DB, item *models.PriceEvent) error {
	if s == nil || tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) ListPriceEvents(ctx context.Context, params repository.ListPriceEventsParams) ([]models.PriceEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.priceEventQuery(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "observed_at")
	var items []models.PriceEvent
	if err := query.Limit(normalizeLimit(params.Limit, 200)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountPriceEvents(ctx context.Context, params repository.ListPriceEventsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.priceEventQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) priceEventQuery(ctx context.Context, params repository.ListPriceEventsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.PriceEvent{})
	if params.DealerID != nil && *params.DealerID != 0 {
		query = query.Where("dealer_id = ?", *params.DealerID)
	}
	if params.VIN != nil && strings.TrimSpace(*params.VIN) != "" {
		query = query.Where("vin = ?", strings.ToUpper(strings.TrimSpace(*params.VIN)))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("observed_at >= ?", *params.Since)
	}
	return query
}

// --- Scrape jobs ------------------------------------------------------------

func (s *Store) InsertScrapeJob(ctx context.Context, item *models.ScrapeJob) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetScrapeJobByID(ctx context.Context, id string) (*models.ScrapeJob, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var item models.ScrapeJob
	err := s.db.WithContext(ctx).Model(&models.ScrapeJob{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateScrapeJob(ctx context.Context, id string, updates map[string]any) error {
	if s == nil || s.db == nil || len(updates) == 0 {
		return nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.ScrapeJob{}).
		Where("id = ?", id).
		Updates(updates).
		Error
}

func (s *Store) IncrementJobCounters(ctx context.Context, id string, success, fail, empty int) error {
	if s == nil || s.db == nil {
		return nil
	}
	id = strings.TrimSpace(id)
	if id == "" || (success == 0 && fail == 0 && empty == 0) {
		return nil
	}
	updates := map[string]any{}
	if success != 0 {
		updates["success_count"] = gorm.Expr("success_count + ?", success)
	}
	if fail != 0 {
		updates["fail_count"] = gorm.Expr("fail_count + ?", fail)
	}
	if empty != 0 {
		updates["empty_count"] = gorm.Expr("empty_count + ?", empty)
	}
	return s.db.WithContext(ctx).
		Model(&models.ScrapeJob{}).
		Where("id = ?", id).
		Updates(updates).
		Error
}

func (s *Store) ListScrapeJobs(ctx context.Context, params repository.ListScrapeJobsParams) ([]models.ScrapeJob, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.scrapeJobQuery(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	var items []models.ScrapeJob
	if err := query.Limit(normalizeLimit(params.Limit, 200)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountScrapeJobs(ctx context.Context, params repository.ListScrapeJobsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.scrapeJobQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) scrapeJobQuery(ctx context.Context, params repository.ListScrapeJobsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.ScrapeJob{})
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Model != nil && strings.TrimSpace(*params.Model) != "" {
		query = query.Where("LOWER(model) = LOWER(?)", strings.TrimSpace(*params.Model))
	}
	return query
}

func (s *Store) ListRecentCompletedJobIDsForDealer(ctx context.Context, dealerID uint, model string, limit int) ([]string, error) {
	if s == nil || s.db == nil || dealerID == 0 {
		return nil, nil
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, nil
	}
	limit = normalizeLimit(limit, 2)
	var ids []string
	if err := s.db.WithContext(ctx).
		Table("scrape_jobs AS j").
		Select("j.id").
		Joins("JOIN scrape_tasks AS t ON t.job_id = j.id").
		Where("t.dealer_id = ?", dealerID).
		Where("LOWER(j.model) = LOWER(?)", model).
		Where("j.status IN ?", []string{models.JobStatusSuccess, models.JobStatusPartial}).
		Where("j.completed_at IS NOT NULL").
		Group("j.id, j.completed_at").
		Order("j.completed_at desc").
		Limit(limit).
		Pluck("j.id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// --- Scrape tasks -----------------------------------------------------------

func (s *Store) InsertScrapeTask(ctx context.Context, item *models.ScrapeTask) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListScrapeTasks(ctx context.Context, params repository.ListScrapeTasksParams) ([]models.ScrapeTask, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.ScrapeTask{})
	if params.JobID != nil && strings.TrimSpace(*params.JobID) != "" {
		query = query.Where("job_id = ?", strings.TrimSpace(*params.JobID))
	}
	if params.DealerID != nil && *params.DealerID != 0 {
		query = query.Where("dealer_id = ?", *params.DealerID)
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "id")
	var items []models.ScrapeTask
	if err := query.Limit(normalizeLimit(params.Limit, 500)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountScrapeTasksByStatus(ctx context.Context, jobID string) (map[string]int64, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, nil
	}
	var rows []repository.StatusCountRow
	if err := s.db.WithContext(ctx).
		Model(&models.ScrapeTask{}).
		Select("status, COUNT(*) AS count").
		Where("job_id = ?", jobID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// --- Uploads ----------------------------------------------------------------

func (s *Store) InsertUpload(ctx context.Context, item *models.Upload) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) SaveUpload(ctx context.Context, item *models.Upload) error {
	if s == nil || s.db == nil || item == nil || item.ID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) GetUploadByID(ctx context.Context, id uint64) (*models.Upload, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Upload
	err := s.db.WithContext(ctx).Model(&models.Upload{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListUploads(ctx context.Context, params repository.ListUploadsParams) ([]models.Upload, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Upload{})
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "uploaded_at")
	var items []models.Upload
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Analytics --------------------------------------------------------------

func (s *Store) AnalyticsOverview(ctx context.Context) (repository.AnalyticsOverview, error) {
	var out repository.AnalyticsOverview
	if s == nil || s.db == nil {
		return out, nil
	}
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Dealer{}).Count(&out.TotalDealers).Error; err != nil {
		return out, err
	}
	if err := db.Model(&models.Dealer{}).Where("active = ?", true).Count(&out.ActiveDealers).Error; err != nil {
		return out, err
	}
	if err := db.Model(&models.Vehicle{}).Count(&out.TotalVehicles).Error; err != nil {
		return out, err
	}
	if err := db.Model(&models.Listing{}).Count(&out.TotalListings).Error; err != nil {
		return out, err
	}
	statusCounts, err := s.ListingStatusCounts(ctx, nil)
	if err != nil {
		return out, err
	}
	for _, row := range statusCounts {
		switch row.Status {
		case models.ListingStatusAvailable:
			out.AvailableCount = row.Count
		case models.ListingStatusSold:
			out.SoldCount = row.Count
		case models.ListingStatusTransfer:
			out.TransferCount = row.Count
		}
	}
	dayAgo := time.Now().UTC().Add(-24 * time.Hour)
	if err := db.Model(&models.PriceEvent{}).Where("observed_at >= ?", dayAgo).Count(&out.PriceEvents24h).Error; err != nil {
		return out, err
	}
	if err := db.Model(&models.Observation{}).Count(&out.ObservationCount).Error; err != nil {
		return out, err
	}
	return out, nil
}

func (s *Store) DealerInventoryStats(ctx context.Context, limit int) ([]repository.DealerInventoryRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit = normalizeLimit(limit, 100)
	var rows []repository.DealerInventoryRow
	if err := s.db.WithContext(ctx).
		Table("listings AS l").
		Select(`
			l.dealer_id AS dealer_id,
			d.name AS dealer_name,
			COUNT(*) FILTER (WHERE l.status = 'available') AS available_count,
			COUNT(*) FILTER (WHERE l.status = 'sold') AS sold_count,
			AVG(l.price_delta_msrp) AS avg_delta_msrp,
			MAX(l.last_seen_at) AS last_seen_at
		`).
		Joins("JOIN dealers AS d ON d.id = l.dealer_id").
		Group("l.dealer_id, d.name").
		Order("available_count desc").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// --- helpers ----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func createInBatches[T any](db *gorm.DB, items []T, batchSize int) error {
	if len(items) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[i:end]
		if err := db.Create(&chunk).Error; err != nil {
			return err
		}
	}
	return nil
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}
