package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"dealerwatch/internal/fetch"
	"dealerwatch/internal/models"
	"dealerwatch/internal/parser"
	"dealerwatch/internal/repository"
)

// fakeStore backs the pipeline with in-memory maps. Methods the tests never
// reach fall through to the embedded nil interface.
type fakeStore struct {
	repository.Repository
	mu           sync.Mutex
	dealers      []models.Dealer
	observations []models.Observation
	tasks        []models.ScrapeTask
	jobs         map[string]*models.ScrapeJob
	success      int
	fail         int
	empty        int
	listings     map[string]models.Listing
	vehicles     map[string]models.Vehicle
	events       []models.PriceEvent
	uploads      []*models.Upload
}

func newFakeStore(dealers ...models.Dealer) *fakeStore {
	return &fakeStore{
		dealers:  dealers,
		jobs:     map[string]*models.ScrapeJob{},
		listings: map[string]models.Listing{},
		vehicles: map[string]models.Vehicle{},
	}
}

func pairKeyOf(dealerID uint, vin string) string { return fmt.Sprintf("%d/%s", dealerID, vin) }

func (f *fakeStore) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (f *fakeStore) ListActiveDealers(ctx context.Context, region *string) ([]models.Dealer, error) {
	return f.dealers, nil
}

func (f *fakeStore) ListDealers(ctx context.Context, params repository.ListDealersParams) ([]models.Dealer, error) {
	start := params.Offset
	if start > len(f.dealers) {
		start = len(f.dealers)
	}
	end := start + params.Limit
	if params.Limit <= 0 || end > len(f.dealers) {
		end = len(f.dealers)
	}
	return f.dealers[start:end], nil
}

func (f *fakeStore) GetVehicleByVIN(ctx context.Context, vin string) (*models.Vehicle, error) {
	return f.GetVehicleByVINTx(ctx, nil, vin)
}

func (f *fakeStore) InsertUpload(ctx context.Context, item *models.Upload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.ID = uint64(len(f.uploads) + 1)
	f.uploads = append(f.uploads, item)
	return nil
}

func (f *fakeStore) SaveUpload(ctx context.Context, item *models.Upload) error {
	return nil
}

func (f *fakeStore) InsertScrapeJob(ctx context.Context, item *models.ScrapeJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[item.ID] = item
	return nil
}

func (f *fakeStore) UpdateScrapeJob(ctx context.Context, id string, updates map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.jobs[id]; ok {
		if status, ok := updates["status"].(string); ok {
			job.Status = status
		}
	}
	return nil
}

func (f *fakeStore) IncrementJobCounters(ctx context.Context, id string, success, fail, empty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.success += success
	f.fail += fail
	f.empty += empty
	return nil
}

func (f *fakeStore) InsertScrapeTask(ctx context.Context, item *models.ScrapeTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, *item)
	return nil
}

func (f *fakeStore) UpdateDealerLastScraped(ctx context.Context, id uint, at time.Time) error {
	return nil
}

func (f *fakeStore) InsertObservationsTx(ctx context.Context, tx *gorm.DB, items []models.Observation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observations = append(f.observations, items...)
	return nil
}

func (f *fakeStore) GetVehicleByVINTx(ctx context.Context, tx *gorm.DB, vin string) (*models.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.vehicles[vin]; ok {
		out := v
		return &out, nil
	}
	return nil, nil
}

func (f *fakeStore) SaveVehicleTx(ctx context.Context, tx *gorm.DB, item *models.Vehicle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vehicles[item.VIN] = *item
	return nil
}

func (f *fakeStore) GetListingTx(ctx context.Context, tx *gorm.DB, dealerID uint, vin string) (*models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.listings[pairKeyOf(dealerID, vin)]; ok {
		out := l
		return &out, nil
	}
	return nil, nil
}

func (f *fakeStore) SaveListingTx(ctx context.Context, tx *gorm.DB, item *models.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listings[pairKeyOf(item.DealerID, item.VIN)] = *item
	return nil
}

func (f *fakeStore) InsertPriceEventTx(ctx context.Context, tx *gorm.DB, item *models.PriceEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *item)
	return nil
}

// fakeFetcher serves canned responses per URL.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]*fetch.Result
	failures  map[string]error
	calls     map[string]int
}

func (f *fakeFetcher) Scrape(ctx context.Context, url string) (*fetch.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[url]++
	if err, ok := f.failures[url]; ok {
		return nil, err
	}
	if res, ok := f.responses[url]; ok {
		return res, nil
	}
	return &fetch.Result{URL: url}, nil
}

func (f *fakeFetcher) Extract(ctx context.Context, url string, schema map[string]any) (*fetch.Result, error) {
	return &fetch.Result{URL: url}, nil
}

func newOrchestrator(store *fakeStore, fetcher Fetcher) *ScrapeOrchestratorService {
	writer := &ObservationWriterService{Store: store}
	return &ScrapeOrchestratorService{
		Store:       store,
		Fetcher:     fetcher,
		Writer:      writer,
		Reconciler:  NewReconciler(store, nil),
		MaxAttempts: 2,
		BackoffBase: time.Millisecond,
	}
}

func testDealer(id uint, slug string) models.Dealer {
	return models.Dealer{
		ID:                   id,
		Name:                 fmt.Sprintf("Dealer %d", id),
		HomepageURL:          fmt.Sprintf("https://%s.example.com", slug),
		BackendType:          "DEALER_COM",
		InventoryURLTemplate: fmt.Sprintf("https://%s.example.com/srp/{model_slug}", slug),
		TemplateScope:        "absolute",
		Active:               true,
	}
}

func TestJobContinuesPastFailedTask(t *testing.T) {
	store := newFakeStore(testDealer(1, "alpha"), testDealer(2, "beta"))
	fetcher := &fakeFetcher{
		failures: map[string]error{
			"https://alpha.example.com/srp/camry": &fetch.APIError{Status: http.StatusServiceUnavailable},
		},
		responses: map[string]*fetch.Result{
			"https://beta.example.com/srp/camry": {
				Markdown: "VIN: JTEBBBBB9876X4321\nSale Price: $31,500\nAvailable",
			},
		},
	}

	svc := newOrchestrator(store, fetcher)
	result, err := svc.RunJob(context.Background(), JobRequest{Model: "Camry"})
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}

	if result.FailCount != 1 || result.SuccessCount != 1 {
		t.Fatalf("fail=%d success=%d, want 1/1", result.FailCount, result.SuccessCount)
	}
	if result.Status != models.JobStatusPartial {
		t.Errorf("status = %s, want partial", result.Status)
	}
	if got := fetcher.calls["https://alpha.example.com/srp/camry"]; got != 2 {
		t.Errorf("failing URL fetched %d times, want exactly 2 attempts", got)
	}

	// One task row per attempt-outcome: retry then failed for alpha,
	// success for beta.
	var alphaStatuses []string
	for _, task := range store.tasks {
		if task.DealerID == 1 {
			alphaStatuses = append(alphaStatuses, task.Status)
			if task.HTTPStatus == nil || *task.HTTPStatus != http.StatusServiceUnavailable {
				t.Errorf("task http status = %v, want 503", task.HTTPStatus)
			}
		}
	}
	if len(alphaStatuses) != 2 || alphaStatuses[0] != models.TaskStatusRetry || alphaStatuses[1] != models.TaskStatusFailed {
		t.Errorf("alpha task statuses = %v", alphaStatuses)
	}

	if store.success != 1 || store.fail != 1 {
		t.Errorf("incremental counters success=%d fail=%d", store.success, store.fail)
	}
	if len(store.observations) != 1 {
		t.Fatalf("observations = %d, want 1", len(store.observations))
	}
	if _, ok := store.listings[pairKeyOf(2, "JTEBBBBB9876X4321")]; !ok {
		t.Error("listing for the successful dealer should exist")
	}
}

func TestEmptyParseFallsBackThenMarksEmpty(t *testing.T) {
	store := newFakeStore(testDealer(1, "alpha"))
	fetcher := &fakeFetcher{
		responses: map[string]*fetch.Result{
			"https://alpha.example.com/srp/camry": {Markdown: "# No inventory matched your search"},
		},
	}

	svc := newOrchestrator(store, fetcher)
	result, err := svc.RunJob(context.Background(), JobRequest{Model: "Camry"})
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if result.EmptyCount != 1 {
		t.Fatalf("empty = %d, want 1", result.EmptyCount)
	}
	// Retried once on the same URL before the extract fallback.
	if got := fetcher.calls["https://alpha.example.com/srp/camry"]; got != 2 {
		t.Errorf("URL fetched %d times, want 2", got)
	}
	if result.Status != models.JobStatusSuccess {
		t.Errorf("status = %s, empty tasks are not failures", result.Status)
	}
}

// erroringParser stands in for an adapter whose Parse can fail.
type erroringParser struct{}

func (erroringParser) Backend() string { return "DEALER_COM" }

func (erroringParser) Parse(content string) ([]parser.Row, error) {
	return nil, fmt.Errorf("malformed inventory payload")
}

func TestParseErrorEndsEmptyAfterFallback(t *testing.T) {
	store := newFakeStore(testDealer(1, "alpha"))
	fetcher := &fakeFetcher{
		responses: map[string]*fetch.Result{
			"https://alpha.example.com/srp/camry": {Markdown: "VIN: JTEBBBBB9876X4321"},
		},
	}

	svc := newOrchestrator(store, fetcher)
	svc.Parsers = func(string) (parser.Parser, error) { return erroringParser{}, nil }

	result, err := svc.RunJob(context.Background(), JobRequest{Model: "Camry"})
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if result.EmptyCount != 1 || result.FailCount != 0 {
		t.Fatalf("empty=%d fail=%d, want 1/0", result.EmptyCount, result.FailCount)
	}
	if result.Status != models.JobStatusSuccess {
		t.Errorf("status = %s, a parse failure is not a task failure", result.Status)
	}

	var statuses []string
	for _, task := range store.tasks {
		statuses = append(statuses, task.Status)
	}
	if len(statuses) != 2 || statuses[0] != models.TaskStatusRetry || statuses[1] != models.TaskStatusEmpty {
		t.Errorf("task statuses = %v, want [retry empty]", statuses)
	}
}

func TestRunJobUnknownModel(t *testing.T) {
	svc := newOrchestrator(newFakeStore(testDealer(1, "alpha")), &fakeFetcher{})
	if _, err := svc.RunJob(context.Background(), JobRequest{Model: "Cybertruck"}); err == nil {
		t.Fatal("expected error for unknown model")
	}
}

func TestRunJobNoDealers(t *testing.T) {
	svc := newOrchestrator(newFakeStore(), &fakeFetcher{})
	_, err := svc.RunJob(context.Background(), JobRequest{Model: "Camry"})
	if err != ErrNoDealers {
		t.Fatalf("err = %v, want ErrNoDealers", err)
	}
}

func TestWriteBatchRejectsNullVINButCommitsRest(t *testing.T) {
	store := newFakeStore()
	writer := &ObservationWriterService{Store: store}

	rows := []NormalizedRow{
		{DealerID: 1, VIN: "JTEAAAAA1234X5678", Source: models.SourceScrapeInventory, ObservedAt: time.Now()},
		{DealerID: 1, VIN: "", Source: models.SourceScrapeInventory, ObservedAt: time.Now()},
		{DealerID: 1, VIN: "JTEBBBBB9876X4321", Source: models.SourceScrapeInventory, ObservedAt: time.Now()},
	}
	res, err := writer.WriteBatch(context.Background(), rows)
	if err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if res.Written != 2 {
		t.Errorf("written = %d, want 2", res.Written)
	}
	if len(res.Rejected) != 1 || res.Rejected[0].Reason != "missing VIN" {
		t.Errorf("rejected = %+v", res.Rejected)
	}
	if len(store.observations) != 2 {
		t.Errorf("stored observations = %d", len(store.observations))
	}
}

func TestWriteBatchPriceDefaultRule(t *testing.T) {
	store := newFakeStore()
	writer := &ObservationWriterService{Store: store}

	msrp := dec(57345)
	rows := []NormalizedRow{{
		DealerID:   1,
		VIN:        "JTEAAAAA1234X5678",
		MSRP:       msrp,
		Source:     models.SourceScrapeInventory,
		ObservedAt: time.Now(),
	}}
	res, err := writer.WriteBatch(context.Background(), rows)
	if err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if len(res.Accepted) != 1 {
		t.Fatalf("accepted = %d", len(res.Accepted))
	}
	row := res.Accepted[0]
	if row.AdvertisedPrice == nil || !row.AdvertisedPrice.Equal(*msrp) {
		t.Errorf("advertised price = %v, want MSRP", row.AdvertisedPrice)
	}
	assumptions, ok := row.Payload["assumptions"].(map[string]any)
	if !ok || assumptions["ad_price_equals_msrp"] != true {
		t.Errorf("payload assumptions = %v", row.Payload["assumptions"])
	}

	// Both prices absent stays null, never zero.
	rows[0].AdvertisedPrice = nil
	rows[0].MSRP = nil
	res, err = writer.WriteBatch(context.Background(), rows)
	if err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if res.Accepted[0].AdvertisedPrice != nil {
		t.Error("price should stay null when both sides are absent")
	}
}
