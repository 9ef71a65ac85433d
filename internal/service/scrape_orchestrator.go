package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dealerwatch/internal/blob"
	"dealerwatch/internal/fetch"
	"dealerwatch/internal/models"
	"dealerwatch/internal/parser"
	"dealerwatch/internal/repository"
	"dealerwatch/internal/urlbuilder"
)

// Fetcher is the outbound transport the orchestrator schedules through its
// gates. Satisfied by fetch.Client.
type Fetcher interface {
	Scrape(ctx context.Context, url string) (*fetch.Result, error)
	Extract(ctx context.Context, url string, schema map[string]any) (*fetch.Result, error)
}

// ScrapeOrchestratorService runs scrape jobs: it resolves inventory URLs,
// schedules fetches under a per-job concurrency gate and rate gate, drives
// retry and fallback per task, and hands parsed rows to the observation
// writer. It is the only writer of scrape task rows. Task failure never
// fails the job.
type ScrapeOrchestratorService struct {
	Store      repository.Repository
	Fetcher    Fetcher
	Blobs      blob.Store
	Writer     *ObservationWriterService
	Reconciler *ReconcilerService
	SoldScan   *SoldScanService
	Logger     *zap.Logger

	// Parsers resolves the adapter for a backend type; nil means the
	// built-in registry.
	Parsers func(backendType string) (parser.Parser, error)

	MaxConcurrency int
	RPMLimit       int
	MaxAttempts    int
	BackoffBase    time.Duration
	TaskTimeout    time.Duration
	VDPPerDealer   int

	mu        sync.Mutex
	cancelled map[string]struct{}
}

type JobRequest struct {
	Model      string
	Region     *string
	IncludeVDP bool
}

type JobResult struct {
	JobID        string    `json:"job_id"`
	Status       string    `json:"status"`
	TargetCount  int       `json:"target_count"`
	SuccessCount int       `json:"success_count"`
	FailCount    int       `json:"fail_count"`
	EmptyCount   int       `json:"empty_count"`
	Observations int       `json:"observations"`
	PriceEvents  int       `json:"price_events"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
}

type taskUnit struct {
	dealer models.Dealer
	url    string
}

type taskOutcome struct {
	status       string
	observations int
	priceEvents  int
}

// ErrNoDealers is the only job-level failure: nothing could be scheduled.
var ErrNoDealers = errors.New("no active dealers match the job filters")

// RunJob executes one scrape run synchronously and returns its summary.
func (s *ScrapeOrchestratorService) RunJob(ctx context.Context, req JobRequest) (JobResult, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		return JobResult{}, fmt.Errorf("model is required")
	}
	if _, ok := urlbuilder.LookupModel(model); !ok {
		return JobResult{}, fmt.Errorf("unknown model %q", model)
	}

	dealers, err := s.Store.ListActiveDealers(ctx, req.Region)
	if err != nil {
		return JobResult{}, err
	}

	units := make([]taskUnit, 0, len(dealers))
	for _, dealer := range dealers {
		if strings.TrimSpace(dealer.InventoryURLTemplate) == "" {
			continue
		}
		url, err := urlbuilder.Build(dealer, model)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("skipping dealer with unbuildable URL",
					zap.Uint("dealer_id", dealer.ID), zap.Error(err))
			}
			continue
		}
		units = append(units, taskUnit{dealer: dealer, url: url})
	}
	if len(units) == 0 {
		return JobResult{}, ErrNoDealers
	}

	startedAt := time.Now().UTC()
	job := &models.ScrapeJob{
		ID:          uuid.NewString(),
		CreatedAt:   startedAt,
		StartedAt:   &startedAt,
		Model:       model,
		Region:      req.Region,
		Status:      models.JobStatusRunning,
		TargetCount: len(units),
	}
	if err := s.Store.InsertScrapeJob(ctx, job); err != nil {
		return JobResult{}, err
	}

	// Both gates are scoped to this job, not shared across jobs.
	gates := fetch.NewGates(s.maxConcurrency(), s.rpmLimit())

	outcomes := make([]taskOutcome, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency())
	for i, unit := range units {
		i, unit := i, unit
		g.Go(func() error {
			if s.isCancelled(job.ID) {
				outcomes[i] = taskOutcome{status: "skipped"}
				return nil
			}
			outcomes[i] = s.processTask(gctx, job, unit, gates, req.IncludeVDP)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return JobResult{}, err
	}

	result := JobResult{JobID: job.ID, TargetCount: len(units), StartedAt: startedAt}
	for _, outcome := range outcomes {
		switch outcome.status {
		case models.TaskStatusSuccess:
			result.SuccessCount++
		case models.TaskStatusFailed:
			result.FailCount++
		case models.TaskStatusEmpty:
			result.EmptyCount++
		}
		result.Observations += outcome.observations
		result.PriceEvents += outcome.priceEvents
	}

	result.CompletedAt = time.Now().UTC()
	result.Status = jobStatus(result, s.isCancelled(job.ID))
	if err := s.Store.UpdateScrapeJob(ctx, job.ID, map[string]any{
		"status":       result.Status,
		"completed_at": result.CompletedAt,
	}); err != nil {
		return result, err
	}

	if s.SoldScan != nil && !s.isCancelled(job.ID) {
		if _, err := s.SoldScan.Run(ctx); err != nil && s.Logger != nil {
			s.Logger.Error("post-job sold scan failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	s.forget(job.ID)
	return result, nil
}

// Cancel stops scheduling new tasks for a job. In-flight tasks run to
// completion; written observations and listings stay valid.
func (s *ScrapeOrchestratorService) Cancel(ctx context.Context, jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return fmt.Errorf("job id is required")
	}
	s.mu.Lock()
	if s.cancelled == nil {
		s.cancelled = map[string]struct{}{}
	}
	s.cancelled[jobID] = struct{}{}
	s.mu.Unlock()
	return s.Store.UpdateScrapeJob(ctx, jobID, map[string]any{"status": models.JobStatusCancelled})
}

func (s *ScrapeOrchestratorService) isCancelled(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cancelled[jobID]
	return ok
}

func (s *ScrapeOrchestratorService) forget(jobID string) {
	s.mu.Lock()
	delete(s.cancelled, jobID)
	s.mu.Unlock()
}

func (s *ScrapeOrchestratorService) parserFor(backendType string) (parser.Parser, error) {
	if s.Parsers != nil {
		return s.Parsers(backendType)
	}
	return parser.ForBackend(backendType)
}

func (s *ScrapeOrchestratorService) processTask(ctx context.Context, job *models.ScrapeJob, unit taskUnit, gates *fetch.Gates, includeVDP bool) taskOutcome {
	adapter, err := s.parserFor(unit.dealer.BackendType)
	if err != nil {
		s.recordAttempt(ctx, job.ID, unit, 1, models.TaskStatusFailed, nil, err)
		s.bumpCounters(ctx, job.ID, models.TaskStatusFailed)
		return taskOutcome{status: models.TaskStatusFailed}
	}

	maxAttempts := s.maxAttempts()
	emptyRetried := false

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			s.recordAttempt(ctx, job.ID, unit, attempt, models.TaskStatusFailed, nil, err)
			s.bumpCounters(ctx, job.ID, models.TaskStatusFailed)
			return taskOutcome{status: models.TaskStatusFailed}
		}

		result, httpStatus, err := s.fetchOnce(ctx, gates, unit.url)
		if err != nil {
			if fetch.IsRetryable(err) && attempt < maxAttempts {
				s.recordAttempt(ctx, job.ID, unit, attempt, models.TaskStatusRetry, httpStatus, err)
				s.backoff(ctx, attempt)
				continue
			}
			s.recordAttempt(ctx, job.ID, unit, attempt, models.TaskStatusFailed, httpStatus, err)
			s.bumpCounters(ctx, job.ID, models.TaskStatusFailed)
			return taskOutcome{status: models.TaskStatusFailed}
		}

		rows, parseErr := adapter.Parse(result.BestContent())
		if parseErr != nil {
			if attempt < maxAttempts {
				s.recordAttempt(ctx, job.ID, unit, attempt, models.TaskStatusRetry, httpStatus, parseErr)
				s.backoff(ctx, attempt)
				continue
			}
			// Out of attempts. A parse failure ends the same way an empty
			// page does: through the structured extraction fallback, then
			// empty, never failed.
			rows = s.extractFallback(ctx, gates, adapter, unit.url)
			if len(rows) == 0 {
				s.recordAttempt(ctx, job.ID, unit, attempt, models.TaskStatusEmpty, httpStatus, parseErr)
				s.bumpCounters(ctx, job.ID, models.TaskStatusEmpty)
				return taskOutcome{status: models.TaskStatusEmpty}
			}
		}

		if len(rows) == 0 {
			// An empty parse gets one more pass over the same URL, then a
			// structured extraction attempt, before the task goes empty.
			if !emptyRetried && attempt < maxAttempts {
				emptyRetried = true
				s.recordAttempt(ctx, job.ID, unit, attempt, models.TaskStatusRetry, httpStatus, fmt.Errorf("parser returned no rows"))
				s.backoff(ctx, attempt)
				continue
			}
			rows = s.extractFallback(ctx, gates, adapter, unit.url)
			if len(rows) == 0 {
				s.recordAttempt(ctx, job.ID, unit, attempt, models.TaskStatusEmpty, httpStatus, nil)
				s.bumpCounters(ctx, job.ID, models.TaskStatusEmpty)
				return taskOutcome{status: models.TaskStatusEmpty}
			}
		}

		outcome, ingestErr := s.ingestRows(ctx, job, unit, result, rows, includeVDP, gates, adapter)
		if ingestErr != nil {
			s.recordAttempt(ctx, job.ID, unit, attempt, models.TaskStatusFailed, httpStatus, ingestErr)
			s.bumpCounters(ctx, job.ID, models.TaskStatusFailed)
			return taskOutcome{status: models.TaskStatusFailed}
		}
		s.recordAttempt(ctx, job.ID, unit, attempt, models.TaskStatusSuccess, httpStatus, nil)
		s.bumpCounters(ctx, job.ID, models.TaskStatusSuccess)
		return outcome
	}

	// Unreachable: the final attempt always returns.
	return taskOutcome{status: models.TaskStatusFailed}
}

// fetchOnce holds both gates for the duration of one outbound request. The
// concurrency slot is always released; the rate token is spent either way.
func (s *ScrapeOrchestratorService) fetchOnce(ctx context.Context, gates *fetch.Gates, url string) (*fetch.Result, *int, error) {
	release, err := gates.Enter(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	fetchCtx := ctx
	if s.TaskTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.TaskTimeout)
		defer cancel()
	}
	result, err := s.Fetcher.Scrape(fetchCtx, url)
	if err != nil {
		var apiErr *fetch.APIError
		if errors.As(err, &apiErr) {
			status := apiErr.Status
			return nil, &status, err
		}
		return nil, nil, err
	}
	return result, nil, nil
}

var extractSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"vehicles": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"vin":              map[string]any{"type": "string"},
					"advertised_price": map[string]any{"type": "number"},
					"msrp":             map[string]any{"type": "number"},
					"vdp_url":          map[string]any{"type": "string"},
				},
			},
		},
	},
}

func (s *ScrapeOrchestratorService) extractFallback(ctx context.Context, gates *fetch.Gates, adapter parser.Parser, url string) []parser.Row {
	release, err := gates.Enter(ctx)
	if err != nil {
		return nil
	}
	defer release()
	result, err := s.Fetcher.Extract(ctx, url, extractSchema)
	if err != nil || result == nil {
		return nil
	}
	rows, err := adapter.Parse(result.BestContent())
	if err != nil {
		return nil
	}
	return rows
}

func (s *ScrapeOrchestratorService) ingestRows(ctx context.Context, job *models.ScrapeJob, unit taskUnit, result *fetch.Result, rows []parser.Row, includeVDP bool, gates *fetch.Gates, adapter parser.Parser) (taskOutcome, error) {
	observedAt := time.Now().UTC()
	blobKey := s.storeBlob(ctx, job.ID, unit.dealer.ID, observedAt, result)

	normalized := make([]NormalizedRow, 0, len(rows))
	for _, row := range rows {
		normalized = append(normalized, s.toNormalized(job, unit, row, observedAt, blobKey, models.SourceScrapeInventory))
	}

	writeRes, err := s.Writer.WriteBatch(ctx, normalized)
	if err != nil {
		return taskOutcome{}, err
	}
	recRes, err := s.Reconciler.Reconcile(ctx, writeRes.Accepted)
	if err != nil {
		return taskOutcome{}, err
	}
	outcome := taskOutcome{
		status:       models.TaskStatusSuccess,
		observations: writeRes.Written,
		priceEvents:  recRes.PriceEvents,
	}

	if includeVDP {
		obs, events := s.focusVDP(ctx, job, unit, rows, gates, adapter)
		outcome.observations += obs
		outcome.priceEvents += events
	}

	if err := s.Store.UpdateDealerLastScraped(ctx, unit.dealer.ID, observedAt); err != nil && s.Logger != nil {
		s.Logger.Warn("update dealer last_scraped_at failed", zap.Uint("dealer_id", unit.dealer.ID), zap.Error(err))
	}
	return outcome, nil
}

// focusVDP upgrades rows that surfaced without a price: their detail pages
// are fetched through the same gates and ingested at VDP trust rank.
func (s *ScrapeOrchestratorService) focusVDP(ctx context.Context, job *models.ScrapeJob, unit taskUnit, rows []parser.Row, gates *fetch.Gates, adapter parser.Parser) (int, int) {
	budget := s.VDPPerDealer
	if budget <= 0 {
		budget = 5
	}
	observations, priceEvents := 0, 0
	for _, row := range rows {
		if budget == 0 {
			break
		}
		if row.VDPURL == nil || *row.VDPURL == "" || row.AdvertisedPrice != nil {
			continue
		}
		budget--

		release, err := gates.Enter(ctx)
		if err != nil {
			return observations, priceEvents
		}
		result, err := s.Fetcher.Scrape(ctx, *row.VDPURL)
		release()
		if err != nil {
			continue
		}
		vdpRows, err := adapter.Parse(result.BestContent())
		if err != nil {
			continue
		}
		observedAt := time.Now().UTC()
		blobKey := s.storeBlob(ctx, job.ID, unit.dealer.ID, observedAt, result)
		var normalized []NormalizedRow
		for _, vdpRow := range vdpRows {
			if vdpRow.VIN != row.VIN {
				continue
			}
			normalized = append(normalized, s.toNormalized(job, unit, vdpRow, observedAt, blobKey, models.SourceScrapeVDP))
		}
		if len(normalized) == 0 {
			continue
		}
		writeRes, err := s.Writer.WriteBatch(ctx, normalized)
		if err != nil {
			continue
		}
		recRes, err := s.Reconciler.Reconcile(ctx, writeRes.Accepted)
		if err != nil {
			continue
		}
		observations += writeRes.Written
		priceEvents += recRes.PriceEvents
	}
	return observations, priceEvents
}

func (s *ScrapeOrchestratorService) toNormalized(job *models.ScrapeJob, unit taskUnit, row parser.Row, observedAt time.Time, blobKey *string, source string) NormalizedRow {
	payload := map[string]any{
		"url":     unit.url,
		"backend": unit.dealer.BackendType,
	}
	if row.Raw != nil {
		payload["parsed"] = row.Raw
	}
	if row.Status != nil {
		payload["status"] = *row.Status
	}
	vehicle := VehicleData{
		Make:  "Toyota",
		Model: job.Model,
		Year:  row.Year,
		Trim:  row.Trim,
		MSRP:  row.MSRP,
	}
	if row.Model != nil && *row.Model != "" {
		vehicle.Model = *row.Model
	}
	if len(row.Features) > 0 {
		vehicle.Features = map[string]any{"scraped": row.Features}
	}
	return NormalizedRow{
		DealerID:        unit.dealer.ID,
		VIN:             row.VIN,
		AdvertisedPrice: row.AdvertisedPrice,
		MSRP:            row.MSRP,
		VDPURL:          row.VDPURL,
		StockNumber:     row.StockNumber,
		Status:          row.Status,
		Vehicle:         vehicle,
		Payload:         payload,
		RawBlobKey:      blobKey,
		Source:          source,
		SourceRank:      models.RankForSource(source),
		ObservedAt:      observedAt,
		JobID:           job.ID,
	}
}

func (s *ScrapeOrchestratorService) storeBlob(ctx context.Context, jobID string, dealerID uint, at time.Time, result *fetch.Result) *string {
	if s.Blobs == nil || result == nil || result.Empty() {
		return nil
	}
	ext := "md"
	content := result.Markdown
	if content == "" {
		ext = "html"
		content = result.BestContent()
	}
	key := blob.Key(jobID, dealerID, at, ext)
	if err := s.Blobs.Put(ctx, key, strings.NewReader(content)); err != nil {
		if s.Logger != nil {
			s.Logger.Warn("raw blob store failed", zap.String("key", key), zap.Error(err))
		}
		return nil
	}
	return &key
}

// recordAttempt writes one scrape task row per attempt-outcome.
func (s *ScrapeOrchestratorService) recordAttempt(ctx context.Context, jobID string, unit taskUnit, attempt int, status string, httpStatus *int, cause error) {
	now := time.Now().UTC()
	task := &models.ScrapeTask{
		JobID:       jobID,
		DealerID:    unit.dealer.ID,
		URL:         unit.url,
		Attempt:     attempt,
		Status:      status,
		HTTPStatus:  httpStatus,
		StartedAt:   &now,
		CompletedAt: &now,
	}
	if cause != nil {
		task.Error = strPtr(cause.Error())
	}
	if err := s.Store.InsertScrapeTask(ctx, task); err != nil && s.Logger != nil {
		s.Logger.Error("insert scrape task failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (s *ScrapeOrchestratorService) bumpCounters(ctx context.Context, jobID, status string) {
	success, fail, empty := 0, 0, 0
	switch status {
	case models.TaskStatusSuccess:
		success = 1
	case models.TaskStatusFailed:
		fail = 1
	case models.TaskStatusEmpty:
		empty = 1
	default:
		return
	}
	if err := s.Store.IncrementJobCounters(ctx, jobID, success, fail, empty); err != nil && s.Logger != nil {
		s.Logger.Error("increment job counters failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

// backoff sleeps exponentially with jitter, honoring cancellation.
func (s *ScrapeOrchestratorService) backoff(ctx context.Context, attempt int) {
	base := s.BackoffBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	delay := base << (attempt - 1)
	delay += time.Duration(rand.Int63n(int64(base)))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (s *ScrapeOrchestratorService) maxConcurrency() int {
	if s.MaxConcurrency <= 0 {
		return 5
	}
	return s.MaxConcurrency
}

func (s *ScrapeOrchestratorService) rpmLimit() int {
	if s.RPMLimit <= 0 {
		return 100
	}
	return s.RPMLimit
}

func (s *ScrapeOrchestratorService) maxAttempts() int {
	if s.MaxAttempts <= 0 {
		return 2
	}
	return s.MaxAttempts
}

func jobStatus(result JobResult, cancelled bool) string {
	if cancelled {
		return models.JobStatusCancelled
	}
	switch {
	case result.FailCount == 0:
		return models.JobStatusSuccess
	case result.SuccessCount > 0 || result.EmptyCount > 0:
		return models.JobStatusPartial
	default:
		return models.JobStatusFailed
	}
}
