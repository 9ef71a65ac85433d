package service

import (
	"context"
	"fmt"
	"strings"

	"dealerwatch/internal/models"
	"dealerwatch/internal/repository"
)

// InventoryQueryService is the read-only surface over listings,
// observations, price events, and job status. No write path goes through
// here.
type InventoryQueryService struct {
	Store repository.Repository
}

func (s *InventoryQueryService) SearchListings(ctx context.Context, params repository.ListListingsParams) ([]repository.ListingRow, int64, error) {
	rows, err := s.Store.ListListings(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Store.CountListings(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// VINDetail is the full audit view for one vehicle: identity, every
// dealer's listing, price history, and the raw observation log.
type VINDetail struct {
	Vehicle      *models.Vehicle      `json:"vehicle"`
	Listings     []models.Listing     `json:"listings"`
	PriceEvents  []models.PriceEvent  `json:"price_events"`
	Observations []models.Observation `json:"observations"`
}

func (s *InventoryQueryService) VINDetail(ctx context.Context, vin string) (*VINDetail, error) {
	vin = strings.ToUpper(strings.TrimSpace(vin))
	if vin == "" {
		return nil, fmt.Errorf("vin is required")
	}
	vehicle, err := s.Store.GetVehicleByVIN(ctx, vin)
	if err != nil {
		return nil, err
	}
	if vehicle == nil {
		return nil, nil
	}
	listings, err := s.Store.ListListingsByVIN(ctx, vin)
	if err != nil {
		return nil, err
	}
	events, err := s.Store.ListPriceEvents(ctx, repository.ListPriceEventsParams{VIN: &vin, Limit: 100})
	if err != nil {
		return nil, err
	}
	observations, err := s.Store.ListObservations(ctx, repository.ListObservationsParams{VIN: &vin, Limit: 100})
	if err != nil {
		return nil, err
	}
	return &VINDetail{
		Vehicle:      vehicle,
		Listings:     listings,
		PriceEvents:  events,
		Observations: observations,
	}, nil
}

// JobDetail pairs a job with its per-attempt task rows.
type JobDetail struct {
	Job         *models.ScrapeJob   `json:"job"`
	Tasks       []models.ScrapeTask `json:"tasks"`
	StatusCount map[string]int64    `json:"status_count"`
}

func (s *InventoryQueryService) JobDetail(ctx context.Context, jobID string) (*JobDetail, error) {
	job, err := s.Store.GetScrapeJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	tasks, err := s.Store.ListScrapeTasks(ctx, repository.ListScrapeTasksParams{JobID: &jobID, Limit: 500})
	if err != nil {
		return nil, err
	}
	counts, err := s.Store.CountScrapeTasksByStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &JobDetail{Job: job, Tasks: tasks, StatusCount: counts}, nil
}
