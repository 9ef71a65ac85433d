package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"dealerwatch/internal/models"
	"dealerwatch/internal/repository"
	"dealerwatch/internal/urlbuilder"
)

// DealerRegistryService owns dealer records. Template problems are caught
// here, at write and load time, never during a scrape request.
type DealerRegistryService struct {
	Store  repository.Repository
	Logger *zap.Logger
}

// ValidateAll checks every stored dealer template. Called at startup; a bad
// template is fatal so a broken registry never reaches the orchestrator.
func (s *DealerRegistryService) ValidateAll(ctx context.Context) error {
	dealers, err := listAllDealers(ctx, s.Store)
	if err != nil {
		return err
	}
	for _, dealer := range dealers {
		if strings.TrimSpace(dealer.InventoryURLTemplate) == "" {
			continue
		}
		if err := urlbuilder.ValidateTemplate(dealer.InventoryURLTemplate); err != nil {
			return fmt.Errorf("dealer %d (%s): %w", dealer.ID, dealer.Name, err)
		}
	}
	if s.Logger != nil {
		s.Logger.Info("dealer templates validated", zap.Int("dealers", len(dealers)))
	}
	return nil
}

// Save validates the template, derives its scope, and upserts the dealer.
func (s *DealerRegistryService) Save(ctx context.Context, dealer *models.Dealer) error {
	if dealer == nil {
		return fmt.Errorf("dealer is required")
	}
	if strings.TrimSpace(dealer.Name) == "" {
		return fmt.Errorf("dealer name is required")
	}
	if strings.TrimSpace(dealer.BackendType) == "" {
		return fmt.Errorf("dealer backend type is required")
	}
	dealer.BackendType = strings.ToUpper(strings.TrimSpace(dealer.BackendType))
	if strings.TrimSpace(dealer.InventoryURLTemplate) != "" {
		if err := urlbuilder.ValidateTemplate(dealer.InventoryURLTemplate); err != nil {
			return err
		}
		dealer.TemplateScope = urlbuilder.DeriveScope(dealer.InventoryURLTemplate)
	}
	return s.Store.UpsertDealer(ctx, dealer)
}

// listAllDealers pages through the full dealer table; a single repository
// call caps at 500 rows.
func listAllDealers(ctx context.Context, store repository.Repository) ([]models.Dealer, error) {
	const page = 500
	var out []models.Dealer
	for offset := 0; ; offset += page {
		batch, err := store.ListDealers(ctx, repository.ListDealersParams{Limit: page, Offset: offset})
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if len(batch) < page {
			return out, nil
		}
	}
}

// PreviewURL resolves a dealer's inventory URL for one model without any
// side effects. Handy for operators checking a template.
func (s *DealerRegistryService) PreviewURL(ctx context.Context, dealerID uint, model string) (string, error) {
	dealer, err := s.Store.GetDealerByID(ctx, dealerID)
	if err != nil {
		return "", err
	}
	if dealer == nil {
		return "", fmt.Errorf("dealer %d not found", dealerID)
	}
	return urlbuilder.Build(*dealer, model)
}
