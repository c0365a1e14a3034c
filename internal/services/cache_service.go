package services

import (
	"context"
	"errors"
	"fmt"

	"influnest/internal/models"
)

// CacheService refreshes the cached record of every campaign that changed.
// The record is re-read from the store, so a late event can only write the
// latest committed version.
type CacheService struct {
	store CampaignReader
	cache CampaignRefresher
}

// NewCacheService creates a new CacheService instance
func NewCacheService(store CampaignReader, cache CampaignRefresher) *CacheService {
	return &CacheService{store: store, cache: cache}
}

// Process re-caches the event's campaign
func (s *CacheService) Process(ctx context.Context, event *models.CampaignEvent) error {
	if !event.HasCampaign() {
		return nil
	}

	campaign, err := s.store.GetCampaign(ctx, event.Campaign)
	if errors.Is(err, models.ErrCampaignNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", event.Campaign, err)
	}

	if err := s.cache.Set(ctx, campaign); err != nil {
		return fmt.Errorf("failed to refresh %s: %w", event.Campaign, err)
	}
	return nil
}

// Name returns the service name
func (s *CacheService) Name() string {
	return "CacheService"
}
