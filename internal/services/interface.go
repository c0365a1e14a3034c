package services

import (
	"context"

	"influnest/internal/models"
)

// Service defines the interface that all event sinks must implement
type Service interface {
	// Process handles a single committed lifecycle event. Errors are logged
	// by the orchestrator and never undo the operation that emitted the event.
	// Note: event is shared between services and must not be modified.
	Process(ctx context.Context, event *models.CampaignEvent) error

	// Name returns the service name for logging
	Name() string
}

// EventSaver is the slice of storage.Repository the audit service needs
type EventSaver interface {
	SaveCampaignEvent(ctx context.Context, event *models.CampaignEvent) error
}

// Publisher streams events to an external broker
type Publisher interface {
	Publish(ctx context.Context, event *models.CampaignEvent) error
}

// CampaignReader loads the committed campaign record
type CampaignReader interface {
	GetCampaign(ctx context.Context, key models.CampaignKey) (*models.Campaign, error)
}

// CampaignRefresher stores a campaign unless a newer version is cached
type CampaignRefresher interface {
	Set(ctx context.Context, campaign *models.Campaign) error
}
