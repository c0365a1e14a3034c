package storage

import (
	"context"

	"influnest/internal/models"
)

// CampaignMutation edits a campaign inside an exclusive, atomic update. If it
// returns an error nothing is written. Side effects performed with ctx join
// the update's transaction where the backend has one.
type CampaignMutation func(ctx context.Context, c *models.Campaign) error

// OracleMutation edits the oracle registry record inside an atomic update
type OracleMutation func(cfg *models.OracleConfig) error

// Repository defines the interface for all storage operations
type Repository interface {
	// Campaigns
	CreateCampaign(ctx context.Context, campaign *models.Campaign) error
	GetCampaign(ctx context.Context, key models.CampaignKey) (*models.Campaign, error)
	ListCampaigns(ctx context.Context, filter models.CampaignFilter) ([]*models.Campaign, error)
	CountCampaigns(ctx context.Context, filter models.CampaignFilter) (int, error)

	// UpdateCampaign serializes with every other update of the same key. The
	// mutation sees the latest committed record and its result is committed
	// only if it returns nil.
	UpdateCampaign(ctx context.Context, key models.CampaignKey, mutate CampaignMutation) (*models.Campaign, error)

	// Oracle registry (singleton)
	GetOracleConfig(ctx context.Context) (*models.OracleConfig, error)
	InitOracleConfig(ctx context.Context, cfg *models.OracleConfig) error
	UpdateOracleConfig(ctx context.Context, mutate OracleMutation) (*models.OracleConfig, error)

	// Lifecycle events
	SaveCampaignEvent(ctx context.Context, event *models.CampaignEvent) error
	ListCampaignEvents(ctx context.Context, key models.CampaignKey, limit, offset int) ([]models.CampaignEvent, error)

	// Health & Maintenance
	Ping(ctx context.Context) error
	Close() error
}
