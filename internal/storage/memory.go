package storage

import (
	"context"
	"sort"
	"sync"

	"influnest/internal/models"
)

// MemoryRepository implements the Repository interface in process memory.
// Updates of one campaign are serialized by a per-key lock, updates of
// different campaigns run in parallel.
type MemoryRepository struct {
	mu        sync.RWMutex
	campaigns map[models.CampaignKey]*models.Campaign
	keyLocks  map[models.CampaignKey]*sync.Mutex
	events    []models.CampaignEvent

	oracleMu sync.Mutex
	oracle   *models.OracleConfig
}

// NewMemoryRepository creates an empty repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		campaigns: make(map[models.CampaignKey]*models.Campaign),
		keyLocks:  make(map[models.CampaignKey]*sync.Mutex),
	}
}

// CreateCampaign stores a new campaign, failing if the key is taken
func (r *MemoryRepository) CreateCampaign(_ context.Context, campaign *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := campaign.Key()
	if _, exists := r.campaigns[key]; exists {
		return models.ErrCampaignExists
	}
	r.campaigns[key] = campaign.Clone()
	r.keyLocks[key] = &sync.Mutex{}
	return nil
}

// GetCampaign returns a copy of the campaign
func (r *MemoryRepository) GetCampaign(_ context.Context, key models.CampaignKey) (*models.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	campaign, ok := r.campaigns[key]
	if !ok {
		return nil, models.ErrCampaignNotFound
	}
	return campaign.Clone(), nil
}

// ListCampaigns returns matching campaigns, newest first
func (r *MemoryRepository) ListCampaigns(_ context.Context, filter models.CampaignFilter) ([]*models.Campaign, error) {
	matched := r.filter(filter)

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*models.Campaign{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// CountCampaigns counts matching campaigns ignoring pagination
func (r *MemoryRepository) CountCampaigns(_ context.Context, filter models.CampaignFilter) (int, error) {
	return len(r.filter(filter)), nil
}

func (r *MemoryRepository) filter(filter models.CampaignFilter) []*models.Campaign {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Campaign, 0, len(r.campaigns))
	for _, c := range r.campaigns {
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		if filter.Influencer != nil && c.Influencer != *filter.Influencer {
			continue
		}
		if filter.Brand != nil && c.Brand != *filter.Brand {
			continue
		}
		out = append(out, c.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].Influencer < out[j].Influencer
	})
	return out
}

// UpdateCampaign applies mutate to a copy and commits it if mutate succeeds
func (r *MemoryRepository) UpdateCampaign(ctx context.Context, key models.CampaignKey, mutate CampaignMutation) (*models.Campaign, error) {
	r.mu.RLock()
	lock, ok := r.keyLocks[key]
	r.mu.RUnlock()
	if !ok {
		return nil, models.ErrCampaignNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	working := r.campaigns[key].Clone()
	r.mu.RUnlock()
	version := working.Version

	if err := mutate(ctx, working); err != nil {
		return nil, err
	}
	working.Version = version + 1

	r.mu.Lock()
	r.campaigns[key] = working.Clone()
	r.mu.Unlock()

	return working, nil
}

// GetOracleConfig returns the registry record
func (r *MemoryRepository) GetOracleConfig(_ context.Context) (*models.OracleConfig, error) {
	r.oracleMu.Lock()
	defer r.oracleMu.Unlock()

	if r.oracle == nil {
		return nil, models.ErrOracleNotInitialized
	}
	cfg := *r.oracle
	return &cfg, nil
}

// InitOracleConfig creates the registry record once
func (r *MemoryRepository) InitOracleConfig(_ context.Context, cfg *models.OracleConfig) error {
	r.oracleMu.Lock()
	defer r.oracleMu.Unlock()

	if r.oracle != nil {
		return models.ErrOracleAlreadyInitialized
	}
	stored := *cfg
	r.oracle = &stored
	return nil
}

// UpdateOracleConfig applies mutate atomically to the registry record
func (r *MemoryRepository) UpdateOracleConfig(_ context.Context, mutate OracleMutation) (*models.OracleConfig, error) {
	r.oracleMu.Lock()
	defer r.oracleMu.Unlock()

	if r.oracle == nil {
		return nil, models.ErrOracleNotInitialized
	}
	working := *r.oracle
	if err := mutate(&working); err != nil {
		return nil, err
	}
	r.oracle = &working
	out := working
	return &out, nil
}

// SaveCampaignEvent appends an event to the audit trail
func (r *MemoryRepository) SaveCampaignEvent(_ context.Context, event *models.CampaignEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

// ListCampaignEvents returns the events of a campaign in occurrence order
func (r *MemoryRepository) ListCampaignEvents(_ context.Context, key models.CampaignKey, limit, offset int) ([]models.CampaignEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.CampaignEvent
	for _, e := range r.events {
		if e.Campaign == key {
			out = append(out, e)
		}
	}

	if offset > 0 {
		if offset >= len(out) {
			return []models.CampaignEvent{}, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping always succeeds
func (r *MemoryRepository) Ping(context.Context) error {
	return nil
}

// Close is a no-op
func (r *MemoryRepository) Close() error {
	return nil
}
