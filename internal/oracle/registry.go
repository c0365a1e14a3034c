package oracle

import (
	"context"
	"log/slog"
	"time"

	"influnest/internal/models"
	"influnest/internal/storage"
)

// Store is the slice of storage.Repository the registry needs
type Store interface {
	GetOracleConfig(ctx context.Context) (*models.OracleConfig, error)
	InitOracleConfig(ctx context.Context, cfg *models.OracleConfig) error
	UpdateOracleConfig(ctx context.Context, mutate storage.OracleMutation) (*models.OracleConfig, error)
}

// Dispatcher receives committed registry events
type Dispatcher interface {
	Dispatch(ctx context.Context, event *models.CampaignEvent)
}

// Registry manages the process-wide record naming the administrator and the
// only identity allowed to report campaign metrics
type Registry struct {
	store      Store
	dispatcher Dispatcher
	now        func() time.Time
}

// NewRegistry creates a registry. dispatcher may be nil.
func NewRegistry(store Store, dispatcher Dispatcher, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{store: store, dispatcher: dispatcher, now: now}
}

// Initialize creates the registry. The caller becomes administrator. Fails
// if the registry already exists.
func (r *Registry) Initialize(ctx context.Context, caller, oracle models.Identity) (*models.OracleConfig, error) {
	if caller.IsUnset() {
		return nil, models.ErrMissingCaller
	}
	if oracle.IsUnset() {
		return nil, models.ErrInvalidIdentity
	}

	cfg := &models.OracleConfig{
		Administrator: caller,
		Oracle:        oracle,
		UpdatedAt:     r.now().UTC(),
	}
	if err := r.store.InitOracleConfig(ctx, cfg); err != nil {
		return nil, err
	}

	slog.Info("🔮 Oracle registry initialized",
		"administrator", caller,
		"oracle", oracle,
	)
	r.emit(ctx, models.NewCampaignEvent(models.EventOracleInitialized, models.CampaignKey{}, caller, 0, cfg.UpdatedAt).
		With("oracle", oracle.String()))

	return cfg, nil
}

// Rotate replaces the oracle. Only the administrator may rotate.
func (r *Registry) Rotate(ctx context.Context, caller, newOracle models.Identity) (*models.OracleConfig, error) {
	if caller.IsUnset() {
		return nil, models.ErrMissingCaller
	}
	if newOracle.IsUnset() {
		return nil, models.ErrInvalidIdentity
	}

	var previous models.Identity
	cfg, err := r.store.UpdateOracleConfig(ctx, func(cfg *models.OracleConfig) error {
		if cfg.Administrator != caller {
			return models.ErrUnauthorizedAdmin
		}
		previous = cfg.Oracle
		cfg.Oracle = newOracle
		cfg.UpdatedAt = r.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("🔮 Oracle rotated",
		"previous", previous,
		"oracle", newOracle,
	)
	r.emit(ctx, models.NewCampaignEvent(models.EventOracleRotated, models.CampaignKey{}, caller, 0, cfg.UpdatedAt).
		With("previous_oracle", previous.String()).
		With("oracle", newOracle.String()))

	return cfg, nil
}

// Authorize checks that caller is the current oracle. The record is read on
// every call so a rotation takes effect immediately.
func (r *Registry) Authorize(ctx context.Context, caller models.Identity) error {
	if caller.IsUnset() {
		return models.ErrMissingCaller
	}
	cfg, err := r.store.GetOracleConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.Oracle != caller {
		return models.ErrUnauthorizedOracle
	}
	return nil
}

// Current returns the registry record
func (r *Registry) Current(ctx context.Context) (*models.OracleConfig, error) {
	return r.store.GetOracleConfig(ctx)
}

func (r *Registry) emit(ctx context.Context, event *models.CampaignEvent) {
	if r.dispatcher != nil {
		r.dispatcher.Dispatch(ctx, event)
	}
}
