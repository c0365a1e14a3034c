package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"influnest/internal/models"

	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCampaign(influencer models.Identity, createdAt int64) *models.Campaign {
	return &models.Campaign{
		Influencer:  influencer,
		Name:        "Summer launch",
		AmountTotal: 1000,
		Target:      models.Metrics{Likes: 100},
		DeadlineTS:  createdAt + 3600,
		CreatedAt:   createdAt,
		Status:      models.StatusPending,
		Posts:       []models.Post{},
	}
}

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	influencer := models.Identity(keypair.MustRandom().Address())

	campaign := newTestCampaign(influencer, 100)
	require.NoError(t, repo.CreateCampaign(ctx, campaign))

	err := repo.CreateCampaign(ctx, newTestCampaign(influencer, 100))
	assert.ErrorIs(t, err, models.ErrCampaignExists)

	got, err := repo.GetCampaign(ctx, campaign.Key())
	require.NoError(t, err)
	assert.Equal(t, campaign, got)

	// Returned records are copies
	got.Posts = append(got.Posts, models.Post{PostID: "p1"})
	again, err := repo.GetCampaign(ctx, campaign.Key())
	require.NoError(t, err)
	assert.Empty(t, again.Posts)

	_, err = repo.GetCampaign(ctx, models.CampaignKey{Influencer: influencer, CreatedAt: 101})
	assert.ErrorIs(t, err, models.ErrCampaignNotFound)
}

func TestMemoryRepository_UpdateCampaign(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	influencer := models.Identity(keypair.MustRandom().Address())
	campaign := newTestCampaign(influencer, 100)
	require.NoError(t, repo.CreateCampaign(ctx, campaign))

	t.Run("failed mutation writes nothing", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := repo.UpdateCampaign(ctx, campaign.Key(), func(_ context.Context, c *models.Campaign) error {
			c.AmountPaid = 500
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := repo.GetCampaign(ctx, campaign.Key())
		require.NoError(t, err)
		assert.Zero(t, got.AmountPaid)
		assert.Zero(t, got.Version)
	})

	t.Run("successful mutation is committed", func(t *testing.T) {
		updated, err := repo.UpdateCampaign(ctx, campaign.Key(), func(_ context.Context, c *models.Campaign) error {
			c.AmountPaid = 300
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(300), updated.AmountPaid)
		assert.Equal(t, uint64(1), updated.Version)

		got, err := repo.GetCampaign(ctx, campaign.Key())
		require.NoError(t, err)
		assert.Equal(t, uint64(300), got.AmountPaid)
		assert.Equal(t, uint64(1), got.Version)
	})

	t.Run("version is owned by the store", func(t *testing.T) {
		updated, err := repo.UpdateCampaign(ctx, campaign.Key(), func(_ context.Context, c *models.Campaign) error {
			c.Version = 99
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(2), updated.Version)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := repo.UpdateCampaign(ctx, models.CampaignKey{Influencer: influencer, CreatedAt: 1}, func(context.Context, *models.Campaign) error {
			return nil
		})
		assert.ErrorIs(t, err, models.ErrCampaignNotFound)
	})
}

func TestMemoryRepository_UpdatesAreSerialized(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	campaign := newTestCampaign(models.Identity(keypair.MustRandom().Address()), 100)
	require.NoError(t, repo.CreateCampaign(ctx, campaign))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.UpdateCampaign(ctx, campaign.Key(), func(_ context.Context, c *models.Campaign) error {
				c.AmountPaid++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.GetCampaign(ctx, campaign.Key())
	require.NoError(t, err)
	assert.Equal(t, uint64(50), got.AmountPaid)
	assert.Equal(t, uint64(50), got.Version)
}

func TestMemoryRepository_ListCampaigns(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	alice := models.Identity(keypair.MustRandom().Address())
	bob := models.Identity(keypair.MustRandom().Address())

	require.NoError(t, repo.CreateCampaign(ctx, newTestCampaign(alice, 100)))
	require.NoError(t, repo.CreateCampaign(ctx, newTestCampaign(alice, 200)))
	active := newTestCampaign(bob, 300)
	active.Status = models.StatusActive
	active.Brand = alice
	require.NoError(t, repo.CreateCampaign(ctx, active))

	all, err := repo.ListCampaigns(ctx, models.CampaignFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(300), all[0].CreatedAt)
	assert.Equal(t, int64(100), all[2].CreatedAt)

	status := models.StatusPending
	pending, err := repo.ListCampaigns(ctx, models.CampaignFilter{Status: &status})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	byBrand, err := repo.ListCampaigns(ctx, models.CampaignFilter{Brand: &alice})
	require.NoError(t, err)
	require.Len(t, byBrand, 1)
	assert.Equal(t, bob, byBrand[0].Influencer)

	page, err := repo.ListCampaigns(ctx, models.CampaignFilter{Influencer: &alice, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(100), page[0].CreatedAt)

	count, err := repo.CountCampaigns(ctx, models.CampaignFilter{Influencer: &alice, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	empty, err := repo.ListCampaigns(ctx, models.CampaignFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryRepository_OracleConfig(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	admin := models.Identity(keypair.MustRandom().Address())
	oracle := models.Identity(keypair.MustRandom().Address())

	_, err := repo.GetOracleConfig(ctx)
	assert.ErrorIs(t, err, models.ErrOracleNotInitialized)

	_, err = repo.UpdateOracleConfig(ctx, func(*models.OracleConfig) error { return nil })
	assert.ErrorIs(t, err, models.ErrOracleNotInitialized)

	require.NoError(t, repo.InitOracleConfig(ctx, &models.OracleConfig{Administrator: admin, Oracle: oracle}))
	err = repo.InitOracleConfig(ctx, &models.OracleConfig{Administrator: oracle, Oracle: oracle})
	assert.ErrorIs(t, err, models.ErrOracleAlreadyInitialized)

	next := models.Identity(keypair.MustRandom().Address())
	updated, err := repo.UpdateOracleConfig(ctx, func(cfg *models.OracleConfig) error {
		cfg.Oracle = next
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, next, updated.Oracle)
	assert.Equal(t, admin, updated.Administrator)

	got, err := repo.GetOracleConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, next, got.Oracle)
}

func TestMemoryRepository_CampaignEvents(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	key := models.CampaignKey{Influencer: models.Identity(keypair.MustRandom().Address()), CreatedAt: 100}
	other := models.CampaignKey{Influencer: key.Influencer, CreatedAt: 200}

	for _, e := range []models.CampaignEvent{
		{EventID: "1", EventType: models.EventCampaignCreated, Campaign: key},
		{EventID: "2", EventType: models.EventCampaignCreated, Campaign: other},
		{EventID: "3", EventType: models.EventCampaignFunded, Campaign: key},
		{EventID: "4", EventType: models.EventPostAdded, Campaign: key},
	} {
		event := e
		require.NoError(t, repo.SaveCampaignEvent(ctx, &event))
	}

	events, err := repo.ListCampaignEvents(ctx, key, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, models.EventCampaignFunded, events[1].EventType)

	page, err := repo.ListCampaignEvents(ctx, key, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "4", page[0].EventID)
}
