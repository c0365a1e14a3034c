package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"influnest/internal/models"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the campaign is not cached
var ErrMiss = errors.New("campaign not cached")

// CampaignCache is a read-through cache of campaign records. Set never
// replaces an entry with a lower or equal Version, so a fill racing a
// committed update cannot put the older record back.
type CampaignCache interface {
	Get(ctx context.Context, key models.CampaignKey) (*models.Campaign, error)
	Set(ctx context.Context, campaign *models.Campaign) error
}

// setIfNewer writes ARGV[1] unless the cached record already carries a
// version >= ARGV[2]. Undecodable entries are overwritten.
var setIfNewer = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
	local ok, cached = pcall(cjson.decode, current)
	if ok and type(cached) == 'table' and tonumber(cached.version) ~= nil
		and tonumber(cached.version) >= tonumber(ARGV[2]) then
		return 0
	end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// Connect initializes a Redis client from URL or host:port input
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// RedisCampaignCache stores JSON encoded campaigns with a TTL
type RedisCampaignCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCampaignCache(client *redis.Client, ttl time.Duration) *RedisCampaignCache {
	return &RedisCampaignCache{client: client, ttl: ttl}
}

func (c *RedisCampaignCache) Get(ctx context.Context, key models.CampaignKey) (*models.Campaign, error) {
	raw, err := c.client.Get(ctx, Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached campaign: %w", err)
	}

	var campaign models.Campaign
	if err := json.Unmarshal(raw, &campaign); err != nil {
		return nil, fmt.Errorf("failed to decode cached campaign: %w", err)
	}
	return &campaign, nil
}

func (c *RedisCampaignCache) Set(ctx context.Context, campaign *models.Campaign) error {
	raw, err := json.Marshal(campaign)
	if err != nil {
		return fmt.Errorf("failed to encode campaign: %w", err)
	}
	keys := []string{Key(campaign.Key())}
	err = setIfNewer.Run(ctx, c.client, keys, raw, campaign.Version, c.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("failed to cache campaign: %w", err)
	}
	return nil
}

// Key is the redis key of a cached campaign
func Key(key models.CampaignKey) string {
	return "influnest:campaign:" + key.String()
}
