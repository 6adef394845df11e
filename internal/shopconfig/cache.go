package shopconfig

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "shopconfig:"

// putIfNewer stores a record only when no newer version is cached, so a
// reader that loaded an old row cannot overwrite the one a save just wrote.
var putIfNewer = redis.NewScript(`
local cur = redis.call("HGET", KEYS[1], "version")
if cur and tonumber(cur) > tonumber(ARGV[1]) then
  return 0
end
redis.call("HSET", KEYS[1], "version", ARGV[1], "data", ARGV[2])
if tonumber(ARGV[3]) > 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[3])
end
return 1
`)

// Cache keeps serialised configurations in Redis for the public endpoint.
// Entries are versioned by UpdatedAt. A nil Cache or one without a client is
// a no-op.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(shop string) string {
	return cacheKeyPrefix + shop
}

// Get loads the cached configuration of shop. It reports whether the key existed.
func (c *Cache) Get(ctx context.Context, shop string) (Configuration, bool, error) {
	if c == nil || c.client == nil || shop == "" {
		return Configuration{}, false, nil
	}
	data, err := c.client.HGet(ctx, cacheKey(shop), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Configuration{}, false, nil
		}
		return Configuration{}, false, err
	}
	var cfg Configuration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Configuration{}, false, err
	}
	return cfg, true, nil
}

// Set stores cfg with the configured TTL unless a record with a later
// UpdatedAt is already cached. It reports whether cfg was written.
func (c *Cache) Set(ctx context.Context, cfg Configuration) (bool, error) {
	if c == nil || c.client == nil || cfg.Shop == "" {
		return false, nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return false, err
	}
	stored, err := putIfNewer.Run(ctx, c.client, []string{cacheKey(cfg.Shop)},
		cfg.UpdatedAt.UnixMicro(), data, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// Invalidate removes the cached configuration of shop.
func (c *Cache) Invalidate(ctx context.Context, shop string) error {
	if c == nil || c.client == nil || shop == "" {
		return nil
	}
	return c.client.Del(ctx, cacheKey(shop)).Err()
}
