package cache

import (
	"context"
	"fmt"
	"time"

	"example.com/partybot/config"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// nameTTL bounds how long a resolved display name may be reused
const nameTTL = 10 * time.Minute

// NameCache caches resolved guild display names in Redis. It is optional:
// when disabled every lookup misses and the caller resolves via the platform.
type NameCache struct {
	client  *redis.Client
	enabled bool
}

// NewNameCache creates a new name cache
func NewNameCache(cfg config.RedisConfig) (*NameCache, error) {
	if !cfg.Enabled {
		return &NameCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return &NameCache{client: client, enabled: true}, nil
}

// nameKey generates the cache key for a guild member's display name
func nameKey(guildID, userID string) string {
	return fmt.Sprintf("name:%s:%s", guildID, userID)
}

// Get returns the cached display name, or "" on a miss
func (c *NameCache) Get(ctx context.Context, guildID, userID string) string {
	if !c.enabled {
		return ""
	}
	name, err := c.client.Get(ctx, nameKey(guildID, userID)).Result()
	if err != nil {
		return ""
	}
	return name
}

// Set stores a resolved display name. Failures are ignored: the cache is
// purely an optimization.
func (c *NameCache) Set(ctx context.Context, guildID, userID, name string) {
	if !c.enabled {
		return
	}
	c.client.Set(ctx, nameKey(guildID, userID), name, nameTTL)
}

// Close closes the Redis connection
func (c *NameCache) Close() error {
	if !c.enabled || c.client == nil {
		return nil
	}
	return c.client.Close()
}
