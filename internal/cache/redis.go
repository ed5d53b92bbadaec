package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"catalog-analytics-service/internal/domain"
)

// AnalyticsCache keeps analytics snapshots in Redis keyed by a generation
// counter. Every catalog write bumps the counter, so older snapshots are
// never served again and simply expire.
type AnalyticsCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewAnalyticsCache(client *redis.Client, prefix string, ttl time.Duration) *AnalyticsCache {
	return &AnalyticsCache{client: client, ttl: ttl, prefix: prefix}
}

func (c *AnalyticsCache) genKey() string { return c.prefix + ":analytics:gen" }

func (c *AnalyticsCache) snapshotKey(gen int64) string {
	return c.prefix + ":analytics:snapshot:" + strconv.FormatInt(gen, 10)
}

func (c *AnalyticsCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.genKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache: read generation: %w", err)
	}
	return gen, nil
}

// Load returns the snapshot of the current generation, or nil on a miss.
func (c *AnalyticsCache) Load(ctx context.Context) (*domain.AnalyticsSnapshot, int64, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return nil, 0, err
	}
	raw, err := c.client.Get(ctx, c.snapshotKey(gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("cache: read snapshot: %w", err)
	}
	var snap domain.AnalyticsSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		// a corrupt entry is a miss; the next Store overwrites it
		return nil, gen, nil
	}
	return &snap, gen, nil
}

func (c *AnalyticsCache) Store(ctx context.Context, gen int64, snap *domain.AnalyticsSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("cache: encode snapshot: %w", err)
	}
	return c.client.Set(ctx, c.snapshotKey(gen), raw, c.ttl).Err()
}

func (c *AnalyticsCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, c.genKey()).Err()
}
