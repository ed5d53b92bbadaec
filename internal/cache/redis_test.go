package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-analytics-service/internal/domain"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func newTestCache(t *testing.T) (*AnalyticsCache, *redis.Client) {
	client := getRedisClient(t)
	prefix := "test-" + uuid.NewString()
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := client.Keys(ctx, prefix+":*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Close()
	})
	return NewAnalyticsCache(client, prefix, time.Minute), client
}

func sampleSnapshot() *domain.AnalyticsSnapshot {
	return &domain.AnalyticsSnapshot{
		GeneratedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		InventorySummary: []domain.CategoryRollup{
			{CategoryID: 1, Name: "Electronics", ProductCount: 2, TotalValue: decimal.RequireFromString("150.50"),
				AvgPrice: decimal.NewNullDecimal(decimal.RequireFromString("75.25"))},
			{CategoryID: 2, Name: "Empty"},
		},
		TopProducts:      []domain.StockValueEntry{},
		LowStockProducts: []domain.LowStockEntry{},
	}
}

func TestAnalyticsCache_MissThenHit(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	snap, gen, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Equal(t, int64(0), gen)

	require.NoError(t, c.Store(ctx, gen, sampleSnapshot()))

	got, gen2, err := c.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, gen, gen2)
	assert.Equal(t, "Electronics", got.InventorySummary[0].Name)
	assert.True(t, got.InventorySummary[0].TotalValue.Equal(decimal.RequireFromString("150.5")))
	assert.False(t, got.InventorySummary[1].AvgPrice.Valid)
}

func TestAnalyticsCache_InvalidateStartsNewGeneration(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, gen, err := c.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx))
	// computed before the write landed, stored under the old generation
	require.NoError(t, c.Store(ctx, gen, sampleSnapshot()))

	snap, newGen, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Equal(t, gen+1, newGen)
}
