//go:build integration

package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/rates-proxy-go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRedisAddr() string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

func TestQuotaRedisStoreIntegration(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr: getRedisAddr(),
	})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	cleanup := func() {
		keys, _ := client.Keys(ctx, "quota:*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
	}
	cleanup()
	t.Cleanup(cleanup)

	s := store.NewQuotaRedisStore(client)
	now := time.Now()

	t.Run("consume increments both counters", func(t *testing.T) {
		usage, incremented, err := s.Consume(ctx, now, time.Minute, 20, 500)

		require.NoError(t, err)
		assert.True(t, incremented)
		assert.Equal(t, int64(1), usage.MinuteCount)
		assert.Equal(t, int64(1), usage.MonthCount)
	})

	t.Run("consume refuses at the minute cap", func(t *testing.T) {
		usage, incremented, err := s.Consume(ctx, now, time.Minute, 1, 500)

		require.NoError(t, err)
		assert.False(t, incremented)
		assert.GreaterOrEqual(t, usage.MinuteCount, int64(1))
	})

	t.Run("snapshot reads without mutating", func(t *testing.T) {
		before, err := s.Snapshot(ctx, now, time.Minute)
		require.NoError(t, err)

		after, err := s.Snapshot(ctx, now, time.Minute)
		require.NoError(t, err)

		assert.Equal(t, before.MinuteCount, after.MinuteCount)
		assert.Equal(t, before.MonthCount, after.MonthCount)
	})

	t.Run("minute window replaced after it elapses", func(t *testing.T) {
		later := now.Add(2 * time.Minute)

		usage, incremented, err := s.Consume(ctx, later, time.Minute, 20, 500)

		require.NoError(t, err)
		assert.True(t, incremented)
		assert.Equal(t, int64(1), usage.MinuteCount)
		assert.Greater(t, usage.MonthCount, int64(1), "month counter survives the minute reset")
	})
}
