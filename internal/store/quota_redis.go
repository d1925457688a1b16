package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/rates-proxy-go/internal/quota"
)

//go:embed consume.lua
var consumeScript string

// QuotaRedisStore is a Redis implementation of quota.Store, safe across
// multiple concurrently running instances. The consume path runs as a Lua
// script so racing callers cannot both increment past a cap.
//
// Persisted layout: minute record is a hash {count, windowStart} expiring
// with the window; the month counter is a bare integer keyed by the UTC
// calendar month and expiring at the first instant of the following month.
type QuotaRedisStore struct {
	client  *redis.Client
	prefix  string
	consume *redis.Script
}

// NewQuotaRedisStore creates a new Redis-backed quota store.
func NewQuotaRedisStore(client *redis.Client) *QuotaRedisStore {
	return &QuotaRedisStore{
		client:  client,
		prefix:  "quota:",
		consume: redis.NewScript(consumeScript),
	}
}

func (s *QuotaRedisStore) Consume(
	ctx context.Context, now time.Time, window time.Duration, minuteMax, monthMax int64,
) (quota.Usage, bool, error) {
	keys := []string{s.minuteKey(), s.monthKey(now)}
	args := []interface{}{
		now.UnixMilli(),
		window.Milliseconds(),
		minuteMax,
		monthMax,
		quota.NextMonthStart(now).UnixMilli(),
	}

	res, err := s.consume.Run(ctx, s.client, keys, args...).Result()
	if err != nil {
		return quota.Usage{}, false, fmt.Errorf("%w: %w", quota.ErrStoreUnavailable, err)
	}

	reply, ok := res.([]interface{})
	if !ok || len(reply) != 4 {
		return quota.Usage{}, false, fmt.Errorf("%w: unexpected script reply %v", quota.ErrStoreUnavailable, res)
	}

	usage := quota.Usage{
		MinuteCount: toInt64(reply[1]),
		WindowStart: time.UnixMilli(toInt64(reply[2])),
		MonthCount:  toInt64(reply[3]),
	}

	return usage, toInt64(reply[0]) == 1, nil
}

func (s *QuotaRedisStore) Snapshot(
	ctx context.Context, now time.Time, window time.Duration,
) (quota.Usage, error) {
	usage := quota.Usage{WindowStart: now}

	rec, err := s.client.HMGet(ctx, s.minuteKey(), "count", "windowStart").Result()
	if err != nil {
		return quota.Usage{}, fmt.Errorf("%w: %w", quota.ErrStoreUnavailable, err)
	}

	if rec[0] != nil && rec[1] != nil {
		start := time.UnixMilli(parseInt64(rec[1]))
		if now.Sub(start) < window {
			usage.MinuteCount = parseInt64(rec[0])
			usage.WindowStart = start
		}
	}

	month, err := s.client.Get(ctx, s.monthKey(now)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return quota.Usage{}, fmt.Errorf("%w: %w", quota.ErrStoreUnavailable, err)
	}

	usage.MonthCount = month

	return usage, nil
}

func (s *QuotaRedisStore) minuteKey() string {
	return s.prefix + "minute"
}

func (s *QuotaRedisStore) monthKey(now time.Time) string {
	return s.prefix + "month:" + quota.MonthKey(now)
}

func toInt64(v interface{}) int64 {
	n, _ := v.(int64)

	return n
}

func parseInt64(v interface{}) int64 {
	str, ok := v.(string)
	if !ok {
		return 0
	}

	n, _ := strconv.ParseInt(str, 10, 64)

	return n
}

// Compile-time check.
var _ quota.Store = (*QuotaRedisStore)(nil)
