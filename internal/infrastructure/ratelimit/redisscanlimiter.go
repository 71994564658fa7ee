package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisScanLimiter is a sliding-window limiter over a Redis sorted set,
// one window per chain. Instances sharing the same Redis see one shared
// quota, which matches how scan-API keys are billed.
type RedisScanLimiter struct {
	client *redis.Client
	// limits maps chain name to requests per minute; 0 or absent = unlimited.
	limits map[string]int
}

// NewRedisScanLimiter creates a limiter with per-chain per-minute limits.
func NewRedisScanLimiter(client *redis.Client, limits map[string]int) *RedisScanLimiter {
	return &RedisScanLimiter{
		client: client,
		limits: limits,
	}
}

func (l *RedisScanLimiter) Allow(ctx context.Context, chain string) (bool, error) {
	limit := l.limits[chain]
	if limit <= 0 {
		return true, nil
	}

	now := time.Now()
	window := time.Minute
	key := fmt.Sprintf("scanlimit:%s", chain)
	windowStart := now.Add(-window).UnixNano()
	nowNano := now.UnixNano()

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart))
	zcard := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(nowNano), Member: nowNano})
	pipe.Expire(ctx, key, window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to execute pipeline: %w", err)
	}

	return zcard.Val() < int64(limit), nil
}
