package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis implements the same trailing window on a sorted set per key so that
// every instance behind a load balancer sees the same counts.
type Redis struct {
	rdb    redis.Cmdable
	prefix string
	window time.Duration
	max    int
	clock  Clock
}

// NewRedis builds a Redis-backed limiter.
func NewRedis(rdb redis.Cmdable, cfg Config, prefix string, clock Clock) (*Redis, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	cfg = cfg.withDefaults()
	if clock == nil {
		clock = wallClock{}
	}
	prefix = strings.Trim(prefix, ":")
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &Redis{
		rdb:    rdb,
		prefix: prefix,
		window: cfg.Window,
		max:    cfg.Max,
		clock:  clock,
	}, nil
}

// CheckAndRecord trims, appends and counts in one MULTI/EXEC round trip.
// Scores are unix microseconds.
func (r *Redis) CheckAndRecord(ctx context.Context, key string) (bool, error) {
	now := r.clock.Now()
	setKey := r.prefix + ":" + key
	cutoff := now.Add(-r.window).UnixMicro()
	member := strconv.FormatInt(now.UnixMicro(), 10) + "-" + uuid.NewString()

	pipe := r.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, setKey, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, setKey, redis.Z{Score: float64(now.UnixMicro()), Member: member})
	card := pipe.ZCard(ctx, setKey)
	pipe.Expire(ctx, setKey, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis rate limit: %w", err)
	}
	return card.Val() > int64(r.max), nil
}
