package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestNewRedisRequiresClient(t *testing.T) {
	t.Parallel()

	_, err := NewRedis(nil, Config{}, "p", nil)
	require.Error(t, err)
}

func TestNewRedisNormalizesPrefix(t *testing.T) {
	t.Parallel()

	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer func() { _ = rdb.Close() }()

	l, err := NewRedis(rdb, Config{}, ":site:rl:", nil)
	require.NoError(t, err)
	require.Equal(t, "site:rl", l.prefix)
	require.Equal(t, DefaultMax, l.max)

	l, err = NewRedis(rdb, Config{}, "", nil)
	require.NoError(t, err)
	require.Equal(t, "ratelimit", l.prefix)
}

// TestRedisSlidingWindow runs against a live server when SITE_TEST_REDIS_ADDR is set.
func TestRedisSlidingWindow(t *testing.T) {
	addr := os.Getenv("SITE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SITE_TEST_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = rdb.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rdb.Ping(ctx).Err())

	clock := newFakeClock()
	prefix := "test:" + uuid.NewString()
	l, err := NewRedis(rdb, Config{Window: 10 * time.Minute, Max: 5}, prefix, clock)
	require.NoError(t, err)
	defer rdb.Del(context.Background(), prefix+":ip")

	for i := 0; i < 5; i++ {
		limited, err := l.CheckAndRecord(ctx, "ip")
		require.NoError(t, err)
		require.False(t, limited)
		clock.Advance(time.Second)
	}
	limited, err := l.CheckAndRecord(ctx, "ip")
	require.NoError(t, err)
	require.True(t, limited)

	clock.Advance(11 * time.Minute)
	limited, err = l.CheckAndRecord(ctx, "ip")
	require.NoError(t, err)
	require.False(t, limited)
}
