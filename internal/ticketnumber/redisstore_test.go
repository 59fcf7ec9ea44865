package ticketnumber

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisForTest(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStore_IncrementsWithSeedAndExpiry(t *testing.T) {
	client := redisForTest(t)
	prefix := "uxone-test:" + uuid.NewString() + ":"
	s := NewRedisStore(client, prefix)
	ctx := context.Background()
	t.Cleanup(func() { client.Del(ctx, s.key("TIPA-HD_250115")) })

	a, err := s.Next(ctx, "TIPA-HD_250115", 5)
	require.NoError(t, err)
	b, err := s.Next(ctx, "TIPA-HD_250115", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(6), a)
	assert.Equal(t, int64(7), b)

	ttl, err := client.TTL(ctx, s.key("TIPA-HD_250115")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 47*time.Hour)
}
