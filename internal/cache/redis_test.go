package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRedisStore connects to TEST_REDIS_ADDR and skips when it is unset or
// unreachable. Keys get a per-test prefix so runs do not collide.
func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := NewRedisClient(ctx, RedisConfig{Addr: addr, Password: os.Getenv("TEST_REDIS_PASSWORD")})
	if err != nil {
		t.Skipf("Redis unavailable: %v", err)
	}
	s := NewRedisStore(client)
	s.Prefix = "goenrich-test:" + uuid.NewString() + ":"
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisStore_RoundTrip(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "https://example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "https://example.com", sampleResult("one")))
	got, ok, err := s.Get(ctx, "https://example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleResult("one"), got)

	ttl, err := s.client.TTL(ctx, s.key("https://example.com")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 23*time.Hour)
}

func TestRedisStore_ExpiredOnRead(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now()
	s.Now = func() time.Time { return now }
	require.NoError(t, s.Put(ctx, "u", sampleResult("one")))

	now = now.Add(DefaultTTL)
	_, ok, err := s.Get(ctx, "u")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_Invalidate(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	require.NoError(t, s.Invalidate(ctx, "missing"))
	require.NoError(t, s.Put(ctx, "u", sampleResult("one")))
	require.NoError(t, s.Invalidate(ctx, "u"))
	_, ok, err := s.Get(ctx, "u")
	require.NoError(t, err)
	assert.False(t, ok)
}
