package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(60, 2)
	ctx := context.Background()

	ok, _ := s.Allow(ctx, "tenant:1")
	assert.True(t, ok)
	ok, _ = s.Allow(ctx, "tenant:1")
	assert.True(t, ok)
	ok, _ = s.Allow(ctx, "tenant:1")
	assert.False(t, ok)

	// 其他 key 不受影响
	ok, _ = s.Allow(ctx, "tenant:2")
	assert.True(t, ok)

	require.NoError(t, s.Reset(ctx))
	ok, _ = s.Allow(ctx, "tenant:1")
	assert.True(t, ok)
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore(t *testing.T) {
	mr, client := setupRedis(t)
	s := NewRedisStore(client, 2, 1)
	fixed := time.Date(2024, 1, 1, 10, 0, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := s.Allow(ctx, "tenant:1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, err := s.Allow(ctx, "tenant:1")
	require.NoError(t, err)
	assert.False(t, ok)

	// 下一个窗口重新计数
	s.now = func() time.Time { return fixed.Add(time.Minute) }
	ok, err = s.Allow(ctx, "tenant:1")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NotEmpty(t, mr.Keys())
	require.NoError(t, s.Reset(ctx))
	assert.Empty(t, mr.Keys())
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr, client := setupRedis(t)
	s := NewRedisStore(client, 1, 0)
	mr.Close()

	_, err := s.Allow(context.Background(), "tenant:1")
	assert.Error(t, err)
}
