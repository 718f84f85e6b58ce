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

func TestRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisLimiter(client, "ip", 3, time.Minute)
	fixed := time.Date(2024, 1, 1, 12, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return fixed }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "192.0.2.1")
		require.NoError(t, err)
		assert.True(t, ok, "hit %d", i+1)
	}
	ok, err := l.Allow(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.False(t, ok, "fourth hit should be denied")

	ok, err = l.Allow(ctx, "192.0.2.2")
	require.NoError(t, err)
	assert.True(t, ok, "other keys are independent")

	fixed = fixed.Add(time.Minute)
	ok, err = l.Allow(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.True(t, ok, "new window resets the count")
}

func TestRedisLimiter_SetsExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisLimiter(client, "sender", 5, time.Minute)
	_, err := l.Allow(context.Background(), "a@example.com")
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, 120*time.Second, mr.TTL(keys[0]))
}

func TestMemoryLimiter(t *testing.T) {
	l := NewMemoryLimiter(2, time.Minute)
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "k")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "k")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "k")
	assert.False(t, ok)

	fixed = fixed.Add(61 * time.Second)
	ok, _ = l.Allow(ctx, "k")
	assert.True(t, ok)
}

func TestNew(t *testing.T) {
	assert.IsType(t, &MemoryLimiter{}, New(nil, "ip", 10, time.Minute))
	assert.Equal(t, 10, New(nil, "ip", 10, time.Minute).Limit())
}
