package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClockStore() (*MemoryStore, func(time.Duration)) {
	var mu sync.Mutex
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := NewMemoryStoreWithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	})
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}
	return s, advance
}

func TestMemoryStoreSetGetDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newClockStore()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))
	val, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", val)

	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting an absent key is a no-op.
	require.NoError(t, s.Delete(ctx, "k"))
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s, advance := newClockStore()

	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))

	advance(59 * time.Second)
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	advance(2 * time.Second)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreOverwriteRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	s, advance := newClockStore()

	require.NoError(t, s.Set(ctx, "k", "v1", time.Minute))
	advance(50 * time.Second)
	require.NoError(t, s.Set(ctx, "k", "v2", time.Minute))

	advance(30 * time.Second)
	val, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", val)
}

func TestMemoryStoreIncr(t *testing.T) {
	ctx := context.Background()
	s, advance := newClockStore()

	for i := int64(1); i <= 3; i++ {
		count, err := s.Incr(ctx, "counter", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	// A full idle window resets the count.
	advance(61 * time.Second)
	count, err := s.Incr(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemoryStoreSetNX(t *testing.T) {
	ctx := context.Background()
	s, advance := newClockStore()

	set, err := s.SetNX(ctx, "k", "v1", time.Minute)
	require.NoError(t, err)
	assert.True(t, set)

	set, err = s.SetNX(ctx, "k", "v2", time.Minute)
	require.NoError(t, err)
	assert.False(t, set)

	val, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", val)

	advance(61 * time.Second)
	set, err = s.SetNX(ctx, "k", "v2", time.Minute)
	require.NoError(t, err)
	assert.True(t, set)
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	s, advance := newClockStore()

	ttl, err := s.TTL(ctx, "missing")
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, time.Duration(0))

	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))
	advance(10 * time.Second)
	ttl, err = s.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 50*time.Second, ttl)

	advance(51 * time.Second)
	ttl, err = s.TTL(ctx, "k")
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, time.Duration(0))
}

func TestKeyHelpers(t *testing.T) {
	assert.Equal(t, "otp:60123456789", OTPKey("60123456789"))
	assert.Equal(t, "cd:phone:60123456789", PhoneCooldownKey("60123456789"))
	assert.Equal(t, "rl:ip:203.0.113.15", IPRateLimitKey("203.0.113.15"))
}
