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

func newTestLimiter(t *testing.T, matrix Matrix) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewLimiter(client, matrix), mr
}

func TestAllowCapacityBound(t *testing.T) {
	matrix := Matrix{
		ClassDefault: {ClassDefault: {Capacity: 3, LeakRate: 0, TTL: time.Minute}},
	}
	limiter, _ := newTestLimiter(t, matrix)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, ClassDefault, "10.0.0.1", nil)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should be admitted", i+1)
	}

	ok, err := limiter.Allow(ctx, ClassDefault, "10.0.0.1", nil)
	require.NoError(t, err)
	assert.False(t, ok, "request over capacity should be denied")
}

func TestAllowDenialDoesNotFillBucket(t *testing.T) {
	matrix := Matrix{
		ClassDefault: {ClassDefault: {Capacity: 2, LeakRate: 1, TTL: time.Minute}},
	}
	limiter, _ := newTestLimiter(t, matrix)
	ctx := context.Background()

	now := time.Now()
	limiter.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, ClassDefault, "u1", nil)
		require.NoError(t, err)
		require.True(t, ok)
	}
	// Bucket full. Denied requests must not advance the level.
	for i := 0; i < 5; i++ {
		ok, err := limiter.Allow(ctx, ClassDefault, "u1", nil)
		require.NoError(t, err)
		require.False(t, ok)
	}

	// One second leaks one request worth of level.
	now = now.Add(time.Second)
	ok, err := limiter.Allow(ctx, ClassDefault, "u1", nil)
	require.NoError(t, err)
	assert.True(t, ok, "leaked capacity should admit again")
}

func TestAllowLeakOverTime(t *testing.T) {
	matrix := Matrix{
		ClassDefault: {ClassDefault: {Capacity: 1, LeakRate: 0.5, TTL: time.Minute}},
	}
	limiter, _ := newTestLimiter(t, matrix)
	ctx := context.Background()

	now := time.Now()
	limiter.now = func() time.Time { return now }

	ok, err := limiter.Allow(ctx, ClassDefault, "u1", nil)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = limiter.Allow(ctx, ClassDefault, "u1", nil)
	require.NoError(t, err)
	require.False(t, ok)

	// Half a request leaks in one second; still over capacity.
	now = now.Add(time.Second)
	ok, err = limiter.Allow(ctx, ClassDefault, "u1", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	// After two seconds total the full request has leaked.
	now = now.Add(time.Second)
	ok, err = limiter.Allow(ctx, ClassDefault, "u1", nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAllowSeparateIdentifiers(t *testing.T) {
	matrix := Matrix{
		ClassDefault: {ClassDefault: {Capacity: 1, LeakRate: 0, TTL: time.Minute}},
	}
	limiter, _ := newTestLimiter(t, matrix)
	ctx := context.Background()

	ok, err := limiter.Allow(ctx, ClassDefault, "a", nil)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = limiter.Allow(ctx, ClassDefault, "b", nil)
	require.NoError(t, err)
	assert.True(t, ok, "a full bucket for one identifier must not affect another")
}

func TestAllowBackendFailure(t *testing.T) {
	limiter, mr := newTestLimiter(t, nil)
	mr.Close()

	ok, err := limiter.Allow(context.Background(), ClassDefault, "u1", nil)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestResolveTierPriority(t *testing.T) {
	m := DefaultMatrix()

	cfg := m.Resolve(ClassLogin, []string{TierUser, TierSuperuser})
	assert.Equal(t, float64(50), cfg.Capacity, "superuser tier wins over user")

	cfg = m.Resolve(ClassLogin, []string{TierGuest})
	assert.Equal(t, float64(3), cfg.Capacity)

	cfg = m.Resolve(ClassLogin, []string{"editor"})
	assert.Equal(t, float64(5), cfg.Capacity, "unknown role falls back to class default")
}

func TestResolveClassFallbacks(t *testing.T) {
	m := DefaultMatrix()

	// Register class has no per-tier entries; every caller gets the class
	// default.
	cfg := m.Resolve(ClassRegister, []string{TierSuperuser})
	assert.Equal(t, float64(3), cfg.Capacity)

	// Unknown class falls back to the top-level default class.
	cfg = m.Resolve("export", []string{TierUser})
	assert.Equal(t, float64(20), cfg.Capacity)

	cfg = m.Resolve("export", nil)
	assert.Equal(t, float64(10), cfg.Capacity)
}
