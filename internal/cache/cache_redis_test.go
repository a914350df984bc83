package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/taipm/mission-decomposer/internal/model"
)

func setupMiniRedis(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(RedisCacheOptions{Addr: mr.Addr(), DefaultTTL: 5 * time.Minute})
	require.NoError(t, err)
	return c
}

func samplePaths() []model.DecompositionPath {
	return []model.DecompositionPath{
		{
			RootTask:    "T1",
			MethodTrail: []string{"m1"},
			Steps:       PathStepFixture(),
		},
	}
}

// PathStepFixture builds a single-step path for tests without importing the
// tdg package (would create an import cycle).
func PathStepFixture() []model.PathStep {
	return []model.PathStep{
		{Task: model.Task{Name: "p1"}, Bindings: map[string]string{"x": "r1"}},
	}
}

func TestRedisCache_SetGetRoundTrip(t *testing.T) {
	c := setupMiniRedis(t)
	ctx := context.Background()

	paths := samplePaths()
	require.NoError(t, c.Set(ctx, "T1", paths, 0))

	got, ok, err := c.Get(ctx, "T1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, paths, got)
	require.Equal(t, int64(1), c.Stats().Hits)
}

func TestRedisCache_MissRecorded(t *testing.T) {
	c := setupMiniRedis(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, int64(1), c.Stats().Misses)
}

func TestRedisCache_Clear(t *testing.T) {
	c := setupMiniRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "T1", samplePaths(), 0))
	require.NoError(t, c.Clear(ctx))

	_, ok, err := c.Get(ctx, "T1")
	require.NoError(t, err)
	require.False(t, ok)
}
