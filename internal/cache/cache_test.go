package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGetRoundTrip(t *testing.T) {
	c := NewMemoryCache(0)
	ctx := context.Background()

	paths := samplePaths()
	require.NoError(t, c.Set(ctx, "T1", paths, 0))

	got, ok, err := c.Get(ctx, "T1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, paths, got)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "T1", samplePaths(), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, ok, err := c.Get(ctx, "T1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryCache_Clear(t *testing.T) {
	c := NewMemoryCache(0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "T1", samplePaths(), 0))
	require.NoError(t, c.Clear(ctx))

	stats := c.Stats()
	require.Equal(t, 0, stats.Size)
}
