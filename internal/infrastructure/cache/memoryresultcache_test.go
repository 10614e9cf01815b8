package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryResultCache_RoundTrip(t *testing.T) {
	c := NewMemoryResultCache(4)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("png-bytes"), time.Minute))

	data, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestMemoryResultCache_TTLExpiry(t *testing.T) {
	c := NewMemoryResultCache(4)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	now = now.Add(59 * time.Second)
	_, ok, _ := c.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryResultCache_CapacityEviction(t *testing.T) {
	c := NewMemoryResultCache(2)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), time.Minute))

	_, ok, _ := c.Get(ctx, "a")
	assert.False(t, ok, "oldest entry should be evicted")
	_, ok, _ = c.Get(ctx, "b")
	assert.True(t, ok)
	_, ok, _ = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestMemoryResultCache_ReinsertAfterExpiryEvictedOnce(t *testing.T) {
	c := NewMemoryResultCache(2)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	now = now.Add(2 * time.Minute)
	_, ok, _ := c.Get(ctx, "a")
	require.False(t, ok, "first insert should have expired")

	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, c.Set(ctx, "a", []byte("3"), time.Minute))
	require.NoError(t, c.Set(ctx, "c", []byte("4"), time.Minute))

	_, ok, _ = c.Get(ctx, "b")
	assert.False(t, ok, "b is the oldest live entry")
	data, ok, _ := c.Get(ctx, "a")
	assert.True(t, ok, "re-inserted entry must not inherit the expired slot's age")
	assert.Equal(t, []byte("3"), data)
	_, ok, _ = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestMemoryResultCache_OverwriteKeepsCapacity(t *testing.T) {
	c := NewMemoryResultCache(2)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "a", []byte("2"), time.Minute))

	assert.Equal(t, 1, c.Len())
	data, ok, _ := c.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, []byte("2"), data)
}
