// Copyright 2025 James Ross
package cache

import (
	"context"
	"testing"
	"time"

	"github.com/marcusrbrown/vbs-sub004/internal/persistence"
	"github.com/stretchr/testify/require"
)

func TestGetMissThenSetThenHit(t *testing.T) {
	c := New(persistence.NewMemoryStore())
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "https://example.com/ep/1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "https://example.com/ep/1", []byte("payload"), time.Minute))

	payload, ok, err := c.Get(ctx, "https://example.com/ep/1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), payload)

	stats := c.Stats()
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
	require.Equal(t, 0.5, stats.HitRate)
}

func TestGetExpiredEntryReportsMiss(t *testing.T) {
	c := New(persistence.NewMemoryStore())
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "https://example.com/ep/1", []byte("payload"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, ok, err := c.Get(ctx, "https://example.com/ep/1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCanonicalizationCollapsesEquivalentURLs(t *testing.T) {
	c := New(persistence.NewMemoryStore())
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "https://Example.com/ep/1?b=2&a=1", []byte("payload"), time.Minute))

	payload, ok, err := c.Get(ctx, "https://example.com/ep/1?a=1&b=2")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), payload)
}

func TestDisabledCacheIsAlwaysMiss(t *testing.T) {
	c := NewDisabled()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "https://example.com/ep/1", []byte("payload"), time.Minute))

	_, ok, err := c.Get(ctx, "https://example.com/ep/1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCleanupExpiredRemovesStaleEntries(t *testing.T) {
	c := New(persistence.NewMemoryStore())
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "https://example.com/ep/1", []byte("a"), 10*time.Millisecond))
	require.NoError(t, c.Set(ctx, "https://example.com/ep/2", []byte("b"), time.Minute))
	time.Sleep(30 * time.Millisecond)

	removed, err := c.CleanupExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, ok, err := c.Get(ctx, "https://example.com/ep/2")
	require.NoError(t, err)
	require.True(t, ok)
}
