// Copyright 2025 James Ross
package persistence

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileStoreGetSetDelete(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
	val, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), val)

	require.NoError(t, s.Delete(ctx, "a"))
	_, ok, err = s.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, "k", []byte("persisted"), 0))

	s2, err := NewFileStore(dir)
	require.NoError(t, err)
	val, ok, err := s2.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("persisted"), val)
}

func TestFileStoreTTLExpires(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStoreKeysPrefix(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "job:1", []byte("a"), 0))
	require.NoError(t, s.Set(ctx, "job:2", []byte("b"), 0))
	require.NoError(t, s.Set(ctx, "migration:1", []byte("c"), 0))

	keys, err := s.Keys(ctx, "job:")
	require.NoError(t, err)
	sort.Strings(keys)
	require.Equal(t, []string{"job:1", "job:2"}, keys)
}
