// Copyright 2025 James Ross
package persistence

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStoreGetSetDelete(t *testing.T) {
	client := setupMiniredis(t)
	s := NewRedisStore(client, "vbs-test:")
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)

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

func TestRedisStoreNamespacesKeys(t *testing.T) {
	client := setupMiniredis(t)
	s1 := NewRedisStore(client, "ns1:")
	s2 := NewRedisStore(client, "ns2:")
	ctx := context.Background()

	require.NoError(t, s1.Set(ctx, "k", []byte("one"), 0))
	require.NoError(t, s2.Set(ctx, "k", []byte("two"), 0))

	v1, ok, err := s1.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("one"), v1)

	v2, ok, err := s2.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("two"), v2)
}

func TestRedisStoreTTLExpires(t *testing.T) {
	client := setupMiniredis(t)
	s := NewRedisStore(client, "vbs-test:")
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisStoreKeysPrefix(t *testing.T) {
	client := setupMiniredis(t)
	s := NewRedisStore(client, "vbs-test:")
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "job:1", []byte("a"), 0))
	require.NoError(t, s.Set(ctx, "job:2", []byte("b"), 0))
	require.NoError(t, s.Set(ctx, "migration:1", []byte("c"), 0))

	keys, err := s.Keys(ctx, "job:")
	require.NoError(t, err)
	sort.Strings(keys)
	require.Equal(t, []string{"job:1", "job:2"}, keys)
}
