package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis instance and a store pointing at it
func setupTestRedis(t *testing.T, namespace string) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	store, err := NewRedisStore(context.Background(), RedisStoreOptions{
		RedisURL:  "redis://" + mr.Addr(),
		Namespace: namespace,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return mr, store
}

func TestRedisStore_Namespacing(t *testing.T) {
	mr, store := setupTestRedis(t, "storefront:")
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, CartKey("u1"), `{"version":1,"items":[]}`, 0))

	raw, err := mr.Get("storefront:cart_u1")
	require.NoError(t, err)
	assert.Equal(t, `{"version":1,"items":[]}`, raw)

	value, err := store.Get(ctx, CartKey("u1"))
	require.NoError(t, err)
	assert.Equal(t, raw, value)
}

func TestRedisStore_NamespaceWithoutSeparator(t *testing.T) {
	mr, store := setupTestRedis(t, "shop")
	require.NoError(t, store.Set(context.Background(), KeyUserID, "u1", 0))
	assert.True(t, mr.Exists("shop:userId"))
}

func TestRedisStore_MissingKey(t *testing.T) {
	_, store := setupTestRedis(t, "")
	ctx := context.Background()

	value, err := store.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Equal(t, "", value)

	exists, err := store.Exists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisStore_DeleteAndTTL(t *testing.T) {
	mr, store := setupTestRedis(t, "sf:")
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, KeySessionCookies, "c", time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("sf:"+KeySessionCookies))

	mr.FastForward(2 * time.Minute)
	value, err := store.Get(ctx, KeySessionCookies)
	require.NoError(t, err)
	assert.Equal(t, "", value)

	require.NoError(t, store.Set(ctx, KeyUserID, "u2", 0))
	require.NoError(t, store.Delete(ctx, KeyUserID))
	assert.False(t, mr.Exists("sf:"+KeyUserID))
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr, store := setupTestRedis(t, "")
	mr.Close()

	_, err := store.Get(context.Background(), KeyUserID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorageUnavailable))
	assert.True(t, IsTransient(err))
}

func TestNewRedisStore_BadConfig(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisStoreOptions{})
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))

	_, err = NewRedisStore(context.Background(), RedisStoreOptions{RedisURL: "://bad"})
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
}
