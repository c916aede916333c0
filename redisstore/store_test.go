package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store, err := New(Config{
		Addr:      mr.Addr(),
		KeyPrefix: "test:",
		PoolSize:  2,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return mr, store
}

func TestStoreSetAndGet(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "greeting", "hello", time.Minute))

	value, found, err := store.Get(ctx, "greeting")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hello", value)
}

func TestStoreGetMissing(t *testing.T) {
	_, store := setupTestStore(t)

	_, found, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreStructuredValueRoundTrip(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	original := map[string]any{"answer": "42", "nested": []any{"a", "b"}}
	require.NoError(t, store.Set(ctx, "doc", original, time.Minute))

	value, found, err := store.Get(ctx, "doc")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, original, value)
}

func TestStoreTTLExpiry(t *testing.T) {
	mr, store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", "lived", 50*time.Millisecond))

	_, found, err := store.Get(ctx, "short")
	require.NoError(t, err)
	assert.True(t, found)

	mr.FastForward(100 * time.Millisecond)

	_, found, err = store.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreKeyPrefixIsolation(t *testing.T) {
	mr, store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))
	assert.True(t, mr.Exists("test:k"))
	assert.False(t, mr.Exists("k"))
}

func TestStoreCorruptEntryTreatedAsMiss(t *testing.T) {
	mr, store := setupTestStore(t)

	require.NoError(t, mr.Set("test:bad", "{not json"))

	_, found, err := store.Get(context.Background(), "bad")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreUnreachableServerErrors(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewWithClient(client, "test:", nil)
	mr.Close()

	_, _, err = store.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.Error(t, store.Set(context.Background(), "k", "v", time.Minute))
}

func TestNewFailsWithoutServer(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = New(Config{Addr: addr}, nil)
	assert.Error(t, err)
}

func TestHashKeyStability(t *testing.T) {
	k1, err := HashKey("model-a", map[string]int{"tokens": 100})
	require.NoError(t, err)
	k2, err := HashKey("model-a", map[string]int{"tokens": 100})
	require.NoError(t, err)
	k3, err := HashKey("model-b", map[string]int{"tokens": 100})
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Len(t, k1, 64)
}
