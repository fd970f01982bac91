package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hashpoint/go-wallet-gateway/pkg/config"
)

func testSession(id string, ttl time.Duration) *Data {
	now := time.Now()
	return &Data{
		ID:          id,
		IdentityKey: "wallet:0.0.777",
		Shadow: ShadowRecord{
			User:       &ShadowUser{Kind: "wallet", AccountID: "0.0.777"},
			IsLoggedIn: true,
		},
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func runStoreTests(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("put and get", func(t *testing.T) {
		data := testSession("s1", time.Hour)
		require.NoError(t, store.Put(ctx, data))

		got, err := store.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "wallet:0.0.777", got.IdentityKey)
		assert.True(t, got.Shadow.IsLoggedIn)
		assert.Equal(t, "0.0.777", got.Shadow.User.AccountID)
	})

	t.Run("update", func(t *testing.T) {
		data := testSession("s2", time.Hour)
		require.NoError(t, store.Put(ctx, data))

		data.Shadow.User.IsAdmin = true
		require.NoError(t, store.Update(ctx, data))

		got, err := store.Get(ctx, "s2")
		require.NoError(t, err)
		assert.True(t, got.Shadow.User.IsAdmin)
	})

	t.Run("delete", func(t *testing.T) {
		data := testSession("s3", time.Hour)
		require.NoError(t, store.Put(ctx, data))
		require.NoError(t, store.Delete(ctx, "s3"))

		_, err := store.Get(ctx, "s3")
		assert.ErrorIs(t, err, ErrSessionNotFound)

		// Deleting again is not an error.
		assert.NoError(t, store.Delete(ctx, "s3"))
	})

	t.Run("expired session is gone", func(t *testing.T) {
		data := testSession("s4", 10*time.Millisecond)
		require.NoError(t, store.Put(ctx, data))

		time.Sleep(30 * time.Millisecond)
		_, err := store.Get(ctx, "s4")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, NewMemoryStore(zap.NewNop()))
}

func TestMemoryStoreCleanup(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testSession("live", time.Hour)))
	require.NoError(t, store.Put(ctx, testSession("dead", -time.Minute)))

	dropped, err := store.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dropped)

	_, err = store.Get(ctx, "live")
	assert.NoError(t, err)
}

func TestMemoryStoreCopiesOnReadAndWrite(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	data := testSession("s1", time.Hour)
	require.NoError(t, store.Put(ctx, data))

	// Mutating the caller's copy must not leak into the store.
	data.IdentityKey = "id:1"
	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "wallet:0.0.777", got.IdentityKey)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(config.RedisConfig{Address: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	data := testSession("s1", time.Hour)
	require.NoError(t, store.Put(ctx, data))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "wallet:0.0.777", got.IdentityKey)

	data.Shadow.User.IsAdmin = true
	require.NoError(t, store.Update(ctx, data))
	got, err = store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.Shadow.User.IsAdmin)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStoreExpiryRidesOnKeyTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(config.RedisConfig{Address: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testSession("s1", time.Minute)))

	mr.FastForward(2 * time.Minute)

	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStoreKeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(config.RedisConfig{Address: mr.Addr(), KeyPrefix: "custom:"}, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Put(context.Background(), testSession("s1", time.Hour)))
	assert.True(t, mr.Exists("custom:s1"))
}
