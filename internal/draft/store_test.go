package draft

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisStore) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisStore(client, ttl)
}

func TestRedisStore_SetGetClear(t *testing.T) {
	_, store := setupStore(t, time.Hour)
	ctx := context.Background()

	_, err := store.Set(ctx, "user-1", FieldService, json.RawMessage(`"svc"`))
	require.NoError(t, err)
	_, err = store.Set(ctx, "user-1", FieldAddon, json.RawMessage(`"polish"`))
	require.NoError(t, err)
	_, err = store.Set(ctx, "user-1", FieldSlots, json.RawMessage(`["s1","s2"]`))
	require.NoError(t, err)

	got, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "svc", got.ServiceID)
	assert.Equal(t, "polish", got.AddonID)
	assert.Equal(t, []string{"s1", "s2"}, got.SlotIDs)
	assert.False(t, got.UpdatedAt.IsZero())

	other, err := store.Get(ctx, "user-2")
	require.NoError(t, err)
	assert.True(t, other.IsEmpty())

	require.NoError(t, store.Clear(ctx, "user-1"))
	got, err = store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestRedisStore_InvalidValueNotPersisted(t *testing.T) {
	mr, store := setupStore(t, time.Hour)
	ctx := context.Background()

	_, err := store.Set(ctx, "user-1", FieldDate, json.RawMessage(`"tomorrow"`))
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.False(t, mr.Exists("draft:user-1"))
}

func TestRedisStore_ClearingAddonRemovesField(t *testing.T) {
	mr, store := setupStore(t, time.Hour)
	ctx := context.Background()

	_, err := store.Set(ctx, "user-1", FieldAddon, json.RawMessage(`"polish"`))
	require.NoError(t, err)
	_, err = store.Set(ctx, "user-1", FieldAddon, json.RawMessage(`null`))
	require.NoError(t, err)

	assert.Equal(t, "", mr.HGet("draft:user-1", "addon"))
}

func TestRedisStore_SlidingExpiry(t *testing.T) {
	mr, store := setupStore(t, time.Hour)
	ctx := context.Background()

	_, err := store.Set(ctx, "user-1", FieldService, json.RawMessage(`"svc"`))
	require.NoError(t, err)
	mr.FastForward(50 * time.Minute)

	_, err = store.Set(ctx, "user-1", FieldDentist, json.RawMessage(`"den"`))
	require.NoError(t, err)
	mr.FastForward(50 * time.Minute)

	got, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "svc", got.ServiceID, "second write refreshed the ttl")

	mr.FastForward(2 * time.Hour)
	got, err = store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}
