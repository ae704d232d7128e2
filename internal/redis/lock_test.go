package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestWithOwnerLock_RejectsConcurrentSubmission(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisOwnerLocker(client, 5*time.Second)
	ctx := context.Background()

	err := locker.WithOwnerLock(ctx, "user-1", func(ctx context.Context) error {
		assert.True(t, mr.Exists("lock:booking:user-1"))

		inner := locker.WithOwnerLock(ctx, "user-1", func(context.Context) error {
			t.Fatal("second submission must not run")
			return nil
		})
		assert.ErrorIs(t, inner, ErrLockNotAcquired)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("lock:booking:user-1"), "lock released after fn returns")
}

func TestWithOwnerLock_IndependentOwners(t *testing.T) {
	_, client := setupTestRedis(t)
	locker := NewRedisOwnerLocker(client, 5*time.Second)
	ctx := context.Background()

	ran := false
	err := locker.WithOwnerLock(ctx, "user-1", func(ctx context.Context) error {
		return locker.WithOwnerLock(ctx, "user-2", func(context.Context) error {
			ran = true
			return nil
		})
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestRelease_DoesNotDeleteForeignToken(t *testing.T) {
	mr, client := setupTestRedis(t)
	l := &redisOwnerLocker{client: client, ttl: time.Second, prefix: "lock:booking:"}

	require.NoError(t, mr.Set("lock:booking:user-1", "someone-else"))
	require.NoError(t, l.release(context.Background(), "lock:booking:user-1", "mine"))

	got, err := mr.Get("lock:booking:user-1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
