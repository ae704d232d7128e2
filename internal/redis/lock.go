package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("submission lock not acquired")
)

// Locker serialises submissions for one booking owner. A second submit while
// the first is still talking to an upstream service fails fast instead of queueing.
type Locker interface {
	WithOwnerLock(ctx context.Context, owner string, fn func(ctx context.Context) error) error
}

type redisOwnerLocker struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisOwnerLocker creates a locker that uses a per owner Redis key
func NewRedisOwnerLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisOwnerLocker{
		client: client,
		ttl:    ttl,
		prefix: "lock:booking:",
	}
}

func (l *redisOwnerLocker) WithOwnerLock(ctx context.Context, owner string, fn func(ctx context.Context) error) error {
	key := l.prefix + owner
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire submission lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		// release with a fresh context: the request context may already be cancelled
		relCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = l.release(relCtx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisOwnerLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release submission lock: %w", err)
	}
	return nil
}
