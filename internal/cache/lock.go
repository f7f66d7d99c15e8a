package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

/* ========================================================================
 * Distributed lock
 * ========================================================================
 * SetNX-based lock with owner token. Used by the purge job so only one
 * instance reclaims tombstoned tenants at a time.
 * ======================================================================== */

var (
	ErrLockFailed   = errors.New("failed to acquire lock")
	ErrUnlockFailed = errors.New("failed to release lock")
)

// Lock is a single-key redis lock.
type Lock struct {
	client *Client
	key    string
	value  string // owner token, guards against releasing someone else's lock
	ttl    time.Duration
}

// NewLock creates a lock for key.
func (c *Client) NewLock(key string, ttl time.Duration) *Lock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Lock{
		client: c,
		key:    "lock:" + key,
		value:  uuid.New().String(),
		ttl:    ttl,
	}
}

// TryAcquire attempts to take the lock without retrying.
func (l *Lock) TryAcquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.ttl)
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// Release frees the lock when still owned by this instance.
func (l *Lock) Release(ctx context.Context) error {
	res, err := unlockScript.Run(ctx, l.client.Raw(), []string{l.key}, l.value).Int64()
	if err != nil {
		return err
	}
	if res == 0 {
		return ErrUnlockFailed
	}
	return nil
}
