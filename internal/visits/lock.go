package visits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes queue allocation for a key across service instances.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// QueueLockKey scopes the lock to one clinic's queue on one day.
func QueueLockKey(clinicID int64, date string) string {
	return fmt.Sprintf("clinicdesk:queue:%d:%s", clinicID, date)
}

// NoopLocker never blocks. It is used when Redis is not configured.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a single-instance Redis lock (SET NX PX with a random
// token). It narrows the duplicate queue number window; it does not close it,
// since the remote store has no transactions.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		wait:   ttl,
		retry:  50 * time.Millisecond,
	}
}

// WithWait bounds how long Acquire polls a held lock.
func (l *RedisLocker) WithWait(wait, retry time.Duration) *RedisLocker {
	if wait > 0 {
		l.wait = wait
	}
	if retry > 0 {
		l.retry = retry
	}
	return l
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if l == nil || l.client == nil {
		return nil, errors.New("visits: redis locker not configured")
	}
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("visits: acquire queue lock: %w", err)
		}
		if ok {
			return func() {
				// Release outlives request cancellation so the key never waits for TTL.
				ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockContended
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}
