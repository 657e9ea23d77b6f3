package utils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Unlock releases a lock taken by a Locker.
type Unlock func(ctx context.Context) error

// Locker hands out short-lived exclusive locks. Acquire reports false when
// someone else holds key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Unlock, bool, error)
}

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by another holder is left alone.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

type RedisLocker struct {
	redis    *redis.Client
	newToken func() (string, error)
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		redis:    client,
		newToken: func() (string, error) { return GenerateCode(16) },
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Unlock, bool, error) {
	token, err := l.newToken()
	if err != nil {
		return nil, false, fmt.Errorf("lock token: %w", err)
	}

	ok, err := l.redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func(ctx context.Context) error {
		return l.redis.Eval(ctx, releaseScript, []string{key}, token).Err()
	}
	return unlock, true, nil
}

// LocalLocker is a process-local Locker for single-instance deployments.
type LocalLocker struct {
	mutex sync.Mutex
	held  map[string]time.Time
	now   func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), now: time.Now}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Unlock, bool, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.now()
	if expiry, ok := l.held[key]; ok && now.Before(expiry) {
		return nil, false, nil
	}
	expiry := now.Add(ttl)
	l.held[key] = expiry

	unlock := func(context.Context) error {
		l.mutex.Lock()
		defer l.mutex.Unlock()
		if l.held[key].Equal(expiry) {
			delete(l.held, key)
		}
		return nil
	}
	return unlock, true, nil
}
