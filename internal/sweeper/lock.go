package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hostly/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker guards a sweep so only one runs at a time. Acquire reports false
// when another holder has the lock.
type Locker interface {
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

// Lua script for releasing the lock only if we still own it. A holder whose
// TTL lapsed must not delete a lock that another instance has since taken.
const luaReleaseLock = `
-- KEYS[1] = lock key
-- ARGV[1] = owner token

if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisLock is a single instance lock shared by every API replica
type RedisLock struct {
	redis    redis.Cmdable
	key      string
	ttl      time.Duration
	newToken func() string
	log      *logger.Logger
}

func NewRedisLock(client redis.Cmdable, key string, ttl time.Duration, log *logger.Logger) *RedisLock {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &RedisLock{
		redis:    client,
		key:      key,
		ttl:      ttl,
		newToken: uuid.NewString,
		log:      log.WithComponent("sweep_lock"),
	}
}

func (l *RedisLock) Acquire(ctx context.Context) (func(), bool, error) {
	token := l.newToken()
	ok, err := l.redis.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// The sweep may have been cancelled; the lock still has to go
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		deleted, err := l.redis.Eval(releaseCtx, luaReleaseLock, []string{l.key}, token).Int64()
		if err != nil {
			l.log.Warn("Failed to release sweep lock, it stays held until the TTL lapses", "key", l.key, "ttl", l.ttl.String(), "error", err)
			return
		}
		if deleted == 0 {
			l.log.Warn("Sweep lock expired before release", "key", l.key, "ttl", l.ttl.String())
		}
	}
	return release, true, nil
}

// LocalLock serializes sweeps within one process; used when Redis is not
// configured
type LocalLock struct {
	mu sync.Mutex
}

func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

func (l *LocalLock) Acquire(_ context.Context) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}
