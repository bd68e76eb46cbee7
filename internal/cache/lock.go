package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout 等待分布式锁超时
var ErrLockTimeout = errors.New("cache: lock wait timeout")

const lockRetryInterval = 20 * time.Millisecond

// 仅持有者可以释放
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock 已获取的分布式锁
type Lock struct {
	key   string
	token string
}

// AcquireLock 获取分布式锁，等待至 wait 超时或 ctx 取消。
// 缓存未启用时返回 nil 锁且不报错，调用方依赖数据库行锁。
func AcquireLock(ctx context.Context, key string, ttl, wait time.Duration) (*Lock, error) {
	if !Enabled() {
		return nil, nil
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	fullKey := buildKey(key)
	token := uuid.NewString()
	deadline := time.Now().Add(wait)
	for {
		ok, err := redisClient.SetNX(ctx, fullKey, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return &Lock{key: fullKey, token: token}, nil
		}
		if wait <= 0 || time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// Release 释放锁；锁已过期被他人持有时不做任何事
func (l *Lock) Release(ctx context.Context) error {
	if l == nil || !Enabled() {
		return nil
	}
	return releaseLockScript.Run(ctx, redisClient, []string{l.key}, l.token).Err()
}
