// Package lock 提供了基于 Redis 的互斥锁，用于按文档序列化生命周期操作。
// 同一文档上的重复上传与删除若并发执行，会留下孤儿向量或缺标签记录，
// 因此协调器在进入索引写入/拆除前必须先取得该文档的锁。
package lock

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"ragpro-go/pkg/token"
)

// Locker 定义了按 key 互斥的契约。Acquire 返回的函数用于释放锁。
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// ErrNotAcquired 表示在等待窗口内未能取得锁。
type notAcquiredError struct{ key string }

func (e *notAcquiredError) Error() string { return "lock not acquired: " + e.key }

const (
	lockTTL       = 2 * time.Minute
	retryInterval = 100 * time.Millisecond
	maxWait       = 10 * time.Second
)

// RedisLocker 是 Locker 的 Redis SET NX 实现。
type RedisLocker struct {
	rdb *redis.Client
}

// NewRedisLocker 创建一个新的 RedisLocker。
func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

// Acquire 以自旋加退避的方式抢占 "doclock:<key>"。
// 锁值为随机 token，释放时校验持有者，过期兜底避免死锁。
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := "doclock:" + key
	val := token.GenerateRandomString(16)
	deadline := time.Now().Add(maxWait)

	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, val, lockTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			release := func() {
				// 仅当仍由本次调用持有时才删除
				current, err := l.rdb.Get(context.Background(), redisKey).Result()
				if err == nil && current == val {
					_ = l.rdb.Del(context.Background(), redisKey).Err()
				}
			}
			return release, nil
		}
		if time.Now().After(deadline) {
			return nil, &notAcquiredError{key: key}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}
