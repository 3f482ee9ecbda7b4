package database

import (
	"context"

	"github.com/go-redis/redis/v8"

	"ragpro-go/pkg/log"
)

// NewRedis 建立 Redis 连接并返回客户端句柄。
func NewRedis(addr, password string, db int) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// 测试连接
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to redis", err)
	}

	log.Info("Redis client connected successfully")
	return rdb
}
