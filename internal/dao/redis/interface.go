// Package redis 参与者权限缓存的 Redis 实现
package redis

import (
	"context"
	"time"
)

// CacheService 权限缓存依赖的最小 KV 能力
// Get 在键不存在时返回空串和 nil
type CacheService interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Task 后台缓存任务，ctx 带有单次任务超时
type Task func(ctx context.Context)

// AsyncCacheService 额外提供后台任务，回源后的缓存回填走这里
type AsyncCacheService interface {
	CacheService
	SubmitTask(task Task)
}
