package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"battlemap_server/pkg/errorx"
)

const (
	taskTimeout = 2 * time.Second
	scanBatch   = 500
)

// RedisCache 基于 go-redis 的缓存，附带一个小的后台任务池
type RedisCache struct {
	client *redis.Client
	tasks  chan Task
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewRedisCache workers 个协程消费后台任务，buffer 为队列长度
func NewRedisCache(client *redis.Client, workers, buffer int) *RedisCache {
	if workers <= 0 {
		workers = 1
	}
	rc := &RedisCache{client: client, tasks: make(chan Task, buffer)}
	rc.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go rc.worker()
	}
	zap.L().Info("Redis 缓存任务池已启动", zap.Int("workers", workers), zap.Int("buffer", buffer))
	return rc
}

func (r *RedisCache) worker() {
	defer r.wg.Done()
	for task := range r.tasks {
		r.run(task)
	}
}

// run 单个任务 panic 不影响 worker
func (r *RedisCache) run(task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("Redis 缓存任务 panic", zap.Any("recover", rec))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()
	task(ctx)
}

func (r *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errorx.Wrapf(err, errorx.CodeCacheError, "redis set %s", key)
	}
	return nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", nil
	case err != nil:
		return "", errorx.Wrapf(err, errorx.CodeCacheError, "redis get %s", key)
	}
	return value, nil
}

// Delete 键不存在也算成功
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Unlink(ctx, key).Err(); err != nil {
		return errorx.Wrapf(err, errorx.CodeCacheError, "redis unlink %s", key)
	}
	return nil
}

// DeleteByPattern SCAN 分批 UNLINK，不用 KEYS
func (r *RedisCache) DeleteByPattern(ctx context.Context, pattern string) error {
	iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := r.client.Unlink(ctx, batch...).Err(); err != nil {
			return errorx.Wrapf(err, errorx.CodeCacheError, "redis unlink pattern %s", pattern)
		}
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return errorx.Wrapf(err, errorx.CodeCacheError, "redis scan pattern %s", pattern)
	}
	return flush()
}

// SubmitTask 队列满时在调用方协程里同步执行；关闭后直接丢弃
func (r *RedisCache) SubmitTask(task Task) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.tasks <- task:
	default:
		zap.L().Warn("Redis 缓存任务队列已满，同步执行")
		r.run(task)
	}
}

// Close 等待已提交的任务执行完再关闭连接
func (r *RedisCache) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.tasks)
	r.mu.Unlock()

	r.wg.Wait()
	return r.client.Close()
}

var _ AsyncCacheService = (*RedisCache)(nil)
