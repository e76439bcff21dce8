// Package worker 按 key 保序的后台任务队列
// 同一个 key 的任务总是落在同一个 worker 上，按提交顺序执行；不同 key 之间并行
package worker

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"go.uber.org/zap"
)

// ErrClosed 队列已关闭
var ErrClosed = errors.New("worker: queue closed")

// Task 后台任务，ctx 在 Close 超时后取消
type Task func(ctx context.Context)

// Queue 分片任务队列
type Queue struct {
	shards []chan Task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewQueue workers 个分片，每个分片缓冲 buffer 个任务
func NewQueue(workers, buffer int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		shards: make([]chan Task, workers),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := range q.shards {
		q.shards[i] = make(chan Task, buffer)
		q.wg.Add(1)
		go q.run(q.shards[i])
	}
	return q
}

func (q *Queue) run(tasks <-chan Task) {
	defer q.wg.Done()
	for task := range tasks {
		q.exec(task)
	}
}

func (q *Queue) exec(task Task) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("后台任务 panic", zap.Any("recover", r))
		}
	}()
	task(q.ctx)
}

// Submit 提交任务；分片缓冲满时阻塞，保证同 key 顺序不被打乱
func (q *Queue) Submit(key string, task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	q.shards[q.shard(key)] <- task
	return nil
}

func (q *Queue) shard(key string) int {
	if len(q.shards) == 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(q.shards)))
}

// Close 停止接收新任务并等待已提交任务执行完
// ctx 到期后取消任务上下文，剩余任务仍会被调用但会拿到已取消的 ctx
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	for _, ch := range q.shards {
		close(ch)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}
