// Package redis 提供 Redis 缓存操作的封装
// 本文件仅包含 Redis 连接初始化逻辑
// 使用 github.com/redis/go-redis/v9 作为底层客户端
package redis

import (
	"context"
	"strconv"
	"time"

	"battlemap_server/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Init 初始化 Redis 连接并返回缓存服务实例
// Redis 不可用时只打警告：角色缓存缺失会回源数据库
func Init() *RedisCache {
	conf := config.GetConfig()
	addr := conf.RedisConfig.Host + ":" + strconv.Itoa(conf.RedisConfig.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: conf.RedisConfig.Password,
		DB:       conf.Db,
		// 连接池配置
		PoolSize:     50,
		MinIdleConns: conf.RedisConfig.Workers,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		zap.L().Warn("Redis ping 失败，角色查询将直接回源数据库", zap.String("addr", addr), zap.Error(err))
	}

	return NewRedisCache(client, conf.RedisConfig.Workers, conf.RedisConfig.TaskQueue)
}
