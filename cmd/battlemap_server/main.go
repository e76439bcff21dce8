package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"battlemap_server/internal/config"
	dao "battlemap_server/internal/dao/mysql"
	myredis "battlemap_server/internal/dao/redis"
	"battlemap_server/internal/handler"
	"battlemap_server/internal/https_server"
	"battlemap_server/internal/infrastructure/logger"
	"battlemap_server/internal/infrastructure/metrics"
	"battlemap_server/internal/infrastructure/mq"
	"battlemap_server/internal/infrastructure/worker"
	"battlemap_server/internal/service"
	"battlemap_server/internal/service/realtime"
	"battlemap_server/internal/service/session"
	"battlemap_server/pkg/constants"
	"battlemap_server/pkg/util/jwt"
	"battlemap_server/pkg/util/snowflake"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. 加载配置
	conf := config.GetConfig()

	// 2. 初始化日志
	if err := logger.Init(&conf.LogConfig, conf.Mode); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer func() { _ = zap.L().Sync() }()
	zap.L().Info("日志初始化成功")

	// 3. 雪花 ID 和 JWT
	snowflake.Init(conf.SnowflakeConfig.MachineID)
	jwt.Init(conf.JWTConfig.Secret, conf.JWTConfig.AccessTokenExpiry)

	// 4. 初始化数据库；进程重启后没有任何在线连接
	repos := dao.Init()
	if err := repos.Participant.MarkAllDisconnected(); err != nil {
		zap.L().Warn("重置参与者在线状态失败", zap.Error(err))
	}
	zap.L().Info("数据库初始化成功")

	// 5. 初始化 Redis 权限缓存
	cache := myredis.Init()
	access := myredis.NewAccessCache(cache, time.Duration(constants.ROLE_CACHE_TTL_MINUTES)*time.Minute)
	zap.L().Info("Redis 初始化成功")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 6. 指标
	mp, err := metrics.Init(ctx, conf)
	if err != nil {
		zap.L().Fatal("初始化指标失败", zap.Error(err))
	}

	// 7. 事件流水：kafka 或只写日志
	sink := mq.NewEventSink(conf.KafkaConfig.MessageMode, func() mq.EventSink {
		return mq.NewKafkaEventSink(conf.KafkaConfig)
	})

	// 8. 网关与 Service 层
	persist := worker.NewQueue(conf.RealtimeConfig.PersistWorkers, conf.RealtimeConfig.PersistBuffer)
	hub := realtime.NewHub(session.NewStore(repos, access), sink, persist, realtime.OptionsFromConfig(conf))
	service.InitServices(repos, access, hub, conf)
	if err := handler.InitTrans("zh"); err != nil {
		zap.L().Warn("初始化参数校验翻译失败", zap.Error(err))
	}

	// 9. HTTP 服务
	engine := https_server.Init(handler.NewHandlers(service.Svc), conf)
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port),
		Handler: engine,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		return service.Svc.Session.RunCleanup(gctx, time.Duration(conf.SessionConfig.CleanupIntervalMinutes)*time.Minute)
	})
	g.Go(func() error {
		zap.L().Info("HTTP 服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("关闭服务器...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zap.L().Error("服务异常退出", zap.Error(err))
	}

	// 网关已停止，排空持久化队列后再关闭外部连接
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := persist.Close(shutdownCtx); err != nil {
		zap.L().Warn("持久化队列未在超时内排空", zap.Error(err))
	}
	if err := cache.Close(); err != nil {
		zap.L().Warn("关闭 Redis 失败", zap.Error(err))
	}
	if err := sink.Close(); err != nil {
		zap.L().Warn("关闭事件流水失败", zap.Error(err))
	}
	if err := mp.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("关闭指标导出失败", zap.Error(err))
	}
	zap.L().Info("服务器已关闭")
}
