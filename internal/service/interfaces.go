// Package service 定义业务层接口
// 本文件定义所有 Service 接口，供 Handler 层调用
// 接口设计遵循依赖倒置原则，便于测试和解耦
package service

import (
	"context"
	"net/http"
	"time"

	"battlemap_server/internal/dto/request"
	"battlemap_server/internal/dto/respond"
	"battlemap_server/internal/service/realtime"
)

// SessionService 会话业务接口
// 处理会话的创建、邀请码加入、修改、删除和过期清理
type SessionService interface {
	// CreateSession 创建会话，创建者成为 DM 并拿到 websocket token
	CreateSession(ctx context.Context, req request.CreateSessionRequest) (*respond.CreateSessionRespond, error)
	// ValidateJoinCode 校验邀请码，不存在和已过期分别返回不同错误
	ValidateJoinCode(ctx context.Context, code string) (*respond.JoinCodePreviewRespond, error)
	// JoinByCode 邀请码加入或重连
	JoinByCode(ctx context.Context, req request.JoinSessionRequest) (*respond.JoinSessionRespond, error)
	// GetSession 会话详情
	GetSession(ctx context.Context, sessionId string) (*respond.SessionRespond, error)
	// UpdateSession 修改会话
	UpdateSession(ctx context.Context, req request.UpdateSessionRequest) (*respond.SessionRespond, error)
	// DeleteSession 删除会话
	DeleteSession(ctx context.Context, req request.DeleteSessionRequest) error
	// CleanupExpired 清理一次过期会话
	CleanupExpired(ctx context.Context) (int, error)
	// RunCleanup 周期清理，阻塞到 ctx 结束
	RunCleanup(ctx context.Context, interval time.Duration) error
}

// MapService 地图业务接口
type MapService interface {
	// CreateMap 创建地图
	CreateMap(ctx context.Context, req request.CreateMapRequest) (*respond.MapRespond, error)
	// GetMap 读取地图
	GetMap(ctx context.Context, mapId string) (*respond.MapRespond, error)
	// UpdateMapData 覆盖保存地图数据
	UpdateMapData(ctx context.Context, req request.UpdateMapRequest) error
}

// RealtimeGateway websocket 网关，由 realtime.Hub 实现
type RealtimeGateway interface {
	// ServeClient 升级连接并绑定身份
	ServeClient(w http.ResponseWriter, r *http.Request, id realtime.Identity) error
	// Stats 当前会话数、连接数
	Stats(ctx context.Context) (realtime.Stats, error)
}
