// Package service 提供业务逻辑层
// 本文件实现 Service 层的依赖注入和聚合
package service

import (
	"battlemap_server/internal/config"
	"battlemap_server/internal/dao/mysql"
	myredis "battlemap_server/internal/dao/redis"
	"battlemap_server/internal/service/battlemap"
	"battlemap_server/internal/service/realtime"
	"battlemap_server/internal/service/session"
)

// Services 聚合所有 Service 实例
// 作为依赖注入的入口，Handler 层通过 service.Svc 访问各个 Service
type Services struct {
	Session  SessionService  // 会话 Service
	Map      MapService      // 地图 Service
	Realtime RealtimeGateway // websocket 网关
}

// NewServices 创建并注入所有 Service 实例
// 依赖注入流程：
//  1. 接收 Repository 聚合、权限缓存和已创建好的网关
//  2. 创建各个 Service 实例
//  3. 返回 Services 聚合
//
// access 为 nil 时不使用缓存；hub 为 nil 时会话修改不会同步到在线连接
func NewServices(repos *mysql.Repositories, access *myredis.AccessCache, hub *realtime.Hub, cfg *config.Config) *Services {
	svc := &Services{
		Map: battlemap.NewMapService(repos),
	}
	if hub != nil {
		svc.Session = session.NewSessionService(repos, access, hub, cfg.SessionConfig)
		svc.Realtime = hub
	} else {
		svc.Session = session.NewSessionService(repos, access, nil, cfg.SessionConfig)
	}
	return svc
}

// Svc 全局 Services 实例
var Svc *Services

// InitServices 初始化全局 Services 实例
// 应在 main.go 中调用，在 Repository 和网关初始化之后
func InitServices(repos *mysql.Repositories, access *myredis.AccessCache, hub *realtime.Hub, cfg *config.Config) {
	Svc = NewServices(repos, access, hub, cfg)
}
