// Package router 提供 HTTP 路由注册
// 本文件定义 WebSocket 相关的路由
package router

import (
	"battlemap_server/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterWebSocketRoutes 注册 WebSocket 相关路由
func (rt *Router) RegisterWebSocketRoutes(rg *gin.RouterGroup) {
	// 请求示例: ws://host:port/wss?token=<加入会话时拿到的 token>
	// requireToken 关闭时也接受 ws://host:port/wss?user_id=U1
	rg.GET("/wss", middleware.SessionToken(rt.requireToken), rt.handlers.Ws.Connect)
	rg.GET("/wss/stats", rt.handlers.Ws.Stats) // 网关运行状态
}
