// Package router 提供 HTTP 路由注册
// 本文件是路由注册的入口，聚合所有子模块的路由
package router

import (
	"net/http"

	"battlemap_server/internal/handler"

	"github.com/gin-gonic/gin"
)

// Router 路由管理器，持有全部 Handler
type Router struct {
	handlers     *handler.Handlers
	requireToken bool // websocket 握手是否必须携带会话令牌
}

// NewRouter 创建路由管理器
func NewRouter(handlers *handler.Handlers, requireToken bool) *Router {
	return &Router{handlers: handlers, requireToken: requireToken}
}

// RegisterRoutes 注册所有路由
// 在 https_server.Init() 中调用
func (rt *Router) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	root := engine.Group("")
	rt.RegisterMapRoutes(root)       // 地图路由
	rt.RegisterSessionRoutes(root)   // 会话路由
	rt.RegisterWebSocketRoutes(root) // WebSocket 路由
}
