// Package https_server 提供 HTTP/HTTPS 服务器的初始化和配置
// 负责创建 Gin 引擎实例并配置中间件和路由
package https_server

import (
	"battlemap_server/internal/config"                    // 配置管理
	"battlemap_server/internal/handler"                   // Handler 聚合对象
	"battlemap_server/internal/infrastructure/logger"     // 自定义日志中间件
	"battlemap_server/internal/infrastructure/middleware" // 安全头、TLS 重定向
	"battlemap_server/internal/router"                    // 路由注册

	"github.com/gin-contrib/cors" // CORS 跨域中间件
	"github.com/gin-gonic/gin"    // Gin Web 框架
)

// Init 初始化 HTTP/HTTPS 服务器并返回 Gin 引擎实例
// 配置顺序：
//  1. 创建 Gin 引擎（空白，不含默认中间件）
//  2. 注册日志和恢复中间件
//  3. 配置 CORS 跨域规则和安全头
//  4. 注册业务路由
func Init(handlers *handler.Handlers, cfg *config.Config) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	// GinLogger 记录每个请求的路径、状态码、耗时
	engine.Use(logger.GinLogger())
	// 捕获 panic 并记录堆栈
	engine.Use(logger.GinRecovery(true))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"} // 允许所有来源（生产环境应指定具体域名）
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsConfig))

	engine.Use(middleware.SecureHeaders(cfg.Mode != "release"))
	// 由 Nginx 终止 SSL 时保持关闭
	if cfg.MainConfig.TLS {
		engine.Use(middleware.TlsHandler(cfg.MainConfig.Host, cfg.MainConfig.Port))
	}

	rt := router.NewRouter(handlers, cfg.RealtimeConfig.RequireToken)
	rt.RegisterRoutes(engine)

	return engine
}
