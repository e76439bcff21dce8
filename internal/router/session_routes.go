// Package router 提供 HTTP 路由注册
// 本文件定义会话相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterSessionRoutes 注册会话相关路由
// 包括会话的创建、邀请码校验与加入、查询、修改、删除
func (rt *Router) RegisterSessionRoutes(rg *gin.RouterGroup) {
	sessionGroup := rg.Group("/session")
	{
		sessionGroup.POST("/create", rt.handlers.Session.CreateSession) // 创建会话
		sessionGroup.GET("/join", rt.handlers.Session.ValidateJoinCode) // 校验邀请码
		sessionGroup.POST("/join", rt.handlers.Session.JoinSession)     // 邀请码加入
		sessionGroup.POST("/update", rt.handlers.Session.UpdateSession) // 修改会话
		sessionGroup.POST("/delete", rt.handlers.Session.DeleteSession) // 删除会话
		sessionGroup.GET("/:id", rt.handlers.Session.GetSession)        // 会话详情
	}
}

// RegisterMapRoutes 注册地图相关路由
func (rt *Router) RegisterMapRoutes(rg *gin.RouterGroup) {
	mapGroup := rg.Group("/map")
	{
		mapGroup.POST("/create", rt.handlers.Map.CreateMap) // 创建地图
		mapGroup.POST("/update", rt.handlers.Map.UpdateMap) // 覆盖保存地图数据
		mapGroup.GET("/:id", rt.handlers.Map.GetMap)        // 地图详情
	}
}
