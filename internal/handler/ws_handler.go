// Package handler 提供 HTTP 请求处理器
// 本文件处理 WebSocket 连接相关的 API 请求
package handler

import (
	"net/http"

	"battlemap_server/internal/dto/respond"
	"battlemap_server/internal/infrastructure/middleware"
	"battlemap_server/internal/service"
	"battlemap_server/internal/service/realtime"
	"battlemap_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WsHandler websocket 接入
type WsHandler struct {
	gateway service.RealtimeGateway
}

// NewWsHandler 创建 websocket 处理器实例
func NewWsHandler(gateway service.RealtimeGateway) *WsHandler {
	return &WsHandler{gateway: gateway}
}

// Connect 升级为 websocket 连接
// GET /wss?token=xxx  或未强制 token 时 GET /wss?user_id=xxx
// 身份在握手时绑定：token 中的 user_id 优先，此后所有事件的 userId 必须与之一致
func (h *WsHandler) Connect(c *gin.Context) {
	id := realtime.Identity{
		UserId:    c.GetString(middleware.CtxUserID),
		SessionId: c.GetString(middleware.CtxSessionID),
	}
	if id.UserId == "" {
		id.UserId = c.Query("user_id")
	}
	if id.UserId == "" {
		zap.L().Warn("ws 握手缺少用户标识", zap.String("remote", c.ClientIP()))
		c.JSON(http.StatusBadRequest, gin.H{
			"code": errorx.CodeInvalidParam,
			"msg":  "user_id获取失败",
		})
		return
	}
	if err := h.gateway.ServeClient(c.Writer, c.Request, id); err != nil {
		// Upgrade 失败时 gorilla 已经写过响应
		zap.L().Warn("ws 升级失败", zap.String("user_id", id.UserId), zap.Error(err))
	}
}

// Stats 网关运行状态
// GET /wss/stats
func (h *WsHandler) Stats(c *gin.Context) {
	st, err := h.gateway.Stats(c.Request.Context())
	if err != nil {
		HandleError(c, errorx.Wrap(err, errorx.CodeServerBusy, "网关不可用"))
		return
	}
	HandleSuccess(c, respond.StatsRespond{
		Sessions:    st.Sessions,
		Connections: st.Connections,
		Presence:    st.Presence,
	})
}
