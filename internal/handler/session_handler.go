// Package handler 提供 HTTP 请求处理器
// 本文件处理会话相关的 API 请求
package handler

import (
	"errors"

	"battlemap_server/internal/dto/request"
	"battlemap_server/internal/service"

	"github.com/gin-gonic/gin"
)

var errMissingCode = errors.New("join code is required")

// SessionHandler 会话请求处理器
// 通过构造函数注入 SessionService，遵循依赖倒置原则
type SessionHandler struct {
	sessionSvc service.SessionService
}

// NewSessionHandler 创建会话处理器实例
func NewSessionHandler(sessionSvc service.SessionService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc}
}

// CreateSession 创建会话
// POST /session/create
// 请求体: request.CreateSessionRequest
// 响应: respond.CreateSessionRespond
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req request.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.sessionSvc.CreateSession(c.Request.Context(), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// ValidateJoinCode 校验邀请码
// GET /session/join?code=ABC234
// 响应: respond.JoinCodePreviewRespond；不存在 404，已过期 410
func (h *SessionHandler) ValidateJoinCode(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		HandleParamError(c, errMissingCode)
		return
	}
	data, err := h.sessionSvc.ValidateJoinCode(c.Request.Context(), code)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// JoinSession 邀请码加入会话
// POST /session/join
// 请求体: request.JoinSessionRequest
// 响应: respond.JoinSessionRespond（带 websocket token）
func (h *SessionHandler) JoinSession(c *gin.Context) {
	var req request.JoinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.sessionSvc.JoinByCode(c.Request.Context(), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// GetSession 会话详情
// GET /session/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	data, err := h.sessionSvc.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// UpdateSession 修改会话
// POST /session/update
// 请求体: request.UpdateSessionRequest
func (h *SessionHandler) UpdateSession(c *gin.Context) {
	var req request.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.sessionSvc.UpdateSession(c.Request.Context(), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// DeleteSession 删除会话
// POST /session/delete
// 请求体: request.DeleteSessionRequest
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	var req request.DeleteSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	if err := h.sessionSvc.DeleteSession(c.Request.Context(), req); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, nil)
}
