package request

// CreateSessionRequest 创建会话请求
// 使用位置:
//   - internal/handler/session_handler.go: CreateSession
//   - internal/service/session/service.go: CreateSession
type CreateSessionRequest struct {
	MapId       string `json:"mapId" form:"mapId" binding:"required,max=64"`
	OwnerId     string `json:"ownerId" form:"ownerId" binding:"required,max=64"`
	Name        string `json:"name" form:"name" binding:"omitempty,max=100"`
	DisplayName string `json:"displayName" form:"displayName" binding:"omitempty,max=64"`
}
