package request

// UpdateSessionRequest 修改会话请求，未传的字段保持不变
// 使用位置:
//   - internal/handler/session_handler.go: UpdateSession
//   - internal/service/session/service.go: UpdateSession
type UpdateSessionRequest struct {
	SessionId   string  `json:"sessionId" binding:"required"`
	UserId      string  `json:"userId" binding:"required"`
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	IsActive    *bool   `json:"isActive"`
	CurrentTurn *int    `json:"currentTurn" binding:"omitempty,gte=0"`
	Round       *int    `json:"round" binding:"omitempty,gte=1"`
}
