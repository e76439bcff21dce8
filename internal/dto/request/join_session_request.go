package request

// JoinSessionRequest 邀请码加入会话请求
// 使用位置:
//   - internal/handler/session_handler.go: JoinSession
//   - internal/service/session/service.go: JoinByCode
type JoinSessionRequest struct {
	JoinCode    string `json:"joinCode" binding:"required,min=6,max=8"`
	UserId      string `json:"userId" binding:"required,max=64"`
	DisplayName string `json:"displayName" binding:"omitempty,max=64"`
}
