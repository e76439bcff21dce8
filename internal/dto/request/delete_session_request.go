package request

// DeleteSessionRequest 删除会话请求，只有创建者可以删除
// 使用位置:
//   - internal/handler/session_handler.go: DeleteSession
//   - internal/service/session/service.go: DeleteSession
type DeleteSessionRequest struct {
	SessionId string `json:"sessionId" binding:"required"`
	UserId    string `json:"userId" binding:"required"`
}
