package respond

import "time"

// SessionPreview 邀请码校验时返回的公开信息
type SessionPreview struct {
	Id               string     `json:"id"`
	Name             string     `json:"name"`
	MapName          string     `json:"mapName"`
	ParticipantCount int        `json:"participantCount"`
	IsActive         bool       `json:"isActive"`
	ExpiresAt        *time.Time `json:"expiresAt"`
}

// JoinCodePreviewRespond 邀请码校验结果
// 使用位置:
//   - internal/service/session/service.go: ValidateJoinCode
type JoinCodePreviewRespond struct {
	Valid   bool           `json:"valid"`
	Session SessionPreview `json:"session"`
}
