package respond

import "time"

// ParticipantRespond 参与者信息
type ParticipantRespond struct {
	UserId              string    `json:"userId"`
	DisplayName         string    `json:"displayName"`
	Role                string    `json:"role"`
	AssignedCharacterId string    `json:"assignedCharacterId,omitempty"`
	IsConnected         bool      `json:"isConnected"`
	LastSeen            time.Time `json:"lastSeen"`
	JoinedAt            time.Time `json:"joinedAt"`
}

// SessionRespond 会话详情
// 使用位置:
//   - internal/service/session/service.go: GetSession, UpdateSession, CreateSession, JoinByCode
type SessionRespond struct {
	Id           string               `json:"id"`
	Name         string               `json:"name"`
	JoinCode     string               `json:"joinCode"`
	MapId        string               `json:"mapId"`
	MapName      string               `json:"mapName,omitempty"`
	OwnerId      string               `json:"ownerId"`
	IsActive     bool                 `json:"isActive"`
	CurrentTurn  int                  `json:"currentTurn"`
	Round        int                  `json:"round"`
	ExpiresAt    *time.Time           `json:"expiresAt"`
	LastActivity time.Time            `json:"lastActivity"`
	CreatedAt    time.Time            `json:"createdAt"`
	Participants []ParticipantRespond `json:"participants"`
}

// CreateSessionRespond 创建会话结果，创建者直接拿到 websocket token
type CreateSessionRespond struct {
	Session SessionRespond `json:"session"`
	Token   string         `json:"token"`
}

// JoinSessionRespond 邀请码加入结果
// 使用位置:
//   - internal/service/session/service.go: JoinByCode
type JoinSessionRespond struct {
	Session     SessionRespond     `json:"session"`
	Participant ParticipantRespond `json:"participant"`
	Token       string             `json:"token"`
	Message     string             `json:"message"`
}
