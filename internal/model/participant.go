package model

import (
	"database/sql"
	"time"
)

// SessionParticipant 会话参与者
// (session_id, user_id) 唯一；离开只改 is_connected，被踢才删除
type SessionParticipant struct {
	ID uint `gorm:"primaryKey"`

	SessionId   string `gorm:"column:session_id;type:char(36);not null;uniqueIndex:idx_session_user;comment:会话uuid"`
	UserId      string `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:idx_session_user;index;comment:用户id"`
	DisplayName string `gorm:"column:display_name;type:varchar(64);not null;default:'';comment:显示名称"`

	// Role 为空串表示没有角色（旁观者）
	Role string `gorm:"column:role;type:varchar(16);not null;default:'';comment:角色 DM/PLAYER"`

	AssignedCharacterId sql.NullString `gorm:"column:assigned_character_id;type:varchar(64);comment:分配的角色实体id"`

	IsConnected bool      `gorm:"column:is_connected;not null;default:false;comment:是否在线"`
	LastSeen    time.Time `gorm:"column:last_seen;type:datetime;comment:最近在线时间"`
	JoinedAt    time.Time `gorm:"column:joined_at;type:datetime;comment:加入时间"`
}

// TableName 指定表名
func (SessionParticipant) TableName() string {
	return "session_participant"
}
