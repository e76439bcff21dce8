// Package model 定义数据库实体模型
// 本文件定义会话模型，一个会话对应一张战斗地图的一次联机
package model

import (
	"database/sql"
	"time"
)

// Session 会话模型
// 对应数据库 session 表，不做软删除，过期后由清理任务直接删除
type Session struct {
	ID uint `gorm:"primaryKey"`

	// Uuid 会话唯一标识，websocket 事件里的 sessionId
	Uuid string `gorm:"column:uuid;uniqueIndex;type:char(36);not null;comment:会话uuid"`

	Name string `gorm:"column:name;type:varchar(100);not null;comment:会话名称"`

	// JoinCode 6 位邀请码，全局唯一
	JoinCode string `gorm:"column:join_code;uniqueIndex;type:char(6);not null;comment:邀请码"`

	MapId   string `gorm:"column:map_id;index;type:char(36);not null;comment:地图id"`
	OwnerId string `gorm:"column:owner_id;index;type:varchar(64);not null;comment:创建者id"`

	IsActive    bool `gorm:"column:is_active;not null;default:true;comment:是否激活"`
	CurrentTurn int  `gorm:"column:current_turn;not null;default:0;comment:当前回合下标"`
	Round       int  `gorm:"column:round;not null;default:1;comment:轮次"`

	// ExpiresAt 为空表示不过期
	ExpiresAt    sql.NullTime `gorm:"column:expires_at;type:datetime;comment:过期时间"`
	LastActivity time.Time    `gorm:"column:last_activity;type:datetime;index;comment:最近活动时间"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定表名
func (Session) TableName() string {
	return "session"
}

// IsExpiredAt 判断在 now 时刻会话是否已过期
// inactivity 为 0 时只看 ExpiresAt
func (s *Session) IsExpiredAt(now time.Time, inactivity time.Duration) bool {
	if s.ExpiresAt.Valid && now.After(s.ExpiresAt.Time) {
		return true
	}
	if inactivity > 0 && !s.LastActivity.IsZero() && now.Sub(s.LastActivity) > inactivity {
		return true
	}
	return false
}
