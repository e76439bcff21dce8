// Package mysql 定义数据访问层接口和聚合结构
// 采用 Repository 模式将数据访问逻辑与业务逻辑分离
// 所有 Repository 接口在此文件定义，具体实现在各自的子包中
package mysql

import (
	"time"

	"battlemap_server/internal/model"
)

// SessionRepository 会话数据访问接口
type SessionRepository interface {
	// FindByUuid 根据 UUID 查找会话
	FindByUuid(uuid string) (*model.Session, error)
	// FindByJoinCode 根据邀请码查找会话
	FindByJoinCode(code string) (*model.Session, error)
	// ExistsByJoinCode 邀请码是否已被占用
	ExistsByJoinCode(code string) (bool, error)
	// Create 创建会话
	Create(session *model.Session) error
	// UpdateFields 更新会话的部分字段
	UpdateFields(uuid string, updates map[string]interface{}) error
	// TouchActivity 刷新最近活动时间
	TouchActivity(uuid string, at time.Time) error
	// UpdateTurn 写回回合与轮次
	UpdateTurn(uuid string, currentTurn, round int) error
	// FindExpired 查找 expires_at 早于 now 或 last_activity 早于 inactiveBefore 的会话
	// inactiveBefore 为零值时只看 expires_at
	FindExpired(now, inactiveBefore time.Time) ([]model.Session, error)
	// DeleteByUuids 批量删除会话
	DeleteByUuids(uuids []string) error
}

// ParticipantRepository 会话参与者数据访问接口
type ParticipantRepository interface {
	// Find 查找 (session, user) 对应的参与者
	Find(sessionId, userId string) (*model.SessionParticipant, error)
	// FindBySession 查找会话全部参与者，按加入时间排序
	FindBySession(sessionId string) ([]model.SessionParticipant, error)
	// CountBySession 统计会话参与者数量
	CountBySession(sessionId string) (int64, error)
	// Create 新建参与者
	Create(p *model.SessionParticipant) error
	// UpdateFields 更新参与者的部分字段
	UpdateFields(sessionId, userId string, updates map[string]interface{}) error
	// Delete 删除参与者（踢人）
	Delete(sessionId, userId string) error
	// DeleteBySessions 删除若干会话的全部参与者
	DeleteBySessions(sessionIds []string) error
	// MarkAllDisconnected 进程启动时把所有在线标记清掉
	MarkAllDisconnected() error
}

// BattleMapRepository 地图数据访问接口
type BattleMapRepository interface {
	// FindByUuid 根据 UUID 查找地图
	FindByUuid(uuid string) (*model.BattleMap, error)
	// Create 创建地图
	Create(m *model.BattleMap) error
	// UpdateData 覆盖地图数据（last-write-wins）
	UpdateData(uuid string, data string) error
}
