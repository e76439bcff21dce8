// Package session 提供会话数据访问层的具体实现
package session

import (
	"time"

	"battlemap_server/internal/dao/mysql/internal"
	"battlemap_server/internal/model"

	"gorm.io/gorm"
)

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建 SessionRepository 实例
func NewSessionRepository(db *gorm.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

// FindByUuid 根据 UUID 查找会话
func (r *sessionRepository) FindByUuid(uuid string) (*model.Session, error) {
	var session model.Session
	if err := r.db.Where("uuid = ?", uuid).First(&session).Error; err != nil {
		return nil, internal.WrapDBErrorf(err, "查询会话 uuid=%s", uuid)
	}
	return &session, nil
}

// FindByJoinCode 根据邀请码查找会话
func (r *sessionRepository) FindByJoinCode(code string) (*model.Session, error) {
	var session model.Session
	if err := r.db.Where("join_code = ?", code).First(&session).Error; err != nil {
		return nil, internal.WrapDBErrorf(err, "查询会话 join_code=%s", code)
	}
	return &session, nil
}

// ExistsByJoinCode 邀请码是否已被占用
func (r *sessionRepository) ExistsByJoinCode(code string) (bool, error) {
	var count int64
	if err := r.db.Model(&model.Session{}).Where("join_code = ?", code).Count(&count).Error; err != nil {
		return false, internal.WrapDBErrorf(err, "检查邀请码 join_code=%s", code)
	}
	return count > 0, nil
}

// Create 创建会话
func (r *sessionRepository) Create(session *model.Session) error {
	if err := r.db.Create(session).Error; err != nil {
		return internal.WrapDBError(err, "创建会话")
	}
	return nil
}

// UpdateFields 更新会话的部分字段
func (r *sessionRepository) UpdateFields(uuid string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	if err := r.db.Model(&model.Session{}).Where("uuid = ?", uuid).Updates(updates).Error; err != nil {
		return internal.WrapDBErrorf(err, "更新会话 uuid=%s", uuid)
	}
	return nil
}

// TouchActivity 刷新最近活动时间
func (r *sessionRepository) TouchActivity(uuid string, at time.Time) error {
	if err := r.db.Model(&model.Session{}).Where("uuid = ?", uuid).Update("last_activity", at).Error; err != nil {
		return internal.WrapDBErrorf(err, "刷新会话活动时间 uuid=%s", uuid)
	}
	return nil
}

// UpdateTurn 写回回合与轮次
func (r *sessionRepository) UpdateTurn(uuid string, currentTurn, round int) error {
	err := r.db.Model(&model.Session{}).Where("uuid = ?", uuid).Updates(map[string]interface{}{
		"current_turn": currentTurn,
		"round":        round,
	}).Error
	if err != nil {
		return internal.WrapDBErrorf(err, "更新会话回合 uuid=%s", uuid)
	}
	return nil
}

// FindExpired 查找已过期或长时间无活动的会话
func (r *sessionRepository) FindExpired(now, inactiveBefore time.Time) ([]model.Session, error) {
	var sessions []model.Session
	query := r.db.Where("expires_at IS NOT NULL AND expires_at < ?", now)
	if !inactiveBefore.IsZero() {
		query = query.Or("last_activity < ?", inactiveBefore)
	}
	if err := query.Find(&sessions).Error; err != nil {
		return nil, internal.WrapDBError(err, "查询过期会话")
	}
	return sessions, nil
}

// DeleteByUuids 批量删除会话
func (r *sessionRepository) DeleteByUuids(uuids []string) error {
	if len(uuids) == 0 {
		return nil
	}
	if err := r.db.Where("uuid IN ?", uuids).Delete(&model.Session{}).Error; err != nil {
		return internal.WrapDBError(err, "批量删除会话")
	}
	return nil
}
