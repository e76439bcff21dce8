// Package participant 提供会话参与者数据访问层的具体实现
package participant

import (
	"battlemap_server/internal/dao/mysql/internal"
	"battlemap_server/internal/model"

	"gorm.io/gorm"
)

type participantRepository struct {
	db *gorm.DB
}

// NewParticipantRepository 创建 ParticipantRepository 实例
func NewParticipantRepository(db *gorm.DB) *participantRepository {
	return &participantRepository{db: db}
}

// Find 查找 (session, user) 对应的参与者
func (r *participantRepository) Find(sessionId, userId string) (*model.SessionParticipant, error) {
	var p model.SessionParticipant
	if err := r.db.Where("session_id = ? AND user_id = ?", sessionId, userId).First(&p).Error; err != nil {
		return nil, internal.WrapDBErrorf(err, "查询参与者 session_id=%s user_id=%s", sessionId, userId)
	}
	return &p, nil
}

// FindBySession 查找会话全部参与者，按加入时间排序
func (r *participantRepository) FindBySession(sessionId string) ([]model.SessionParticipant, error) {
	var list []model.SessionParticipant
	if err := r.db.Where("session_id = ?", sessionId).Order("joined_at ASC, id ASC").Find(&list).Error; err != nil {
		return nil, internal.WrapDBErrorf(err, "查询参与者列表 session_id=%s", sessionId)
	}
	return list, nil
}

// CountBySession 统计会话参与者数量
func (r *participantRepository) CountBySession(sessionId string) (int64, error) {
	var count int64
	if err := r.db.Model(&model.SessionParticipant{}).Where("session_id = ?", sessionId).Count(&count).Error; err != nil {
		return 0, internal.WrapDBErrorf(err, "统计参与者 session_id=%s", sessionId)
	}
	return count, nil
}

// Create 新建参与者
func (r *participantRepository) Create(p *model.SessionParticipant) error {
	if err := r.db.Create(p).Error; err != nil {
		return internal.WrapDBErrorf(err, "创建参与者 session_id=%s user_id=%s", p.SessionId, p.UserId)
	}
	return nil
}

// UpdateFields 更新参与者的部分字段
func (r *participantRepository) UpdateFields(sessionId, userId string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	err := r.db.Model(&model.SessionParticipant{}).
		Where("session_id = ? AND user_id = ?", sessionId, userId).
		Updates(updates).Error
	if err != nil {
		return internal.WrapDBErrorf(err, "更新参与者 session_id=%s user_id=%s", sessionId, userId)
	}
	return nil
}

// Delete 删除参与者
func (r *participantRepository) Delete(sessionId, userId string) error {
	err := r.db.Where("session_id = ? AND user_id = ?", sessionId, userId).Delete(&model.SessionParticipant{}).Error
	if err != nil {
		return internal.WrapDBErrorf(err, "删除参与者 session_id=%s user_id=%s", sessionId, userId)
	}
	return nil
}

// DeleteBySessions 删除若干会话的全部参与者
func (r *participantRepository) DeleteBySessions(sessionIds []string) error {
	if len(sessionIds) == 0 {
		return nil
	}
	if err := r.db.Where("session_id IN ?", sessionIds).Delete(&model.SessionParticipant{}).Error; err != nil {
		return internal.WrapDBError(err, "批量删除参与者")
	}
	return nil
}

// MarkAllDisconnected 进程启动时把所有在线标记清掉
func (r *participantRepository) MarkAllDisconnected() error {
	err := r.db.Model(&model.SessionParticipant{}).Where("is_connected = ?", true).Update("is_connected", false).Error
	if err != nil {
		return internal.WrapDBError(err, "重置参与者在线状态")
	}
	return nil
}
