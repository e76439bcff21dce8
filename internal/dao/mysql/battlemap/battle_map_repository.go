// Package battlemap 提供地图数据访问层的具体实现
package battlemap

import (
	"battlemap_server/internal/dao/mysql/internal"
	"battlemap_server/internal/model"

	"gorm.io/gorm"
)

type battleMapRepository struct {
	db *gorm.DB
}

// NewBattleMapRepository 创建 BattleMapRepository 实例
func NewBattleMapRepository(db *gorm.DB) *battleMapRepository {
	return &battleMapRepository{db: db}
}

// FindByUuid 根据 UUID 查找地图
func (r *battleMapRepository) FindByUuid(uuid string) (*model.BattleMap, error) {
	var m model.BattleMap
	if err := r.db.Where("uuid = ?", uuid).First(&m).Error; err != nil {
		return nil, internal.WrapDBErrorf(err, "查询地图 uuid=%s", uuid)
	}
	return &m, nil
}

// Create 创建地图
func (r *battleMapRepository) Create(m *model.BattleMap) error {
	if err := r.db.Create(m).Error; err != nil {
		return internal.WrapDBError(err, "创建地图")
	}
	return nil
}

// UpdateData 覆盖地图数据
func (r *battleMapRepository) UpdateData(uuid string, data string) error {
	if err := r.db.Model(&model.BattleMap{}).Where("uuid = ?", uuid).Update("data", data).Error; err != nil {
		return internal.WrapDBErrorf(err, "更新地图数据 uuid=%s", uuid)
	}
	return nil
}
