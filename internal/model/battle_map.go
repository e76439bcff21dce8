package model

import "time"

// BattleMap 战斗地图
// 这里只保留会话需要的字段，地图内容（地形、实体）以 JSON 存在 Data 中
type BattleMap struct {
	ID       uint   `gorm:"primaryKey"`
	Uuid     string `gorm:"column:uuid;uniqueIndex;type:char(36);not null;comment:地图uuid"`
	Name     string `gorm:"column:name;type:varchar(100);not null;comment:地图名称"`
	OwnerId  string `gorm:"column:owner_id;index;type:varchar(64);not null;comment:创建者id"`
	Width    int    `gorm:"column:width;not null;default:20"`
	Height   int    `gorm:"column:height;not null;default:20"`
	GridSize int    `gorm:"column:grid_size;not null;default:32"`
	Data     string `gorm:"column:data;type:TEXT;comment:地图数据json"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定表名
func (BattleMap) TableName() string {
	return "battle_map"
}
