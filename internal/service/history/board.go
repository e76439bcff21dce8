// Package history 地图编辑的撤销/重做
// Board 是客户端本地的地图状态，Command 在 Board 上执行并能精确还原
package history

import (
	"sort"
)

// TerrainType 地形类型
type TerrainType string

const (
	TerrainWall      TerrainType = "WALL"
	TerrainDifficult TerrainType = "DIFFICULT"
	TerrainWater     TerrainType = "WATER"
	TerrainLava      TerrainType = "LAVA"
	TerrainIce       TerrainType = "ICE"
	TerrainForest    TerrainType = "FOREST"
	TerrainMountain  TerrainType = "MOUNTAIN"
	TerrainDesert    TerrainType = "DESERT"
	TerrainSwamp     TerrainType = "SWAMP"
	TerrainCustom    TerrainType = "CUSTOM"
)

// EntityType 实体类型
type EntityType string

const (
	EntityPlayer  EntityType = "PLAYER"
	EntityNPC     EntityType = "NPC"
	EntityMonster EntityType = "MONSTER"
	EntityObject  EntityType = "OBJECT"
)

// Position 网格坐标
type Position struct {
	X int `json:"x" validate:"gte=0"`
	Y int `json:"y" validate:"gte=0"`
}

// GridCell 一个格子的地形，Terrain 为空表示该格没有地形
type GridCell struct {
	X       int         `json:"x" validate:"gte=0"`
	Y       int         `json:"y" validate:"gte=0"`
	Terrain TerrainType `json:"terrain,omitempty"`
	Color   string      `json:"color,omitempty"`
}

// Pos 返回格子坐标
func (c GridCell) Pos() Position {
	return Position{X: c.X, Y: c.Y}
}

// MapEntity 地图上的实体（角色、怪物、物件）
type MapEntity struct {
	Id       string     `json:"id" validate:"required"`
	Name     string     `json:"name"`
	Position Position   `json:"position"`
	Type     EntityType `json:"type"`
	Size     int        `json:"size"`
	Color    string     `json:"color"`
	ImageUrl string     `json:"imageUrl,omitempty"`
	Hp       *int       `json:"hp,omitempty"`
	MaxHp    *int       `json:"maxHp,omitempty"`
	Ac       *int       `json:"ac,omitempty"`
	Speed    *int       `json:"speed,omitempty"`
}

// Board 本地地图状态
type Board struct {
	terrain  map[Position]GridCell
	entities []MapEntity
}

// NewBoard 创建空地图
func NewBoard() *Board {
	return &Board{terrain: make(map[Position]GridCell)}
}

// Cell 返回某格地形
func (b *Board) Cell(p Position) (GridCell, bool) {
	c, ok := b.terrain[p]
	return c, ok
}

// SetCell 覆盖某格地形
func (b *Board) SetCell(c GridCell) {
	b.terrain[c.Pos()] = c
}

// RemoveCell 清除某格地形
func (b *Board) RemoveCell(p Position) {
	delete(b.terrain, p)
}

// Entity 按 id 查找实体
func (b *Board) Entity(id string) (MapEntity, bool) {
	if i := b.entityIndex(id); i >= 0 {
		return b.entities[i], true
	}
	return MapEntity{}, false
}

// PutEntity 同 id 存在则原地替换，否则追加
func (b *Board) PutEntity(e MapEntity) {
	if i := b.entityIndex(e.Id); i >= 0 {
		b.entities[i] = e
		return
	}
	b.entities = append(b.entities, e)
}

// InsertEntity 在指定下标插入，越界时追加
func (b *Board) InsertEntity(idx int, e MapEntity) {
	if idx < 0 || idx >= len(b.entities) {
		b.entities = append(b.entities, e)
		return
	}
	b.entities = append(b.entities, MapEntity{})
	copy(b.entities[idx+1:], b.entities[idx:])
	b.entities[idx] = e
}

// RemoveEntity 删除实体，返回原下标；不存在返回 -1
func (b *Board) RemoveEntity(id string) int {
	i := b.entityIndex(id)
	if i < 0 {
		return -1
	}
	b.entities = append(b.entities[:i], b.entities[i+1:]...)
	return i
}

// MoveEntity 修改实体坐标
func (b *Board) MoveEntity(id string, to Position) bool {
	i := b.entityIndex(id)
	if i < 0 {
		return false
	}
	b.entities[i].Position = to
	return true
}

// Terrain 按 (y, x) 排序后的地形列表
func (b *Board) Terrain() []GridCell {
	out := make([]GridCell, 0, len(b.terrain))
	for _, c := range b.terrain {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// Entities 实体列表副本
func (b *Board) Entities() []MapEntity {
	out := make([]MapEntity, len(b.entities))
	copy(out, b.entities)
	return out
}

func (b *Board) entityIndex(id string) int {
	for i := range b.entities {
		if b.entities[i].Id == id {
			return i
		}
	}
	return -1
}
